package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	JWT          JWTConfig          `mapstructure:"jwt"`
	Registration RegistrationConfig `mapstructure:"registration"`
	Invites      InvitesConfig      `mapstructure:"invites"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	Domains      DomainsConfig      `mapstructure:"domains"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type DatabaseConfig struct {
	Path           string `mapstructure:"path"`
	MaxConnections int    `mapstructure:"max_connections"`
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`
}

// RegistrationConfig tunes the activation flow itself.
// SessionWait bounds how long a flow sits in checking_session before it
// gives up on a sign-in notification that may never arrive.
type RegistrationConfig struct {
	SessionWait     time.Duration `mapstructure:"session_wait"`
	FlowTTL         time.Duration `mapstructure:"flow_ttl"`
	RequireIdentity bool          `mapstructure:"require_identity"`
}

type InvitesConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

type DomainsConfig struct {
	AppDomain string `mapstructure:"app_domain"`
}

func Load(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("registration.session_wait", 2*time.Second)
	viper.SetDefault("registration.flow_ttl", 30*time.Minute)
	viper.SetDefault("registration.require_identity", true)
	viper.SetDefault("invites.ttl", 7*24*time.Hour)

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
