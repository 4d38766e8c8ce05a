package audit

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type Entry struct {
	ID             string                 `json:"id"`
	OrganizationID string                 `json:"organization_id"`
	UserID         string                 `json:"user_id"`
	Action         string                 `json:"action"`
	ResourceType   string                 `json:"resource_type"`
	ResourceID     string                 `json:"resource_id"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt      int64                  `json:"created_at"`
}

type Logger struct {
	db *sql.DB
}

func NewLogger(db *sql.DB) *Logger {
	return &Logger{db: db}
}

// Record writes an audit entry. Failures are logged and swallowed; auditing
// never blocks the action it describes.
func (l *Logger) Record(orgID, userID, action, resourceType, resourceID string, metadata map[string]interface{}) {
	entry := Entry{
		ID:             "aud_" + uuid.NewString(),
		OrganizationID: orgID,
		UserID:         userID,
		Action:         action,
		ResourceType:   resourceType,
		ResourceID:     resourceID,
		Metadata:       metadata,
		CreatedAt:      time.Now().Unix(),
	}

	var meta []byte
	if entry.Metadata != nil {
		meta, _ = json.Marshal(entry.Metadata)
	}

	_, err := l.db.Exec(`
		INSERT INTO audit_log (id, organization_id, user_id, action, resource_type, resource_id, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.OrganizationID, entry.UserID, entry.Action, entry.ResourceType, entry.ResourceID, string(meta), entry.CreatedAt)
	if err != nil {
		log.Warn().Err(err).Str("action", action).Msg("failed to write audit entry")
	}
}
