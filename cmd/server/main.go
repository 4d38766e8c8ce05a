package main

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"yam/internal/api"
	"yam/internal/api/handlers"
	"yam/internal/api/middleware"
	"yam/internal/engine/registration"
	"yam/internal/pkg/logger"
	"yam/internal/platform/audit"
	"yam/internal/platform/config"
	"yam/internal/platform/database"
	"yam/internal/platform/identity"
	"yam/internal/platform/repositories"
	"yam/internal/workers"
)

func main() {
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.Logging)

	db, err := database.New(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Repositories
	orgRepo := repositories.NewOrganizationRepository(db)
	mailroomRepo := repositories.NewMailroomRepository(db)
	inviteRepo := repositories.NewInvitationRepository(db)
	profileRepo := repositories.NewProfileRepository(db)
	credRepo := repositories.NewCredentialRepository(db)

	// Identity provider and activation flow collaborators
	tokenSvc := identity.NewTokenService(cfg.JWT)
	provider := identity.NewProvider(credRepo, profileRepo, tokenSvc)
	auditLog := audit.NewLogger(db)
	inviteValidator := registration.NewValidator(inviteRepo, orgRepo, mailroomRepo)
	registry := registration.NewRegistry(cfg.Registration.FlowTTL)

	// Abandoned flows hold session subscriptions; sweep them in-process.
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			workers.CleanupFlows(registry)
		}
	}()

	// Handlers
	registrationHandler := handlers.NewRegistrationHandler(registry, provider, inviteValidator, inviteRepo, profileRepo, auditLog, cfg.Registration)
	authHandler := handlers.NewAuthHandler(provider)
	invitationHandler := handlers.NewInvitationHandler(inviteRepo, mailroomRepo, cfg.Invites, cfg.Domains)
	healthHandler := handlers.NewHealthHandler(db)

	authMiddleware := middleware.NewAuthMiddleware(provider)

	deps := &api.Dependencies{
		RegistrationHandler: registrationHandler,
		AuthHandler:         authHandler,
		InvitationHandler:   invitationHandler,
		HealthHandler:       healthHandler,
		AuthMiddleware:      authMiddleware,
	}
	router := api.NewRouter(deps)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Server starting on %s", addr)

	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	if err := server.ListenAndServe(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
