package main

import (
	"log"
	"time"

	"yam/internal/pkg/logger"
	"yam/internal/platform/config"
	"yam/internal/platform/database"
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

	inviteRepo := repositories.NewInvitationRepository(db)

	log.Println("Starting background workers...")

	go runInvitationExpiryWorker(inviteRepo)

	// Keep process alive
	select {}
}

func runInvitationExpiryWorker(inviteRepo *repositories.InvitationRepository) {
	ticker := time.NewTicker(15 * time.Minute)
	defer ticker.Stop()

	workers.ExpireInvitations(inviteRepo)
	for range ticker.C {
		workers.ExpireInvitations(inviteRepo)
	}
}
