package main

import (
	"context"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/geo-checkin-api/internal/repository"
	"github.com/noah-isme/geo-checkin-api/internal/service"
	"github.com/noah-isme/geo-checkin-api/pkg/config"
	"github.com/noah-isme/geo-checkin-api/pkg/database"
	"github.com/noah-isme/geo-checkin-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Seed.AdminPassword == "" {
		logr.Fatal("SEED_ADMIN_PASSWORD is required")
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("connect postgres", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	auth := service.NewAuthService(repository.NewUserRepository(db), nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})

	admin, err := auth.EnsureAdmin(ctx, cfg.Seed.AdminEmail, cfg.Seed.AdminPassword, cfg.Seed.AdminName)
	if err != nil {
		logr.Fatal("seed admin failed", zap.Error(err))
	}
	logr.Info("admin ready", zap.String("email", admin.Email), zap.String("id", admin.ID))
}
