package main

import (
	"context"
	"log"
	"time"

	"go.uber.org/zap"

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("connect postgres", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	applied, err := database.Migrate(ctx, db, logr)
	if err != nil {
		logr.Fatal("migration failed", zap.Error(err))
	}
	logr.Info("migrations complete", zap.Int("applied", len(applied)), zap.Strings("versions", applied))
}
