package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/geo-checkin-api/api/swagger"
	"github.com/noah-isme/geo-checkin-api/internal/handler"
	"github.com/noah-isme/geo-checkin-api/internal/middleware"
	"github.com/noah-isme/geo-checkin-api/internal/repository"
	"github.com/noah-isme/geo-checkin-api/internal/router"
	"github.com/noah-isme/geo-checkin-api/internal/service"
	"github.com/noah-isme/geo-checkin-api/pkg/cache"
	"github.com/noah-isme/geo-checkin-api/pkg/config"
	"github.com/noah-isme/geo-checkin-api/pkg/database"
	"github.com/noah-isme/geo-checkin-api/pkg/events"
	"github.com/noah-isme/geo-checkin-api/pkg/export"
	"github.com/noah-isme/geo-checkin-api/pkg/logger"
)

// @title Geo Check-in API
// @version 1.0.0
// @description Location-verified QR attendance
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 10 * time.Second

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

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	// Redis backs the roster cache and the check-in limiter; both degrade
	// to pass-through without it.
	var rdb *redis.Client
	if client, err := cache.NewRedis(cfg.Redis); err != nil {
		logr.Warn("redis unavailable, caching and rate limiting disabled", zap.Error(err))
	} else {
		rdb = client
		defer rdb.Close()
	}

	publisher, err := events.ConnectNATS(cfg.Events.NATSURL, "geo-checkin-api", logr)
	if err != nil {
		logr.Warn("nats unavailable, events will not be published", zap.Error(err))
		publisher = events.NopPublisher{}
	}
	defer publisher.Close()

	validate := validator.New()
	metrics := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	cacheRepo := repository.NewCacheRepository(rdb, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Roster.CacheTTL, logr, cfg.Roster.CacheEnabled && rdb != nil)

	eventSvc := service.NewAttendanceEventService(userRepo, publisher, metrics, logr, service.AttendanceEventConfig{
		Workers:    cfg.Events.Workers,
		BufferSize: cfg.Events.BufferSize,
		MaxRetries: cfg.Events.MaxRetries,
		Subject:    cfg.Events.Subject,
	})
	// The signal context ends before shutdown; workers must outlive it to
	// drain buffered events, so they only stop through Stop.
	eventSvc.Start(context.Background())
	defer eventSvc.Stop()

	rosterSvc := service.NewRosterService(sessionRepo, userRepo, attendanceRepo, cacheSvc, cfg.Roster.CacheTTL, logr)
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	}, service.WithRosterInvalidator(rosterSvc))
	sessionSvc := service.NewSessionService(sessionRepo, userRepo, cacheSvc, validate, logr, service.SessionConfig{
		DefaultRadius: cfg.CheckIn.DefaultRadius,
		MaxRadius:     cfg.CheckIn.MaxRadius,
		AppBaseURL:    cfg.AppBaseURL,
	})
	checkInSvc := service.NewCheckInService(sessionRepo, attendanceRepo, rosterSvc, eventSvc, metrics, validate, logr)
	exportSvc := service.NewExportService(rosterSvc, logr, export.NewCSVExporter(), export.NewPDFExporter())

	engine := router.New(router.Options{
		APIPrefix:      cfg.APIPrefix,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		EnableDocs:     cfg.Env != config.EnvProduction,
	}, router.Dependencies{
		Logger:         logr,
		Metrics:        metrics,
		Tokens:         authSvc,
		CheckInLimiter: middleware.RateLimit(rdb, "check-in", cfg.CheckIn.RateLimitPerMin, logr),
		AuthHandler:    handler.NewAuthHandler(authSvc),
		CheckInHandler: handler.NewCheckInHandler(checkInSvc),
		SessionHandler: handler.NewSessionHandler(sessionSvc),
		RosterHandler:  handler.NewRosterHandler(rosterSvc, exportSvc),
		MetricsHandler: handler.NewMetricsHandler(metrics, map[string]handler.Pinger{
			"postgres": db,
			"redis":    handler.PingFunc(cacheRepo.Ping),
		}, logr),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
