package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"investdash/internal/config"
	"investdash/internal/database"
	"investdash/internal/handlers"
	"investdash/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

func main() {
	boot := logrus.New()
	cfg, err := config.Load(boot)
	if err != nil {
		boot.Fatalf("config: %v", err)
	}
	logger := cfg.NewLogger()

	var store service.Store
	switch cfg.Storage {
	case config.StorageMemory:
		logger.Warn("using in-memory storage; records are lost on exit")
		store = database.NewMemoryStore()
	default:
		db, err := initDB(cfg)
		if err != nil {
			logger.Fatalf("db connect failed: %v", err)
		}
		defer db.Close()
		store = database.New(db, logger)
	}

	svc := service.NewInvestmentService(store, logger)
	h := handlers.NewHandler(svc, logger, cfg.RequireAuth)

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	if logger.GetLevel() < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handlers.NewRouter(h, logger, handlers.RouterOptions{
		AppName:     cfg.AppName,
		Version:     cfg.Version,
		FrontendURL: cfg.FrontendURL,
		SecretKey:   cfg.SecretKey,
		RequireAuth: cfg.RequireAuth,
		Limiter:     limiter,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Infof("%s %s listening on :%s (storage=%s)", cfg.AppName, cfg.Version, cfg.Port, cfg.Storage)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
}

func initDB(cfg config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	return db, nil
}
