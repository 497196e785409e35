package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/courtcal/internal/api"
	"github.com/Kerhoff/courtcal/internal/config"
	"github.com/Kerhoff/courtcal/internal/core"
	"github.com/Kerhoff/courtcal/internal/handlers"
	"github.com/Kerhoff/courtcal/internal/metrics"
	"github.com/Kerhoff/courtcal/internal/repository"
	"github.com/Kerhoff/courtcal/internal/repository/memory"
	"github.com/Kerhoff/courtcal/internal/repository/postgres"
	"github.com/Kerhoff/courtcal/internal/service"
	"github.com/Kerhoff/courtcal/internal/storage"
	"github.com/Kerhoff/courtcal/internal/telegram"
	"github.com/Kerhoff/courtcal/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// .env is optional; real environment variables win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Failed to read .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	l := logger.New(cfg.LogLevel)
	l.Info("Starting CourtCal...")

	identity := service.ResolveIdentity(cfg.Identity)
	logger.WithFields(l, logrus.Fields{
		"identity":  identity.ID,
		"anonymous": identity.Anonymous,
	}).Info("Resolved identity")
	stamp := repository.StaticIdentity(identity.ID)

	// Event store
	var (
		events repository.EventRepository
		db     *config.Database
	)
	if cfg.DatabaseURL != "" {
		db, err = config.NewDatabase(cfg.DatabaseURL, cfg.EnableTracing, l)
		if err != nil {
			l.Fatalf("Failed to connect to database: %v", err)
		}
		if err := db.Migrate(cfg.MigrationsPath); err != nil {
			l.Fatalf("Failed to run migrations: %v", err)
		}
		events = postgres.NewEventRepository(db.DB, l, postgres.Options{
			DSN:      db.URL(),
			Identity: stamp,
			Tracing:  cfg.EnableTracing,
		})
	} else {
		l.Warn("DATABASE_URL not set, events are kept in memory only")
		events = memory.NewEventRepository(stamp)
	}

	// Local snapshot
	var snapshots storage.Store = storage.NopStore{}
	if cfg.SnapshotEnabled() {
		fileStore := storage.NewFileStore(cfg.SnapshotPath, l)
		l.WithField("path", fileStore.Path()).Info("Snapshot persistence enabled")
		snapshots = fileStore
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		l.Info("Received shutdown signal...")
		cancel()
	}()

	// Calendar core
	store := core.NewStore(l, events, snapshots, core.WithToastDelay(cfg.ToastDelay))
	storeDone := make(chan struct{})
	go func() {
		defer close(storeDone)
		if err := store.Run(ctx); err != nil {
			l.Errorf("Calendar store error: %v", err)
		}
	}()

	// Service layer
	svc := service.New(l, store, events, identity)
	if db != nil {
		svc.AddCloser(db.Close)
	}

	go svc.StartFeedSync(ctx)
	if err := svc.StartDayRollover(ctx); err != nil {
		l.Fatalf("Failed to start day rollover: %v", err)
	}

	// HTTP API
	loc, err := cfg.Location()
	if err != nil {
		l.Fatalf("Invalid timezone: %v", err)
	}
	apiServer := api.NewServer(svc, l, api.Options{Location: loc})
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		l.Infof("HTTP server listening on :%s", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Errorf("HTTP server error: %v", err)
		}
	}()

	// Prometheus metrics
	metricsServer := &http.Server{
		Addr:              ":" + cfg.PrometheusPort,
		Handler:           metricsMux(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		l.Infof("Metrics server listening on :%s", cfg.PrometheusPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Errorf("Metrics server error: %v", err)
		}
	}()

	// Telegram bot
	if cfg.TelegramToken != "" {
		bot, err := telegram.NewBot(cfg.TelegramToken, l)
		if err != nil {
			l.Fatalf("Failed to create Telegram bot: %v", err)
		}
		registerCommands(bot, svc, l)

		go func() {
			if err := bot.Start(ctx); err != nil {
				l.Errorf("Bot error: %v", err)
			}
		}()
	} else {
		l.Info("TELEGRAM_TOKEN not set, bot disabled")
	}

	l.Info("CourtCal started successfully")

	<-ctx.Done()

	l.Info("Shutting down HTTP servers...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		l.Errorf("HTTP server shutdown error: %v", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		l.Errorf("Metrics server shutdown error: %v", err)
	}

	<-storeDone
	store.Wait()
	if err := svc.Close(); err != nil {
		l.Errorf("Shutdown error: %v", err)
	}

	l.Info("CourtCal stopped")
}

func registerCommands(bot *telegram.Bot, svc *service.Service, l *logrus.Logger) {
	bot.RegisterCommand("start", handlers.NewStartHandler(l))
	bot.RegisterCommand("help", handlers.NewHelpHandler(l))

	// Calendar handlers
	bot.RegisterCommand("events", handlers.NewEventsHandler(svc, l))
	bot.RegisterCommand("event", handlers.NewEventHandler(svc, l))
	bot.RegisterCommand("move", handlers.NewMoveEventHandler(svc, l))
	bot.RegisterCommand("delevent", handlers.NewDeleteEventHandler(svc, l))

	// Attendance handlers
	bot.RegisterCommand("join", handlers.NewJoinHandler(svc, l))
	bot.RegisterCommand("leave", handlers.NewLeaveHandler(svc, l))
}

func metricsMux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	return mux
}
