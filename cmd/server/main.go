package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/glimt-hq/friktion/internal/api"
	"github.com/glimt-hq/friktion/internal/config"
	"github.com/glimt-hq/friktion/internal/db"
	"github.com/glimt-hq/friktion/internal/delivery"
	"github.com/glimt-hq/friktion/internal/middleware"
	"github.com/glimt-hq/friktion/internal/scheduler"
	"github.com/glimt-hq/friktion/internal/services"
)

func main() {
	configPath := flag.String("config", "", "path to config YAML file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	sqlDB, err := db.Open(cfg.DatabasePath)
	if err != nil {
		logger.Fatal("open database", zap.Error(err))
	}
	defer func() { _ = sqlDB.Close() }()

	if err := db.Migrate(sqlDB); err != nil {
		logger.Fatal("migrate database", zap.Error(err))
	}

	store, err := db.NewSQLiteStore(sqlDB, logger)
	if err != nil {
		logger.Fatal("init store", zap.Error(err))
	}

	// Delivery, contact lookup and retention are external collaborators;
	// until real providers are wired in, logging stand-ins keep the
	// lifecycle loop honest.
	dispatcher := &delivery.LogDispatcher{Log: logger}
	directory := delivery.EmptyDirectory{}
	retention := delivery.NoopRetention{}

	thresholds := services.Thresholds{
		CriticalBelow:    cfg.Scoring.CriticalBelow,
		WarningBelow:     cfg.Scoring.WarningBelow,
		CriticalGap:      cfg.Scoring.CriticalGap,
		SubstitutionHigh: cfg.Scoring.SubstitutionHigh,
		SubstitutionLow:  cfg.Scoring.SubstitutionLow,
		UniformVariance:  cfg.Scoring.UniformVariance,
	}

	tokenSvc := services.NewTokenService(store, cfg.ScalePoints)
	questionSvc := services.NewQuestionService(store)
	assessmentSvc := services.NewAssessmentService(store, tokenSvc, dispatcher, directory, cfg.SenderName, logger)
	reportSvc := services.NewReportService(store, cfg.ScalePoints, thresholds)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := scheduler.New(assessmentSvc, retention, logger, cfg.ScanInterval, cfg.RetentionHour)
	sched.Start(ctx)

	auth := middleware.NewAuthenticator(cfg.JWTSecret)
	router := api.NewRouter(assessmentSvc, questionSvc, tokenSvc, reportSvc, auth, logger)

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router.Handler(),
		ReadTimeout:  cfg.APITimeout,
		WriteTimeout: cfg.APITimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
	logger.Info("server exited")
}
