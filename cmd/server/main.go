// Package main is the entry point for the OPG audit log sync service.
// The service keeps per-merchant cash register audit logs synchronized:
// it queries the tax authority for the retained file window, downloads the
// signed log archives, extracts and aggregates the receipts, and writes
// the resulting daily revenue rows to the record store.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bszub/opgsync/internal/archive"
	"github.com/bszub/opgsync/internal/clients/filestore"
	"github.com/bszub/opgsync/internal/clients/recordstore"
	"github.com/bszub/opgsync/internal/config"
	"github.com/bszub/opgsync/internal/database"
	"github.com/bszub/opgsync/internal/invoice"
	"github.com/bszub/opgsync/internal/nav"
	"github.com/bszub/opgsync/internal/scheduler"
	"github.com/bszub/opgsync/internal/server"
	syncer "github.com/bszub/opgsync/internal/sync"
	"github.com/bszub/opgsync/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true, Service: "opgsync"})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:   cfg.LogLevel,
		Pretty:  cfg.DevMode,
		Service: "opgsync",
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting OPG sync service")

	// Run history database
	historyDB, err := database.New(database.Config{
		Path: filepath.Join(cfg.DataDir, "history.db"),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open history database")
	}
	defer historyDB.Close()

	if err := historyDB.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate history database")
	}

	// Clients
	store := recordstore.NewClient(cfg.RecordStoreURL, cfg.RecordStoreKey, log)
	defer store.Close()

	authority := nav.NewClient(cfg.NAVBaseURL, log)
	invoices := invoice.NewClient(cfg.InvoiceBaseURL, log)
	extractor := archive.NewExtractor(log)

	// Long-term archive storage, enabled only when a bucket is configured
	var archiver syncer.Archiver
	if cfg.ArchiveEnabled() {
		fsClient, err := filestore.NewClient(context.Background(), filestore.Config{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
		}, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create file store client")
		}
		archiver = fsClient
		log.Info().Str("bucket", cfg.S3Bucket).Msg("Archive storage enabled")
	} else {
		log.Info().Msg("Archive storage disabled, no bucket configured")
	}

	history := syncer.NewHistoryRepository(historyDB, log)
	orchestrator := syncer.NewOrchestrator(authority, store, extractor, archiver, history, log)

	// Scheduled batch sync
	sched := scheduler.New(log)
	syncJob := scheduler.NewSyncAllJob(orchestrator, cfg.SyncDaysThreshold, log)
	if err := sched.AddJob(cfg.SyncSchedule, syncJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule batch sync job")
	}
	maintenanceJob := scheduler.NewMaintenanceJob(historyDB, log)
	if err := sched.AddJob("0 4 * * 0", maintenanceJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule maintenance job")
	}
	sched.Start()
	log.Info().Str("schedule", cfg.SyncSchedule).Msg("Batch sync scheduled")

	// HTTP server
	srv := server.New(server.Config{
		Log:       log,
		Config:    cfg,
		HistoryDB: historyDB,
		Sync:      orchestrator,
		Store:     store,
		History:   history,
		Invoices:  invoices,
	})

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	sched.Stop()
	log.Info().Msg("Scheduler stopped")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
