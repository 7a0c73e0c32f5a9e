package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/plantfloor/lottrack/internal/config"
	"github.com/plantfloor/lottrack/internal/database"
	"github.com/plantfloor/lottrack/internal/events"
	"github.com/plantfloor/lottrack/internal/modules/batches"
	"github.com/plantfloor/lottrack/internal/modules/lots"
	"github.com/plantfloor/lottrack/internal/modules/materials"
	"github.com/plantfloor/lottrack/internal/reliability"
	"github.com/plantfloor/lottrack/internal/scheduler"
	"github.com/plantfloor/lottrack/internal/server"
	"github.com/plantfloor/lottrack/pkg/logger"
)

func main() {
	// Load configuration first so the logger honors LOG_LEVEL
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New(logger.Config{Level: "info", Pretty: true})
		fallback.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Str("data_dir", cfg.DataDir).Msg("Starting lot tracker")

	// Open databases
	databases, err := openDatabases(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open databases")
	}
	defer func() {
		for _, db := range databases {
			db.Close()
		}
	}()

	for name, db := range databases {
		if err := db.Migrate(); err != nil {
			log.Fatal().Err(err).Str("database", name).Msg("Failed to run migrations")
		}
	}

	eventManager := events.NewManager(log)

	// Repositories
	lotRepo := lots.NewLotRepository(databases["ledger"].Conn(), log)
	batchRepo := batches.NewBatchRepository(databases["plant"].Conn(), log)
	snapshotRepo := batches.NewSnapshotRepository(databases["cache"].Conn(), log)
	compositionRepo := materials.NewCompositionRepository(databases["plant"].Conn(), log)
	historyRepo := scheduler.NewHistoryRepository(databases["cache"].Conn(), log)

	// Services
	lotService := lots.NewService(lotRepo, eventManager, log)
	batchService := batches.NewService(batchRepo, snapshotRepo, compositionRepo, eventManager, log)
	materialService := materials.NewService(compositionRepo, batchService, eventManager, log)

	// Scheduler and jobs
	sched := scheduler.New(historyRepo, log)

	matrixStart, err := time.Parse("2006-01-02", cfg.MatrixStart)
	if err != nil {
		log.Fatal().Err(err).Str("matrix_start", cfg.MatrixStart).Msg("Invalid matrix start date")
	}

	backupDir := filepath.Join(cfg.DataDir, "backups")
	backupService := reliability.NewBackupService(databases, backupDir, log)
	s3Backup := setupS3Backup(cfg, backupService, eventManager, log)

	snapshotJob := scheduler.NewSnapshotRebuildJob(batchService, matrixStart, log)
	usageStatsJob := scheduler.NewUsageStatsJob(materialService, log)
	dailyMaintenance := reliability.NewDailyMaintenanceJob(databases, backupService, historyRepo, backupDir, log)

	retentionDays := 0
	if cfg.Backup != nil {
		retentionDays = cfg.Backup.RetentionDays
	}
	weeklyMaintenance := reliability.NewWeeklyMaintenanceJob(databases, backupService, s3Backup, retentionDays, log)

	if err := registerJobs(sched, snapshotJob, usageStatsJob, dailyMaintenance, weeklyMaintenance); err != nil {
		log.Fatal().Err(err).Msg("Failed to register jobs")
	}

	sched.Start()
	defer sched.Stop()

	// HTTP server
	systemHandlers := server.NewSystemHandlers(log, databases, sched, historyRepo)
	systemHandlers.SetJobs(snapshotJob, usageStatsJob, dailyMaintenance, weeklyMaintenance)

	srv := server.New(server.Config{
		Port:             cfg.Port,
		Log:              log,
		DevMode:          cfg.DevMode,
		LotHandlers:      lots.NewHandlers(lotService, lotRepo, cfg.MinUsageYear, log),
		BatchHandlers:    batches.NewHandlers(batchService, log),
		MaterialHandlers: materials.NewHandlers(materialService, compositionRepo, log),
		SystemHandlers:   systemHandlers,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Build the snapshot on first boot so rolling queries work immediately
	go func() {
		if _, err := snapshotRepo.LoadDailyMatrix(); err != nil {
			log.Info().Msg("No production snapshot found, building initial snapshot")
			if err := sched.RunNow(snapshotJob); err != nil {
				log.Error().Err(err).Msg("Initial snapshot build failed")
			}
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

// openDatabases opens the three plant databases with their profiles
func openDatabases(cfg *config.Config) (map[string]*database.DB, error) {
	specs := []struct {
		name    string
		profile database.DatabaseProfile
	}{
		{"ledger", database.ProfileLedger},
		{"plant", database.ProfileStandard},
		{"cache", database.ProfileCache},
	}

	databases := make(map[string]*database.DB, len(specs))
	for _, spec := range specs {
		db, err := database.New(database.Config{
			Path:    filepath.Join(cfg.DataDir, spec.name+".db"),
			Profile: spec.profile,
			Name:    spec.name,
		})
		if err != nil {
			for _, open := range databases {
				open.Close()
			}
			return nil, err
		}
		databases[spec.name] = db
	}

	return databases, nil
}

// setupS3Backup wires offsite backups when credentials are configured
func setupS3Backup(
	cfg *config.Config,
	backupService *reliability.BackupService,
	eventManager *events.Manager,
	log zerolog.Logger,
) *reliability.S3BackupService {
	if cfg.Backup == nil || !cfg.Backup.Enabled {
		log.Info().Msg("Cloud backups disabled")
		return nil
	}

	s3Client, err := reliability.NewS3Client(
		cfg.Backup.Endpoint,
		cfg.Backup.Region,
		cfg.Backup.AccessKeyID,
		cfg.Backup.SecretAccessKey,
		cfg.Backup.Bucket,
		log,
	)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create S3 client, cloud backups disabled")
		return nil
	}

	return reliability.NewS3BackupService(s3Client, backupService, cfg.DataDir, eventManager, log)
}

func registerJobs(sched *scheduler.Scheduler, snapshot, usageStats, daily, weekly scheduler.Job) error {
	// Snapshot rebuild at 1 AM, stats refresh after it at 1:30 AM
	if err := sched.AddJob("0 0 1 * * *", snapshot); err != nil {
		return err
	}
	if err := sched.AddJob("0 30 1 * * *", usageStats); err != nil {
		return err
	}
	// Maintenance: daily at 2 AM, weekly Sunday 3 AM
	if err := sched.AddJob("0 0 2 * * *", daily); err != nil {
		return err
	}
	return sched.AddJob("0 0 3 * * SUN", weekly)
}
