package reliability

import (
	"context"
	"fmt"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/plantfloor/lottrack/internal/database"
	"github.com/plantfloor/lottrack/internal/scheduler"
)

// DailyMaintenanceJob performs daily database maintenance (2 AM)
type DailyMaintenanceJob struct {
	databases     map[string]*database.DB
	backupService *BackupService
	history       *scheduler.HistoryRepository
	backupDir     string
	log           zerolog.Logger
}

// NewDailyMaintenanceJob creates a new daily maintenance job
func NewDailyMaintenanceJob(
	databases map[string]*database.DB,
	backupService *BackupService,
	history *scheduler.HistoryRepository,
	backupDir string,
	log zerolog.Logger,
) *DailyMaintenanceJob {
	return &DailyMaintenanceJob{
		databases:     databases,
		backupService: backupService,
		history:       history,
		backupDir:     backupDir,
		log:           log.With().Str("job", "daily_maintenance").Logger(),
	}
}

// Name returns the job name for scheduler
func (j *DailyMaintenanceJob) Name() string {
	return "daily_maintenance"
}

// Run executes the daily maintenance job
func (j *DailyMaintenanceJob) Run() error {
	j.log.Info().Msg("Starting daily maintenance")
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// Step 1: Integrity check for all databases
	for name, db := range j.databases {
		j.log.Debug().Str("database", name).Msg("Running integrity check")

		if err := db.QuickCheck(ctx); err != nil {
			j.log.Error().
				Str("database", name).
				Err(err).
				Msg("Integrity check failed")
			return fmt.Errorf("integrity check failed for %s: %w", name, err)
		}
	}

	// Step 2: WAL checkpoint for all databases (prevent bloat)
	for name, db := range j.databases {
		j.log.Debug().Str("database", name).Msg("Running WAL checkpoint")

		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			j.log.Warn().
				Str("database", name).
				Err(err).
				Msg("WAL checkpoint failed")
			// Don't return error - this is not critical
		}
	}

	// Step 3: Check disk space
	if err := j.checkDiskSpace(); err != nil {
		return err
	}

	// Step 4: Local daily backup
	if err := j.backupService.DailyBackup(); err != nil {
		j.log.Error().Err(err).Msg("Daily backup failed")
		return fmt.Errorf("daily backup failed: %w", err)
	}

	// Step 5: Prune old job history
	if deleted, err := j.history.Prune(90 * 24 * time.Hour); err != nil {
		j.log.Warn().Err(err).Msg("Failed to prune job history")
	} else if deleted > 0 {
		j.log.Info().Int64("deleted", deleted).Msg("Pruned old job history")
	}

	j.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Msg("Daily maintenance completed successfully")

	return nil
}

// checkDiskSpace verifies sufficient disk space is available
func (j *DailyMaintenanceJob) checkDiskSpace() error {
	stat := syscall.Statfs_t{}
	dataDir := filepath.Dir(j.backupDir)
	if err := syscall.Statfs(dataDir, &stat); err != nil {
		return fmt.Errorf("failed to stat filesystem: %w", err)
	}

	availableBytes := stat.Bavail * uint64(stat.Bsize)
	availableGB := float64(availableBytes) / 1e9

	j.log.Debug().Float64("available_gb", availableGB).Msg("Disk space check")

	if availableGB < 0.5 {
		j.log.Error().
			Float64("available_gb", availableGB).
			Msg("Insufficient disk space")
		return fmt.Errorf("only %.2f GB free, maintenance halted", availableGB)
	}

	if availableGB < 5.0 {
		j.log.Warn().
			Float64("available_gb", availableGB).
			Msg("Disk space running low")
	}

	return nil
}

// WeeklyMaintenanceJob performs weekly database maintenance (Sunday 3 AM)
type WeeklyMaintenanceJob struct {
	databases     map[string]*database.DB
	backupService *BackupService
	s3Backup      *S3BackupService // nil when cloud backups are disabled
	retentionDays int
	log           zerolog.Logger
}

// NewWeeklyMaintenanceJob creates a new weekly maintenance job
func NewWeeklyMaintenanceJob(
	databases map[string]*database.DB,
	backupService *BackupService,
	s3Backup *S3BackupService,
	retentionDays int,
	log zerolog.Logger,
) *WeeklyMaintenanceJob {
	return &WeeklyMaintenanceJob{
		databases:     databases,
		backupService: backupService,
		s3Backup:      s3Backup,
		retentionDays: retentionDays,
		log:           log.With().Str("job", "weekly_maintenance").Logger(),
	}
}

// Name returns the job name for scheduler
func (j *WeeklyMaintenanceJob) Name() string {
	return "weekly_maintenance"
}

// Run executes the weekly maintenance job
func (j *WeeklyMaintenanceJob) Run() error {
	j.log.Info().Msg("Starting weekly maintenance")
	startTime := time.Now()

	// Step 1: VACUUM the rebuildable cache database
	if db, ok := j.databases["cache"]; ok {
		j.log.Info().Str("database", "cache").Msg("Running VACUUM")

		if err := db.Vacuum(); err != nil {
			j.log.Error().
				Str("database", "cache").
				Err(err).
				Msg("VACUUM failed")
			// Continue - the weekly backup is more important
		}
	}

	// Step 2: Local weekly backup of every database
	if err := j.backupService.WeeklyBackup(); err != nil {
		j.log.Error().Err(err).Msg("Weekly backup failed")
		return fmt.Errorf("weekly backup failed: %w", err)
	}

	// Step 3: Offsite backup and rotation when configured
	if j.s3Backup != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()

		if err := j.s3Backup.CreateAndUploadBackup(ctx); err != nil {
			j.log.Error().Err(err).Msg("S3 backup failed")
			return fmt.Errorf("s3 backup failed: %w", err)
		}

		if err := j.s3Backup.RotateOldBackups(ctx, j.retentionDays); err != nil {
			j.log.Error().Err(err).Msg("S3 backup rotation failed")
			// Continue - upload succeeded
		}
	}

	j.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Msg("Weekly maintenance completed successfully")

	return nil
}
