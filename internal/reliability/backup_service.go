package reliability

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/plantfloor/lottrack/internal/database"
)

// BackupService manages local database backups. Daily backups cover the
// ledger and plant databases; weekly backups include the cache as well.
type BackupService struct {
	databases map[string]*database.DB
	backupDir string
	log       zerolog.Logger
}

// NewBackupService creates a new backup service
func NewBackupService(
	databases map[string]*database.DB,
	backupDir string,
	log zerolog.Logger,
) *BackupService {
	return &BackupService{
		databases: databases,
		backupDir: backupDir,
		log:       log.With().Str("service", "backup").Logger(),
	}
}

// GetDatabaseNames returns the database names in a stable order. The cache
// database is rebuildable, so callers can exclude it.
func (s *BackupService) GetDatabaseNames(includeCache bool) []string {
	names := make([]string, 0, len(s.databases))
	for name := range s.databases {
		if name == "cache" && !includeCache {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BackupDatabase backs up a single database to the given path
func (s *BackupService) BackupDatabase(dbName, backupPath string) error {
	db, ok := s.databases[dbName]
	if !ok {
		return fmt.Errorf("database %s not found", dbName)
	}

	s.log.Debug().
		Str("database", dbName).
		Str("backup_path", backupPath).
		Msg("Backing up database")

	if err := db.BackupTo(backupPath); err != nil {
		return err
	}

	info, err := os.Stat(backupPath)
	if err != nil {
		return fmt.Errorf("failed to stat backup: %w", err)
	}

	s.log.Debug().
		Str("database", dbName).
		Float64("size_mb", float64(info.Size())/1024/1024).
		Msg("Backup created")

	return nil
}

// DailyBackup backs up the ledger and plant databases
// Keeps the last 30 days of backups
func (s *BackupService) DailyBackup() error {
	s.log.Info().Msg("Starting daily backup")
	startTime := time.Now()

	date := time.Now().Format("2006-01-02")
	dailyDir := filepath.Join(s.backupDir, "daily", date)
	if err := os.MkdirAll(dailyDir, 0755); err != nil {
		return fmt.Errorf("failed to create daily backup directory: %w", err)
	}

	s.backupAll(s.GetDatabaseNames(false), dailyDir)

	if err := s.rotateDatedBackups(filepath.Join(s.backupDir, "daily"), 30*24*time.Hour); err != nil {
		s.log.Error().Err(err).Msg("Failed to rotate daily backups")
		// Don't fail - backup succeeded
	}

	s.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Str("backup_dir", dailyDir).
		Msg("Daily backup completed successfully")

	return nil
}

// WeeklyBackup backs up every database including the cache
// Keeps the last 12 weeks of backups
func (s *BackupService) WeeklyBackup() error {
	s.log.Info().Msg("Starting weekly backup")
	startTime := time.Now()

	year, week := time.Now().ISOWeek()
	weekDir := filepath.Join(s.backupDir, "weekly", fmt.Sprintf("%04d-W%02d", year, week))
	if err := os.MkdirAll(weekDir, 0755); err != nil {
		return fmt.Errorf("failed to create weekly backup directory: %w", err)
	}

	s.backupAll(s.GetDatabaseNames(true), weekDir)

	if err := s.rotateDatedBackups(filepath.Join(s.backupDir, "weekly"), 12*7*24*time.Hour); err != nil {
		s.log.Error().Err(err).Msg("Failed to rotate weekly backups")
		// Don't fail - backup succeeded
	}

	s.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Str("backup_dir", weekDir).
		Msg("Weekly backup completed successfully")

	return nil
}

// backupAll backs up each named database into dir, verifying each copy.
// A single failed database does not abort the rest.
func (s *BackupService) backupAll(dbNames []string, dir string) {
	for _, dbName := range dbNames {
		backupPath := filepath.Join(dir, dbName+".db")

		if err := s.BackupDatabase(dbName, backupPath); err != nil {
			s.log.Error().
				Str("database", dbName).
				Err(err).
				Msg("Failed to backup database")
			continue
		}

		if err := s.verifyBackup(backupPath); err != nil {
			s.log.Error().
				Str("database", dbName).
				Err(err).
				Msg("Backup verification failed")
			os.Remove(backupPath)
		}
	}
}

// verifyBackup verifies backup integrity
func (s *BackupService) verifyBackup(backupPath string) error {
	backupDB, err := sql.Open("sqlite", backupPath)
	if err != nil {
		return fmt.Errorf("failed to open backup: %w", err)
	}
	defer backupDB.Close()

	var result string
	err = backupDB.QueryRow("PRAGMA integrity_check").Scan(&result)
	if err != nil {
		return fmt.Errorf("integrity check query failed: %w", err)
	}

	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}

	return nil
}

// rotateDatedBackups deletes backup subdirectories older than the retention
func (s *BackupService) rotateDatedBackups(root string, retention time.Duration) error {
	cutoff := time.Now().Add(-retention)

	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read backup directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(cutoff) {
			path := filepath.Join(root, entry.Name())
			if err := os.RemoveAll(path); err != nil {
				s.log.Warn().
					Str("path", path).
					Err(err).
					Msg("Failed to remove old backup")
				continue
			}
			s.log.Info().Str("path", path).Msg("Removed old backup")
		}
	}

	return nil
}
