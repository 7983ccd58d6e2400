package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"consultdesk/internal/config"

	"github.com/rs/zerolog"
)

const backupPrefix = "outbox_"

// BackupService snapshots the outbox database with VACUUM INTO and prunes
// snapshots older than the retention period.
type BackupService struct {
	db     *DB
	config config.BackupConfig
	logger *zerolog.Logger
	now    func() time.Time
}

func NewBackupService(db *DB, cfg config.BackupConfig, logger *zerolog.Logger) *BackupService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &BackupService{db: db, config: cfg, logger: logger, now: time.Now}
}

func (s *BackupService) interval() time.Duration {
	if s.config.Schedule == "" {
		return 24 * time.Hour
	}
	d, err := time.ParseDuration(s.config.Schedule)
	if err != nil || d <= 0 {
		s.logger.Warn().Str("schedule", s.config.Schedule).Msg("invalid backup schedule, using 24h")
		return 24 * time.Hour
	}
	return d
}

// Start snapshots immediately and then on every tick until ctx is done.
func (s *BackupService) Start(ctx context.Context) {
	if !s.config.Enabled {
		s.logger.Info().Msg("outbox backups disabled")
		return
	}

	every := s.interval()
	s.logger.Info().Dur("interval", every).Str("dir", s.config.StoragePath).Msg("outbox backups started")

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		if _, err := s.Snapshot(ctx); err != nil {
			s.logger.Error().Err(err).Msg("outbox backup failed")
		}
		s.Prune()

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Snapshot writes a consistent copy of the database and returns its path.
func (s *BackupService) Snapshot(ctx context.Context) (string, error) {
	if err := os.MkdirAll(s.config.StoragePath, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	name := backupPrefix + s.now().UTC().Format("20060102_150405.000000000") + ".db"
	path := filepath.Join(s.config.StoragePath, name)

	stmt := fmt.Sprintf("VACUUM INTO '%s'", strings.ReplaceAll(path, "'", "''"))
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return "", fmt.Errorf("vacuum into %s: %w", path, err)
	}

	s.logger.Info().Str("path", path).Msg("outbox backup written")
	return path, nil
}

// Prune removes snapshots older than RetentionDays. It returns how many
// files were deleted.
func (s *BackupService) Prune() int {
	if s.config.RetentionDays <= 0 {
		return 0
	}

	entries, err := os.ReadDir(s.config.StoragePath)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to read backup directory")
		return 0
	}

	cutoff := s.now().AddDate(0, 0, -s.config.RetentionDays)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), backupPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.config.StoragePath, entry.Name())); err != nil {
			s.logger.Warn().Err(err).Str("file", entry.Name()).Msg("failed to remove backup")
			continue
		}
		removed++
	}
	if removed > 0 {
		s.logger.Info().Int("removed", removed).Msg("expired outbox backups removed")
	}
	return removed
}
