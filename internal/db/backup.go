package db

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// BackupService copies the sqlite file to a backup directory on an
// interval and prunes copies past the retention window.
type BackupService struct {
	dbPath    string
	dir       string
	interval  time.Duration
	retention int
	logger    *zerolog.Logger
}

func NewBackupService(dbPath, dir string, interval time.Duration, retentionDays int, logger *zerolog.Logger) *BackupService {
	return &BackupService{
		dbPath:    dbPath,
		dir:       dir,
		interval:  interval,
		retention: retentionDays,
		logger:    logger,
	}
}

// Run blocks until ctx is cancelled, backing up on each tick. The first
// backup runs immediately.
func (s *BackupService) Run(ctx context.Context) {
	s.logger.Info().Str("dir", s.dir).Dur("interval", s.interval).Msg("backup service started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	if err := s.Backup(); err != nil {
		s.logger.Error().Err(err).Msg("initial backup failed")
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Backup(); err != nil {
				s.logger.Error().Err(err).Msg("scheduled backup failed")
			}
			s.pruneOld()
		}
	}
}

// Backup writes one timestamped copy of the database file.
func (s *BackupService) Backup() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create backup directory: %w", err)
	}

	name := fmt.Sprintf("stablebook_%s.db", time.Now().Format("20060102_150405"))
	path := filepath.Join(s.dir, name)

	source, err := os.Open(s.dbPath)
	if err != nil {
		return err
	}
	defer source.Close()

	dest, err := os.Create(path)
	if err != nil {
		return err
	}
	defer dest.Close()

	if _, err := io.Copy(dest, source); err != nil {
		return err
	}

	s.logger.Info().Str("path", path).Msg("database backup written")
	return nil
}

func (s *BackupService) pruneOld() {
	if s.retention <= 0 {
		return
	}

	files, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Error().Err(err).Msg("read backup directory failed")
		return
	}

	cutoff := time.Now().AddDate(0, 0, -s.retention)
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		info, err := file.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			s.logger.Info().Str("file", file.Name()).Msg("pruning old backup")
			os.Remove(filepath.Join(s.dir, file.Name()))
		}
	}
}
