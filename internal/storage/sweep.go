package storage

import (
	"context"
	"os"
	"path/filepath"
	"time"
)

// sweepEvery is how often the retention sweep scans the directory.
const sweepEvery = time.Hour

// StartSweeper deletes stored files older than the retention age, scanning
// hourly until ctx is done. A zero or negative retention disables it.
func (s *Store) StartSweeper(ctx context.Context) {
	if s.maxAgeDays <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(sweepEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.sweep(time.Now()); n > 0 {
					s.logger.Info("swept aged files", "count", n, "dir", s.dir)
				}
			}
		}
	}()
}

func (s *Store) sweep(now time.Time) int {
	maxAge := time.Duration(s.maxAgeDays) * 24 * time.Hour
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Warn("reading storage directory", "error", err)
		return 0
	}
	var n int
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) > maxAge {
			path := filepath.Join(s.dir, entry.Name())
			if err := os.Remove(path); err != nil {
				s.logger.Warn("removing aged file", "path", path, "error", err)
				continue
			}
			n++
		}
	}
	return n
}
