// Package storage manages the uploads directory: staged source files,
// composed outputs, and download-name resolution.
package storage

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no stored file matches a download name.
var ErrNotFound = errors.New("file not found")

// Config holds the storage settings.
type Config struct {
	// Directory is where uploads and outputs live. Created if absent.
	Directory string

	// MaxAgeDays is the retention for stored files; zero disables the sweep.
	MaxAgeDays int

	Logger *slog.Logger
}

// Store is the single owner of the uploads directory layout. Every file it
// writes carries a GUID prefix (<guid>_<name>) so concurrent jobs and
// repeated runs of the same document never collide.
type Store struct {
	dir        string
	maxAgeDays int
	logger     *slog.Logger
}

// New ensures the directory exists and returns a store over it.
func New(cfg Config) (*Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Directory == "" {
		return nil, errors.New("storage directory not set")
	}
	if err := os.MkdirAll(cfg.Directory, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	return &Store{dir: cfg.Directory, maxAgeDays: cfg.MaxAgeDays, logger: logger}, nil
}

// Dir returns the managed directory.
func (s *Store) Dir() string {
	return s.dir
}

// StageUpload streams an upload to disk and returns its full path.
func (s *Store) StageUpload(originalName string, r io.Reader) (string, error) {
	name := fmt.Sprintf("%s_%s", uuid.New().String(), sanitizeName(originalName))
	path := filepath.Join(s.dir, name)
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating staged upload: %w", err)
	}
	if _, err := io.Copy(dst, r); err != nil {
		dst.Close()
		os.Remove(path)
		return "", fmt.Errorf("writing staged upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("closing staged upload: %w", err)
	}
	return path, nil
}

// OutputFileName is the clean, GUID-free name a composed output is known by:
// <base>_A<rotation>_<ORDER>.pdf. Download requests use this name.
func OutputFileName(originalName string, rotation int, order string) string {
	base := sanitizeName(originalName)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return fmt.Sprintf("%s_A%d_%s.pdf", base, rotation, strings.ToUpper(order))
}

// NewOutputPath returns a fresh on-disk path for an output with the given
// clean name.
func (s *Store) NewOutputPath(cleanName string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_%s", uuid.New().String(), sanitizeName(cleanName)))
}

// Resolve maps a download name to a stored file. An exact stored name wins;
// otherwise the newest file matching *_<name> is chosen, so re-runs of the
// same document serve the latest output.
func (s *Store) Resolve(name string) (string, error) {
	clean := sanitizeName(name)
	if clean == "" || clean == "." {
		return "", ErrNotFound
	}

	exact := filepath.Join(s.dir, clean)
	if info, err := os.Stat(exact); err == nil && !info.IsDir() {
		return exact, nil
	}

	matches, err := filepath.Glob(filepath.Join(s.dir, "*_"+clean))
	if err != nil {
		return "", fmt.Errorf("searching for %q: %w", clean, err)
	}
	var newest string
	var newestMod int64
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || info.IsDir() {
			continue
		}
		if mod := info.ModTime().UnixNano(); newest == "" || mod > newestMod {
			newest, newestMod = m, mod
		}
	}
	if newest == "" {
		return "", ErrNotFound
	}
	return newest, nil
}

// Remove deletes a stored file. Missing files are fine; other errors are
// logged and swallowed because cleanup must never mask a job outcome.
func (s *Store) Remove(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("removing stored file", "path", path, "error", err)
	}
}

// sanitizeName strips any path components from a client-supplied name.
func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "\\", "/")
	return filepath.Base(name)
}
