package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"detectserver/internal/config"
	"detectserver/internal/logger"
	"detectserver/internal/model"
	"detectserver/internal/service/imaging"
)

// ArtifactStore writes annotated images to a directory and reopens them for
// streaming.
//
// By default the stored name is the client's filename, so two concurrent
// requests with the same name write the same path and either may stream the
// other's image. Enable unique names to give every request its own file.
type ArtifactStore struct {
	dir         string
	uniqueNames bool
	logger      *logger.Logger
}

// NewArtifactStore creates a store rooted at cfg.ArtifactDirectory.
func NewArtifactStore(cfg *config.Config, logger *logger.Logger) *ArtifactStore {
	return &ArtifactStore{
		dir:         cfg.ArtifactDirectory,
		uniqueNames: cfg.UniqueArtifactNames,
		logger:      logger,
	}
}

// Dir returns the directory artifacts are written to.
func (s *ArtifactStore) Dir() string {
	return s.dir
}

// ArtifactName derives the stored file name from the client's filename.
func (s *ArtifactStore) ArtifactName(filename string) string {
	name := filepath.Base(filepath.Clean("/" + filename))
	if s.uniqueNames {
		name = uuid.NewString() + "_" + name
	}
	return name
}

// Save JPEG-encodes buf under the name derived from filename and returns
// the written path.
func (s *ArtifactStore) Save(filename string, buf *model.PixelBuffer) (string, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create artifact directory: %w", err)
	}

	path := filepath.Join(s.dir, s.ArtifactName(filename))
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create artifact %s: %w", path, err)
	}

	if err := imaging.EncodeJPEG(file, buf); err != nil {
		file.Close()
		return "", fmt.Errorf("failed to encode artifact %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("failed to write artifact %s: %w", path, err)
	}

	return path, nil
}

// Open reopens a saved artifact for reading.
func (s *ArtifactStore) Open(path string) (*os.File, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact %s: %w", path, err)
	}
	return file, nil
}

// Prune deletes regular files in the artifact directory last modified more
// than olderThan ago and returns how many were removed.
func (s *ArtifactStore) Prune(olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read artifact directory: %w", err)
	}

	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil && !os.IsNotExist(err) {
			s.logger.Error("Error deleting artifact %s: %v", entry.Name(), err)
			continue
		}
		removed++
	}
	return removed, nil
}

// DefaultPruneInterval is used by Run when no positive interval is given.
const DefaultPruneInterval = 10 * time.Minute

// Run prunes artifacts older than retention every interval until ctx ends.
func (s *ArtifactStore) Run(ctx context.Context, interval, retention time.Duration) {
	if interval <= 0 {
		s.logger.Warning("Invalid prune interval %v, using %v", interval, DefaultPruneInterval)
		interval = DefaultPruneInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.Prune(retention)
			if err != nil {
				s.logger.Error("Artifact pruning failed: %v", err)
				continue
			}
			if removed > 0 {
				s.logger.Info("Pruned %d artifacts older than %v", removed, retention)
			}
		}
	}
}
