package storage

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"muzzlewatch/internal/imaging"
	"muzzlewatch/internal/logger"
)

// ImageStore keeps uploaded and annotated images in a single flat directory.
// Names are plain file names; anything containing a path separator is rejected.
type ImageStore struct {
	dir    string
	mu     sync.Mutex
	logger *logger.Logger
}

// NewImageStore creates the directory if needed.
func NewImageStore(dir string, logger *logger.Logger) (*ImageStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}
	return &ImageStore{dir: dir, logger: logger}, nil
}

// Dir returns the backing directory.
func (s *ImageStore) Dir() string {
	return s.dir
}

// Path returns the on-disk location of name, or "" if name is not a plain file name.
func (s *ImageStore) Path(name string) string {
	if !validName(name) {
		return ""
	}
	return filepath.Join(s.dir, name)
}

// Exists reports whether name refers to a regular file in the store.
func (s *ImageStore) Exists(name string) bool {
	path := s.Path(name)
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Save encodes img into the store under name.
func (s *ImageStore) Save(name string, img image.Image) (string, error) {
	path := s.Path(name)
	if path == "" {
		return "", fmt.Errorf("invalid image name %q", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create image directory: %w", err)
	}
	if err := imaging.Save(path, img); err != nil {
		return "", err
	}
	s.logger.Info("Saved image %s", name)
	return path, nil
}

// SaveBytes writes raw file data into the store under name.
func (s *ImageStore) SaveBytes(name string, data []byte) (string, error) {
	path := s.Path(name)
	if path == "" {
		return "", fmt.Errorf("invalid image name %q", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create image directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write image %s: %w", name, err)
	}
	return path, nil
}

// Remove deletes name from the store. A missing file is not an error.
func (s *ImageStore) Remove(name string) error {
	path := s.Path(name)
	if path == "" {
		return fmt.Errorf("invalid image name %q", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove image %s: %w", name, err)
	}
	return nil
}

// Clear removes every regular file in the store and returns how many were deleted.
func (s *ImageStore) Clear() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to list image directory: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil {
			s.logger.Error("Error removing %s: %v", entry.Name(), err)
			continue
		}
		removed++
	}

	s.logger.Info("Removed %d images from %s", removed, s.dir)
	return removed, nil
}

func validName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && !strings.Contains(name, "..")
}
