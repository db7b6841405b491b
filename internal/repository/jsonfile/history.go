// Package jsonfile stores the detection history as a single JSON document.
//
// Every append rewrites the whole document (read, append, write to a temp
// file, rename). Appends from one process are serialized by a mutex; separate
// processes sharing the same file can still lose updates, so deployments with
// more than one writer should use the sqlite backend instead.
package jsonfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"muzzlewatch/internal/logger"
	"muzzlewatch/internal/model"
	"muzzlewatch/internal/repository"
)

// ErrCorruptHistory is returned by writes when the existing document cannot be parsed.
var ErrCorruptHistory = errors.New("history document is corrupt")

// HistoryStore implements repository.HistoryRepository on a JSON file.
type HistoryStore struct {
	path   string
	logger *logger.Logger
	now    func() time.Time
	mu     sync.Mutex
}

var _ repository.HistoryRepository = (*HistoryStore)(nil)

// Open creates the history file with an empty log if it does not exist yet.
func Open(path string, logger *logger.Logger) (*HistoryStore, error) {
	s := &HistoryStore{path: path, logger: logger, now: time.Now}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := s.write([]model.DetectionRecord{}); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat history file: %w", err)
	}
	return s, nil
}

// SetClock overrides the time source used to stamp new records.
func (s *HistoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// Path returns the location of the history document.
func (s *HistoryStore) Path() string {
	return s.path
}

// Append adds one record and rewrites the whole document.
func (s *HistoryStore) Append(filename string, detections []model.Detection, processedImage string) (model.DetectionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil {
		return model.DetectionRecord{}, err
	}

	record := model.DetectionRecord{
		ID:             uuid.NewString(),
		Timestamp:      model.NewTimestamp(s.now()),
		Filename:       filename,
		ProcessedImage: processedImage,
		Detections:     model.CloneDetections(detections),
		Stats:          model.ComputeStats(detections),
	}

	records = append(records, record)
	if err := s.write(records); err != nil {
		return model.DetectionRecord{}, err
	}
	return record.Clone(), nil
}

// ReadRecent returns the last limit records. A corrupt or unreadable document
// is logged and reported as an empty history.
func (s *HistoryStore) ReadRecent(limit int) []model.DetectionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil {
		s.logger.Error("Error loading history: %v", err)
		return []model.DetectionRecord{}
	}
	return repository.RecentWindow(records, limit)
}

// Load returns the full history, failing on a corrupt document.
func (s *HistoryStore) Load() ([]model.DetectionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

// Count returns the number of records in the document.
func (s *HistoryStore) Count() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// Clear replaces the document with an empty log.
func (s *HistoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write([]model.DetectionRecord{})
}

// Close is a no-op; the document is not held open between calls.
func (s *HistoryStore) Close() error {
	return nil
}

// read decodes the document. A missing file is an empty history. Stats are
// recomputed so they always match the stored detections.
func (s *HistoryStore) read() ([]model.DetectionRecord, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return []model.DetectionRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	var records []model.DetectionRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptHistory, err)
	}

	for i := range records {
		records[i] = records[i].Normalized()
	}
	if records == nil {
		records = []model.DetectionRecord{}
	}
	return records, nil
}

// write replaces the document atomically via a temp file in the same directory.
func (s *HistoryStore) write(records []model.DetectionRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp history file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write history: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close history: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace history: %w", err)
	}
	return nil
}
