package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"muzzlewatch/internal/config"
	"muzzlewatch/internal/detection"
	"muzzlewatch/internal/dto"
	"muzzlewatch/internal/imaging"
	"muzzlewatch/internal/logger"
	"muzzlewatch/internal/model"
	"muzzlewatch/internal/repository"
	"muzzlewatch/internal/service/assets"
	"muzzlewatch/internal/service/report"
	"muzzlewatch/internal/service/storage"
)

// FileTimestampLayout prefixes stored upload and processed file names.
const FileTimestampLayout = "20060102_150405_000000"

var (
	// ErrProcessImage is returned when an uploaded image cannot be read.
	ErrProcessImage = errors.New("failed to process image")
	// ErrSaveProcessed is returned when the annotated image cannot be stored.
	ErrSaveProcessed = errors.New("failed to save processed image")
)

// Outcome distinguishes the two successful pipeline results.
type Outcome int

const (
	OutcomeNoDetections Outcome = iota
	OutcomeDetections
)

func (o Outcome) String() string {
	if o == OutcomeDetections {
		return "detections"
	}
	return "no_detections"
}

// Result is what ProcessImage hands back to transports.
type Result struct {
	Outcome           Outcome
	Record            model.DetectionRecord
	ProcessedFilename string
}

// Broadcaster publishes new records to live viewers.
type Broadcaster interface {
	Broadcast(message []byte) bool
}

// Manager wires the detector, history store, image store and report
// generator into the processing pipeline.
type Manager struct {
	detector    detection.Detector
	history     repository.HistoryRepository
	images      *storage.ImageStore
	resolver    *assets.Resolver
	reports     *report.Generator
	hub         Broadcaster
	labels      detection.LabelTable
	threshold   float64
	reportLimit int
	logger      *logger.Logger
	now         func() time.Time
}

func NewManager(detector detection.Detector, history repository.HistoryRepository, images *storage.ImageStore,
	resolver *assets.Resolver, reports *report.Generator, hub Broadcaster, config *config.Config, logger *logger.Logger) *Manager {
	labels := detection.ParseLabels(config.Labels)
	if len(labels) == 0 {
		labels = detection.DefaultLabels
	}

	return &Manager{
		detector:    detector,
		history:     history,
		images:      images,
		resolver:    resolver,
		reports:     reports,
		hub:         hub,
		labels:      labels,
		threshold:   config.ConfidenceThreshold,
		reportLimit: config.ReportHistoryLimit,
		logger:      logger,
		now:         time.Now,
	}
}

// SetClock overrides the time source used for stored file names.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

func (m *Manager) GetHistory() repository.HistoryRepository {
	return m.history
}

func (m *Manager) GetImageStore() *storage.ImageStore {
	return m.images
}

func (m *Manager) GetResolver() *assets.Resolver {
	return m.resolver
}

// StoredName builds a unique stored file name such as original_<ts>_<name>.
func (m *Manager) StoredName(prefix, name string) string {
	return fmt.Sprintf("%s_%s_%s", prefix, m.now().Format(FileTimestampLayout), name)
}

// ProcessImage runs detection on an uploaded image, stores the annotated
// copy and appends a history record. Inference failures degrade to zero
// detections; unreadable images and storage failures are returned as errors.
func (m *Manager) ProcessImage(ctx context.Context, originalPath, originalFilename string) (Result, error) {
	img, err := imaging.Load(originalPath)
	if err != nil {
		m.logger.Error("Could not load image %s: %v", originalPath, err)
		return Result{}, fmt.Errorf("%w: %v", ErrProcessImage, err)
	}

	raw, err := m.detector.Infer(ctx, originalPath, m.threshold)
	if err != nil {
		m.logger.Warning("Inference failed for %s: %v", originalFilename, err)
		raw = detection.RawOutput{}
	}
	detections := detection.NormalizeOutput(raw, m.labels)

	processedFilename := m.StoredName("processed", originalFilename)
	if _, err := m.images.Save(processedFilename, imaging.Annotate(img, detections)); err != nil {
		m.logger.Error("Could not save processed image %s: %v", processedFilename, err)
		m.discard(processedFilename)
		return Result{}, fmt.Errorf("%w: %v", ErrSaveProcessed, err)
	}

	record, err := m.history.Append(originalFilename, detections, processedFilename)
	if err != nil {
		m.logger.Error("Could not save history record: %v", err)
		m.discard(processedFilename)
		return Result{}, fmt.Errorf("failed to save history: %w", err)
	}

	m.logger.Info("Processed %s: %d dogs, %d with muzzle, %d without",
		originalFilename, record.Stats.TotalDogs, record.Stats.WithMuzzle, record.Stats.WithoutMuzzle)
	m.publish(record)

	outcome := OutcomeNoDetections
	if len(detections) > 0 {
		outcome = OutcomeDetections
	}
	return Result{Outcome: outcome, Record: record, ProcessedFilename: processedFilename}, nil
}

// discard removes an image that no history record will reference.
func (m *Manager) discard(name string) {
	if err := m.images.Remove(name); err != nil {
		m.logger.Error("Error removing %s: %v", name, err)
	}
}

// DiscardUpload removes an original upload whose processing failed.
func (m *Manager) DiscardUpload(name string) {
	m.discard(name)
}

// publish sends the record to live viewers.
func (m *Manager) publish(record model.DetectionRecord) {
	if m.hub == nil {
		return
	}
	msg, err := json.Marshal(NewHistoryItem(record))
	if err != nil {
		m.logger.Error("Error encoding live record: %v", err)
		return
	}
	m.hub.Broadcast(msg)
}

// History returns the most recent limit records, oldest first.
func (m *Manager) History(limit int) []model.DetectionRecord {
	return m.history.ReadRecent(limit)
}

// GenerateReport renders the most recent records into a PDF and returns its path.
func (m *Manager) GenerateReport() (string, error) {
	records := m.history.ReadRecent(m.reportLimit)
	path, err := m.reports.Generate(records)
	if err != nil {
		m.logger.Error("Error generating report: %v", err)
		return "", err
	}
	return path, nil
}

// ClearHistory deletes every stored image and then all history records.
func (m *Manager) ClearHistory() error {
	removed, err := m.images.Clear()
	if err != nil {
		m.logger.Error("Error clearing uploads: %v", err)
	}
	if err := m.history.Clear(); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	m.logger.Info("History cleared, %d files removed", removed)
	return nil
}

// NewHistoryItem attaches the processed image URL to record.
func NewHistoryItem(record model.DetectionRecord) dto.HistoryItem {
	return dto.HistoryItem{DetectionRecord: record, ProcessedURL: UploadURL(record.ProcessedImage)}
}

// UploadURL is the public URL of a stored image.
func UploadURL(name string) string {
	return "/uploads/" + url.PathEscape(name)
}
