package repository

import (
	"muzzlewatch/internal/model"
)

// HistoryRepository is the ordered, append-only log of detection records.
// Implementations own their durable representation and hand out copies only.
type HistoryRepository interface {
	// Append computes stats, stamps the record with the current time and persists it.
	Append(filename string, detections []model.Detection, processedImage string) (model.DetectionRecord, error)

	// ReadRecent returns the most recent limit records in append order
	// (all records when limit <= 0). Unreadable storage yields an empty slice.
	ReadRecent(limit int) []model.DetectionRecord

	// Count returns the number of stored records.
	Count() (int, error)

	// Clear discards every record.
	Clear() error

	Close() error
}

// RecentWindow returns the last limit elements of records (all when limit <= 0).
func RecentWindow(records []model.DetectionRecord, limit int) []model.DetectionRecord {
	if limit <= 0 || limit >= len(records) {
		return records
	}
	return records[len(records)-limit:]
}
