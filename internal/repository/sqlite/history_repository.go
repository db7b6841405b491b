package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"muzzlewatch/internal/logger"
	"muzzlewatch/internal/model"
	"muzzlewatch/internal/repository"
)

// HistoryRepository implements repository.HistoryRepository for SQLite.
// Records and their detections are stored one row each, so appends never
// rewrite existing data.
type HistoryRepository struct {
	db     *DB
	logger *logger.Logger
	now    func() time.Time
}

var _ repository.HistoryRepository = (*HistoryRepository)(nil)

// NewHistoryRepository creates a new SQLite history repository.
func NewHistoryRepository(db *DB, logger *logger.Logger) *HistoryRepository {
	return &HistoryRepository{db: db, logger: logger, now: time.Now}
}

// SetClock overrides the time source used to stamp new records.
func (r *HistoryRepository) SetClock(now func() time.Time) {
	r.db.Lock()
	r.now = now
	r.db.Unlock()
}

// Append stores a new record with its detections in a single transaction.
func (r *HistoryRepository) Append(filename string, detections []model.Detection, processedImage string) (model.DetectionRecord, error) {
	r.db.Lock()
	defer r.db.Unlock()

	record := model.DetectionRecord{
		ID:             uuid.NewString(),
		Timestamp:      model.NewTimestamp(r.now()),
		Filename:       filename,
		ProcessedImage: processedImage,
		Detections:     model.CloneDetections(detections),
		Stats:          model.ComputeStats(detections),
	}

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return model.DetectionRecord{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := insertRecord(tx, record); err != nil {
		return model.DetectionRecord{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.DetectionRecord{}, fmt.Errorf("failed to commit record: %w", err)
	}
	return record.Clone(), nil
}

// legacyNamespace scopes the ids derived for records that were stored without one.
var legacyNamespace = uuid.MustParse("6f1c2b0e-4c55-4f8e-9a53-0d8c3e7a9b21")

// LegacyID derives a stable id from the fields that identify a record
// written without an id, so importing the same document twice yields the same ids.
func LegacyID(rec model.DetectionRecord) string {
	key := rec.Timestamp.UTC().Format(time.RFC3339Nano) + "\x00" + rec.Filename + "\x00" + rec.ProcessedImage
	return uuid.NewSHA1(legacyNamespace, []byte(key)).String()
}

// Import inserts existing records keeping their ids and timestamps. Records
// without an id get LegacyID. Records whose id is already stored are skipped.
// It returns the number inserted.
func (r *HistoryRepository) Import(records []model.DetectionRecord) (int, error) {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	imported := 0
	for _, rec := range records {
		rec = rec.Normalized()
		if rec.ID == "" {
			rec.ID = LegacyID(rec)
		}
		inserted, err := insertRecord(tx, rec)
		if err != nil {
			return 0, err
		}
		if inserted {
			imported++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit import: %w", err)
	}
	return imported, nil
}

// insertRecord writes one record row and its detections. It reports false
// when a record with the same id already exists.
func insertRecord(tx *sql.Tx, rec model.DetectionRecord) (bool, error) {
	result, err := tx.Exec(`
		INSERT OR IGNORE INTO records (record_id, timestamp, timestamp_ns, filename, processed_image)
		VALUES (?, ?, ?, ?, ?)
	`, rec.ID, rec.Timestamp.String(), rec.Timestamp.UnixNano(), rec.Filename, rec.ProcessedImage)
	if err != nil {
		return false, fmt.Errorf("failed to insert record: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil || n == 0 {
		return false, err
	}

	rowID, err := result.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("failed to read record id: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO detections (record_id, position, x1, y1, x2, y2, label, confidence, class_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return false, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, d := range rec.Detections {
		if _, err := stmt.Exec(rowID, i, d.BBox[0], d.BBox[1], d.BBox[2], d.BBox[3], d.Label, d.Confidence, d.ClassID); err != nil {
			return false, fmt.Errorf("failed to insert detection: %w", err)
		}
	}
	return true, nil
}

// ReadRecent returns the last limit records ordered by timestamp, ties in
// insertion order, so imported records interleave with live ones by time.
// Query failures are logged and reported as an empty history.
func (r *HistoryRepository) ReadRecent(limit int) []model.DetectionRecord {
	r.db.RLock()
	defer r.db.RUnlock()

	records, err := r.readRecent(limit)
	if err != nil {
		r.logger.Error("Error loading history: %v", err)
		return []model.DetectionRecord{}
	}
	return records
}

func (r *HistoryRepository) readRecent(limit int) ([]model.DetectionRecord, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	rows, err := r.db.Conn().Query(`
		SELECT id, record_id, timestamp, filename, processed_image
		FROM records ORDER BY timestamp_ns DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}

	var (
		newestFirst []model.DetectionRecord
		rowIDs      []int64
	)
	for rows.Next() {
		var (
			rowID int64
			ts    string
			rec   model.DetectionRecord
		)
		if err := rows.Scan(&rowID, &rec.ID, &ts, &rec.Filename, &rec.ProcessedImage); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		parsed, err := model.ParseTimestamp(ts)
		if err != nil {
			rows.Close()
			return nil, err
		}
		rec.Timestamp = parsed
		rec.Detections = []model.Detection{}
		newestFirst = append(newestFirst, rec)
		rowIDs = append(rowIDs, rowID)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}
	rows.Close()

	// The connection pool holds a single connection, so detections are
	// fetched only after the record cursor is closed.
	records := make([]model.DetectionRecord, len(newestFirst))
	index := make(map[int64]int, len(rowIDs))
	for i := range newestFirst {
		pos := len(newestFirst) - 1 - i
		records[pos] = newestFirst[i]
		index[rowIDs[i]] = pos
	}
	if len(records) == 0 {
		return []model.DetectionRecord{}, nil
	}

	for lo := 0; lo < len(rowIDs); lo += detectionBatch {
		hi := min(lo+detectionBatch, len(rowIDs))
		if err := r.loadDetections(records, index, rowIDs[lo:hi]); err != nil {
			return nil, err
		}
	}

	for i := range records {
		records[i] = records[i].Normalized()
	}
	return records, nil
}

// detectionBatch bounds the number of bound parameters per detections query.
const detectionBatch = 500

// loadDetections appends the detections of the records with the given row ids.
func (r *HistoryRepository) loadDetections(records []model.DetectionRecord, index map[int64]int, rowIDs []int64) error {
	placeholders := strings.Repeat(",?", len(rowIDs))[1:]
	args := make([]any, len(rowIDs))
	for i, id := range rowIDs {
		args[i] = id
	}

	rows, err := r.db.Conn().Query(`
		SELECT record_id, x1, y1, x2, y2, label, confidence, class_id
		FROM detections
		WHERE record_id IN (`+placeholders+`)
		ORDER BY record_id, position
	`, args...)
	if err != nil {
		return fmt.Errorf("failed to query detections: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rowID int64
			d     model.Detection
		)
		if err := rows.Scan(&rowID, &d.BBox[0], &d.BBox[1], &d.BBox[2], &d.BBox[3], &d.Label, &d.Confidence, &d.ClassID); err != nil {
			return fmt.Errorf("failed to scan detection: %w", err)
		}
		if pos, ok := index[rowID]; ok {
			records[pos].Detections = append(records[pos].Detections, d)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate detections: %w", err)
	}
	return nil
}

// Count returns the number of stored records.
func (r *HistoryRepository) Count() (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM records`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return count, nil
}

// Clear removes all records and detections.
func (r *HistoryRepository) Clear() error {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM detections`); err != nil {
		return fmt.Errorf("failed to delete detections: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM records`); err != nil {
		return fmt.Errorf("failed to delete records: %w", err)
	}
	return tx.Commit()
}

// Close closes the underlying database.
func (r *HistoryRepository) Close() error {
	return r.db.Close()
}
