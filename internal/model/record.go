package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// timestampLayouts lists accepted encodings, newest first. The zone-less
// layouts cover history documents written by older producers.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Timestamp is an ISO-8601 instant that tolerates zone-less input.
type Timestamp struct {
	time.Time
}

// NewTimestamp wraps t.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

// ParseTimestamp parses any of the accepted layouts. Zone-less values are
// interpreted in local time.
func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	for i, layout := range timestampLayouts {
		var (
			t   time.Time
			err error
		)
		if i == 0 {
			t, err = time.Parse(layout, s)
		} else {
			t, err = time.ParseInLocation(layout, s, time.Local)
		}
		if err == nil {
			return Timestamp{Time: t}, nil
		}
	}
	return Timestamp{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// String formats the timestamp as RFC 3339 with fractional seconds.
func (t Timestamp) String() string {
	return t.Time.Format(time.RFC3339Nano)
}

// MarshalJSON encodes the timestamp as an RFC 3339 string.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON accepts every layout in timestampLayouts.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// DetectionRecord is one processed image event. It is created once by the
// history store and never updated.
type DetectionRecord struct {
	ID             string      `json:"id,omitempty"`
	Timestamp      Timestamp   `json:"timestamp"`
	Filename       string      `json:"filename"`
	ProcessedImage string      `json:"processed_image"`
	Detections     []Detection `json:"detections"`
	Stats          Stats       `json:"stats"`
}

// Clone returns a deep copy of the record.
func (r DetectionRecord) Clone() DetectionRecord {
	r.Detections = CloneDetections(r.Detections)
	return r
}

// Normalized returns a copy whose Stats are recomputed from Detections.
func (r DetectionRecord) Normalized() DetectionRecord {
	out := r.Clone()
	out.Stats = ComputeStats(out.Detections)
	return out
}

// CloneRecords deep-copies a slice of records.
func CloneRecords(records []DetectionRecord) []DetectionRecord {
	out := make([]DetectionRecord, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}

// GlobalStats is the sum of Stats across many records.
type GlobalStats struct {
	TotalDogs     int `json:"total_dogs"`
	WithMuzzle    int `json:"with_muzzle"`
	WithoutMuzzle int `json:"without_muzzle"`
}

// WithMuzzleShare returns WithMuzzle/TotalDogs, or 0 when nothing was detected.
func (g GlobalStats) WithMuzzleShare() float64 {
	if g.TotalDogs <= 0 {
		return 0
	}
	return float64(g.WithMuzzle) / float64(g.TotalDogs)
}

// WithoutMuzzleShare returns WithoutMuzzle/TotalDogs, or 0 when nothing was detected.
func (g GlobalStats) WithoutMuzzleShare() float64 {
	if g.TotalDogs <= 0 {
		return 0
	}
	return float64(g.WithoutMuzzle) / float64(g.TotalDogs)
}
