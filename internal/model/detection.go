package model

const (
	// LabelWithMuzzle is the detector label counted into Stats.WithMuzzle.
	LabelWithMuzzle = "with_muzzle"
	// LabelWithoutMuzzle is the detector label counted into Stats.WithoutMuzzle.
	LabelWithoutMuzzle = "without_muzzle"
)

// Detection represents one detected object in an image.
// BBox holds x1, y1, x2, y2 in source image pixels; ordering is not validated.
type Detection struct {
	BBox       [4]float64 `json:"bbox"`
	Label      string     `json:"label"`
	Confidence float64    `json:"confidence"`
	ClassID    int        `json:"class_id"`
}

// Stats is the per-image rollup derived from a record's detections.
type Stats struct {
	TotalDogs     int `json:"total_dogs"`
	WithMuzzle    int `json:"with_muzzle"`
	WithoutMuzzle int `json:"without_muzzle"`
}

// ComputeStats counts detections by label. Labels other than the two muzzle
// categories only contribute to TotalDogs.
func ComputeStats(detections []Detection) Stats {
	stats := Stats{TotalDogs: len(detections)}
	for _, d := range detections {
		switch d.Label {
		case LabelWithMuzzle:
			stats.WithMuzzle++
		case LabelWithoutMuzzle:
			stats.WithoutMuzzle++
		}
	}
	return stats
}

// CloneDetections returns a copy that shares no backing array with the input.
// A nil input yields an empty, non-nil slice so records always encode as [].
func CloneDetections(detections []Detection) []Detection {
	out := make([]Detection, len(detections))
	copy(out, detections)
	return out
}
