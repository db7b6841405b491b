// Package detection turns raw model output into canonical detections.
package detection

import (
	"context"

	"muzzlewatch/internal/model"
)

// RawOutput is the positional output of a detector for one image.
type RawOutput struct {
	Boxes       [][4]float64 `json:"boxes"`
	Confidences []float64    `json:"confidences"`
	ClassIDs    []int        `json:"class_ids"`
	Labels      LabelTable   `json:"names"`
}

// Len reports how many complete (box, confidence, class) triples the output holds.
func (o RawOutput) Len() int {
	n := len(o.Boxes)
	if len(o.Confidences) < n {
		n = len(o.Confidences)
	}
	if len(o.ClassIDs) < n {
		n = len(o.ClassIDs)
	}
	return n
}

// Detector runs object detection on an image file.
type Detector interface {
	Infer(ctx context.Context, imagePath string, confidenceThreshold float64) (RawOutput, error)
}

// Normalize pairs boxes, confidences and class ids positionally and resolves
// each label through labels. Extra trailing elements in a longer input are
// ignored. An empty input yields an empty, non-nil slice.
func Normalize(boxes [][4]float64, confidences []float64, classIDs []int, labels LabelTable) []model.Detection {
	raw := RawOutput{Boxes: boxes, Confidences: confidences, ClassIDs: classIDs}
	n := raw.Len()

	detections := make([]model.Detection, 0, n)
	for i := 0; i < n; i++ {
		detections = append(detections, model.Detection{
			BBox:       boxes[i],
			Label:      labels.Resolve(classIDs[i]),
			Confidence: confidences[i],
			ClassID:    classIDs[i],
		})
	}
	return detections
}

// NormalizeOutput is Normalize applied to a RawOutput. When the output carries
// no label table, fallback is used.
func NormalizeOutput(out RawOutput, fallback LabelTable) []model.Detection {
	labels := out.Labels
	if len(labels) == 0 {
		labels = fallback
	}
	return Normalize(out.Boxes, out.Confidences, out.ClassIDs, labels)
}
