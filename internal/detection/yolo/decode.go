// Package yolo decodes the raw output tensor of a YOLO detection head.
package yolo

import (
	"fmt"
	"sort"
)

// Candidate is one decoded box in source image pixels.
type Candidate struct {
	Box        [4]float64
	Confidence float64
	ClassID    int
}

// Layout describes how the source image was resized into the network input.
type Layout struct {
	InputWidth  int
	InputHeight int
	ImageWidth  int
	ImageHeight int
}

// Decode reads a channels-first head output of shape [4+classes, anchors]
// where each anchor column holds cx, cy, w, h followed by per-class scores.
// Anchors whose best score is below threshold are dropped.
func Decode(data []float32, classes, anchors int, threshold float64, l Layout) ([]Candidate, error) {
	rows := 4 + classes
	if classes <= 0 || anchors <= 0 {
		return nil, fmt.Errorf("invalid head shape: %d classes, %d anchors", classes, anchors)
	}
	if len(data) < rows*anchors {
		return nil, fmt.Errorf("output too short: have %d values, need %d", len(data), rows*anchors)
	}
	if l.InputWidth <= 0 || l.InputHeight <= 0 {
		return nil, fmt.Errorf("invalid input size %dx%d", l.InputWidth, l.InputHeight)
	}

	xScale := float64(l.ImageWidth) / float64(l.InputWidth)
	yScale := float64(l.ImageHeight) / float64(l.InputHeight)

	at := func(row, col int) float64 { return float64(data[row*anchors+col]) }

	var out []Candidate
	for a := 0; a < anchors; a++ {
		bestClass, bestScore := 0, at(4, a)
		for c := 1; c < classes; c++ {
			if s := at(4+c, a); s > bestScore {
				bestClass, bestScore = c, s
			}
		}
		if bestScore < threshold {
			continue
		}

		cx, cy, w, h := at(0, a), at(1, a), at(2, a), at(3, a)
		out = append(out, Candidate{
			Box: [4]float64{
				(cx - w/2) * xScale,
				(cy - h/2) * yScale,
				(cx + w/2) * xScale,
				(cy + h/2) * yScale,
			},
			Confidence: bestScore,
			ClassID:    bestClass,
		})
	}
	return out, nil
}

// Suppress performs greedy per-class non-maximum suppression and returns the
// kept candidates ordered by descending confidence.
func Suppress(candidates []Candidate, iouThreshold float64) []Candidate {
	sorted := make([]Candidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	kept := make([]Candidate, 0, len(sorted))
	for _, c := range sorted {
		overlaps := false
		for _, k := range kept {
			if k.ClassID == c.ClassID && IoU(k.Box, c.Box) > iouThreshold {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, c)
		}
	}
	return kept
}

// IoU returns the intersection over union of two x1,y1,x2,y2 boxes.
func IoU(a, b [4]float64) float64 {
	ix1, iy1 := max(a[0], b[0]), max(a[1], b[1])
	ix2, iy2 := min(a[2], b[2]), min(a[3], b[3])
	if ix2 <= ix1 || iy2 <= iy1 {
		return 0
	}
	inter := (ix2 - ix1) * (iy2 - iy1)
	union := (a[2]-a[0])*(a[3]-a[1]) + (b[2]-b[0])*(b[3]-b[1]) - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// DecodeEndToEnd reads the output of an NMS-free head: rows of
// x1, y1, x2, y2, score, class in network input pixels.
func DecodeEndToEnd(data []float32, rows int, threshold float64, l Layout) ([]Candidate, error) {
	const width = 6
	if rows <= 0 {
		return nil, fmt.Errorf("invalid head shape: %d rows", rows)
	}
	if len(data) < rows*width {
		return nil, fmt.Errorf("output too short: have %d values, need %d", len(data), rows*width)
	}
	if l.InputWidth <= 0 || l.InputHeight <= 0 {
		return nil, fmt.Errorf("invalid input size %dx%d", l.InputWidth, l.InputHeight)
	}

	xScale := float64(l.ImageWidth) / float64(l.InputWidth)
	yScale := float64(l.ImageHeight) / float64(l.InputHeight)

	var out []Candidate
	for r := 0; r < rows; r++ {
		row := data[r*width : (r+1)*width]
		score := float64(row[4])
		if score < threshold {
			continue
		}
		out = append(out, Candidate{
			Box: [4]float64{
				float64(row[0]) * xScale,
				float64(row[1]) * yScale,
				float64(row[2]) * xScale,
				float64(row[3]) * yScale,
			},
			Confidence: score,
			ClassID:    int(row[5]),
		})
	}
	return out, nil
}
