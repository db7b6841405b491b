// Package stats sums per-record stats into global totals and grades them.
package stats

import (
	"muzzlewatch/internal/model"
)

// WarningShare is the without-muzzle share above which the situation is flagged.
const WarningShare = 0.5

// Verdict is the evaluation of a set of global totals.
type Verdict int

const (
	// VerdictNone means no dogs were detected.
	VerdictNone Verdict = iota
	// VerdictWarning means more than half of the detected dogs lack a muzzle.
	VerdictWarning
	// VerdictNormal means most detected dogs wear a muzzle.
	VerdictNormal
)

func (v Verdict) String() string {
	switch v {
	case VerdictWarning:
		return "warning"
	case VerdictNormal:
		return "normal"
	default:
		return "none"
	}
}

// Aggregate sums the stats of every record. An empty input yields zero totals.
func Aggregate(records []model.DetectionRecord) model.GlobalStats {
	var g model.GlobalStats
	for _, r := range records {
		g.TotalDogs += r.Stats.TotalDogs
		g.WithMuzzle += r.Stats.WithMuzzle
		g.WithoutMuzzle += r.Stats.WithoutMuzzle
	}
	return g
}

// Assess grades global totals.
func Assess(g model.GlobalStats) Verdict {
	switch {
	case g.TotalDogs <= 0:
		return VerdictNone
	case g.WithoutMuzzleShare() > WarningShare:
		return VerdictWarning
	default:
		return VerdictNormal
	}
}

// NeedsRecommendations reports whether remediation advice applies to g.
func NeedsRecommendations(g model.GlobalStats) bool {
	return g.TotalDogs > 0 && g.WithoutMuzzle > 0
}
