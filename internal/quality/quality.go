// Package quality derives the review badges shown for an event from its
// detail payload. Everything here is pure; flags are recomputed on demand.
package quality

import (
	"math"

	"github.com/uofuseismo/cct-review/pkg/models"
)

const (
	// MLSlope and MLIntercept map a local magnitude onto the expected Mw,coda.
	MLSlope     = 0.94
	MLIntercept = 0.36
	// MagnitudeTolerance is the largest allowed |Mw,coda - expected|.
	MagnitudeTolerance = 0.29
	// ResidualThreshold flags a station measurement as anomalous.
	ResidualThreshold = 1.0
)

// Flags are the independent quality indicators of one event.
type Flags struct {
	InconsistentMagnitude   bool `json:"inconsistentMagnitude"`
	LikelyPoorlyConstrained bool `json:"likelyPoorlyConstrained"`
	AnomalousAmplitude      bool `json:"anomalousAmplitude"`
}

// Classify computes every flag for detail. A nil detail has no flags.
func Classify(detail *models.EventDetail) Flags {
	if detail == nil {
		return Flags{}
	}
	return Flags{
		InconsistentMagnitude:   InconsistentMagnitude(detail),
		LikelyPoorlyConstrained: detail.LikelyPoorlyConstrained,
		AnomalousAmplitude:      AnomalousAmplitude(detail),
	}
}

// InconsistentMagnitude compares Mw,coda against the catalog magnitude.
// Only ML and Mw catalog magnitudes have a rule; both magnitudes must be present.
func InconsistentMagnitude(detail *models.EventDetail) bool {
	if detail == nil || detail.AuthoritativeMagnitude == nil || detail.CCTMagnitude == nil {
		return false
	}
	catalog := *detail.AuthoritativeMagnitude
	mwCoda := *detail.CCTMagnitude
	switch detail.AuthoritativeMagnitudeType {
	case "l":
		return math.Abs(mwCoda-(MLSlope*catalog+MLIntercept)) > MagnitudeTolerance
	case "w":
		// Provisional: there is no dedicated Mw rule yet, so the magnitudes
		// are compared directly.
		return math.Abs(mwCoda-catalog) > MagnitudeTolerance
	default:
		return false
	}
}

// AnomalousAmplitude reports whether any station measurement has
// |residual| >= ResidualThreshold. Measurements without a residual are skipped.
func AnomalousAmplitude(detail *models.EventDetail) bool {
	if detail == nil {
		return false
	}
	_, ok := FirstAnomalousStation(detail.StationMeasurements)
	return ok
}

// FirstAnomalousStation returns the first station, in array order, with an
// anomalous measurement.
func FirstAnomalousStation(stations []models.StationMeasurements) (string, bool) {
	for _, s := range stations {
		for _, m := range s.Measurements {
			if m.Residual != nil && math.Abs(*m.Residual) >= ResidualThreshold {
				return s.Station, true
			}
		}
	}
	return "", false
}

// Clean reports whether no flag is raised.
func (f Flags) Clean() bool {
	return !f.InconsistentMagnitude && !f.LikelyPoorlyConstrained && !f.AnomalousAmplitude
}

// Badge is one indicator in the issues cell.
type Badge struct {
	Label   string `json:"label"`
	Tooltip string `json:"tooltip"`
}

var (
	NoIssuesBadge = Badge{"No Issues", "The automatic result has not triggered automatic flag(s)"}
	IMBadge       = Badge{"IM", "The catalog and Mw,coda magnitude are inconsistent"}
	PCBadge       = Badge{"PC", "The CCT software indicates the magnitude is poorly-constrained"}
	AABadge       = Badge{"AA", "At least one station amplitude residual is 1 or larger"}
)

// Badges returns "No Issues" alone when the flags are clean, otherwise one
// badge per raised flag in a fixed order.
func (f Flags) Badges() []Badge {
	if f.Clean() {
		return []Badge{NoIssuesBadge}
	}
	var out []Badge
	if f.InconsistentMagnitude {
		out = append(out, IMBadge)
	}
	if f.LikelyPoorlyConstrained {
		out = append(out, PCBadge)
	}
	if f.AnomalousAmplitude {
		out = append(out, AABadge)
	}
	return out
}

// Labels is Badges reduced to their labels.
func (f Flags) Labels() []string {
	badges := f.Badges()
	out := make([]string, len(badges))
	for i, b := range badges {
		out[i] = b.Label
	}
	return out
}
