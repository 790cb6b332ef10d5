package models

import (
	"encoding/json"
	"fmt"
)

// Curve is a sampled spectrum. Frequencies and Values are paired by index.
type Curve struct {
	Frequencies []float64 `json:"frequencies"`
	Values      []float64 `json:"values"`
}

// Point is one (frequency, value) sample of a Curve.
type Point struct {
	Frequency float64
	Value     float64
}

func (c Curve) Validate() error {
	if len(c.Frequencies) != len(c.Values) {
		return fmt.Errorf("curve has %d frequencies but %d values", len(c.Frequencies), len(c.Values))
	}
	return nil
}

// Points pairs frequencies and values. Unpaired trailing samples are dropped.
func (c Curve) Points() []Point {
	n := min(len(c.Frequencies), len(c.Values))
	out := make([]Point, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, Point{Frequency: c.Frequencies[i], Value: c.Values[i]})
	}
	return out
}

func (c Curve) Empty() bool { return len(c.Frequencies) == 0 }

// SpectralFit holds the fitted source spectrum and its Brune uncertainty bounds.
type SpectralFit struct {
	Fit             Curve `json:"fit"`
	BruneLowerBound Curve `json:"bruneLowerBound"`
	BruneUpperBound Curve `json:"bruneUpperBound"`
}

// UnmarshalJSON accepts both the plain bound keys and the service's
// per-sigma keys (bruneLowerBound-1/-2). The 2-sigma bounds win, matching
// what the chart displays.
func (s *SpectralFit) UnmarshalJSON(b []byte) error {
	var raw map[string]Curve
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("spectral fit: %w", err)
	}
	*s = SpectralFit{Fit: raw["fit"]}
	s.BruneLowerBound = firstCurve(raw, "bruneLowerBound", "bruneLowerBound-2", "bruneLowerBound-1")
	s.BruneUpperBound = firstCurve(raw, "bruneUpperBound", "bruneUpperBound-2", "bruneUpperBound-1")
	return nil
}

func firstCurve(raw map[string]Curve, keys ...string) Curve {
	for _, k := range keys {
		if c, ok := raw[k]; ok {
			return c
		}
	}
	return Curve{}
}

func (s SpectralFit) Validate() error {
	for name, c := range map[string]Curve{
		"fit":             s.Fit,
		"bruneLowerBound": s.BruneLowerBound,
		"bruneUpperBound": s.BruneUpperBound,
	} {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("spectral fit %s: %w", name, err)
		}
	}
	return nil
}

// StationMeasurements groups the spectral measurements of one station (NET.STA).
type StationMeasurements struct {
	Station      string        `json:"station"`
	Measurements []Measurement `json:"measurements"`
}

// Measurement is a path and site corrected amplitude at a center frequency.
// Residual is nil when no fit frequency matched the measurement.
type Measurement struct {
	CenterFrequency float64  `json:"centerFrequency"`
	Value           float64  `json:"value"`
	Residual        *float64 `json:"residual"`
}
