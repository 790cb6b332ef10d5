package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// CCTTimeFormat is the origin time layout emitted by the CCT service (UTC, no zone suffix).
const CCTTimeFormat = "2006-01-02T15:04:05.000"

var originTimeLayouts = []string{
	CCTTimeFormat,
	"2006-01-02T15:04:05.000Z",
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
}

// OriginTime is an event origin time. The service strips the trailing Z,
// so values are always interpreted as UTC.
type OriginTime struct {
	time.Time
}

func (t *OriginTime) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("origin time: %w", err)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range originTimeLayouts {
		if parsed, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("origin time: unrecognized format %q", raw)
}

func (t OriginTime) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(CCTTimeFormat))
}

func (t OriginTime) String() string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(CCTTimeFormat)
}

// ReviewStatus is the analyst decision recorded for an event.
type ReviewStatus string

const (
	ReviewNone     ReviewStatus = ""
	ReviewAccepted ReviewStatus = "A"
	ReviewRejected ReviewStatus = "R"
)

func (s *ReviewStatus) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*s = ReviewNone
		return nil
	}
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("review status: %w", err)
	}
	*s = ReviewStatus(strings.ToUpper(strings.TrimSpace(raw)))
	return nil
}

// Reviewed reports whether the event reached a terminal state.
func (s ReviewStatus) Reviewed() bool {
	return s == ReviewAccepted || s == ReviewRejected
}

func (s ReviewStatus) String() string {
	if s == ReviewNone {
		return "-"
	}
	return string(s)
}

// CatalogEntry is the lightweight row returned by the cctData request.
type CatalogEntry struct {
	EventIdentifier            string       `json:"eventIdentifier"`
	OriginTime                 OriginTime   `json:"originTime"`
	Latitude                   float64      `json:"latitude"`
	Longitude                  float64      `json:"longitude"`
	Depth                      float64      `json:"depth"`
	AuthoritativeMagnitude     *float64     `json:"authoritativeMagnitude"`
	AuthoritativeMagnitudeType string       `json:"authoritativeMagnitudeType"`
	ReviewStatus               ReviewStatus `json:"reviewStatus"`
}

// EventDetail is the heavyweight payload returned by the eventData request.
type EventDetail struct {
	CatalogEntry
	CCTMagnitude            *float64              `json:"cctMagnitude"`
	CCTMagnitudeType        string                `json:"cctMagnitudeType,omitempty"`
	LikelyPoorlyConstrained bool                  `json:"likelyPoorlyConstrained"`
	SpectralFit             SpectralFit           `json:"spectralFit"`
	StationMeasurements     []StationMeasurements `json:"stationMeasurements"`
}

// Validate checks the pairing invariants of every curve in the payload.
func (d *EventDetail) Validate() error {
	if strings.TrimSpace(d.EventIdentifier) == "" {
		return fmt.Errorf("event detail: missing eventIdentifier")
	}
	return d.SpectralFit.Validate()
}

// CatalogResponse wraps the cctData response. Events is itself a JSON document.
type CatalogResponse struct {
	Status  string  `json:"status"`
	Request string  `json:"request"`
	Events  *string `json:"events"`
}

// EventDataResponse wraps the eventData response. Data is itself a JSON document.
type EventDataResponse struct {
	Status          string  `json:"status"`
	Request         string  `json:"request"`
	EventIdentifier string  `json:"eventIdentifier"`
	Data            *string `json:"data"`
}

// ActionResponse is returned by the accept and reject requests.
type ActionResponse struct {
	Status          string `json:"status"`
	Request         string `json:"request"`
	EventIdentifier string `json:"eventIdentifier"`
	Reason          string `json:"reason,omitempty"`
}

// Succeeded reports whether the service acknowledged the action.
func (r ActionResponse) Succeeded() bool {
	return strings.EqualFold(strings.TrimSpace(r.Status), "success")
}
