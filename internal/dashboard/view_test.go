package dashboard

import (
	"bytes"
	"strings"
	"testing"

	"github.com/uofuseismo/cct-review/pkg/models"
)

func TestFormatMagnitude(t *testing.T) {
	tests := []struct {
		m    *float64
		typ  string
		want string
	}{
		{mag(3.0), "l", "3.00 Ml"},
		{mag(4.567), "w", "4.57 Mw"},
		{nil, "l", "-"},
	}
	for _, test := range tests {
		if got := FormatMagnitude(test.m, test.typ); got != test.want {
			t.Errorf("FormatMagnitude() = %q, want %q", got, test.want)
		}
	}
}

func TestRenderDetail(t *testing.T) {
	entry := testEntry("60000003", "2024-03-01T00:00:00.000", models.ReviewNone)
	detail := &models.EventDetail{
		CatalogEntry: entry,
		CCTMagnitude: mag(3.5),
		SpectralFit: models.SpectralFit{
			Fit: models.Curve{Frequencies: []float64{0.5, 1}, Values: []float64{20, 19}},
		},
		StationMeasurements: []models.StationMeasurements{
			{Station: "UU.CTU", Measurements: []models.Measurement{{Residual: mag(-1.2)}, {Residual: mag(0.3)}}},
			{Station: "UU.NOQ", Measurements: []models.Measurement{{Residual: nil}}},
		},
	}
	ev := models.NewDetailed(entry, detail, nil)

	var buf bytes.Buffer
	if err := RenderDetail(&buf, &ev); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"https://earthquake.usgs.gov/earthquakes/eventpage/uu60000003/executive",
		"3.50",
		"3.00 Ml",
		"IM AA",
		"Spectral fit: 2 points",
		"-1.20 *",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderDetailCatalogMagnitudeMatchesFlags(t *testing.T) {
	// The catalog row has Ml 3.00 and the payload carries a stale Ml 3.30.
	// Mw,coda 3.50 is inconsistent with the former only.
	entry := testEntry("60000004", "2024-04-01T00:00:00.000", models.ReviewNone)
	payload := entry
	payload.AuthoritativeMagnitude = mag(3.3)
	detail := &models.EventDetail{CatalogEntry: payload, CCTMagnitude: mag(3.5)}
	ev := models.NewDetailed(entry, detail, nil)

	var buf bytes.Buffer
	if err := RenderDetail(&buf, &ev); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "3.00 Ml") || !strings.Contains(out, "IM") {
		t.Errorf("want catalog 3.00 Ml with the IM flag:\n%s", out)
	}
	if strings.Contains(out, "3.30") {
		t.Errorf("stale payload magnitude shown:\n%s", out)
	}
}

func TestRenderEmptyCatalog(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, Snapshot{Schema: models.SchemaTest, Loaded: true}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "No events found.") || !strings.Contains(out, "Selected: none") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if !strings.Contains(out, "Accept: disabled") {
		t.Errorf("controls should be disabled without a selection:\n%s", out)
	}
}
