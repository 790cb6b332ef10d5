package quality

import (
	"reflect"
	"testing"

	"github.com/uofuseismo/cct-review/pkg/models"
)

func f64(v float64) *float64 { return &v }

func detail(catalog *float64, magType string, mwCoda *float64) *models.EventDetail {
	d := &models.EventDetail{CCTMagnitude: mwCoda}
	d.EventIdentifier = "60000001"
	d.AuthoritativeMagnitude = catalog
	d.AuthoritativeMagnitudeType = magType
	return d
}

func TestInconsistentMagnitude(t *testing.T) {
	tests := []struct {
		name    string
		catalog *float64
		magType string
		mwCoda  *float64
		want    bool
	}{
		{name: "ML outside tolerance", catalog: f64(3.0), magType: "l", mwCoda: f64(3.5), want: true},
		{name: "ML inside tolerance", catalog: f64(3.0), magType: "l", mwCoda: f64(3.2), want: false},
		{name: "ML below prediction", catalog: f64(3.0), magType: "l", mwCoda: f64(2.8), want: true},
		// Provisional Mw rule: direct comparison.
		{name: "Mw outside tolerance", catalog: f64(4.0), magType: "w", mwCoda: f64(4.4), want: true},
		{name: "Mw inside tolerance", catalog: f64(4.0), magType: "w", mwCoda: f64(4.2), want: false},
		{name: "other magnitude type", catalog: f64(3.0), magType: "d", mwCoda: f64(5.0), want: false},
		{name: "missing catalog magnitude", catalog: nil, magType: "l", mwCoda: f64(5.0), want: false},
		{name: "missing Mw,coda", catalog: f64(3.0), magType: "l", mwCoda: nil, want: false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := InconsistentMagnitude(detail(test.catalog, test.magType, test.mwCoda))
			if got != test.want {
				t.Errorf("InconsistentMagnitude() = %v, want %v", got, test.want)
			}
		})
	}
}

func TestAnomalousAmplitude(t *testing.T) {
	tests := []struct {
		name     string
		stations []models.StationMeasurements
		want     bool
		station  string
	}{
		{name: "no stations", stations: nil, want: false},
		{
			name: "small residuals",
			stations: []models.StationMeasurements{
				{Station: "UU.CTU", Measurements: []models.Measurement{{Residual: f64(0.5)}, {Residual: f64(-0.99)}}},
			},
			want: false,
		},
		{
			name: "residual exactly at threshold",
			stations: []models.StationMeasurements{
				{Station: "UU.CTU", Measurements: []models.Measurement{{Residual: f64(0.1)}}},
				{Station: "UU.SRU", Measurements: []models.Measurement{{Residual: f64(-1.0)}}},
			},
			want:    true,
			station: "UU.SRU",
		},
		{
			name: "first station wins",
			stations: []models.StationMeasurements{
				{Station: "UU.NOQ", Measurements: []models.Measurement{{Residual: f64(1.7)}}},
				{Station: "UU.SRU", Measurements: []models.Measurement{{Residual: f64(2.0)}}},
			},
			want:    true,
			station: "UU.NOQ",
		},
		{
			name: "null residual skipped",
			stations: []models.StationMeasurements{
				{Station: "UU.CTU", Measurements: []models.Measurement{{Residual: nil}}},
			},
			want: false,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			d := detail(nil, "", nil)
			d.StationMeasurements = test.stations
			if got := AnomalousAmplitude(d); got != test.want {
				t.Fatalf("AnomalousAmplitude() = %v, want %v", got, test.want)
			}
			station, _ := FirstAnomalousStation(test.stations)
			if station != test.station {
				t.Errorf("FirstAnomalousStation() = %q, want %q", station, test.station)
			}
		})
	}
}

func TestClassify_Nil(t *testing.T) {
	if got := Classify(nil); got != (Flags{}) {
		t.Fatalf("Classify(nil) = %+v, want zero flags", got)
	}
}

func TestFlags_Badges(t *testing.T) {
	tests := []struct {
		name  string
		flags Flags
		want  []string
	}{
		{name: "clean", flags: Flags{}, want: []string{"No Issues"}},
		{name: "poorly constrained only", flags: Flags{LikelyPoorlyConstrained: true}, want: []string{"PC"}},
		{name: "all raised", flags: Flags{true, true, true}, want: []string{"IM", "PC", "AA"}},
		{name: "magnitude and amplitude", flags: Flags{InconsistentMagnitude: true, AnomalousAmplitude: true}, want: []string{"IM", "AA"}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := test.flags.Labels(); !reflect.DeepEqual(got, test.want) {
				t.Errorf("Labels() = %v, want %v", got, test.want)
			}
		})
	}
}

func TestClassify_PassesThroughPoorlyConstrained(t *testing.T) {
	d := detail(f64(3.0), "l", f64(3.2))
	d.LikelyPoorlyConstrained = true
	got := Classify(d)
	want := Flags{LikelyPoorlyConstrained: true}
	if got != want {
		t.Fatalf("Classify() = %+v, want %+v", got, want)
	}
}
