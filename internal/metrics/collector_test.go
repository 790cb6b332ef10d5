package metrics

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/uofuseismo/cct-review/internal/auth"
	"github.com/uofuseismo/cct-review/pkg/models"
)

func f(v float64) *float64 { return &v }

type fakeSource struct {
	entries     []models.CatalogEntry
	details     map[string]*models.EventDetail
	catalogErrs []error
	detailCalls int
}

func (s *fakeSource) GetCatalog(ctx context.Context, schema models.Schema) ([]models.CatalogEntry, error) {
	if len(s.catalogErrs) > 0 {
		err := s.catalogErrs[0]
		s.catalogErrs = s.catalogErrs[1:]
		return nil, err
	}
	return s.entries, nil
}

func (s *fakeSource) GetEventData(ctx context.Context, schema models.Schema, eventID string) (*models.EventDetail, []byte, error) {
	s.detailCalls++
	d, ok := s.details[eventID]
	if !ok {
		return nil, nil, errors.New("not found")
	}
	return d, nil, nil
}

func newSource() *fakeSource {
	pending := models.CatalogEntry{EventIdentifier: "1", AuthoritativeMagnitude: f(3.0), AuthoritativeMagnitudeType: "l"}
	clean := models.CatalogEntry{EventIdentifier: "2", AuthoritativeMagnitude: f(3.0), AuthoritativeMagnitudeType: "l"}
	return &fakeSource{
		entries: []models.CatalogEntry{
			pending,
			clean,
			{EventIdentifier: "3", ReviewStatus: models.ReviewAccepted},
		},
		details: map[string]*models.EventDetail{
			"1": {CatalogEntry: pending, CCTMagnitude: f(3.5), LikelyPoorlyConstrained: true},
			"2": {CatalogEntry: clean, CCTMagnitude: f(3.2)},
		},
	}
}

func TestCollect(t *testing.T) {
	src := newSource()
	c := &ReviewCollector{Client: src, Schemas: []models.Schema{models.SchemaTest}}

	expected := `
# HELP cct_review_events_total Catalog events grouped by review status.
# TYPE cct_review_events_total gauge
cct_review_events_total{schema="test",status="accepted"} 1
cct_review_events_total{schema="test",status="pending"} 2
cct_review_events_total{schema="test",status="rejected"} 0
# HELP cct_review_event_flags_total Events awaiting review grouped by quality flag.
# TYPE cct_review_event_flags_total gauge
cct_review_event_flags_total{flag="AA",schema="test"} 0
cct_review_event_flags_total{flag="IM",schema="test"} 1
cct_review_event_flags_total{flag="PC",schema="test"} 1
cct_review_event_flags_total{flag="none",schema="test"} 1
# HELP cct_review_up Was the last scrape successful.
# TYPE cct_review_up gauge
cct_review_up 1
`
	err := testutil.CollectAndCompare(c, strings.NewReader(expected),
		"cct_review_events_total", "cct_review_event_flags_total", "cct_review_up")
	if err != nil {
		t.Fatal(err)
	}

	// Flags of pending events are cached between scrapes.
	calls := src.detailCalls
	testutil.CollectAndCount(c)
	if src.detailCalls != calls {
		t.Errorf("details refetched: %d calls, want %d", src.detailCalls, calls)
	}
}

func TestCollectRefreshesFlagsAfterTTL(t *testing.T) {
	src := newSource()
	clock := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	c := &ReviewCollector{
		Client:  src,
		Schemas: []models.Schema{models.SchemaTest},
		FlagTTL: time.Minute,
		now:     func() time.Time { return clock },
	}
	imCount := func() float64 {
		t.Helper()
		reg := prometheus.NewPedanticRegistry()
		reg.MustRegister(c)
		families, err := reg.Gather()
		if err != nil {
			t.Fatal(err)
		}
		for _, mf := range families {
			if mf.GetName() != "cct_review_event_flags_total" {
				continue
			}
			for _, m := range mf.GetMetric() {
				for _, l := range m.GetLabel() {
					if l.GetName() == "flag" && l.GetValue() == "IM" {
						return m.GetGauge().GetValue()
					}
				}
			}
		}
		t.Fatal("no IM series")
		return 0
	}

	if got := imCount(); got != 1 {
		t.Fatalf("IM = %v, want 1", got)
	}
	calls := src.detailCalls

	// Event 2 is reprocessed and now disagrees with its catalog magnitude.
	reprocessed := *src.details["2"]
	reprocessed.CCTMagnitude = f(3.6)
	src.details["2"] = &reprocessed

	clock = clock.Add(30 * time.Second)
	if got := imCount(); got != 1 {
		t.Errorf("IM within TTL = %v, want cached 1", got)
	}
	if src.detailCalls != calls {
		t.Errorf("details refetched within TTL")
	}

	clock = clock.Add(time.Minute)
	if got := imCount(); got != 2 {
		t.Errorf("IM after TTL = %v, want 2", got)
	}
	if src.detailCalls != calls+2 {
		t.Errorf("detail calls = %d, want %d", src.detailCalls, calls+2)
	}
}

func TestCollectReloginOnAuthError(t *testing.T) {
	src := newSource()
	src.catalogErrs = []error{auth.ErrAuthExpired}
	relogins := 0
	c := &ReviewCollector{
		Client:  src,
		Schemas: []models.Schema{models.SchemaProduction},
		Relogin: func(ctx context.Context) error {
			relogins++
			return nil
		},
	}

	expected := `
# HELP cct_review_up Was the last scrape successful.
# TYPE cct_review_up gauge
cct_review_up 1
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(expected), "cct_review_up"); err != nil {
		t.Fatal(err)
	}
	if relogins != 1 {
		t.Errorf("relogin called %d times, want 1", relogins)
	}
}

func TestCollectDown(t *testing.T) {
	src := newSource()
	src.catalogErrs = []error{errors.New("connection refused")}
	c := &ReviewCollector{Client: src, Schemas: []models.Schema{models.SchemaProduction}}

	expected := `
# HELP cct_review_up Was the last scrape successful.
# TYPE cct_review_up gauge
cct_review_up 0
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(expected), "cct_review_up"); err != nil {
		t.Fatal(err)
	}
	if n := testutil.CollectAndCount(c, "cct_review_last_poll_success_timestamp_seconds"); n != 1 {
		t.Errorf("expected a success timestamp after the second scrape, got %d series", n)
	}
}
