// Package metrics exposes the review backlog of the CCT service to Prometheus.
package metrics

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/uofuseismo/cct-review/internal/catalog"
	"github.com/uofuseismo/cct-review/internal/client"
	"github.com/uofuseismo/cct-review/internal/quality"
	"github.com/uofuseismo/cct-review/pkg/models"
)

// Source is the part of the CCT client the collector reads from.
type Source interface {
	GetCatalog(ctx context.Context, schema models.Schema) ([]models.CatalogEntry, error)
	GetEventData(ctx context.Context, schema models.Schema, eventID string) (*models.EventDetail, []byte, error)
}

var (
	upDesc = prometheus.NewDesc(
		"cct_review_up", "Was the last scrape successful.", nil, nil,
	)
	scrapeDurationDesc = prometheus.NewDesc(
		"cct_review_scrape_duration_seconds", "Time taken to scrape the CCT service.", nil, nil,
	)
	eventsDesc = prometheus.NewDesc(
		"cct_review_events_total", "Catalog events grouped by review status.", []string{"schema", "status"}, nil,
	)
	flagsDesc = prometheus.NewDesc(
		"cct_review_event_flags_total", "Events awaiting review grouped by quality flag.", []string{"schema", "flag"}, nil,
	)
	lastSuccessDesc = prometheus.NewDesc(
		"cct_review_last_poll_success_timestamp_seconds", "Unix time of the last fully successful scrape.", nil, nil,
	)
)

// DefaultFlagTTL is how long the flags of a pending event are reused before
// its eventData is fetched again.
const DefaultFlagTTL = 10 * time.Minute

// ReviewCollector fetches the catalog of every schema on each scrape. Quality
// flags are only computed for events awaiting review, and cached per event
// for FlagTTL so reprocessed events are picked up.
type ReviewCollector struct {
	Client  Source
	Schemas []models.Schema
	// Relogin is called once when a request fails with an auth error.
	Relogin func(ctx context.Context) error
	Timeout time.Duration
	FlagTTL time.Duration
	Mutex   sync.Mutex

	lastSuccess time.Time
	flags       map[string]cachedFlags
	now         func() time.Time
}

type cachedFlags struct {
	flags     quality.Flags
	fetchedAt time.Time
}

func (c *ReviewCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- upDesc
	ch <- scrapeDurationDesc
	ch <- eventsDesc
	ch <- flagsDesc
	ch <- lastSuccessDesc
}

func (c *ReviewCollector) Collect(ch chan<- prometheus.Metric) {
	c.Mutex.Lock()
	defer c.Mutex.Unlock()
	start := time.Now()
	success := 1.0

	ctx := context.Background()
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	seen := make(map[string]bool)
	for _, schema := range c.Schemas {
		entries, err := c.fetchCatalogWithRetry(ctx, schema)
		if err != nil {
			success = 0.0
			log.Printf("Error scraping %s catalog: %v", schema, err)
			continue
		}

		for status, n := range catalog.CountByStatus(entries) {
			ch <- prometheus.MustNewConstMetric(eventsDesc, prometheus.GaugeValue, float64(n), string(schema), StatusLabel(status))
		}

		counts := map[string]float64{"IM": 0, "PC": 0, "AA": 0, "none": 0}
		for _, e := range entries {
			if e.ReviewStatus.Reviewed() {
				continue
			}
			key := string(schema) + "/" + e.EventIdentifier
			seen[key] = true
			f, ok := c.pendingFlags(ctx, schema, key, e)
			if !ok {
				success = 0.0
				continue
			}
			if f.Clean() {
				counts["none"]++
				continue
			}
			for _, label := range f.Labels() {
				counts[label]++
			}
		}
		for flag, n := range counts {
			ch <- prometheus.MustNewConstMetric(flagsDesc, prometheus.GaugeValue, n, string(schema), flag)
		}
	}

	// Forget events that left the backlog.
	for key := range c.flags {
		if !seen[key] {
			delete(c.flags, key)
		}
	}

	if success == 1.0 {
		c.lastSuccess = time.Now()
	}
	ch <- prometheus.MustNewConstMetric(upDesc, prometheus.GaugeValue, success)
	ch <- prometheus.MustNewConstMetric(scrapeDurationDesc, prometheus.GaugeValue, time.Since(start).Seconds())
	if !c.lastSuccess.IsZero() {
		ch <- prometheus.MustNewConstMetric(lastSuccessDesc, prometheus.GaugeValue, float64(c.lastSuccess.Unix()))
	}
}

// StatusLabel names a review status for the status label.
func StatusLabel(s models.ReviewStatus) string {
	switch s {
	case models.ReviewAccepted:
		return "accepted"
	case models.ReviewRejected:
		return "rejected"
	default:
		return "pending"
	}
}

func (c *ReviewCollector) pendingFlags(ctx context.Context, schema models.Schema, key string, entry models.CatalogEntry) (quality.Flags, bool) {
	now := time.Now
	if c.now != nil {
		now = c.now
	}
	ttl := c.FlagTTL
	if ttl <= 0 {
		ttl = DefaultFlagTTL
	}
	if cached, ok := c.flags[key]; ok && now().Sub(cached.fetchedAt) < ttl {
		return cached.flags, true
	}

	eventID := entry.EventIdentifier
	detail, err := c.fetchDetailWithRetry(ctx, schema, eventID)
	if err != nil {
		log.Printf("Error scraping event %s: %v", eventID, err)
		return quality.Flags{}, false
	}
	// Classify against the catalog row like the dashboard does.
	f := quality.Classify(models.NewDetailed(entry, detail, nil).Detail)
	if c.flags == nil {
		c.flags = make(map[string]cachedFlags)
	}
	c.flags[key] = cachedFlags{flags: f, fetchedAt: now()}
	return f, true
}

// --- RETRY HELPERS ---
func (c *ReviewCollector) fetchCatalogWithRetry(ctx context.Context, schema models.Schema) ([]models.CatalogEntry, error) {
	res, err := c.Client.GetCatalog(ctx, schema)
	if err == nil {
		return res, nil
	}
	if c.relogin(ctx, err) {
		return c.Client.GetCatalog(ctx, schema)
	}
	return nil, err
}

func (c *ReviewCollector) fetchDetailWithRetry(ctx context.Context, schema models.Schema, eventID string) (*models.EventDetail, error) {
	detail, _, err := c.Client.GetEventData(ctx, schema, eventID)
	if err == nil {
		return detail, nil
	}
	if c.relogin(ctx, err) {
		detail, _, err = c.Client.GetEventData(ctx, schema, eventID)
		return detail, err
	}
	return nil, err
}

func (c *ReviewCollector) relogin(ctx context.Context, err error) bool {
	if c.Relogin == nil || !client.IsAuthError(err) {
		return false
	}
	if e := c.Relogin(ctx); e != nil {
		log.Printf("Re-login failed: %v", e)
		return false
	}
	return true
}
