// Package catalog orders the lightweight event list and keeps the analyst's
// selection stable across refreshes.
package catalog

import (
	"sort"

	"github.com/uofuseismo/cct-review/pkg/models"
)

// Sort orders entries newest origin time first. Entries with equal origin
// times keep their input order. The input slice is not modified.
func Sort(entries []models.CatalogEntry) []models.CatalogEntry {
	out := make([]models.CatalogEntry, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OriginTime.After(out[j].OriginTime.Time)
	})
	return out
}

// Dedupe drops repeated event identifiers, keeping the first occurrence.
func Dedupe(entries []models.CatalogEntry) []models.CatalogEntry {
	seen := make(map[string]struct{}, len(entries))
	out := entries[:0:0]
	for _, e := range entries {
		if _, ok := seen[e.EventIdentifier]; ok {
			continue
		}
		seen[e.EventIdentifier] = struct{}{}
		out = append(out, e)
	}
	return out
}

// Prepare dedupes and sorts a freshly fetched catalog.
func Prepare(entries []models.CatalogEntry) []models.CatalogEntry {
	return Sort(Dedupe(entries))
}

// Index returns the position of eventID in entries, or -1.
func Index(entries []models.CatalogEntry, eventID string) int {
	if eventID == "" {
		return -1
	}
	for i, e := range entries {
		if e.EventIdentifier == eventID {
			return i
		}
	}
	return -1
}

// Reconcile picks the selection after a refresh: the previously selected
// event when it is still listed, otherwise the first (most recent) entry.
// ok is false when entries is empty.
func Reconcile(entries []models.CatalogEntry, selectedID string) (idx int, ok bool) {
	if len(entries) == 0 {
		return -1, false
	}
	if i := Index(entries, selectedID); i >= 0 {
		return i, true
	}
	return 0, true
}

// CountByStatus tallies the review status of every entry.
func CountByStatus(entries []models.CatalogEntry) map[models.ReviewStatus]int {
	out := map[models.ReviewStatus]int{
		models.ReviewNone:     0,
		models.ReviewAccepted: 0,
		models.ReviewRejected: 0,
	}
	for _, e := range entries {
		out[e.ReviewStatus]++
	}
	return out
}
