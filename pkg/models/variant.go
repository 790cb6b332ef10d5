package models

// EventKind tags how much of an event is known locally.
type EventKind int

const (
	// Lightweight events carry only catalog fields.
	Lightweight EventKind = iota
	// Detailed events carry the full eventData payload.
	Detailed
)

func (k EventKind) String() string {
	if k == Detailed {
		return "detailed"
	}
	return "lightweight"
}

// Event is either a Lightweight catalog row or a Detailed payload.
// Detail is non-nil exactly when Kind is Detailed.
type Event struct {
	Kind   EventKind
	Entry  CatalogEntry
	Detail *EventDetail
	// Raw is the eventData document exactly as the service returned it.
	Raw []byte
}

// NewLightweight wraps a catalog row.
func NewLightweight(entry CatalogEntry) Event {
	return Event{Kind: Lightweight, Entry: entry}
}

// NewDetailed wraps a detail payload. The catalog row is authoritative for
// reviewStatus since accept and reject only show up through a refetch. It
// also wins for the catalog magnitude so the quality flags are computed
// against the value the catalog table shows.
func NewDetailed(entry CatalogEntry, detail *EventDetail, raw []byte) Event {
	if detail == nil {
		return NewLightweight(entry)
	}
	d := *detail
	d.ReviewStatus = entry.ReviewStatus
	if entry.AuthoritativeMagnitude != nil {
		d.AuthoritativeMagnitude = entry.AuthoritativeMagnitude
		d.AuthoritativeMagnitudeType = entry.AuthoritativeMagnitudeType
	}
	return Event{Kind: Detailed, Entry: entry, Detail: &d, Raw: raw}
}

// WithEntry refreshes the catalog fields of e from a newer catalog row,
// keeping any detail already fetched.
func (e Event) WithEntry(entry CatalogEntry) Event {
	if e.Kind != Detailed || entry.EventIdentifier != e.ID() {
		return NewLightweight(entry)
	}
	return NewDetailed(entry, e.Detail, e.Raw)
}

func (e Event) ID() string { return e.Entry.EventIdentifier }
