// Package dashboard coordinates one review session: the polled catalog, the
// selected event and its detail, and the accept, reject and download actions.
// All state lives in the Dashboard; readers work from immutable Snapshots.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/uofuseismo/cct-review/internal/auth"
	"github.com/uofuseismo/cct-review/internal/catalog"
	"github.com/uofuseismo/cct-review/internal/client"
	"github.com/uofuseismo/cct-review/internal/quality"
	"github.com/uofuseismo/cct-review/pkg/models"
)

var (
	ErrNoSelection     = errors.New("no event selected")
	ErrUnknownEvent    = errors.New("event not in catalog")
	ErrReadOnly        = errors.New("session is read-only")
	ErrAlreadyReviewed = errors.New("event already has this review status")
	ErrBusy            = errors.New("request already in progress")
	ErrActionFailed    = errors.New("service refused the action")
	ErrSuperseded      = errors.New("superseded by a newer request")
)

// maxNotices bounds the notice history kept for display.
const maxNotices = 20

// Service is the part of the CCT client the dashboard depends on.
type Service interface {
	GetCatalog(ctx context.Context, schema models.Schema) ([]models.CatalogEntry, error)
	GetEventData(ctx context.Context, schema models.Schema, eventID string) (*models.EventDetail, []byte, error)
	Accept(ctx context.Context, schema models.Schema, eventID string) (*models.ActionResponse, error)
	Reject(ctx context.Context, schema models.Schema, eventID string) (*models.ActionResponse, error)
}

type NoticeLevel string

const (
	NoticeInfo  NoticeLevel = "info"
	NoticeError NoticeLevel = "error"
)

// Notice is a message for the analyst, such as a failed action.
type Notice struct {
	Time    time.Time   `json:"time"`
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}

// Controls are the enabled states of the review buttons for the selection.
type Controls struct {
	Accept          bool `json:"accept"`
	Reject          bool `json:"reject"`
	Download        bool `json:"download"`
	AcceptLoading   bool `json:"acceptLoading"`
	RejectLoading   bool `json:"rejectLoading"`
	DownloadLoading bool `json:"downloadLoading"`
}

// Snapshot is a point-in-time copy of the dashboard state.
type Snapshot struct {
	Schema      models.Schema         `json:"schema"`
	Session     *models.Session       `json:"session"`
	Loaded      bool                  `json:"loaded"`
	Entries     []models.CatalogEntry `json:"entries"`
	SelectedID  string                `json:"selectedId,omitempty"`
	Selected    *models.Event         `json:"-"`
	Flags       quality.Flags         `json:"flags"`
	Controls    Controls              `json:"controls"`
	Loading     map[Purpose]bool      `json:"loading"`
	Notices     []Notice              `json:"notices"`
	LastRefresh time.Time             `json:"lastRefresh"`
}

type Options struct {
	Schema       models.Schema
	PollInterval time.Duration
	// CatalogOnly skips the detail fetch on selection. Accept and reject
	// only need the catalog row.
	CatalogOnly bool
}

type Dashboard struct {
	api     Service
	session *auth.Holder
	poller  *catalog.Poller
	tasks   *Tasks
	now     func() time.Time

	catalogOnly bool

	mu          sync.RWMutex
	schema      models.Schema
	loaded      bool
	entries     []models.CatalogEntry
	selectedID  string
	event       *models.Event
	notices     []Notice
	lastRefresh time.Time
	cancel      context.CancelFunc

	wg        sync.WaitGroup
	closeOnce sync.Once
	loggedOut chan struct{}
}

// New builds a dashboard for the session held by holder. Logging out through
// holder, including a forced logout on token expiry, tears the dashboard down.
func New(api Service, holder *auth.Holder, opts Options) *Dashboard {
	if opts.Schema == "" {
		opts.Schema = models.SchemaProduction
	}
	d := &Dashboard{
		api:       api,
		session:   holder,
		tasks:     NewTasks(),
		now:       time.Now,
		schema:    opts.Schema,
		loggedOut: make(chan struct{}),

		catalogOnly: opts.CatalogOnly,
	}
	d.poller = catalog.NewPoller(opts.PollInterval, d.poll)
	holder.OnLogout(d.onLogout)
	return d
}

// Start launches the catalog poller. It returns immediately.
func (d *Dashboard) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	d.mu.Lock()
	d.cancel = cancel
	d.mu.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.poller.Run(ctx)
	}()
}

// Run starts the dashboard and blocks until ctx is done or the session ends.
func (d *Dashboard) Run(ctx context.Context) {
	d.Start(ctx)
	select {
	case <-ctx.Done():
	case <-d.loggedOut:
	}
	d.Close()
}

// Close cancels every outstanding request and stops the poller.
func (d *Dashboard) Close() {
	d.stop()
	d.wg.Wait()
}

// LoggedOut is closed once the session has ended.
func (d *Dashboard) LoggedOut() <-chan struct{} {
	return d.loggedOut
}

func (d *Dashboard) stop() {
	d.mu.Lock()
	cancel := d.cancel
	d.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	d.tasks.CancelAll()
}

func (d *Dashboard) onLogout() {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.entries = nil
		d.loaded = false
		d.selectedID = ""
		d.event = nil
		d.mu.Unlock()
		d.stop()
		close(d.loggedOut)
	})
}

// RequestRefresh asks the poller for an immediate catalog refresh.
func (d *Dashboard) RequestRefresh() {
	d.poller.Trigger()
}

func (d *Dashboard) poll(ctx context.Context) error {
	if err := d.Refresh(ctx); !errors.Is(err, ErrSuperseded) {
		return err
	}
	return nil
}

// Refresh fetches the catalog for the current schema, re-sorts it and
// reconciles the selection. A newly selected event has its detail fetched.
// On failure the previous catalog is kept, except on the first load which
// leaves an empty catalog.
func (d *Dashboard) Refresh(ctx context.Context) error {
	d.mu.RLock()
	schema := d.schema
	d.mu.RUnlock()

	task, tctx := d.tasks.Start(ctx, PurposeCatalog)
	defer d.tasks.Done(task)

	entries, err := d.api.GetCatalog(tctx, schema)
	if client.IsAuthError(err) {
		d.session.Logout()
		return fmt.Errorf("fetch %s catalog: %w", schema, err)
	}
	if !d.tasks.Current(task) {
		return ErrSuperseded
	}
	if err != nil {
		d.mu.Lock()
		if !d.loaded && d.schema == schema {
			d.entries = []models.CatalogEntry{}
			d.loaded = true
		}
		d.mu.Unlock()
		return fmt.Errorf("[%s] fetch %s catalog: %w", task.ID, schema, err)
	}
	entries = catalog.Prepare(entries)

	var upgrade *models.CatalogEntry
	d.mu.Lock()
	if d.schema != schema {
		d.mu.Unlock()
		return ErrSuperseded
	}
	d.entries = entries
	d.loaded = true
	d.lastRefresh = d.now()
	if idx, ok := catalog.Reconcile(entries, d.selectedID); !ok {
		d.selectedID = ""
		d.event = nil
	} else if entry := entries[idx]; d.event != nil && entry.EventIdentifier == d.selectedID {
		ev := d.event.WithEntry(entry)
		d.event = &ev
	} else {
		d.selectedID = entry.EventIdentifier
		ev := models.NewLightweight(entry)
		d.event = &ev
		upgrade = &entry
	}
	d.mu.Unlock()

	if upgrade != nil && !d.catalogOnly {
		// Failures are recorded as notices by Upgrade.
		_ = d.Upgrade(ctx, *upgrade)
	}
	return nil
}

// Select makes eventID the selected event and, unless CatalogOnly is set,
// fetches its detail.
func (d *Dashboard) Select(ctx context.Context, eventID string) error {
	d.mu.Lock()
	idx := catalog.Index(d.entries, eventID)
	if idx < 0 {
		d.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownEvent, eventID)
	}
	entry := d.entries[idx]
	if d.selectedID == eventID && d.event != nil {
		d.mu.Unlock()
		return nil
	}
	d.selectedID = eventID
	ev := models.NewLightweight(entry)
	d.event = &ev
	d.mu.Unlock()

	if d.catalogOnly {
		return nil
	}
	return d.Upgrade(ctx, entry)
}

// Move selects the entry delta rows away from the current selection,
// clamped to the catalog bounds.
func (d *Dashboard) Move(ctx context.Context, delta int) error {
	d.mu.RLock()
	n := len(d.entries)
	idx := catalog.Index(d.entries, d.selectedID)
	var target string
	if n > 0 {
		next := min(max(idx+delta, 0), n-1)
		target = d.entries[next].EventIdentifier
	}
	d.mu.RUnlock()

	if target == "" {
		return ErrNoSelection
	}
	return d.Select(ctx, target)
}

// Upgrade turns the lightweight selection for entry into a detailed event.
// On failure the previous detail stays displayed and an error notice is
// recorded.
func (d *Dashboard) Upgrade(ctx context.Context, entry models.CatalogEntry) error {
	d.mu.RLock()
	schema := d.schema
	d.mu.RUnlock()

	task, tctx := d.tasks.Start(ctx, PurposeDetail)
	defer d.tasks.Done(task)

	detail, raw, err := d.api.GetEventData(tctx, schema, entry.EventIdentifier)
	if client.IsAuthError(err) {
		d.session.Logout()
		return fmt.Errorf("fetch detail for %s: %w", entry.EventIdentifier, err)
	}
	if !d.tasks.Current(task) {
		return ErrSuperseded
	}
	if err != nil {
		log.Printf("[%s] fetch detail for %s: %v", task.ID, entry.EventIdentifier, err)
		d.notify(NoticeError, "Failed to fetch event data for %s: %v", entry.EventIdentifier, err)
		return fmt.Errorf("fetch detail for %s: %w", entry.EventIdentifier, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.selectedID != entry.EventIdentifier || d.schema != schema {
		return ErrSuperseded
	}
	// The catalog may have been refreshed while the detail was in flight.
	if idx := catalog.Index(d.entries, entry.EventIdentifier); idx >= 0 {
		entry = d.entries[idx]
	}
	ev := models.NewDetailed(entry, detail, raw)
	d.event = &ev
	return nil
}

// SetSchema switches the dataset. The current catalog is discarded and a
// refresh is requested.
func (d *Dashboard) SetSchema(schema models.Schema) {
	d.mu.Lock()
	if d.schema == schema {
		d.mu.Unlock()
		return
	}
	d.schema = schema
	d.entries = nil
	d.loaded = false
	d.selectedID = ""
	d.event = nil
	d.mu.Unlock()

	d.tasks.Cancel(PurposeCatalog)
	d.tasks.Cancel(PurposeDetail)
	d.notify(NoticeInfo, "Switched to the %s schema", schema)
	d.RequestRefresh()
}

// Accept publishes the Mw,coda magnitude of the selected event.
func (d *Dashboard) Accept(ctx context.Context) error {
	return d.review(ctx, PurposeAccept, models.ReviewAccepted, d.api.Accept)
}

// Reject discards the Mw,coda magnitude of the selected event.
func (d *Dashboard) Reject(ctx context.Context) error {
	return d.review(ctx, PurposeReject, models.ReviewRejected, d.api.Reject)
}

type reviewFunc func(ctx context.Context, schema models.Schema, eventID string) (*models.ActionResponse, error)

// review sends an accept or reject. Local state is never updated here; the
// new review status arrives with the catalog refresh requested on success.
func (d *Dashboard) review(ctx context.Context, purpose Purpose, target models.ReviewStatus, call reviewFunc) error {
	d.mu.RLock()
	schema := d.schema
	ev := d.event
	d.mu.RUnlock()

	if ev == nil {
		return ErrNoSelection
	}
	if !d.session.IsWritable() {
		return ErrReadOnly
	}
	if ev.Entry.ReviewStatus == target {
		return fmt.Errorf("%w: %s is %s", ErrAlreadyReviewed, ev.ID(), target)
	}

	task, tctx, ok := d.tasks.TryStart(ctx, purpose)
	if !ok {
		return fmt.Errorf("%w: %s", ErrBusy, purpose)
	}
	defer d.tasks.Done(task)

	id := ev.ID()
	resp, err := call(tctx, schema, id)
	if err != nil {
		d.handleAuth(err)
		log.Printf("[%s] %s %s: %v", task.ID, purpose, id, err)
		d.notify(NoticeError, "Failed to %s event %s: %v", purpose, id, err)
		return fmt.Errorf("%s %s: %w", purpose, id, err)
	}
	if !resp.Succeeded() {
		reason := resp.Reason
		if reason == "" {
			reason = "status " + resp.Status
		}
		d.notify(NoticeError, "Failed to %s event %s: %s", purpose, id, reason)
		return fmt.Errorf("%w: %s %s: %s", ErrActionFailed, purpose, id, reason)
	}

	if target == models.ReviewAccepted {
		d.notify(NoticeInfo, "Successfully accepted event %s", id)
	} else {
		d.notify(NoticeInfo, "Successfully rejected event %s", id)
	}
	d.RequestRefresh()
	return nil
}

// DownloadName is the file name used for an exported event.
func DownloadName(eventID string) string {
	return eventID + "-cct-data.json"
}

// Download fetches the full payload of the selected event and writes it,
// exactly as returned, into dir. It returns the written path.
func (d *Dashboard) Download(ctx context.Context, dir string) (string, error) {
	d.mu.RLock()
	schema := d.schema
	ev := d.event
	d.mu.RUnlock()
	if ev == nil {
		return "", ErrNoSelection
	}

	task, tctx, ok := d.tasks.TryStart(ctx, PurposeDownload)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrBusy, PurposeDownload)
	}
	defer d.tasks.Done(task)

	id := ev.ID()
	_, raw, err := d.api.GetEventData(tctx, schema, id)
	if err != nil {
		d.handleAuth(err)
		log.Printf("[%s] download %s: %v", task.ID, id, err)
		d.notify(NoticeError, "Failed to download event %s: %v", id, err)
		return "", fmt.Errorf("download %s: %w", id, err)
	}

	path, err := WriteDownload(dir, id, raw)
	if err != nil {
		d.notify(NoticeError, "Failed to save event %s: %v", id, err)
		return "", err
	}
	d.notify(NoticeInfo, "Saved %s", path)
	return path, nil
}

// WriteDownload stores raw as <eventID>-cct-data.json in dir.
func WriteDownload(dir, eventID string, raw []byte) (string, error) {
	if dir == "" {
		dir = "."
	}
	path := filepath.Join(dir, DownloadName(eventID))
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// ButtonStates derives the review controls from the catalog status of the
// selection and the session permission.
func ButtonStates(ev *models.Event, writable bool, tasks *Tasks) Controls {
	c := Controls{
		AcceptLoading:   tasks.Running(PurposeAccept),
		RejectLoading:   tasks.Running(PurposeReject),
		DownloadLoading: tasks.Running(PurposeDownload),
	}
	if ev == nil {
		return c
	}
	status := ev.Entry.ReviewStatus
	c.Accept = writable && status != models.ReviewAccepted && !c.AcceptLoading
	c.Reject = writable && status != models.ReviewRejected && !c.RejectLoading
	c.Download = !c.DownloadLoading
	return c
}

// Snapshot copies the current state.
func (d *Dashboard) Snapshot() Snapshot {
	sess := d.session.Session()

	d.mu.RLock()
	defer d.mu.RUnlock()

	s := Snapshot{
		Schema:      d.schema,
		Session:     sess,
		Loaded:      d.loaded,
		Entries:     append([]models.CatalogEntry(nil), d.entries...),
		SelectedID:  d.selectedID,
		Notices:     append([]Notice(nil), d.notices...),
		LastRefresh: d.lastRefresh,
		Loading: map[Purpose]bool{
			PurposeCatalog: d.tasks.Running(PurposeCatalog),
			PurposeDetail:  d.tasks.Running(PurposeDetail),
		},
	}
	if d.event != nil {
		ev := *d.event
		s.Selected = &ev
		s.Flags = quality.Classify(ev.Detail)
	}
	s.Controls = ButtonStates(s.Selected, sess.IsWritable(), d.tasks)
	s.Loading[PurposeAccept] = s.Controls.AcceptLoading
	s.Loading[PurposeReject] = s.Controls.RejectLoading
	s.Loading[PurposeDownload] = s.Controls.DownloadLoading
	return s
}

// Notices returns the notices recorded after since.
func (d *Dashboard) Notices(since time.Time) []Notice {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []Notice
	for _, n := range d.notices {
		if n.Time.After(since) {
			out = append(out, n)
		}
	}
	return out
}

func (d *Dashboard) notify(level NoticeLevel, format string, args ...any) {
	n := Notice{Time: d.now(), Level: level, Message: fmt.Sprintf(format, args...)}
	d.mu.Lock()
	d.notices = append(d.notices, n)
	if len(d.notices) > maxNotices {
		d.notices = d.notices[len(d.notices)-maxNotices:]
	}
	d.mu.Unlock()
}

// handleAuth ends the session when the service rejected the token. Expired
// tokens have already been logged out by the holder.
func (d *Dashboard) handleAuth(err error) {
	if client.IsAuthError(err) {
		d.session.Logout()
	}
}
