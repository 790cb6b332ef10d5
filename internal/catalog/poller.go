package catalog

import (
	"context"
	"log"
	"time"
)

// DefaultInterval is how often the catalog is refreshed while displayed.
const DefaultInterval = 60 * time.Second

// Poller drives catalog refreshes: once at start, then on every tick, and
// immediately whenever Trigger is called. Refresh errors are logged and the
// next tick retries.
type Poller struct {
	Interval time.Duration
	Refresh  func(ctx context.Context) error

	trigger chan struct{}
}

func NewPoller(interval time.Duration, refresh func(ctx context.Context) error) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		Interval: interval,
		Refresh:  refresh,
		trigger:  make(chan struct{}, 1),
	}
}

// Trigger requests an immediate refresh. Requests made while one is already
// pending collapse into it.
func (p *Poller) Trigger() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	p.runOnce(ctx)

	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.runOnce(ctx)
		case <-p.trigger:
			p.runOnce(ctx)
			ticker.Reset(p.Interval)
		}
	}
}

func (p *Poller) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := p.Refresh(ctx); err != nil && ctx.Err() == nil {
		log.Printf("catalog refresh failed: %v", err)
	}
}
