package scanner

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/patterniq/patterniq-client/internal/backend"
	"github.com/patterniq/patterniq-client/internal/feed"
)

// Notifier receives alerts that newly appeared in a feed snapshot: a
// lone finding on its own, a batch as one digest.
type Notifier interface {
	NotifyAlert(ctx context.Context, alert backend.Alert) error
	NotifyAlertDigest(ctx context.Context, alerts []backend.Alert) error
}

// Controller owns the anomaly-alert view: a capped feed of the latest
// findings plus the scan trigger. Each feed snapshot fully replaces the
// displayed list; the two are never merged. When the feed dies the list
// simply stops updating; the failure is logged, not shown.
type Controller struct {
	be       *backend.Client
	feedURL  string
	limit    int
	notifier Notifier

	mu     sync.RWMutex
	alerts []backend.Alert
	sub    *feed.Subscription
}

func NewController(be *backend.Client, feedURL string, limit int) *Controller {
	if limit <= 0 {
		limit = 10
	}
	return &Controller{be: be, feedURL: feedURL, limit: limit}
}

// SetNotifier wires an optional alert sink. Call before Start.
func (c *Controller) SetNotifier(n Notifier) { c.notifier = n }

// Start subscribes to the alerts collection, newest first, capped at
// the configured limit.
func (c *Controller) Start(ctx context.Context) error {
	sub, err := feed.Subscribe(ctx, c.feedURL, feed.Query{
		Path:       "alerts",
		OrderBy:    "timestamp",
		Descending: true,
		Limit:      c.limit,
	})
	if err != nil {
		return err
	}
	c.sub = sub
	go c.watch(ctx)
	return nil
}

// Trigger fires a scan. Results never return on this call; they arrive
// through the alerts feed when the backend finishes.
func (c *Controller) Trigger(ctx context.Context) error {
	return c.be.TriggerScan(ctx)
}

// Alerts returns the latest snapshot in server order.
func (c *Controller) Alerts() []backend.Alert {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]backend.Alert(nil), c.alerts...)
}

// Close releases the alerts feed.
func (c *Controller) Close() {
	if c.sub != nil {
		c.sub.Close()
	}
}

func (c *Controller) watch(ctx context.Context) {
	for {
		select {
		case snap, open := <-c.sub.Snapshots():
			if !open {
				return
			}
			c.apply(ctx, snap)
		case err := <-c.sub.Err():
			log.Printf("scanner: alerts feed lost: %v", err)
		}
	}
}

func (c *Controller) apply(ctx context.Context, snap json.RawMessage) {
	var alerts []backend.Alert
	if err := json.Unmarshal(snap, &alerts); err != nil {
		log.Printf("scanner: bad alerts snapshot: %v", err)
		return
	}

	c.mu.Lock()
	previous := c.alerts
	c.alerts = alerts
	c.mu.Unlock()

	if c.notifier == nil {
		return
	}
	known := make(map[string]bool, len(previous))
	for _, a := range previous {
		known[a.ID] = true
	}
	var fresh []backend.Alert
	for _, a := range alerts {
		if !known[a.ID] {
			fresh = append(fresh, a)
		}
	}
	switch {
	case len(fresh) == 1:
		if err := c.notifier.NotifyAlert(ctx, fresh[0]); err != nil {
			log.Printf("scanner: notify alert %s: %v", fresh[0].ID, err)
		}
	case len(fresh) > 1:
		if err := c.notifier.NotifyAlertDigest(ctx, fresh); err != nil {
			log.Printf("scanner: notify alert digest: %v", err)
		}
	}
}
