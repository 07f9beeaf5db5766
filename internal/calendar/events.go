package calendar

import (
	"context"
	"sync"

	"github.com/patterniq/patterniq-client/internal/backend"
)

// Event is one merged calendar entry. System entries carry Event/Impact
// and no ID; user entries carry ID/Title and can be edited.
type Event struct {
	ID     string `json:"id,omitempty"`
	Date   string `json:"date"`
	Type   string `json:"type"`
	Title  string `json:"title"`
	Impact string `json:"impact,omitempty"`
	User   bool   `json:"user"`
}

// Merge combines the two source lists into display order: all system
// events first, then all user events, each in its source's own order.
// Nothing is re-sorted.
func Merge(system []backend.SystemEvent, user []backend.UserEvent) []Event {
	merged := make([]Event, 0, len(system)+len(user))
	for _, e := range system {
		merged = append(merged, Event{
			Date:   e.Date,
			Type:   e.Type,
			Title:  e.Event,
			Impact: e.Impact,
		})
	}
	for _, e := range user {
		merged = append(merged, Event{
			ID:    e.ID,
			Date:  e.Date,
			Type:  e.Type,
			Title: e.Title,
			User:  true,
		})
	}
	return merged
}

// EventsForDay filters the merged list by exact date-string match,
// preserving merged order.
func EventsForDay(events []Event, date string) []Event {
	var out []Event
	for _, e := range events {
		if e.Date == date {
			out = append(out, e)
		}
	}
	return out
}

// Controller owns the calendar's remote state for one session. Every
// mutation is one dispatch followed by a full re-fetch of both source
// lists; the local lists are never patched in place.
type Controller struct {
	be     *backend.Client
	userID string

	mu     sync.RWMutex
	events []Event
}

func NewController(be *backend.Client, userID string) *Controller {
	return &Controller{be: be, userID: userID}
}

// Refresh re-fetches both event sources and replaces the merged list.
func (c *Controller) Refresh(ctx context.Context) error {
	system, err := c.be.SystemEvents(ctx)
	if err != nil {
		return err
	}
	user, err := c.be.UserEvents(ctx, c.userID)
	if err != nil {
		return err
	}
	merged := Merge(system, user)

	c.mu.Lock()
	c.events = merged
	c.mu.Unlock()
	return nil
}

// Events returns the current merged list.
func (c *Controller) Events() []Event {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Event(nil), c.events...)
}

// Day returns the merged entries for one date.
func (c *Controller) Day(date string) []Event {
	return EventsForDay(c.Events(), date)
}

// Create stores a new user event and re-fetches everything.
func (c *Controller) Create(ctx context.Context, date, title, eventType string) error {
	_, err := c.be.CreateUserEvent(ctx, backend.UserEventRequest{
		UserID: c.userID,
		Date:   date,
		Title:  title,
		Type:   eventType,
	})
	if err != nil {
		return err
	}
	return c.Refresh(ctx)
}

// Update replaces an existing user event and re-fetches everything.
func (c *Controller) Update(ctx context.Context, eventID, date, title, eventType string) error {
	_, err := c.be.UpdateUserEvent(ctx, c.userID, eventID, backend.UserEventRequest{
		UserID: c.userID,
		Date:   date,
		Title:  title,
		Type:   eventType,
	})
	if err != nil {
		return err
	}
	return c.Refresh(ctx)
}

// Delete removes a user event and re-fetches everything.
func (c *Controller) Delete(ctx context.Context, eventID string) error {
	if err := c.be.DeleteUserEvent(ctx, c.userID, eventID); err != nil {
		return err
	}
	return c.Refresh(ctx)
}
