// Package activitytest provides a recorder that keeps events in memory.
package activitytest

import (
	"context"
	"sync"

	"github.com/chxlky/contract-kanban/internal/activity"
	"github.com/chxlky/contract-kanban/internal/models"
)

type Capture struct {
	mu     sync.Mutex
	events []activity.Event
}

func (c *Capture) Record(_ context.Context, e activity.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *Capture) Events() []activity.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]activity.Event(nil), c.events...)
}

// Actions lists the recorded actions in order.
func (c *Capture) Actions() []models.Action {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Action, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.Action)
	}
	return out
}
