// Package publisher defines the notification emitted after a page is
// published. Implementations live in the memory and pubsub sub-packages.
package publisher

import (
	"context"
	"time"
)

// EventSiteRendered is the type of the event sent after a page is written.
const EventSiteRendered = "site.rendered"

// Event describes one published page.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Week       string    `json:"week,omitempty"`
	Path       string    `json:"path"`
	URI        string    `json:"uri"`
	Bytes      int       `json:"bytes"`
	SHA256     string    `json:"sha256"`
	RenderedAt time.Time `json:"rendered_at"`
}

// Publisher delivers events and returns the broker-assigned message ID.
type Publisher interface {
	Publish(ctx context.Context, event Event) (string, error)
}

// Nop drops every event. It is used when notifications are disabled.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) (string, error) {
	return "", nil
}
