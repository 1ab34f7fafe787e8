package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/mini-league/internal/publisher"
)

func TestPublisherStoresEvents(t *testing.T) {
	t.Parallel()

	pub := New()
	id1, err := pub.Publish(context.Background(), publisher.Event{Type: publisher.EventSiteRendered, Path: "index.html"})
	require.NoError(t, err)
	assert.Equal(t, "memory-1", id1)
	id2, err := pub.Publish(context.Background(), publisher.Event{Type: publisher.EventSiteRendered, Week: "2025-01-06"})
	require.NoError(t, err)
	assert.Equal(t, "memory-2", id2)

	events := pub.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "index.html", events[0].Path)
	assert.Equal(t, "2025-01-06", events[1].Week)

	events[0].Path = "modified"
	assert.Equal(t, "index.html", pub.Events()[0].Path, "Events must return a copy")
}

func TestNopPublisher(t *testing.T) {
	t.Parallel()

	var p publisher.Publisher = publisher.Nop{}
	id, err := p.Publish(context.Background(), publisher.Event{})
	require.NoError(t, err)
	assert.Empty(t, id)
}
