package pubsub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/JakeFAU/mini-league/internal/publisher"
)

func TestNewMessage(t *testing.T) {
	t.Parallel()

	event := publisher.Event{
		ID:         "01",
		Type:       publisher.EventSiteRendered,
		Week:       "2025-01-06",
		Path:       "weeks/2025-01-06/index.html",
		URI:        "gs://bucket/weeks/2025-01-06/index.html",
		Bytes:      2048,
		RenderedAt: time.Date(2025, 1, 12, 18, 0, 0, 0, time.UTC),
	}
	msg, err := newMessage(context.Background(), event)
	require.NoError(t, err)

	assert.Equal(t, publisher.EventSiteRendered, msg.Attributes["event_type"])
	assert.Equal(t, "2025-01-06", msg.Attributes["week"])

	var decoded publisher.Event
	require.NoError(t, json.Unmarshal(msg.Data, &decoded))
	assert.Equal(t, event, decoded)
}

func TestNewMessageOmitsEmptyWeek(t *testing.T) {
	t.Parallel()

	msg, err := newMessage(context.Background(), publisher.Event{Type: publisher.EventSiteRendered, Path: "index.html"})
	require.NoError(t, err)
	_, ok := msg.Attributes["week"]
	assert.False(t, ok)
}

func TestCarrierRoundTripsTraceContext(t *testing.T) {
	t.Parallel()

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	prop := propagation.TraceContext{}
	carrier := &pubsubCarrier{attrs: map[string]string{}}
	prop.Inject(ctx, carrier)
	assert.Contains(t, carrier.Keys(), "traceparent")

	extracted := trace.SpanContextFromContext(prop.Extract(context.Background(), carrier))
	assert.Equal(t, traceID, extracted.TraceID())
}

func TestPublishWithoutTopic(t *testing.T) {
	t.Parallel()

	_, err := New(nil).Publish(context.Background(), publisher.Event{})
	require.Error(t, err)
	require.NoError(t, New(nil).Close())

	_, err = Dial(context.Background(), "", "")
	require.Error(t, err)
}
