package delivery

import (
	"context"
	"encoding/json"

	"github.com/convertrack/convertrack-go/internal/domain/events"
	"github.com/convertrack/convertrack-go/internal/infrastructure/security"
)

// Sink is a fire-and-forget event destination (pixel or CAPI-style
// endpoint). Senders attach an idempotency event ID so the downstream
// pixel/CAPI pair can be deduplicated.
type Sink interface {
	Name() string
	Send(ctx context.Context, ev events.Envelope, eventID string) Outcome
}

// HTTPSink posts event envelopes to a configured endpoint, routing
// failures through the retry queue.
type HTTPSink struct {
	name     string
	endpoint string
	queue    *Queue
}

// NewHTTPSink creates a sink for one endpoint. An empty endpoint yields
// a disabled sink that reports every send as dropped.
func NewHTTPSink(name, endpoint string, queue *Queue) *HTTPSink {
	return &HTTPSink{name: name, endpoint: endpoint, queue: queue}
}

// Name returns the sink identifier.
func (s *HTTPSink) Name() string { return s.name }

// Enabled reports whether the sink has an endpoint configured.
func (s *HTTPSink) Enabled() bool { return s.endpoint != "" }

// Send delivers the envelope with the caller-supplied event ID attached.
func (s *HTTPSink) Send(ctx context.Context, ev events.Envelope, eventID string) Outcome {
	if s.endpoint == "" {
		return OutcomeDropped
	}

	payload := struct {
		EventID string          `json:"event_id"`
		Event   events.Envelope `json:"data"`
	}{EventID: eventID, Event: ev}

	body, err := json.Marshal(payload)
	if err != nil {
		return OutcomeDropped
	}

	return s.queue.Deliver(ctx, Request{
		ID:   eventID + "-" + security.ShortHash(s.name+eventID),
		URL:  s.endpoint,
		Body: body,
	})
}
