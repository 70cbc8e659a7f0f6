// Package delivery implements at-least-once event delivery to network
// sinks with a durable retry queue.
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/convertrack/convertrack-go/internal/infrastructure/observability/logging"
	"github.com/convertrack/convertrack-go/internal/infrastructure/persistence/kv"
	"github.com/convertrack/convertrack-go/internal/infrastructure/security"
)

const queuePrefix = "queue:"

// defaultBackoff is the retry delay table; retries beyond the table
// clamp to the last value.
var defaultBackoff = []time.Duration{
	1 * time.Second,
	2 * time.Second,
	5 * time.Second,
	10 * time.Second,
	30 * time.Second,
}

// Request is one queued delivery. Destroyed on success, on a
// non-retryable response, or after exceeding the retry cap.
type Request struct {
	ID          string            `json:"id"`
	URL         string            `json:"url"`
	Method      string            `json:"method"`
	Body        json.RawMessage   `json:"body,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
	Retries     int               `json:"retries"`
	NextAttempt time.Time         `json:"nextAttempt"`
}

// Outcome classifies one delivery attempt.
type Outcome string

const (
	OutcomeDelivered Outcome = "delivered"
	OutcomeQueued    Outcome = "queued"
	OutcomeDropped   Outcome = "dropped"
)

// Queue is the durable delivery queue. Entries survive restarts via the
// shared store; processing resumes on NotifyOnline and on a flush timer.
type Queue struct {
	store      kv.Store
	client     *http.Client
	logger     *logging.ChanneledLogger
	maxRetries int
	backoff    []time.Duration
	inFlight   atomic.Bool
}

// Option tunes queue behavior.
type Option func(*Queue)

// WithClient overrides the HTTP client used for delivery attempts.
func WithClient(client *http.Client) Option {
	return func(q *Queue) { q.client = client }
}

// WithMaxRetries overrides the retry cap.
func WithMaxRetries(n int) Option {
	return func(q *Queue) { q.maxRetries = n }
}

// WithBackoff overrides the retry delay table.
func WithBackoff(table []time.Duration) Option {
	return func(q *Queue) { q.backoff = table }
}

// NewQueue creates a delivery queue persisted on the given store.
func NewQueue(store kv.Store, logger *logging.ChanneledLogger, opts ...Option) *Queue {
	q := &Queue{
		store:      store,
		client:     &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
		maxRetries: 5,
		backoff:    defaultBackoff,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Deliver attempts immediate delivery; a retryable failure (5xx or
// network error) enqueues the request, a client error drops it.
func (q *Queue) Deliver(ctx context.Context, req Request) Outcome {
	if req.ID == "" {
		req.ID = security.GenerateULID()
	}
	if req.Method == "" {
		req.Method = http.MethodPost
	}
	if req.Timestamp.IsZero() {
		req.Timestamp = time.Now().UTC()
	}

	status, err := q.attempt(ctx, &req)
	if err == nil && status < 400 {
		if q.logger != nil {
			q.logger.Delivery().Debug("Delivered", "id", req.ID, "url", req.URL, "status", status)
		}
		return OutcomeDelivered
	}

	if err == nil && status < 500 {
		// Non-retryable client error: drop immediately.
		if q.logger != nil {
			q.logger.Delivery().Warn("Delivery dropped", "id", req.ID, "url", req.URL, "status", status)
		}
		return OutcomeDropped
	}

	req.Retries = 0
	req.NextAttempt = time.Now().UTC().Add(q.backoffDelay(0))
	if !kv.SetJSON(q.store, queuePrefix+req.ID, req) {
		if q.logger != nil {
			q.logger.Delivery().Error("Failed to persist queued delivery", "id", req.ID, "url", req.URL)
		}
		return OutcomeDropped
	}

	if q.logger != nil {
		q.logger.Delivery().Info("Delivery queued for retry",
			"id", req.ID, "url", req.URL, "status", status, "nextAttempt", req.NextAttempt)
	}
	return OutcomeQueued
}

// Flush processes due queue entries. Only one flush pass runs at a
// time; overlapping triggers (startup + online signal) are collapsed.
func (q *Queue) Flush(ctx context.Context) {
	if !q.inFlight.CompareAndSwap(false, true) {
		return
	}
	defer q.inFlight.Store(false)

	now := time.Now().UTC()
	for _, key := range q.store.Keys(queuePrefix) {
		select {
		case <-ctx.Done():
			return
		default:
		}

		req, ok := kv.GetJSON[Request](q.store, key)
		if !ok {
			continue
		}
		if req.NextAttempt.After(now) {
			continue
		}

		status, err := q.attempt(ctx, &req)
		switch {
		case err == nil && status < 400:
			q.store.Remove(key)
			if q.logger != nil {
				q.logger.Delivery().Info("Queued delivery succeeded", "id", req.ID, "retries", req.Retries)
			}
		case err == nil && status < 500:
			q.store.Remove(key)
			if q.logger != nil {
				q.logger.Delivery().Warn("Queued delivery dropped", "id", req.ID, "status", status)
			}
		default:
			req.Retries++
			if req.Retries >= q.maxRetries {
				q.store.Remove(key)
				if q.logger != nil {
					q.logger.Delivery().Error("Delivery abandoned after retry cap",
						"id", req.ID, "retries", req.Retries, "url", req.URL)
				}
				continue
			}
			req.NextAttempt = time.Now().UTC().Add(q.backoffDelay(req.Retries))
			kv.SetJSON(q.store, key, req)
		}
	}
}

// NotifyOnline triggers a flush pass in response to a connectivity
// restored signal.
func (q *Queue) NotifyOnline(ctx context.Context) {
	if q.logger != nil {
		q.logger.Delivery().Info("Online signal received, flushing queue", "pending", q.Pending())
	}
	q.Flush(ctx)
}

// Run flushes on an interval until the context is cancelled.
func (q *Queue) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.Flush(ctx)
		}
	}
}

// Pending returns the number of persisted queue entries.
func (q *Queue) Pending() int {
	return len(q.store.Keys(queuePrefix))
}

// PendingRequests returns a snapshot of queued entries for diagnostics.
func (q *Queue) PendingRequests() []Request {
	keys := q.store.Keys(queuePrefix)
	out := make([]Request, 0, len(keys))
	for _, key := range keys {
		if req, ok := kv.GetJSON[Request](q.store, key); ok {
			out = append(out, req)
		}
	}
	return out
}

// backoffDelay returns the delay for a retry count, clamped to the last
// table entry.
func (q *Queue) backoffDelay(retries int) time.Duration {
	if len(q.backoff) == 0 {
		return time.Second
	}
	if retries >= len(q.backoff) {
		return q.backoff[len(q.backoff)-1]
	}
	return q.backoff[retries]
}

func (q *Queue) attempt(ctx context.Context, req *Request) (int, error) {
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		// A malformed request can never succeed; report as a permanent
		// client failure.
		return http.StatusBadRequest, nil
	}

	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := q.client.Do(httpReq)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	return resp.StatusCode, nil
}
