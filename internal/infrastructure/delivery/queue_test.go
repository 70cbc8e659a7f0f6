package delivery_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convertrack/convertrack-go/internal/domain/events"
	"github.com/convertrack/convertrack-go/internal/infrastructure/delivery"
	"github.com/convertrack/convertrack-go/internal/infrastructure/persistence/kv"
)

// fastBackoff keeps retries immediately due so Flush picks them up.
var fastBackoff = []time.Duration{-time.Second}

func TestQueue_DeliverSuccess(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	store := kv.NewMemoryStore()
	q := delivery.NewQueue(store, nil)

	outcome := q.Deliver(context.Background(), delivery.Request{URL: server.URL})
	assert.Equal(t, delivery.OutcomeDelivered, outcome)
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, 0, q.Pending())
}

func TestQueue_ClientErrorDropsWithoutRetry(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	store := kv.NewMemoryStore()
	q := delivery.NewQueue(store, nil)

	outcome := q.Deliver(context.Background(), delivery.Request{URL: server.URL})
	assert.Equal(t, delivery.OutcomeDropped, outcome)
	assert.Equal(t, 0, q.Pending(), "4xx must not be queued")
	assert.Equal(t, int32(1), hits.Load())
}

func TestQueue_ServerErrorQueuesThenSucceeds(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Fail the first three attempts, then accept.
		if hits.Add(1) <= 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	store := kv.NewMemoryStore()
	q := delivery.NewQueue(store, nil, delivery.WithBackoff(fastBackoff))

	outcome := q.Deliver(context.Background(), delivery.Request{URL: server.URL})
	require.Equal(t, delivery.OutcomeQueued, outcome)
	require.Equal(t, 1, q.Pending())

	// Two more failing flushes, then the succeeding one.
	q.Flush(context.Background())
	assert.Equal(t, 1, q.Pending())
	q.Flush(context.Background())
	assert.Equal(t, 1, q.Pending())
	q.Flush(context.Background())

	assert.Equal(t, 0, q.Pending())
	assert.Equal(t, int32(4), hits.Load())
}

func TestQueue_RetryCapAbandons(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	store := kv.NewMemoryStore()
	q := delivery.NewQueue(store, nil, delivery.WithBackoff(fastBackoff), delivery.WithMaxRetries(3))

	require.Equal(t, delivery.OutcomeQueued, q.Deliver(context.Background(), delivery.Request{URL: server.URL}))

	for i := 0; i < 10; i++ {
		q.Flush(context.Background())
	}

	assert.Equal(t, 0, q.Pending(), "entry removed after exceeding retry cap")
}

func TestQueue_BackoffEscalates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	store := kv.NewMemoryStore()
	q := delivery.NewQueue(store, nil)

	before := time.Now().UTC()
	require.Equal(t, delivery.OutcomeQueued, q.Deliver(context.Background(), delivery.Request{URL: server.URL}))

	reqs := q.PendingRequests()
	require.Len(t, reqs, 1)

	// First retry is scheduled one second out (the first table entry).
	delay := reqs[0].NextAttempt.Sub(before)
	assert.GreaterOrEqual(t, delay, 900*time.Millisecond)
	assert.LessOrEqual(t, delay, 2*time.Second)
}

func TestQueue_NotDueEntriesAreSkipped(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	store := kv.NewMemoryStore()
	q := delivery.NewQueue(store, nil) // default backoff, first retry due in 1s

	require.Equal(t, delivery.OutcomeQueued, q.Deliver(context.Background(), delivery.Request{URL: server.URL}))
	require.Equal(t, int32(1), hits.Load())

	q.Flush(context.Background())
	assert.Equal(t, int32(1), hits.Load(), "entry not yet due must not be attempted")
	assert.Equal(t, 1, q.Pending())
}

func TestQueue_NotifyOnlineFlushes(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	store := kv.NewMemoryStore()
	q := delivery.NewQueue(store, nil, delivery.WithBackoff(fastBackoff))

	require.Equal(t, delivery.OutcomeQueued, q.Deliver(context.Background(), delivery.Request{URL: server.URL}))

	q.NotifyOnline(context.Background())
	assert.Equal(t, 0, q.Pending())
	assert.Equal(t, int32(2), hits.Load())
}

func TestQueue_SurvivesRestart(t *testing.T) {
	store := kv.NewMemoryStore()

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	q1 := delivery.NewQueue(store, nil, delivery.WithBackoff(fastBackoff))
	require.Equal(t, delivery.OutcomeQueued, q1.Deliver(context.Background(), delivery.Request{URL: failing.URL}))
	failing.Close()

	// A new queue over the same store sees the persisted entry.
	q2 := delivery.NewQueue(store, nil, delivery.WithBackoff(fastBackoff))
	assert.Equal(t, 1, q2.Pending())
}

func TestHTTPSink(t *testing.T) {
	t.Run("disabled when unconfigured", func(t *testing.T) {
		q := delivery.NewQueue(kv.NewMemoryStore(), nil)
		sink := delivery.NewHTTPSink("pixel", "", q)
		assert.False(t, sink.Enabled())
		assert.Equal(t, delivery.OutcomeDropped, sink.Send(context.Background(), events.Envelope{}, "ev-1"))
	})

	t.Run("posts envelope with event id", func(t *testing.T) {
		var gotBody []byte
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotBody, _ = io.ReadAll(r.Body)
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		q := delivery.NewQueue(kv.NewMemoryStore(), nil)
		sink := delivery.NewHTTPSink("pixel", server.URL, q)

		outcome := sink.Send(context.Background(), events.Envelope{Event: "quote_request"}, "ev-1")
		assert.Equal(t, delivery.OutcomeDelivered, outcome)
		assert.Contains(t, string(gotBody), `"event_id":"ev-1"`)
		assert.Contains(t, string(gotBody), `"quote_request"`)
	})
}
