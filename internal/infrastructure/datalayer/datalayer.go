// Package datalayer implements the append-only event sequence the tag
// manager drains. The core only pushes; reads exist for diagnostics.
package datalayer

import (
	"sync"

	"github.com/convertrack/convertrack-go/internal/domain/events"
	"github.com/convertrack/convertrack-go/internal/infrastructure/observability/logging"
)

// Consumer drains pushed events asynchronously (tag-manager side).
type Consumer func(events.Envelope)

// DataLayer is the ordered event sequence downstream tags consume.
type DataLayer struct {
	mu        sync.Mutex
	sequence  []events.Envelope
	consumers []Consumer
	maxKept   int
	logger    *logging.ChanneledLogger
}

// New creates a data layer keeping at most maxKept events for
// diagnostic reads.
func New(maxKept int, logger *logging.ChanneledLogger) *DataLayer {
	if maxKept <= 0 {
		maxKept = 50
	}
	return &DataLayer{maxKept: maxKept, logger: logger}
}

// Subscribe registers a consumer for every pushed event.
func (d *DataLayer) Subscribe(fn Consumer) {
	d.mu.Lock()
	d.consumers = append(d.consumers, fn)
	d.mu.Unlock()
}

// Push appends an event and notifies consumers. A panicking consumer is
// contained so it cannot break the push path.
func (d *DataLayer) Push(ev events.Envelope) {
	d.mu.Lock()
	d.sequence = append(d.sequence, ev)
	if len(d.sequence) > d.maxKept {
		d.sequence = d.sequence[len(d.sequence)-d.maxKept:]
	}
	consumers := make([]Consumer, len(d.consumers))
	copy(consumers, d.consumers)
	d.mu.Unlock()

	for _, fn := range consumers {
		d.safeNotify(fn, ev)
	}
}

func (d *DataLayer) safeNotify(fn Consumer, ev events.Envelope) {
	defer func() {
		if r := recover(); r != nil {
			if d.logger != nil {
				d.logger.Events().Error("Panic recovered in data layer consumer", "error", r, "event", ev.Event)
			}
		}
	}()
	fn(ev)
}

// Snapshot returns up to n most recent events, newest last.
func (d *DataLayer) Snapshot(n int) []events.Envelope {
	d.mu.Lock()
	defer d.mu.Unlock()

	if n <= 0 || n > len(d.sequence) {
		n = len(d.sequence)
	}
	out := make([]events.Envelope, n)
	copy(out, d.sequence[len(d.sequence)-n:])
	return out
}

// Len returns the number of retained events.
func (d *DataLayer) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sequence)
}
