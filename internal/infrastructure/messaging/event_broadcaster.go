// Package messaging fans tracking events out to connected debug clients.
package messaging

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/convertrack/convertrack-go/internal/domain/events"
	"github.com/convertrack/convertrack-go/internal/infrastructure/observability/logging"
	"github.com/gorilla/websocket"
)

// DebugClient represents a single connected debug stream client.
type DebugClient struct {
	Conn *websocket.Conn
	Send chan []byte
}

// EventBroadcaster manages connected debug clients and relays every
// data-layer event to them. Slow clients drop messages rather than
// stalling dispatch.
type EventBroadcaster struct {
	clients    map[*DebugClient]bool
	register   chan *DebugClient
	unregister chan *DebugClient
	events     chan []byte
	logger     *logging.ChanneledLogger
	mu         sync.RWMutex
}

// NewEventBroadcaster creates a new broadcaster instance.
func NewEventBroadcaster(logger *logging.ChanneledLogger) *EventBroadcaster {
	return &EventBroadcaster{
		clients:    make(map[*DebugClient]bool),
		register:   make(chan *DebugClient),
		unregister: make(chan *DebugClient),
		events:     make(chan []byte, 64),
		logger:     logger,
	}
}

// Run starts the broadcaster's main loop. This should be run as a goroutine.
func (b *EventBroadcaster) Run() {
	for {
		select {
		case client := <-b.register:
			b.mu.Lock()
			b.clients[client] = true
			b.mu.Unlock()
			if b.logger != nil {
				b.logger.Debug().Info("Debug stream client connected", "clients", b.clientCount())
			}

		case client := <-b.unregister:
			b.mu.Lock()
			if _, ok := b.clients[client]; ok {
				delete(b.clients, client)
				close(client.Send)
			}
			b.mu.Unlock()
			if b.logger != nil {
				b.logger.Debug().Info("Debug stream client disconnected", "clients", b.clientCount())
			}

		case message := <-b.events:
			b.mu.RLock()
			for client := range b.clients {
				select {
				case client.Send <- message:
				default:
				}
			}
			b.mu.RUnlock()
		}
	}
}

// Register queues a client for registration.
func (b *EventBroadcaster) Register(client *DebugClient) {
	b.register <- client
}

// Unregister queues a client for unregistration.
func (b *EventBroadcaster) Unregister(client *DebugClient) {
	b.unregister <- client
}

// Consume is a data-layer consumer; wire it with DataLayer.Subscribe.
func (b *EventBroadcaster) Consume(ev events.Envelope) {
	message, err := json.Marshal(ev)
	if err != nil {
		if b.logger != nil {
			b.logger.Debug().Error("Failed to marshal event for stream", "error", err.Error())
		}
		return
	}
	select {
	case b.events <- message:
	default:
	}
}

// WritePump drains a client's send channel onto its connection. Runs
// until the channel closes or a write fails.
func (b *EventBroadcaster) WritePump(client *DebugClient) {
	defer client.Conn.Close()
	for message := range client.Send {
		client.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := client.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			b.Unregister(client)
			return
		}
	}
}

func (b *EventBroadcaster) clientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}
