package handlers

import (
	"net/http"
	"strconv"

	"github.com/convertrack/convertrack-go/internal/application/services"
	"github.com/convertrack/convertrack-go/internal/infrastructure/delivery"
	"github.com/convertrack/convertrack-go/internal/infrastructure/messaging"
	"github.com/convertrack/convertrack-go/internal/infrastructure/observability/logging"
	"github.com/convertrack/convertrack-go/internal/infrastructure/profile"
	"github.com/convertrack/convertrack-go/internal/presentation/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// DebugHandlers contains inspection and diagnostics HTTP handlers
type DebugHandlers struct {
	debugService *services.DebugService
	queue        *delivery.Queue
	broadcaster  *messaging.EventBroadcaster
	profiles     *profile.Manager
	logger       *logging.ChanneledLogger
}

// NewDebugHandlers creates debug handlers with injected dependencies
func NewDebugHandlers(debugService *services.DebugService, queue *delivery.Queue, broadcaster *messaging.EventBroadcaster, profiles *profile.Manager, logger *logging.ChanneledLogger) *DebugHandlers {
	return &DebugHandlers{
		debugService: debugService,
		queue:        queue,
		broadcaster:  broadcaster,
		profiles:     profiles,
		logger:       logger,
	}
}

// GetState handles GET /debug/state
func (h *DebugHandlers) GetState(c *gin.Context) {
	profileCtx := h.profiles.Context(middleware.GetProfileID(c), pageFromQuery(c))

	recent := 10
	if n, err := strconv.Atoi(c.Query("events")); err == nil && n > 0 {
		recent = n
	}

	c.JSON(http.StatusOK, h.debugService.Snapshot(profileCtx, recent))
}

// GetEvents handles GET /debug/events
func (h *DebugHandlers) GetEvents(c *gin.Context) {
	n := 50
	if q, err := strconv.Atoi(c.Query("limit")); err == nil && q > 0 {
		n = q
	}
	c.JSON(http.StatusOK, h.debugService.RecentEvents(n))
}

// GetQueue handles GET /debug/queue
func (h *DebugHandlers) GetQueue(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"pending":  h.queue.Pending(),
		"requests": h.debugService.PendingDeliveries(),
	})
}

// PostOnline handles POST /debug/online, signalling connectivity has
// returned and queued deliveries should flush now.
func (h *DebugHandlers) PostOnline(c *gin.Context) {
	h.queue.NotifyOnline(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"flushed": true, "pending": h.queue.Pending()})
}

// StreamEvents handles GET /debug/stream, upgrading to a websocket that
// mirrors the data layer.
func (h *DebugHandlers) StreamEvents(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.logger != nil {
			h.logger.Debug().Error("Websocket upgrade failed", "error", err.Error())
		}
		return
	}

	client := &messaging.DebugClient{
		Conn: conn,
		Send: make(chan []byte, 32),
	}
	h.broadcaster.Register(client)

	go h.broadcaster.WritePump(client)

	// Read loop exists only to observe close frames.
	go func() {
		defer h.broadcaster.Unregister(client)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
