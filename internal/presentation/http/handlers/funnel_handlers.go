package handlers

import (
	"net/http"

	"github.com/convertrack/convertrack-go/internal/application/services"
	"github.com/convertrack/convertrack-go/internal/infrastructure/observability/logging"
	"github.com/convertrack/convertrack-go/internal/infrastructure/profile"
	"github.com/convertrack/convertrack-go/internal/presentation/http/middleware"
	"github.com/gin-gonic/gin"
)

// FunnelHandlers contains funnel definition and progress HTTP handlers
type FunnelHandlers struct {
	funnelService  *services.FunnelService
	sessionService *services.SessionService
	profiles       *profile.Manager
	logger         *logging.ChanneledLogger
}

// CreateFunnelRequest defines a funnel and its ordered steps.
type CreateFunnelRequest struct {
	ID    string   `json:"id" binding:"required"`
	Steps []string `json:"steps" binding:"required"`
}

// FunnelStepRequest advances the caller's session through a funnel.
type FunnelStepRequest struct {
	Page PageRequest `json:"page" binding:"required"`
	Step string      `json:"step" binding:"required"`
}

// NewFunnelHandlers creates funnel handlers with injected dependencies
func NewFunnelHandlers(funnelService *services.FunnelService, sessionService *services.SessionService, profiles *profile.Manager, logger *logging.ChanneledLogger) *FunnelHandlers {
	return &FunnelHandlers{
		funnelService:  funnelService,
		sessionService: sessionService,
		profiles:       profiles,
		logger:         logger,
	}
}

// PostFunnel handles POST /funnels
func (h *FunnelHandlers) PostFunnel(c *gin.Context) {
	var req CreateFunnelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	if err := h.funnelService.CreateFunnel(req.ID, req.Steps); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "funnelId": req.ID})
}

// PostFunnelStep handles POST /funnels/:id/step
func (h *FunnelHandlers) PostFunnelStep(c *gin.Context) {
	var req FunnelStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	profileCtx := h.profiles.Context(middleware.GetProfileID(c), req.Page.context())
	c.Header("X-Profile-ID", profileCtx.ProfileID)

	info := h.sessionService.GetOrCreateSession(profileCtx)
	if err := h.funnelService.RecordStep(profileCtx, info.SessionID, c.Param("id"), req.Step); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	progress, _ := h.funnelService.Progress(profileCtx, c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"success": true, "progress": progress})
}

// GetFunnelProgress handles GET /funnels/:id/progress
func (h *FunnelHandlers) GetFunnelProgress(c *gin.Context) {
	profileCtx := h.profiles.Context(middleware.GetProfileID(c), pageFromQuery(c))
	progress, ok := h.funnelService.Progress(profileCtx, c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no progress for funnel"})
		return
	}
	c.JSON(http.StatusOK, progress)
}

// GetFunnelStats handles GET /funnels/:id/stats
func (h *FunnelHandlers) GetFunnelStats(c *gin.Context) {
	if _, ok := h.funnelService.Definition(c.Param("id")); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown funnel"})
		return
	}
	c.JSON(http.StatusOK, h.funnelService.Stats(c.Param("id")))
}
