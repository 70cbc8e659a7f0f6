package handlers

import (
	"net/http"

	"github.com/convertrack/convertrack-go/internal/application/services"
	"github.com/convertrack/convertrack-go/internal/infrastructure/observability/logging"
	"github.com/convertrack/convertrack-go/internal/infrastructure/profile"
	"github.com/convertrack/convertrack-go/internal/presentation/http/middleware"
	"github.com/gin-gonic/gin"
)

// CrossDomainHandlers contains linked-domain propagation HTTP handlers
type CrossDomainHandlers struct {
	crossDomainService *services.CrossDomainService
	profiles           *profile.Manager
	logger             *logging.ChanneledLogger
}

// DecorateRequest asks for an outbound URL carrying tracking state.
type DecorateRequest struct {
	Page      PageRequest `json:"page" binding:"required"`
	TargetURL string      `json:"targetUrl" binding:"required"`
}

// NewCrossDomainHandlers creates cross-domain handlers with injected dependencies
func NewCrossDomainHandlers(crossDomainService *services.CrossDomainService, profiles *profile.Manager, logger *logging.ChanneledLogger) *CrossDomainHandlers {
	return &CrossDomainHandlers{
		crossDomainService: crossDomainService,
		profiles:           profiles,
		logger:             logger,
	}
}

// PostDecorate handles POST /crossdomain/decorate
func (h *CrossDomainHandlers) PostDecorate(c *gin.Context) {
	var req DecorateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	profileCtx := h.profiles.Context(middleware.GetProfileID(c), req.Page.context())
	c.Header("X-Profile-ID", profileCtx.ProfileID)

	decorated := h.crossDomainService.DecorateURL(profileCtx, req.TargetURL)
	c.JSON(http.StatusOK, gin.H{
		"url":       decorated,
		"decorated": decorated != req.TargetURL,
	})
}

// PostApply handles POST /crossdomain/apply
func (h *CrossDomainHandlers) PostApply(c *gin.Context) {
	var req PageViewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	profileCtx := h.profiles.Context(middleware.GetProfileID(c), req.Page.context())
	c.Header("X-Profile-ID", profileCtx.ProfileID)

	c.JSON(http.StatusOK, h.crossDomainService.ApplyInbound(profileCtx))
}
