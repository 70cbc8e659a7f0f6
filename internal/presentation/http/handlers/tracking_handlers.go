// Package handlers provides HTTP request handlers for the presentation layer.
package handlers

import (
	"net/http"

	"github.com/convertrack/convertrack-go/internal/application/services"
	"github.com/convertrack/convertrack-go/internal/domain/events"
	"github.com/convertrack/convertrack-go/internal/infrastructure/observability/logging"
	"github.com/convertrack/convertrack-go/internal/infrastructure/profile"
	"github.com/convertrack/convertrack-go/internal/presentation/http/middleware"
	"github.com/gin-gonic/gin"
)

// TrackingHandlers contains the beacon endpoints the embed script calls.
type TrackingHandlers struct {
	trackingService    *services.TrackingService
	crossDomainService *services.CrossDomainService
	engagementService  *services.EngagementService
	profiles           *profile.Manager
	logger             *logging.ChanneledLogger
}

// PageRequest is the page context every beacon carries.
type PageRequest struct {
	URL           string `json:"url" binding:"required"`
	Path          string `json:"path,omitempty"`
	Referrer      string `json:"referrer,omitempty"`
	Title         string `json:"title,omitempty"`
	ViewportWidth int    `json:"viewportWidth,omitempty"`
}

func (p PageRequest) context() events.PageContext {
	return events.PageContext{
		URL:           p.URL,
		Path:          p.Path,
		Referrer:      p.Referrer,
		Title:         p.Title,
		ViewportWidth: p.ViewportWidth,
	}
}

// PageViewRequest is the payload for the pageview beacon.
type PageViewRequest struct {
	Page PageRequest `json:"page" binding:"required"`
}

// EventRequest is the payload for the generic event beacon.
type EventRequest struct {
	Page   PageRequest    `json:"page" binding:"required"`
	Event  string         `json:"event" binding:"required"`
	Params map[string]any `json:"params,omitempty"`
}

// ConversionRequest is the payload for the conversion beacon.
type ConversionRequest struct {
	Page           PageRequest    `json:"page" binding:"required"`
	ConversionType string         `json:"conversionType" binding:"required"`
	Params         map[string]any `json:"params,omitempty"`
}

// EngagementRequest is the payload for the periodic engagement beacon.
type EngagementRequest struct {
	Page        PageRequest `json:"page" binding:"required"`
	TimeOnSite  int         `json:"timeOnSite,omitempty"`
	ScrollDepth int         `json:"scrollDepth,omitempty"`
}

// NewTrackingHandlers creates tracking handlers with injected dependencies
func NewTrackingHandlers(
	trackingService *services.TrackingService,
	crossDomainService *services.CrossDomainService,
	engagementService *services.EngagementService,
	profiles *profile.Manager,
	logger *logging.ChanneledLogger,
) *TrackingHandlers {
	return &TrackingHandlers{
		trackingService:    trackingService,
		crossDomainService: crossDomainService,
		engagementService:  engagementService,
		profiles:           profiles,
		logger:             logger,
	}
}

// resolve builds the per-request profile context and echoes the profile
// ID so first-time callers can persist it.
func (h *TrackingHandlers) resolve(c *gin.Context, page events.PageContext) *profile.Context {
	profileCtx := h.profiles.Context(middleware.GetProfileID(c), page)
	c.Header("X-Profile-ID", profileCtx.ProfileID)
	return profileCtx
}

// PostPageView handles POST /track/pageview
func (h *TrackingHandlers) PostPageView(c *gin.Context) {
	var req PageViewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	profileCtx := h.resolve(c, req.Page.context())

	// Inbound cross-domain state applies before session issue and
	// attribution capture so the carried session can be adopted.
	applied := h.crossDomainService.ApplyInbound(profileCtx)
	result := h.trackingService.TrackPageView(c.Request.Context(), profileCtx)

	c.JSON(http.StatusOK, gin.H{
		"profileId":   profileCtx.ProfileID,
		"pageView":    result,
		"crossDomain": applied,
	})
}

// PostEvent handles POST /track/event
func (h *TrackingHandlers) PostEvent(c *gin.Context) {
	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	profileCtx := h.resolve(c, req.Page.context())
	envelope, ok := h.trackingService.TrackEvent(c.Request.Context(), profileCtx, req.Event, req.Params)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "event name is required"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"profileId": profileCtx.ProfileID,
		"event":     envelope.Event,
		"sessionId": envelope.SessionID,
	})
}

// PostConversion handles POST /track/conversion
func (h *TrackingHandlers) PostConversion(c *gin.Context) {
	var req ConversionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	profileCtx := h.resolve(c, req.Page.context())
	result := h.trackingService.TrackConversion(c.Request.Context(), profileCtx, req.ConversionType, req.Params)
	if !result.Success {
		c.JSON(http.StatusBadRequest, result)
		return
	}

	c.JSON(http.StatusOK, result)
}

// PostPhoneClick handles POST /track/phone-click
func (h *TrackingHandlers) PostPhoneClick(c *gin.Context) {
	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	profileCtx := h.resolve(c, req.Page.context())
	result := h.trackingService.TrackPhoneClick(c.Request.Context(), profileCtx, req.Params)

	c.JSON(http.StatusOK, result)
}

// PostEngagement handles POST /track/engagement
func (h *TrackingHandlers) PostEngagement(c *gin.Context) {
	var req EngagementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	profileCtx := h.resolve(c, req.Page.context())
	if req.TimeOnSite > 0 {
		h.engagementService.AddTimeOnSite(profileCtx, req.TimeOnSite)
	}
	if req.ScrollDepth > 0 {
		h.engagementService.RecordScrollDepth(profileCtx, req.ScrollDepth)
	}

	signals := h.engagementService.Signals(profileCtx)
	c.JSON(http.StatusOK, gin.H{
		"profileId": profileCtx.ProfileID,
		"segment":   signals.Segment(),
		"score":     signals.Score(),
	})
}

// GetAudience handles GET /track/audience
func (h *TrackingHandlers) GetAudience(c *gin.Context) {
	profileCtx := h.resolve(c, events.PageContext{})
	signals := h.engagementService.Signals(profileCtx)
	c.JSON(http.StatusOK, gin.H{
		"profileId": profileCtx.ProfileID,
		"segment":   signals.Segment(),
		"score":     signals.Score(),
	})
}
