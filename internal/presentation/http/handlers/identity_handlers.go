package handlers

import (
	"net/http"

	"github.com/convertrack/convertrack-go/internal/application/services"
	"github.com/convertrack/convertrack-go/internal/infrastructure/consent"
	"github.com/convertrack/convertrack-go/internal/infrastructure/observability/logging"
	"github.com/convertrack/convertrack-go/internal/infrastructure/profile"
	"github.com/convertrack/convertrack-go/internal/presentation/http/middleware"
	"github.com/gin-gonic/gin"
)

// IdentityHandlers contains identity and consent HTTP handlers
type IdentityHandlers struct {
	trackingService *services.TrackingService
	identityService *services.IdentityService
	gate            *consent.Gate
	profiles        *profile.Manager
	logger          *logging.ChanneledLogger
}

// IdentifyRequest is the payload for the identify endpoint.
type IdentifyRequest struct {
	Page      PageRequest `json:"page" binding:"required"`
	Email     string      `json:"email" binding:"required"`
	Phone     string      `json:"phone,omitempty"`
	FirstName string      `json:"firstName,omitempty"`
	LastName  string      `json:"lastName,omitempty"`
	UserID    string      `json:"userId,omitempty"`
}

// ConsentRequest is the host-reported consent state.
type ConsentRequest struct {
	Analytics  bool `json:"analytics"`
	Marketing  bool `json:"marketing"`
	Functional bool `json:"functional"`
	Necessary  bool `json:"necessary"`
}

// NewIdentityHandlers creates identity handlers with injected dependencies
func NewIdentityHandlers(
	trackingService *services.TrackingService,
	identityService *services.IdentityService,
	gate *consent.Gate,
	profiles *profile.Manager,
	logger *logging.ChanneledLogger,
) *IdentityHandlers {
	return &IdentityHandlers{
		trackingService: trackingService,
		identityService: identityService,
		gate:            gate,
		profiles:        profiles,
		logger:          logger,
	}
}

// PostIdentify handles POST /identity/identify
func (h *IdentityHandlers) PostIdentify(c *gin.Context) {
	var req IdentifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	profileCtx := h.profiles.Context(middleware.GetProfileID(c), req.Page.context())
	c.Header("X-Profile-ID", profileCtx.ProfileID)

	err := h.trackingService.IdentifyUser(c.Request.Context(), profileCtx, services.IdentifyParams{
		Email:     req.Email,
		Phone:     req.Phone,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		UserID:    req.UserID,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, _ := h.identityService.CurrentIdentity(profileCtx)
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"emailHash":    user.EmailHash,
		"sessionCount": len(user.Sessions),
	})
}

// PostLogout handles POST /identity/logout
func (h *IdentityHandlers) PostLogout(c *gin.Context) {
	var req PageViewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	profileCtx := h.profiles.Context(middleware.GetProfileID(c), req.Page.context())
	h.trackingService.ClearIdentity(c.Request.Context(), profileCtx)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetIdentity handles GET /identity
func (h *IdentityHandlers) GetIdentity(c *gin.Context) {
	profileCtx := h.profiles.Context(middleware.GetProfileID(c), pageFromQuery(c))
	user, ok := h.identityService.CurrentIdentity(profileCtx)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"identified": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"identified":   true,
		"emailHash":    user.EmailHash,
		"userId":       user.UserID,
		"sessionCount": len(user.Sessions),
		"identifiedAt": user.IdentifiedAt,
	})
}

// PostConsent handles POST /consent
func (h *IdentityHandlers) PostConsent(c *gin.Context) {
	var req ConsentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	profileCtx := h.profiles.Context(middleware.GetProfileID(c), pageFromQuery(c))
	c.Header("X-Profile-ID", profileCtx.ProfileID)

	h.trackingService.NotifyConsentChange(profileCtx, consent.State{
		Analytics:  req.Analytics,
		Marketing:  req.Marketing,
		Functional: req.Functional,
		Necessary:  req.Necessary,
	})
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetConsent handles GET /consent
func (h *IdentityHandlers) GetConsent(c *gin.Context) {
	profileID := middleware.GetProfileID(c)
	c.JSON(http.StatusOK, h.gate.Current(profileID))
}
