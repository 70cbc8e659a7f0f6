// Package routes provides HTTP route configuration for the presentation layer.
package routes

import (
	"net/http"

	"github.com/convertrack/convertrack-go/internal/application/container"
	"github.com/convertrack/convertrack-go/internal/presentation/http/handlers"
	"github.com/convertrack/convertrack-go/internal/presentation/http/middleware"
	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all HTTP routes and middleware with dependency injection.
func SetupRoutes(appContainer *container.Container) *gin.Engine {
	r := gin.Default()

	r.Use(middleware.CORSMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Initialize handlers
	trackingHandlers := handlers.NewTrackingHandlers(
		appContainer.TrackingService,
		appContainer.CrossDomainService,
		appContainer.EngagementService,
		appContainer.ProfileManager,
		appContainer.Logger,
	)
	identityHandlers := handlers.NewIdentityHandlers(
		appContainer.TrackingService,
		appContainer.IdentityService,
		appContainer.ConsentGate,
		appContainer.ProfileManager,
		appContainer.Logger,
	)
	funnelHandlers := handlers.NewFunnelHandlers(
		appContainer.FunnelService,
		appContainer.SessionService,
		appContainer.ProfileManager,
		appContainer.Logger,
	)
	crossDomainHandlers := handlers.NewCrossDomainHandlers(
		appContainer.CrossDomainService,
		appContainer.ProfileManager,
		appContainer.Logger,
	)
	debugHandlers := handlers.NewDebugHandlers(
		appContainer.DebugService,
		appContainer.DeliveryQueue,
		appContainer.Broadcaster,
		appContainer.ProfileManager,
		appContainer.Logger,
	)

	// API routes with profile middleware
	api := r.Group("/api/v1")
	api.Use(middleware.ProfileMiddleware())
	{
		track := api.Group("/track")
		{
			track.POST("/pageview", trackingHandlers.PostPageView)
			track.POST("/event", trackingHandlers.PostEvent)
			track.POST("/conversion", trackingHandlers.PostConversion)
			track.POST("/phone-click", trackingHandlers.PostPhoneClick)
			track.POST("/engagement", trackingHandlers.PostEngagement)
			track.GET("/audience", trackingHandlers.GetAudience)
		}

		identity := api.Group("/identity")
		{
			identity.POST("/identify", identityHandlers.PostIdentify)
			identity.POST("/logout", identityHandlers.PostLogout)
			identity.GET("", identityHandlers.GetIdentity)
		}

		api.POST("/consent", identityHandlers.PostConsent)
		api.GET("/consent", identityHandlers.GetConsent)

		funnels := api.Group("/funnels")
		{
			funnels.POST("", funnelHandlers.PostFunnel)
			funnels.POST("/:id/step", funnelHandlers.PostFunnelStep)
			funnels.GET("/:id/progress", funnelHandlers.GetFunnelProgress)
			funnels.GET("/:id/stats", funnelHandlers.GetFunnelStats)
		}

		crossdomain := api.Group("/crossdomain")
		{
			crossdomain.POST("/decorate", crossDomainHandlers.PostDecorate)
			crossdomain.POST("/apply", crossDomainHandlers.PostApply)
		}

		debug := api.Group("/debug")
		{
			debug.GET("/state", debugHandlers.GetState)
			debug.GET("/events", debugHandlers.GetEvents)
			debug.GET("/queue", debugHandlers.GetQueue)
			debug.POST("/online", debugHandlers.PostOnline)
		}
	}

	// Websocket streaming is a special case and remains at top level
	r.GET("/debug/stream", debugHandlers.StreamEvents)

	return r
}
