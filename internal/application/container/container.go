// Package container provides dependency injection for all singleton services
package container

import (
	"context"
	"net/http"

	"github.com/convertrack/convertrack-go/internal/application/services"
	"github.com/convertrack/convertrack-go/internal/domain/entities/engagement"
	"github.com/convertrack/convertrack-go/internal/domain/events"
	"github.com/convertrack/convertrack-go/internal/infrastructure/consent"
	"github.com/convertrack/convertrack-go/internal/infrastructure/crossdomain"
	"github.com/convertrack/convertrack-go/internal/infrastructure/datalayer"
	"github.com/convertrack/convertrack-go/internal/infrastructure/delivery"
	"github.com/convertrack/convertrack-go/internal/infrastructure/messaging"
	"github.com/convertrack/convertrack-go/internal/infrastructure/observability/logging"
	"github.com/convertrack/convertrack-go/internal/infrastructure/persistence/kv"
	"github.com/convertrack/convertrack-go/internal/infrastructure/plugins"
	"github.com/convertrack/convertrack-go/internal/infrastructure/profile"
	"github.com/convertrack/convertrack-go/pkg/config"
)

// Container holds all singleton services and infrastructure dependencies
type Container struct {
	// Pipeline services (stateless singletons over the profile store)
	SessionService     *services.SessionService
	AttributionService *services.AttributionService
	EventService       *services.EventService
	EngagementService  *services.EngagementService
	FunnelService      *services.FunnelService
	IdentityService    *services.IdentityService
	TrackingService    *services.TrackingService
	CrossDomainService *services.CrossDomainService
	DebugService       *services.DebugService

	// Infrastructure dependencies
	Logger         *logging.ChanneledLogger
	Store          kv.Store
	ProfileManager *profile.Manager
	ConsentGate    *consent.Gate
	DataLayer      *datalayer.DataLayer
	PluginRegistry *plugins.Registry
	DeliveryQueue  *delivery.Queue
	Broadcaster    *messaging.EventBroadcaster
}

// NewContainer creates and wires all singleton services
func NewContainer(store kv.Store, logger *logging.ChanneledLogger) *Container {
	gate := consent.NewGate(nil, config.DevMode, logger)
	dataLayer := datalayer.New(config.DebugEventBufferSize, logger)
	registry := plugins.NewRegistry(logger)
	profileManager := profile.NewManager(store, logger)

	queue := delivery.NewQueue(store, logger,
		delivery.WithClient(&http.Client{Timeout: config.DeliveryTimeout}),
		delivery.WithMaxRetries(config.QueueMaxRetries),
	)

	codec := crossdomain.NewCodec(config.CrossDomainKey, config.CrossDomainTTL, config.CrossDomainParam, config.LinkedDomains)

	sessionService := services.NewSessionService(config.SessionTimeout, logger)
	attributionService := services.NewAttributionService(gate, logger)
	eventService := services.NewEventService(dataLayer, registry, gate, attributionService, config.TrackingVersion, config.DevMode, logger)
	engagementService := services.NewEngagementService(logger)
	funnelService := services.NewFunnelService(store, logger)
	identityService := services.NewIdentityService(logger)

	if config.PixelEndpoint != "" {
		eventService.AddSink(delivery.NewHTTPSink("pixel", config.PixelEndpoint, queue))
	}
	if config.CAPIEndpoint != "" {
		eventService.AddSink(delivery.NewHTTPSink("capi", config.CAPIEndpoint, queue))
	}

	trackingService := services.NewTrackingService(
		sessionService, attributionService, eventService,
		engagementService, identityService, gate, registry, logger,
	)
	crossDomainService := services.NewCrossDomainService(codec, sessionService, attributionService, logger)
	debugService := services.NewDebugService(
		dataLayer, queue, sessionService, attributionService,
		engagementService, identityService, gate, registry, config.TrackingVersion,
	)

	// Segment changes re-enter the pipeline as audience_updated events.
	engagementService.SetAudienceNotifier(func(profileCtx *profile.Context, segment engagement.Segment, score int) {
		sess, _ := sessionService.CurrentSession(profileCtx)
		eventService.Dispatch(context.Background(), profileCtx, sess.ID, events.EventAudienceUpdated, map[string]any{
			"segment": string(segment),
			"score":   score,
		})
	})

	// Engagement signals feed off the dispatch stream.
	eventService.SubscribeDispatch(engagementService.HandleEvent)
	eventService.SubscribeDispatch(funnelService.HandleEvent)

	// Debug stream mirrors the data layer.
	broadcaster := messaging.NewEventBroadcaster(logger)
	dataLayer.Subscribe(broadcaster.Consume)

	return &Container{
		SessionService:     sessionService,
		AttributionService: attributionService,
		EventService:       eventService,
		EngagementService:  engagementService,
		FunnelService:      funnelService,
		IdentityService:    identityService,
		TrackingService:    trackingService,
		CrossDomainService: crossDomainService,
		DebugService:       debugService,

		Logger:         logger,
		Store:          store,
		ProfileManager: profileManager,
		ConsentGate:    gate,
		DataLayer:      dataLayer,
		PluginRegistry: registry,
		DeliveryQueue:  queue,
		Broadcaster:    broadcaster,
	}
}
