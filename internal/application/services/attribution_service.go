package services

import (
	"net/url"
	"strings"
	"time"

	"github.com/convertrack/convertrack-go/internal/domain/entities/attribution"
	"github.com/convertrack/convertrack-go/internal/infrastructure/consent"
	"github.com/convertrack/convertrack-go/internal/infrastructure/observability/logging"
	"github.com/convertrack/convertrack-go/internal/infrastructure/persistence/kv"
	"github.com/convertrack/convertrack-go/internal/infrastructure/profile"
)

const (
	keyFirstTouch = "attribution:first"
	keyLastTouch  = "attribution:last"
)

// AttributionService captures and persists first/last-touch marketing
// parameters. Capture is a marketing-gated side effect: consent is
// re-checked at the moment of capture.
type AttributionService struct {
	gate   *consent.Gate
	logger *logging.ChanneledLogger
}

// NewAttributionService creates a new attribution service.
func NewAttributionService(gate *consent.Gate, logger *logging.ChanneledLogger) *AttributionService {
	return &AttributionService{gate: gate, logger: logger}
}

// CaptureAttributionParams reads tracked query parameters and the
// external referrer from the page context. Returns false when nothing
// capturable was present or marketing consent is denied.
func (s *AttributionService) CaptureAttributionParams(profileCtx *profile.Context) bool {
	if !s.gate.Allows(profileCtx.ProfileID, consent.CategoryMarketing) {
		if s.logger != nil {
			s.logger.Attribution().Debug("Capture skipped, marketing consent denied",
				"profileId", profileCtx.ProfileID)
		}
		return false
	}

	snapshot := s.buildSnapshot(profileCtx)
	if snapshot.IsEmpty() {
		return false
	}

	// First touch is write-once per profile.
	if _, exists := kv.GetJSON[attribution.Snapshot](profileCtx.Store, keyFirstTouch); !exists {
		kv.SetJSON(profileCtx.Store, keyFirstTouch, snapshot)
		if s.logger != nil {
			s.logger.Attribution().Info("First touch captured",
				"profileId", profileCtx.ProfileID,
				"source", snapshot.UTMSource,
				"medium", snapshot.UTMMedium,
				"referrer", snapshot.Referrer,
			)
		}
	}

	// Last touch only moves when actual parameters were observed; a
	// bare referrer seeds first touch but does not overwrite last.
	if snapshot.HasParams() {
		kv.SetJSON(profileCtx.Store, keyLastTouch, snapshot)
	}

	return true
}

func (s *AttributionService) buildSnapshot(profileCtx *profile.Context) attribution.Snapshot {
	snapshot := attribution.Snapshot{
		Timestamp:   time.Now().UTC(),
		LandingPage: profileCtx.Page.Path,
	}

	if parsed, err := url.Parse(profileCtx.Page.URL); err == nil {
		if snapshot.LandingPage == "" {
			snapshot.LandingPage = parsed.Path
		}
		query := parsed.Query()
		snapshot.UTMSource = query.Get("utm_source")
		snapshot.UTMMedium = query.Get("utm_medium")
		snapshot.UTMCampaign = query.Get("utm_campaign")
		snapshot.UTMTerm = query.Get("utm_term")
		snapshot.UTMContent = query.Get("utm_content")
		snapshot.ClickIDs = attribution.ClickIDs{
			Gclid:  query.Get("gclid"),
			Gbraid: query.Get("gbraid"),
			Wbraid: query.Get("wbraid"),
			Fbclid: query.Get("fbclid"),
		}

		// Same-origin referrers carry no attribution signal.
		if ref := profileCtx.Page.Referrer; ref != "" {
			if refURL, refErr := url.Parse(ref); refErr == nil && refURL.Host != "" &&
				!strings.EqualFold(refURL.Host, parsed.Host) {
				snapshot.Referrer = ref
			}
		}
	}

	return snapshot
}

// GetFirstTouch returns the write-once first-touch snapshot.
func (s *AttributionService) GetFirstTouch(profileCtx *profile.Context) (attribution.Snapshot, bool) {
	return kv.GetJSON[attribution.Snapshot](profileCtx.Store, keyFirstTouch)
}

// GetLastTouch returns the most recent snapshot, falling back to first
// touch when no parameter-bearing visit has occurred since.
func (s *AttributionService) GetLastTouch(profileCtx *profile.Context) (attribution.Snapshot, bool) {
	if last, ok := kv.GetJSON[attribution.Snapshot](profileCtx.Store, keyLastTouch); ok {
		return last, true
	}
	return s.GetFirstTouch(profileCtx)
}

// GetGclid resolves the Google click ID: explicit URL override first,
// then last touch, then first touch.
func (s *AttributionService) GetGclid(profileCtx *profile.Context) string {
	if v := s.urlOverride(profileCtx, "gclid"); v != "" {
		return v
	}
	if last, ok := s.GetLastTouch(profileCtx); ok && last.ClickIDs.Gclid != "" {
		return last.ClickIDs.Gclid
	}
	if first, ok := s.GetFirstTouch(profileCtx); ok {
		return first.ClickIDs.Gclid
	}
	return ""
}

// GetFbclid resolves the Facebook click ID with the same priority order.
func (s *AttributionService) GetFbclid(profileCtx *profile.Context) string {
	if v := s.urlOverride(profileCtx, "fbclid"); v != "" {
		return v
	}
	if last, ok := s.GetLastTouch(profileCtx); ok && last.ClickIDs.Fbclid != "" {
		return last.ClickIDs.Fbclid
	}
	if first, ok := s.GetFirstTouch(profileCtx); ok {
		return first.ClickIDs.Fbclid
	}
	return ""
}

// SeedFirstTouch installs a propagated first-touch snapshot only when
// none exists locally. Consent is re-checked at write time, same as a
// direct capture.
func (s *AttributionService) SeedFirstTouch(profileCtx *profile.Context, snapshot attribution.Snapshot) bool {
	if !s.gate.Allows(profileCtx.ProfileID, consent.CategoryMarketing) {
		if s.logger != nil {
			s.logger.Attribution().Debug("First-touch seed skipped, marketing consent denied",
				"profileId", profileCtx.ProfileID)
		}
		return false
	}
	if _, exists := kv.GetJSON[attribution.Snapshot](profileCtx.Store, keyFirstTouch); exists {
		return false
	}
	return kv.SetJSON(profileCtx.Store, keyFirstTouch, snapshot)
}

// OverwriteLastTouch installs a propagated last-touch snapshot, subject
// to the same write-time consent check.
func (s *AttributionService) OverwriteLastTouch(profileCtx *profile.Context, snapshot attribution.Snapshot) bool {
	if !s.gate.Allows(profileCtx.ProfileID, consent.CategoryMarketing) {
		return false
	}
	return kv.SetJSON(profileCtx.Store, keyLastTouch, snapshot)
}

func (s *AttributionService) urlOverride(profileCtx *profile.Context, param string) string {
	parsed, err := url.Parse(profileCtx.Page.URL)
	if err != nil {
		return ""
	}
	return parsed.Query().Get(param)
}
