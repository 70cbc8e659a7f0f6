package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/convertrack/convertrack-go/internal/domain/entities/funnel"
	"github.com/convertrack/convertrack-go/internal/domain/events"
	"github.com/convertrack/convertrack-go/internal/infrastructure/observability/logging"
	"github.com/convertrack/convertrack-go/internal/infrastructure/persistence/kv"
	"github.com/convertrack/convertrack-go/internal/infrastructure/profile"
)

const funnelStatsPrefix = "stats:funnel:"

// FunnelService tracks session-scoped funnel progress and aggregates
// conversion statistics across sessions. Definitions live on the
// service instance, not in package state, so engines stay independent.
type FunnelService struct {
	root   kv.Store
	logger *logging.ChanneledLogger

	mu          sync.RWMutex
	definitions map[string]*funnel.Definition
}

// NewFunnelService creates a funnel service over the shared store.
func NewFunnelService(root kv.Store, logger *logging.ChanneledLogger) *FunnelService {
	return &FunnelService{
		root:        root,
		logger:      logger,
		definitions: make(map[string]*funnel.Definition),
	}
}

// CreateFunnel registers an ordered step list under an ID. Redefining
// an existing funnel replaces its steps.
func (s *FunnelService) CreateFunnel(id string, steps []string) error {
	if id == "" {
		return fmt.Errorf("funnel id is required")
	}
	if len(steps) == 0 {
		return fmt.Errorf("funnel %s requires at least one step", id)
	}
	seen := make(map[string]bool, len(steps))
	for _, step := range steps {
		if step == "" {
			return fmt.Errorf("funnel %s has an empty step name", id)
		}
		if seen[step] {
			return fmt.Errorf("funnel %s has duplicate step %q", id, step)
		}
		seen[step] = true
	}

	s.mu.Lock()
	s.definitions[id] = &funnel.Definition{ID: id, Steps: steps}
	s.mu.Unlock()

	if s.logger != nil {
		s.logger.Analytics().Info("Funnel created", "funnelId", id, "steps", len(steps))
	}
	return nil
}

// HandleEvent is a dispatch listener that advances funnels whose step
// names match the event name. Ordering violations surface as debug
// noise, not errors, since most events belong to no funnel.
func (s *FunnelService) HandleEvent(profileCtx *profile.Context, ev events.Envelope) {
	s.mu.RLock()
	var matched []string
	for id, def := range s.definitions {
		if def.StepIndex(ev.Event) >= 0 {
			matched = append(matched, id)
		}
	}
	s.mu.RUnlock()

	for _, id := range matched {
		if err := s.RecordStep(profileCtx, ev.SessionID, id, ev.Event); err != nil {
			if s.logger != nil {
				s.logger.Analytics().Debug("Funnel step not recorded",
					"funnelId", id, "step", ev.Event, "reason", err.Error())
			}
		}
	}
}

// Definition returns a registered funnel definition.
func (s *FunnelService) Definition(id string) (*funnel.Definition, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	def, ok := s.definitions[id]
	return def, ok
}

// RecordStep advances a session through a funnel. Unknown steps and
// already-completed steps are rejected. Reaching the final step marks
// the funnel completed and folds timing into the aggregate stats.
func (s *FunnelService) RecordStep(profileCtx *profile.Context, sessionID, funnelID, step string) error {
	def, ok := s.Definition(funnelID)
	if !ok {
		return fmt.Errorf("unknown funnel: %s", funnelID)
	}

	index := def.StepIndex(step)
	if index < 0 {
		return fmt.Errorf("unknown step %q in funnel %s", step, funnelID)
	}

	now := time.Now().UTC()
	progressKey := "funnel:" + funnelID

	progress, exists := kv.GetJSON[funnel.Progress](profileCtx.Store, progressKey)

	// Progress left over from a different session belongs to an expired
	// session: fold it into the aggregate as abandoned and discard.
	if exists && progress.SessionID != sessionID {
		if !progress.Completed {
			s.foldAbandon(funnelID, progress.LastCompletedStep())
		}
		exists = false
	}

	if !exists {
		progress = funnel.Progress{
			FunnelID:  funnelID,
			SessionID: sessionID,
			StartedAt: now,
		}
		s.bumpTotal(funnelID)
	}

	if progress.Completed {
		return fmt.Errorf("funnel %s already completed for this session", funnelID)
	}
	if progress.HasCompleted(step) {
		return fmt.Errorf("step %q already recorded in funnel %s", step, funnelID)
	}

	progress.CompletedSteps = append(progress.CompletedSteps, step)
	if index+1 > progress.CurrentStep {
		progress.CurrentStep = index + 1
	}
	progress.LastActivityAt = now

	if index == len(def.Steps)-1 {
		progress.Completed = true
		s.foldCompletion(funnelID, now.Sub(progress.StartedAt))
		if s.logger != nil {
			s.logger.Analytics().Info("Funnel completed",
				"funnelId", funnelID,
				"sessionId", sessionID,
				"duration", now.Sub(progress.StartedAt),
			)
		}
	}

	kv.SetJSON(profileCtx.Store, progressKey, progress)
	return nil
}

// Progress returns the stored progress for a funnel, if any.
func (s *FunnelService) Progress(profileCtx *profile.Context, funnelID string) (funnel.Progress, bool) {
	return kv.GetJSON[funnel.Progress](profileCtx.Store, "funnel:"+funnelID)
}

// Stats returns the aggregate statistics for a funnel.
func (s *FunnelService) Stats(funnelID string) funnel.Stats {
	stats, ok := kv.GetJSON[funnel.Stats](s.root, funnelStatsPrefix+funnelID)
	if !ok {
		stats = funnel.Stats{FunnelID: funnelID, StepDropoffs: make(map[string]int)}
	}
	return stats
}

func (s *FunnelService) bumpTotal(funnelID string) {
	stats := s.Stats(funnelID)
	stats.TotalSessions++
	kv.SetJSON(s.root, funnelStatsPrefix+funnelID, stats)
}

func (s *FunnelService) foldCompletion(funnelID string, duration time.Duration) {
	stats := s.Stats(funnelID)
	stats.RecordCompletion(duration)
	kv.SetJSON(s.root, funnelStatsPrefix+funnelID, stats)
}

func (s *FunnelService) foldAbandon(funnelID, lastStep string) {
	stats := s.Stats(funnelID)
	stats.RecordAbandon(lastStep)
	kv.SetJSON(s.root, funnelStatsPrefix+funnelID, stats)
}
