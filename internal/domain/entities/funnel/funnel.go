// Package funnel defines ordered-step funnel definitions, per-session
// progress, and aggregate conversion statistics.
package funnel

import "time"

// Definition is an ordered list of named steps for one funnel.
type Definition struct {
	ID    string   `json:"id"`
	Steps []string `json:"steps"`
}

// StepIndex returns the position of a step name, or -1 if unknown.
func (d *Definition) StepIndex(name string) int {
	for i, s := range d.Steps {
		if s == name {
			return i
		}
	}
	return -1
}

// Progress tracks one session's position within a funnel. Progress from
// an expired session is treated as abandoned and folded into Stats
// before being discarded.
type Progress struct {
	FunnelID       string    `json:"funnelId"`
	SessionID      string    `json:"sessionId"`
	CurrentStep    int       `json:"currentStep"`
	CompletedSteps []string  `json:"completedSteps"`
	StartedAt      time.Time `json:"startedAt"`
	LastActivityAt time.Time `json:"lastActivityAt"`
	Completed      bool      `json:"completed"`
	Abandoned      bool      `json:"abandoned"`
}

// HasCompleted reports whether the named step was already recorded.
func (p *Progress) HasCompleted(step string) bool {
	for _, s := range p.CompletedSteps {
		if s == step {
			return true
		}
	}
	return false
}

// LastCompletedStep returns the most recently recorded step name, or
// empty when no step was reached.
func (p *Progress) LastCompletedStep() string {
	if len(p.CompletedSteps) == 0 {
		return ""
	}
	return p.CompletedSteps[len(p.CompletedSteps)-1]
}

// Stats aggregates funnel outcomes across sessions.
type Stats struct {
	FunnelID          string         `json:"funnelId"`
	TotalSessions     int            `json:"totalSessions"`
	CompletedSessions int            `json:"completedSessions"`
	ConversionRate    float64        `json:"conversionRate"`
	AvgTimeToComplete float64        `json:"avgTimeToComplete"` // seconds
	StepDropoffs      map[string]int `json:"stepDropoffs"`
}

// RecordCompletion folds a completed run into the aggregate, updating
// the incremental average completion time.
func (s *Stats) RecordCompletion(duration time.Duration) {
	s.CompletedSessions++
	seconds := duration.Seconds()
	s.AvgTimeToComplete += (seconds - s.AvgTimeToComplete) / float64(s.CompletedSessions)
	s.recalculate()
}

// RecordAbandon folds an abandoned run into the aggregate, keyed by the
// last completed step (or "entry" when no step was reached).
func (s *Stats) RecordAbandon(lastStep string) {
	if s.StepDropoffs == nil {
		s.StepDropoffs = make(map[string]int)
	}
	if lastStep == "" {
		lastStep = "entry"
	}
	s.StepDropoffs[lastStep]++
	s.recalculate()
}

func (s *Stats) recalculate() {
	if s.TotalSessions > 0 {
		s.ConversionRate = float64(s.CompletedSessions) / float64(s.TotalSessions)
	}
}
