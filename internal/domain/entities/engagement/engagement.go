// Package engagement defines cumulative visitor signals and the derived
// audience segment classification.
package engagement

import "time"

// Segment is a derived visitor classification used for retargeting audiences.
type Segment string

const (
	SegmentHighIntent        Segment = "high_intent"
	SegmentCalculatorAbandon Segment = "calculator_abandon"
	SegmentPricingViewer     Segment = "pricing_viewer"
	SegmentReturnVisitor     Segment = "return_visitor"
	SegmentEngaged           Segment = "engaged"
	SegmentCold              Segment = "cold"
)

// Signals accumulates visitor activity counters for one profile.
// All counters are monotonic except ScrollDepth (high-water mark) and
// LastVisit (always current).
type Signals struct {
	PageViews           int       `json:"pageViews"`
	SessionCount        int       `json:"sessionCount"`
	CalculatorStarted   bool      `json:"calculatorStarted"`
	CalculatorCompleted bool      `json:"calculatorCompleted"`
	PricingViewed       bool      `json:"pricingViewed"`
	PhoneClicked        bool      `json:"phoneClicked"`
	TimeOnSite          int       `json:"timeOnSite"` // seconds
	ScrollDepth         int       `json:"scrollDepth"`
	LastVisit           time.Time `json:"lastVisit"`
}

// Segment evaluates the fixed-priority decision table, first match wins.
func (s Signals) Segment() Segment {
	switch {
	case s.CalculatorCompleted || (s.PricingViewed && s.PhoneClicked):
		return SegmentHighIntent
	case s.CalculatorStarted && !s.CalculatorCompleted:
		return SegmentCalculatorAbandon
	case s.PricingViewed:
		return SegmentPricingViewer
	case s.SessionCount > 1:
		return SegmentReturnVisitor
	case s.PageViews >= 3 || s.ScrollDepth >= 50 || s.TimeOnSite >= 60:
		return SegmentEngaged
	default:
		return SegmentCold
	}
}

// Score computes the 0-100 engagement score as a weighted sum with
// per-factor caps. Independent of the segment table.
func (s Signals) Score() int {
	score := 0
	score += capped(s.PageViews*5, 25)
	score += capped(s.SessionCount*10, 30)
	if s.CalculatorStarted {
		score += 15
	}
	if s.CalculatorCompleted {
		score += 20
	}
	if s.PricingViewed {
		score += 10
	}
	if s.PhoneClicked {
		score += 10
	}
	score += capped(s.ScrollDepth/2, 15)
	score += capped(s.TimeOnSite/10, 15)
	return capped(score, 100)
}

func capped(v, max int) int {
	if v > max {
		return max
	}
	return v
}
