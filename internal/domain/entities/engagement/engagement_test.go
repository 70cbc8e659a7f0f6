package engagement_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/convertrack/convertrack-go/internal/domain/entities/engagement"
)

func TestSignals_Segment(t *testing.T) {
	tests := []struct {
		name    string
		signals engagement.Signals
		want    engagement.Segment
	}{
		{"fresh visitor", engagement.Signals{}, engagement.SegmentCold},
		{"calculator completed", engagement.Signals{CalculatorCompleted: true}, engagement.SegmentHighIntent},
		{"pricing plus phone", engagement.Signals{PricingViewed: true, PhoneClicked: true}, engagement.SegmentHighIntent},
		{"calculator abandoned", engagement.Signals{CalculatorStarted: true}, engagement.SegmentCalculatorAbandon},
		{"pricing only", engagement.Signals{PricingViewed: true}, engagement.SegmentPricingViewer},
		{"second session", engagement.Signals{SessionCount: 2}, engagement.SegmentReturnVisitor},
		{"three page views", engagement.Signals{PageViews: 3}, engagement.SegmentEngaged},
		{"deep scroll", engagement.Signals{ScrollDepth: 50}, engagement.SegmentEngaged},
		{"a minute on site", engagement.Signals{TimeOnSite: 60}, engagement.SegmentEngaged},
		{"two page views only", engagement.Signals{PageViews: 2}, engagement.SegmentCold},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.signals.Segment())
		})
	}
}

func TestSignals_Segment_Priority(t *testing.T) {
	// A visitor matching several rows classifies by the highest one.
	s := engagement.Signals{
		CalculatorStarted: true,
		PricingViewed:     true,
		SessionCount:      5,
		PageViews:         20,
	}
	assert.Equal(t, engagement.SegmentCalculatorAbandon, s.Segment())

	s.CalculatorCompleted = true
	assert.Equal(t, engagement.SegmentHighIntent, s.Segment())
}

func TestSignals_Score(t *testing.T) {
	t.Run("zero for fresh visitor", func(t *testing.T) {
		assert.Equal(t, 0, engagement.Signals{}.Score())
	})

	t.Run("per factor caps", func(t *testing.T) {
		// 100 page views still contribute only 25 points.
		assert.Equal(t, 25, engagement.Signals{PageViews: 100}.Score())
		assert.Equal(t, 30, engagement.Signals{SessionCount: 50}.Score())
		assert.Equal(t, 15, engagement.Signals{ScrollDepth: 1000}.Score())
		assert.Equal(t, 15, engagement.Signals{TimeOnSite: 100000}.Score())
	})

	t.Run("weighted sum", func(t *testing.T) {
		s := engagement.Signals{
			PageViews:     2,  // 10
			SessionCount:  1,  // 10
			PricingViewed: true, // 10
			ScrollDepth:   20, // 10
		}
		assert.Equal(t, 40, s.Score())
	})

	t.Run("total capped at 100", func(t *testing.T) {
		s := engagement.Signals{
			PageViews:           100,
			SessionCount:        100,
			CalculatorStarted:   true,
			CalculatorCompleted: true,
			PricingViewed:       true,
			PhoneClicked:        true,
			ScrollDepth:         100,
			TimeOnSite:          10000,
		}
		assert.Equal(t, 100, s.Score())
	})
}
