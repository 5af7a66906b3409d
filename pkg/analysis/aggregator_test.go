package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregatorEmpty(t *testing.T) {
	agg := NewAggregator(20, 30)
	agg.Consumed(100)

	s := agg.Finalize()
	assert.Equal(t, 0.0, s.AveragePlayersDetected)
	assert.Equal(t, 0, s.FramesAnalyzed)
	assert.Equal(t, 5.0, s.AnalysisDuration)
	assert.NotNil(t, agg.Observations())
}

func TestAggregatorAverage(t *testing.T) {
	agg := NewAggregator(20, 30)
	for i, count := range []int{2, 3, 0, 2} {
		require.NoError(t, agg.Record(FrameObservation{Frame: i * 30, Time: float64(i*30) / 20, PeopleCount: count}))
	}
	agg.Consumed(100)

	s := agg.Finalize()
	assert.Equal(t, 7.0/4.0, s.AveragePlayersDetected)
	assert.Equal(t, 4, s.FramesAnalyzed)
	assert.Equal(t, 5.0, s.AnalysisDuration)
}

func TestAggregatorFinalizeIsCached(t *testing.T) {
	agg := NewAggregator(25, 30)
	require.NoError(t, agg.Record(FrameObservation{Frame: 0, PeopleCount: 5}))

	first := agg.Finalize()
	agg.Consumed(1000)
	second := agg.Finalize()

	assert.Equal(t, first, second)

	err := agg.Record(FrameObservation{Frame: 30, PeopleCount: 1})
	assert.ErrorIs(t, err, ErrOrderingViolation)
	assert.Equal(t, first, agg.Finalize())
}

func TestAggregatorOrderingViolation(t *testing.T) {
	tests := []struct {
		name string
		obs  []FrameObservation
		msg  string
	}{
		{"duplicate", []FrameObservation{{Frame: 30}, {Frame: 30}}, "frame 30 after frame 30"},
		{"decreasing", []FrameObservation{{Frame: 60}, {Frame: 30}}, "frame 30 after frame 60"},
		{"off interval", []FrameObservation{{Frame: 0}, {Frame: 31}}, "not a multiple of interval"},
		{"negative frame", []FrameObservation{{Frame: -30}}, "negative frame index -30"},
		{"negative count", []FrameObservation{{Frame: 0, PeopleCount: -1}}, "negative people count -1 at frame 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := NewAggregator(30, 30)
			var err error
			for _, o := range tt.obs {
				if err = agg.Record(o); err != nil {
					break
				}
			}
			assert.ErrorIs(t, err, ErrOrderingViolation)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestAggregatorObservationsCopy(t *testing.T) {
	agg := NewAggregator(30, 30)
	require.NoError(t, agg.Record(FrameObservation{Frame: 0, PeopleCount: 1}))

	obs := agg.Observations()
	obs[0].PeopleCount = 99

	assert.Equal(t, 1, agg.Observations()[0].PeopleCount)
}
