package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/chenBenjamin97/match-analyzer/pkg/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//two stationary players on every frame of a 5 seconds, 20 fps video
func TestAnalyzeStationaryPlayers(t *testing.T) {
	src := &fakeSource{fps: 20, total: 100}
	writer := &fakeWriter{}
	a := NewAnalyzer(openerFor(src), &fakeDetector{perFrame: 2}, writer, DefaultOptions())

	result, location, err := a.Analyze(context.Background(), "test_video.mp4")
	require.NoError(t, err)

	assert.Equal(t, "results/analysis_test.json", location)
	assert.Equal(t, []FrameObservation{
		{Frame: 0, Time: 0, PeopleCount: 2},
		{Frame: 30, Time: 1.5, PeopleCount: 2},
		{Frame: 60, Time: 3, PeopleCount: 2},
		{Frame: 90, Time: 4.5, PeopleCount: 2},
	}, result.Detections)
	assert.Equal(t, RunSummary{AveragePlayersDetected: 2, AnalysisDuration: 5, FramesAnalyzed: 4}, result.Summary)
	assert.Equal(t, StreamExhausted, result.Termination)
	assert.Equal(t, 20, result.FPS)
	assert.Equal(t, 100, result.TotalFrames)
	assert.Equal(t, "test_video.mp4", result.VideoPath)
	assert.Equal(t, 1, src.closed)
	require.Len(t, writer.written, 1)
	assert.Same(t, result, writer.written[0])
}

func TestAnalyzeBlankVideo(t *testing.T) {
	src := &fakeSource{fps: 20, total: 100}
	a := NewAnalyzer(openerFor(src), &fakeDetector{}, &fakeWriter{}, DefaultOptions())

	result, _, err := a.Analyze(context.Background(), "blank.mp4")
	require.NoError(t, err)

	assert.Equal(t, 0.0, result.Summary.AveragePlayersDetected)
	assert.Equal(t, 4, result.Summary.FramesAnalyzed)
}

func TestAnalyzeStopsAtTimeCap(t *testing.T) {
	src := &fakeSource{fps: 20, total: 600}
	det := &fakeDetector{perFrame: 1}
	a := NewAnalyzer(openerFor(src), det, &fakeWriter{}, DefaultOptions())

	result, _, err := a.Analyze(context.Background(), "long.mp4")
	require.NoError(t, err)

	assert.Equal(t, TimeCapReached, result.Termination)
	assert.Equal(t, 20*10/30+1, result.Summary.FramesAnalyzed)
	assert.Equal(t, []int{0, 30, 60, 90, 120, 150, 180}, det.seen)
	assert.Equal(t, 201, src.next, "no frame is pulled past the cap")
	assert.InDelta(t, 10.05, result.Summary.AnalysisDuration, 1e-9)
	assert.Equal(t, 1, src.closed)
}

func TestAnalyzeSourceUnavailable(t *testing.T) {
	writer := &fakeWriter{}
	open := func(string) (Source, error) { return nil, errors.New("moov atom not found") }
	a := NewAnalyzer(open, &fakeDetector{}, writer, DefaultOptions())

	result, location, err := a.Analyze(context.Background(), "broken.mp4")

	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.Contains(t, err.Error(), "broken.mp4")
	assert.Nil(t, result)
	assert.Empty(t, location)
	assert.Empty(t, writer.written)
}

func TestAnalyzeInvalidFrameRate(t *testing.T) {
	src := &fakeSource{fps: 0, total: 100}
	writer := &fakeWriter{}
	a := NewAnalyzer(openerFor(src), &fakeDetector{}, writer, DefaultOptions())

	_, _, err := a.Analyze(context.Background(), "nofps.mp4")

	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.Equal(t, 1, src.closed)
	assert.Empty(t, writer.written)
}

func TestAnalyzeDetectionFaultIsRecoverable(t *testing.T) {
	src := &fakeSource{fps: 20, total: 100}
	det := &fakeDetector{perFrame: 2, failOn: map[int]bool{60: true}}
	writer := &fakeWriter{}
	a := NewAnalyzer(openerFor(src), det, writer, DefaultOptions())

	result, _, err := a.Analyze(context.Background(), "flaky.mp4")
	require.NoError(t, err)

	require.Len(t, result.Detections, 4)
	assert.Equal(t, 0, result.Detections[2].PeopleCount)
	assert.Equal(t, 60, result.Detections[2].Frame)
	assert.Equal(t, 6.0/4.0, result.Summary.AveragePlayersDetected)
	require.Len(t, result.Faults, 1)
	assert.Equal(t, 60, result.Faults[0].Frame)
	assert.Contains(t, result.Faults[0].Error, "model exploded")
	assert.Len(t, writer.written, 1)
}

func TestAnalyzeWriteFailure(t *testing.T) {
	src := &fakeSource{fps: 20, total: 100}
	writer := &fakeWriter{err: errors.New("no space left on device")}
	a := NewAnalyzer(openerFor(src), &fakeDetector{perFrame: 1}, writer, DefaultOptions())

	result, location, err := a.Analyze(context.Background(), "ok.mp4")

	assert.ErrorIs(t, err, ErrWriteFailure)
	assert.NotErrorIs(t, err, ErrSourceUnavailable)
	require.NotNil(t, result)
	assert.Equal(t, 4, result.Summary.FramesAnalyzed)
	assert.Empty(t, location)
	assert.Equal(t, 1, src.closed)
}

func TestAnalyzeWithoutWriter(t *testing.T) {
	src := &fakeSource{fps: 30, total: 30}
	a := NewAnalyzer(openerFor(src), &fakeDetector{perFrame: 3}, nil, DefaultOptions())

	result, location, err := a.Analyze(context.Background(), "short.mp4")
	require.NoError(t, err)

	assert.Empty(t, location)
	assert.Equal(t, 1, result.Summary.FramesAnalyzed)
}

func TestAnalyzeObservationCount(t *testing.T) {
	tests := []struct {
		fps, total int
	}{
		{20, 100}, {20, 600}, {25, 250}, {30, 301}, {30, 29}, {24, 91}, {60, 10000}, {1, 5},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%dfps_%dframes", tt.fps, tt.total), func(t *testing.T) {
			src := &fakeSource{fps: tt.fps, total: tt.total}
			a := NewAnalyzer(openerFor(src), &fakeDetector{perFrame: 1}, nil, DefaultOptions())

			result, _, err := a.Analyze(context.Background(), "v.mp4")
			require.NoError(t, err)

			//frames [0, min(total-1, fps*cap)] are read
			last := tt.total - 1
			if limit := tt.fps * DefaultMaxSeconds; last > limit {
				last = limit
			}
			assert.Equal(t, last/DefaultSamplingInterval+1, result.Summary.FramesAnalyzed)

			for i, obs := range result.Detections {
				assert.Zero(t, obs.Frame%DefaultSamplingInterval)
				if i > 0 {
					assert.Greater(t, obs.Frame, result.Detections[i-1].Frame)
				}
			}
		})
	}
}

func TestAnalyzeRateRelativeInterval(t *testing.T) {
	src := &fakeSource{fps: 25, total: 100}
	det := &fakeDetector{perFrame: 1}
	opts := DefaultOptions()
	opts.RateRelative = true
	a := NewAnalyzer(openerFor(src), det, nil, opts)

	result, _, err := a.Analyze(context.Background(), "v.mp4")
	require.NoError(t, err)

	assert.Equal(t, []int{0, 25, 50, 75}, det.seen)
	assert.Equal(t, 4, result.Summary.FramesAnalyzed)
}

func TestAnalyzeCanceled(t *testing.T) {
	src := &fakeSource{fps: 20, total: 100}
	a := NewAnalyzer(openerFor(src), &fakeDetector{}, &fakeWriter{}, DefaultOptions())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, _, err := a.Analyze(ctx, "v.mp4")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, result)
	assert.Equal(t, 1, src.closed)
}

func TestAnalyzeAnnotatorFailureIsNotFatal(t *testing.T) {
	src := &fakeSource{fps: 20, total: 100}
	ann := &fakeAnnotator{}
	a := NewAnalyzer(openerFor(src), &fakeDetector{perFrame: 1}, nil, DefaultOptions())
	a.Annotator = ann
	a.Metrics = metrics.New()

	result, _, err := a.Analyze(context.Background(), "v.mp4")
	require.NoError(t, err)

	assert.Equal(t, []int{0, 30, 60, 90}, ann.frames)
	assert.Equal(t, 4, result.Summary.FramesAnalyzed)
}

func TestAnalyzeConcurrentRuns(t *testing.T) {
	det := &fakeDetector{perFrame: 2}
	open := func(path string) (Source, error) {
		return &fakeSource{fps: 20, total: 100}, nil
	}
	a := NewAnalyzer(open, det, nil, DefaultOptions())

	var wg sync.WaitGroup
	results := make([]*AnalysisResult, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, _, err := a.Analyze(context.Background(), fmt.Sprintf("v%d.mp4", i))
			assert.NoError(t, err)
			results[i] = r
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		require.NotNil(t, r)
		assert.Equal(t, 4, r.Summary.FramesAnalyzed)
		assert.Equal(t, 2.0, r.Summary.AveragePlayersDetected)
	}
}
