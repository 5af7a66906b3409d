package analysis

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/chenBenjamin97/match-analyzer/pkg/types"
)

//fakeSource yields frame indices as frames
type fakeSource struct {
	fps    int
	total  int
	next   int
	closed int
}

func (s *fakeSource) Next() (types.Frame, error) {
	if s.next >= s.total {
		return nil, io.EOF
	}
	s.next++
	return s.next - 1, nil
}

func (s *fakeSource) FPS() int        { return s.fps }
func (s *fakeSource) FrameCount() int { return s.total }
func (s *fakeSource) Close() error    { s.closed++; return nil }

func openerFor(src *fakeSource) Opener {
	return func(string) (Source, error) { return src, nil }
}

//fakeDetector returns perFrame detections, failing on frames listed in failOn
type fakeDetector struct {
	mu       sync.Mutex
	perFrame int
	failOn   map[int]bool
	seen     []int
}

func (d *fakeDetector) Detect(_ context.Context, frame types.Frame, classes []int) ([]types.Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	idx := frame.(int)
	d.seen = append(d.seen, idx)
	if d.failOn[idx] {
		return nil, errors.New("model exploded")
	}
	if !types.InClasses(types.ClassPerson, classes) {
		return nil, nil
	}

	out := make([]types.Detection, d.perFrame)
	for i := range out {
		out[i] = types.Detection{Class: types.ClassPerson, Confidence: 0.9}
	}
	return out, nil
}

type fakeWriter struct {
	written []*AnalysisResult
	err     error
}

func (w *fakeWriter) Write(result *AnalysisResult) (string, error) {
	if w.err != nil {
		return "", w.err
	}
	w.written = append(w.written, result)
	return "results/analysis_test.json", nil
}

type fakeAnnotator struct {
	frames []int
}

func (a *fakeAnnotator) Annotate(_ string, _ types.Frame, obs FrameObservation, _ []types.Detection) error {
	a.frames = append(a.frames, obs.Frame)
	return errors.New("disk full")
}
