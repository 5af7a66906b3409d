package analysis

import "fmt"

//Aggregator accumulates one observation per analyzed frame and derives the run summary.
//It is owned by a single run and is not safe for concurrent use.
type Aggregator struct {
	fps      int
	interval int

	observations []FrameObservation
	totalPeople  int
	consumed     int
	summary      *RunSummary
}

//NewAggregator returns an aggregator for a video with given frame rate and sampling interval
func NewAggregator(fps, interval int) *Aggregator {
	return &Aggregator{
		fps:          fps,
		interval:     interval,
		observations: make([]FrameObservation, 0),
	}
}

//Record appends an observation. Frame indices must be strictly increasing multiples of the sampling interval.
func (a *Aggregator) Record(obs FrameObservation) error {
	if a.summary != nil {
		return fmt.Errorf("%w: frame %d recorded after finalize", ErrOrderingViolation, obs.Frame)
	}

	if obs.Frame < 0 {
		return fmt.Errorf("%w: negative frame index %d", ErrOrderingViolation, obs.Frame)
	}

	//a negative count is a broken caller as well, it shares the contract fault with bad ordering
	if obs.PeopleCount < 0 {
		return fmt.Errorf("%w: negative people count %d at frame %d", ErrOrderingViolation, obs.PeopleCount, obs.Frame)
	}

	if a.interval > 0 && obs.Frame%a.interval != 0 {
		return fmt.Errorf("%w: frame %d is not a multiple of interval %d", ErrOrderingViolation, obs.Frame, a.interval)
	}

	if n := len(a.observations); n > 0 && obs.Frame <= a.observations[n-1].Frame {
		return fmt.Errorf("%w: frame %d after frame %d", ErrOrderingViolation, obs.Frame, a.observations[n-1].Frame)
	}

	a.observations = append(a.observations, obs)
	a.totalPeople += obs.PeopleCount
	if obs.Frame+1 > a.consumed {
		a.consumed = obs.Frame + 1
	}

	return nil
}

//Consumed tells the aggregator how many frames were pulled from the source, analyzed or skipped
func (a *Aggregator) Consumed(frames int) {
	if a.summary == nil && frames > a.consumed {
		a.consumed = frames
	}
}

//Finalize computes the summary once; later calls return the cached value
func (a *Aggregator) Finalize() RunSummary {
	if a.summary != nil {
		return *a.summary
	}

	s := RunSummary{FramesAnalyzed: len(a.observations)}
	if len(a.observations) > 0 {
		s.AveragePlayersDetected = float64(a.totalPeople) / float64(len(a.observations))
	}
	if a.fps > 0 {
		s.AnalysisDuration = float64(a.consumed) / float64(a.fps)
	}

	a.summary = &s
	return s
}

//Observations returns a copy of the recorded observations in frame order
func (a *Aggregator) Observations() []FrameObservation {
	out := make([]FrameObservation, len(a.observations))
	copy(out, a.observations)
	return out
}
