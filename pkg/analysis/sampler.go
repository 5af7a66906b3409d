package analysis

import "fmt"

//State is the sampling controller state
type State int

const (
	Running State = iota
	TimeCapReached
	StreamExhausted
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case TimeCapReached:
		return "time_cap_reached"
	case StreamExhausted:
		return "stream_exhausted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

//Sampler decides which frames go to the detector and stops the run once the analysis time cap is passed.
//The frame counter starts at 0 and counts every frame pulled from the source, analyzed or not.
type Sampler struct {
	interval   int
	frameLimit int //0 == no cap
	counter    int
	state      State
}

//NewSampler returns a sampler selecting every interval-th frame, capped at fps*maxSeconds frames.
//maxSeconds <= 0 disables the cap.
func NewSampler(interval, fps, maxSeconds int) *Sampler {
	if interval < 1 {
		interval = 1
	}

	s := &Sampler{interval: interval, state: Running}
	if maxSeconds > 0 {
		s.frameLimit = fps * maxSeconds
	}

	return s
}

//Index returns the index of the frame about to be handled
func (s *Sampler) Index() int {
	return s.counter
}

//Selected returns true if the current frame should be analyzed
func (s *Sampler) Selected() bool {
	return s.counter%s.interval == 0
}

//Advance moves past the current frame and checks the time cap
func (s *Sampler) Advance() State {
	if s.state != Running {
		return s.state
	}

	s.counter++
	if s.frameLimit > 0 && s.counter > s.frameLimit {
		s.state = TimeCapReached
	}

	return s.state
}

//Exhaust marks the source as finished
func (s *Sampler) Exhaust() {
	if s.state == Running {
		s.state = StreamExhausted
	}
}

//State returns the current state
func (s *Sampler) State() State {
	return s.state
}

//Consumed returns how many frames were pulled from the source so far
func (s *Sampler) Consumed() int {
	return s.counter
}

//Interval returns the sampling stride
func (s *Sampler) Interval() int {
	return s.interval
}
