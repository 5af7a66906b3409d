package video

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sync"

	"github.com/chenBenjamin97/match-analyzer/pkg/analysis"
	"github.com/chenBenjamin97/match-analyzer/pkg/types"
	"gocv.io/x/gocv"
)

//Source reads a video file frame by frame with OpenCV.
//The *gocv.Mat handed out by Next is reused, it is only valid until the following call.
type Source struct {
	path       string
	cap        *gocv.VideoCapture
	frame      gocv.Mat
	fps        int
	frameCount int
	closeOnce  sync.Once
	closeErr   error
}

//Open opens path for sequential reading. Unreadable or undecodable files fail with analysis.ErrSourceUnavailable.
func Open(path string) (*Source, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: '%s': %v", analysis.ErrSourceUnavailable, path, err)
	}

	cap, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: '%s': %v", analysis.ErrSourceUnavailable, path, err)
	}
	if !cap.IsOpened() {
		cap.Close()
		return nil, fmt.Errorf("%w: '%s': could not decode container", analysis.ErrSourceUnavailable, path)
	}

	s := &Source{
		path:       path,
		cap:        cap,
		frame:      gocv.NewMat(),
		fps:        int(math.Round(cap.Get(gocv.VideoCaptureFPS))),
		frameCount: int(cap.Get(gocv.VideoCaptureFrameCount)),
	}
	if s.frameCount < 0 {
		s.frameCount = 0
	}

	return s, nil
}

//Opener adapts Open to analysis.Opener
func Opener(path string) (analysis.Source, error) {
	s, err := Open(path)
	if err != nil {
		return nil, err
	}
	return s, nil
}

//Next decodes the next frame, returning io.EOF when the stream is exhausted
func (s *Source) Next() (types.Frame, error) {
	if s.cap == nil {
		return nil, errors.New("Next: source is closed")
	}

	if !s.cap.Read(&s.frame) || s.frame.Empty() {
		return nil, io.EOF
	}

	return &s.frame, nil
}

func (s *Source) FPS() int {
	return s.fps
}

func (s *Source) FrameCount() int {
	return s.frameCount
}

//Path returns the file this source reads
func (s *Source) Path() string {
	return s.path
}

//Close releases the decoder. Calling it more than once is safe, only the first call does work.
func (s *Source) Close() error {
	s.closeOnce.Do(func() {
		s.frame.Close()
		s.closeErr = s.cap.Close()
		s.cap = nil
	})
	return s.closeErr
}
