package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/chenBenjamin97/match-analyzer/pkg/metrics"
	"github.com/chenBenjamin97/match-analyzer/pkg/types"
	log "github.com/sirupsen/logrus"
)

//DefaultSamplingInterval is the stride between analyzed frames. It is a fixed number of frames, not derived from the frame rate.
const DefaultSamplingInterval = 30

//DefaultMaxSeconds caps how many seconds of video a run covers
const DefaultMaxSeconds = 10

//Source is an open, sequentially readable video. Next returns io.EOF once all frames were read.
type Source interface {
	Next() (types.Frame, error)
	FPS() int
	FrameCount() int
	Close() error
}

//Opener opens a video file as a Source
type Opener func(path string) (Source, error)

//Detector finds instances of given classes in a frame. Implementations shared between runs must be safe for concurrent use.
type Detector interface {
	Detect(ctx context.Context, frame types.Frame, classes []int) ([]types.Detection, error)
}

//Writer persists a finished result and returns where it was written
type Writer interface {
	Write(result *AnalysisResult) (string, error)
}

//Annotator receives every analyzed frame with its detections, e.g. to save tagged snapshots
type Annotator interface {
	Annotate(videoPath string, frame types.Frame, obs FrameObservation, detections []types.Detection) error
}

//Options tunes the sampling of a run
type Options struct {
	SamplingInterval int
	MaxSeconds       int
	//RateRelative replaces SamplingInterval by the video's frame rate, analyzing one frame per second of video
	RateRelative bool
	Classes      []int
}

//DefaultOptions returns the stock sampling options: every 30th frame, first 10 seconds, persons only
func DefaultOptions() Options {
	return Options{
		SamplingInterval: DefaultSamplingInterval,
		MaxSeconds:       DefaultMaxSeconds,
		Classes:          []int{types.ClassPerson},
	}
}

//Analyzer runs the frame sampling, detection and aggregation pipeline over single videos.
//One Analyzer may serve concurrent runs as long as its Detector is safe for concurrent use.
type Analyzer struct {
	open     Opener
	detector Detector
	writer   Writer
	opts     Options

	Annotator Annotator
	Metrics   *metrics.Metrics
}

//NewAnalyzer creates an Analyzer. writer may be nil, in which case results are not persisted.
func NewAnalyzer(open Opener, detector Detector, writer Writer, opts Options) *Analyzer {
	if opts.SamplingInterval < 1 {
		opts.SamplingInterval = DefaultSamplingInterval
	}
	if len(opts.Classes) == 0 {
		opts.Classes = []int{types.ClassPerson}
	}

	return &Analyzer{open: open, detector: detector, writer: writer, opts: opts}
}

//Analyze runs the pipeline over videoPath and persists the result.
//On ErrWriteFailure the computed result is returned alongside the error so persistence alone can be retried.
func (a *Analyzer) Analyze(ctx context.Context, videoPath string) (*AnalysisResult, string, error) {
	start := time.Now()

	result, err := a.run(ctx, videoPath)
	if err != nil {
		if errors.Is(err, ErrSourceUnavailable) {
			a.Metrics.RunFinished(metrics.OutcomeSourceUnavailable, time.Since(start).Seconds())
		} else {
			a.Metrics.RunFinished(metrics.OutcomeFailed, time.Since(start).Seconds())
		}
		return nil, "", err
	}

	log.WithFields(log.Fields{
		"path":        videoPath,
		"frames":      result.Summary.FramesAnalyzed,
		"average":     result.Summary.AveragePlayersDetected,
		"duration":    result.Summary.AnalysisDuration,
		"termination": result.Termination.String(),
		"faults":      len(result.Faults),
	}).Info("Analyze: finished")

	location := ""
	if a.writer != nil {
		if location, err = a.writer.Write(result); err != nil {
			a.Metrics.RunFinished(metrics.OutcomeWriteFailure, time.Since(start).Seconds())
			if !errors.Is(err, ErrWriteFailure) {
				err = fmt.Errorf("%w: %v", ErrWriteFailure, err)
			}
			return result, "", fmt.Errorf("analyze '%s': %w", videoPath, err)
		}
		log.Infof("Analyze: results saved in '%s'", location)
	}

	a.Metrics.RunFinished(metrics.OutcomeAnalyzed, time.Since(start).Seconds())
	a.Metrics.SetLastAverage(result.Summary.AveragePlayersDetected)

	return result, location, nil
}

func (a *Analyzer) run(ctx context.Context, videoPath string) (*AnalysisResult, error) {
	src, err := a.open(videoPath)
	if err != nil {
		if errors.Is(err, ErrSourceUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: '%s': %v", ErrSourceUnavailable, videoPath, err)
	}
	defer func() {
		if err := src.Close(); err != nil {
			log.Warnf("Analyze: Could not close '%s', got '%v'", videoPath, err)
		}
	}()

	fps := src.FPS()
	if fps <= 0 {
		return nil, fmt.Errorf("%w: '%s': invalid frame rate %d", ErrSourceUnavailable, videoPath, fps)
	}

	interval := a.opts.SamplingInterval
	if a.opts.RateRelative {
		interval = fps
	}

	log.Infof("Analyze: '%s': %d FPS, %d frames, analyzing one frame every %d", videoPath, fps, src.FrameCount(), interval)

	sampler := NewSampler(interval, fps, a.opts.MaxSeconds)
	agg := NewAggregator(fps, interval)
	result := &AnalysisResult{
		VideoPath:   videoPath,
		FPS:         fps,
		TotalFrames: src.FrameCount(),
	}

	for sampler.State() == Running {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("analyze '%s' at frame %d: %w", videoPath, sampler.Index(), err)
		}

		frame, err := src.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Warnf("Analyze: '%s': read failed at frame %d, treating as end of stream, got '%v'", videoPath, sampler.Index(), err)
			}
			sampler.Exhaust()
			break
		}
		a.Metrics.FrameRead()

		if sampler.Selected() {
			obs, fault := a.analyzeFrame(ctx, videoPath, frame, sampler.Index(), fps)
			if fault != nil {
				result.Faults = append(result.Faults, *fault)
			}
			if err := agg.Record(obs); err != nil {
				return nil, fmt.Errorf("analyze '%s': %w", videoPath, err)
			}
		}

		if sampler.Advance() == TimeCapReached {
			log.Infof("Analyze: '%s': analysis limited to %d seconds", videoPath, a.opts.MaxSeconds)
		}
	}

	agg.Consumed(sampler.Consumed())
	result.Detections = agg.Observations()
	result.Summary = agg.Finalize()
	result.Termination = sampler.State()

	return result, nil
}

//analyzeFrame never fails the run: a detector error yields a zero count observation plus a fault
func (a *Analyzer) analyzeFrame(ctx context.Context, videoPath string, frame types.Frame, index, fps int) (FrameObservation, *DetectionFault) {
	obs := FrameObservation{Frame: index, Time: float64(index) / float64(fps)}
	a.Metrics.FrameAnalyzed()

	detections, err := a.detector.Detect(ctx, frame, a.opts.Classes)
	if err != nil {
		a.Metrics.DetectionFault()
		err = fmt.Errorf("%w: frame %d: %v", ErrDetectionFault, index, err)
		log.WithFields(log.Fields{"path": videoPath, "frame": index}).Warnf("Analyze: %v", err)
		return obs, &DetectionFault{Frame: index, Error: err.Error()}
	}

	obs.PeopleCount = len(detections)
	log.Debugf("Analyze: %.1fs - %d players detected", obs.Time, obs.PeopleCount)

	if a.Annotator != nil {
		if err := a.Annotator.Annotate(videoPath, frame, obs, detections); err != nil {
			log.Warnf("Analyze: Could not annotate frame %d of '%s', got '%v'", index, videoPath, err)
		}
	}

	return obs, nil
}
