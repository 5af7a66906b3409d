package detect

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/chenBenjamin97/match-analyzer/pkg/config"
	"github.com/chenBenjamin97/match-analyzer/pkg/types"
	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

//Detector is a closable person detector. Every implementation here is safe for concurrent use.
type Detector interface {
	Detect(ctx context.Context, frame types.Frame, classes []int) ([]types.Detection, error)
	Name() string
	io.Closer
}

//New builds the detector described by cfg
func New(cfg config.DetectorConfig) (Detector, error) {
	var d Detector
	var err error

	switch cfg.Kind {
	case config.DetectorONNX:
		d, err = NewONNX(ONNXOptions{
			Name:       cfg.ModelName,
			ModelPath:  cfg.ModelPath,
			InputSize:  cfg.InputSize,
			Confidence: cfg.Confidence,
			NMS:        cfg.NMS,
			Backend:    cfg.Backend,
		})
	case config.DetectorHOG:
		d = NewHOG()
	case config.DetectorProcess:
		d, err = NewProcess(cfg.ModelName, cfg.Command)
	default:
		err = fmt.Errorf("unsupported detector kind '%s'", cfg.Kind)
	}
	if err != nil {
		return nil, err
	}

	log.Infof("Detector: using '%s'", d.Name())
	return d, nil
}

//asMat returns the decoded image behind frame
func asMat(frame types.Frame) (*gocv.Mat, error) {
	mat, ok := frame.(*gocv.Mat)
	if !ok || mat == nil {
		return nil, fmt.Errorf("unsupported frame type %T", frame)
	}
	if mat.Empty() {
		return nil, errors.New("empty frame")
	}
	return mat, nil
}

//filterClasses keeps detections whose class is in classes
func filterClasses(dets []types.Detection, classes []int) []types.Detection {
	out := make([]types.Detection, 0, len(dets))
	for _, d := range dets {
		if types.InClasses(d.Class, classes) {
			out = append(out, d)
		}
	}
	return out
}
