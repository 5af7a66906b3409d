package detect

import (
	"context"
	"sync"

	"github.com/chenBenjamin97/match-analyzer/pkg/types"
	"gocv.io/x/gocv"
)

//HOG detects standing people with OpenCV's default HOG+SVM people detector. It needs no model file.
type HOG struct {
	mu  sync.Mutex
	hog gocv.HOGDescriptor
}

func NewHOG() *HOG {
	hog := gocv.NewHOGDescriptor()
	svm := gocv.HOGDefaultPeopleDetector()
	defer svm.Close()
	hog.SetSVMDetector(svm)

	return &HOG{hog: hog}
}

func (d *HOG) Name() string {
	return "hog:default-people"
}

//Detect implements analysis.Detector. HOG only knows persons, other classes yield nothing.
func (d *HOG) Detect(_ context.Context, frame types.Frame, classes []int) ([]types.Detection, error) {
	mat, err := asMat(frame)
	if err != nil {
		return nil, err
	}

	if !types.InClasses(types.ClassPerson, classes) {
		return []types.Detection{}, nil
	}

	d.mu.Lock()
	rects := d.hog.DetectMultiScale(*mat)
	d.mu.Unlock()

	out := make([]types.Detection, 0, len(rects))
	for _, r := range rects {
		out = append(out, types.Detection{Class: types.ClassPerson, Confidence: 1, Box: r})
	}

	return out, nil
}

func (d *HOG) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hog.Close()
}
