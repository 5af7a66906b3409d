package detect

import (
	"context"
	"fmt"
	"image"
	"os"
	"strings"
	"sync"

	"github.com/chenBenjamin97/match-analyzer/pkg/types"
	"gocv.io/x/gocv"
)

//ONNXOptions configures a YOLOv8 style ONNX model
type ONNXOptions struct {
	Name       string
	ModelPath  string
	InputSize  int
	Confidence float32
	NMS        float32
	//Backend is one of "default", "cuda" or "opencl"
	Backend string
}

//ONNX runs a YOLOv8 ONNX export (output shape [1, 4+classes, candidates]) with OpenCV's dnn module.
//gocv.Net is not safe for concurrent use, inference is serialized.
type ONNX struct {
	mu   sync.Mutex
	net  gocv.Net
	opts ONNXOptions
}

//NewONNX loads the model at opts.ModelPath
func NewONNX(opts ONNXOptions) (*ONNX, error) {
	if opts.InputSize <= 0 {
		opts.InputSize = 640
	}
	if opts.Confidence <= 0 {
		opts.Confidence = 0.25
	}
	if opts.NMS <= 0 {
		opts.NMS = 0.7
	}
	if opts.Name == "" {
		opts.Name = "yolov8n"
	}

	if _, err := os.Stat(opts.ModelPath); err != nil {
		return nil, fmt.Errorf("NewONNX: Could not find model '%s', got '%v'", opts.ModelPath, err)
	}

	net := gocv.ReadNetFromONNX(opts.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("NewONNX: Could not load model '%s'", opts.ModelPath)
	}

	switch strings.ToLower(opts.Backend) {
	case "cuda":
		net.SetPreferableBackend(gocv.NetBackendCUDA)
		net.SetPreferableTarget(gocv.NetTargetCUDA)
	case "opencl":
		net.SetPreferableBackend(gocv.NetBackendOpenCV)
		net.SetPreferableTarget(gocv.NetTargetFP32)
	}

	return &ONNX{net: net, opts: opts}, nil
}

func (d *ONNX) Name() string {
	return "onnx:" + d.opts.Name
}

//Detect implements analysis.Detector
func (d *ONNX) Detect(_ context.Context, frame types.Frame, classes []int) ([]types.Detection, error) {
	mat, err := asMat(frame)
	if err != nil {
		return nil, err
	}

	size := d.opts.InputSize
	blob := gocv.BlobFromImage(*mat, 1.0/255.0, image.Pt(size, size), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.mu.Lock()
	defer d.mu.Unlock()

	d.net.SetInput(blob, "")
	out := d.net.Forward("")
	defer out.Close()

	dims := out.Size()
	if len(dims) != 3 || dims[1] < 5 {
		return nil, fmt.Errorf("unexpected model output shape %v", dims)
	}

	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("could not read model output, got '%v'", err)
	}

	xFactor := float32(mat.Cols()) / float32(size)
	yFactor := float32(mat.Rows()) / float32(size)
	candidates := decodeYOLOv8(data, dims[1], dims[2], xFactor, yFactor, d.opts.Confidence, classes)

	return suppress(candidates, d.opts.Confidence, d.opts.NMS), nil
}

func (d *ONNX) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}

//decodeYOLOv8 turns a row major [attributes][candidates] output into detections of wanted classes.
//attributes are cx, cy, w, h followed by one score per class.
func decodeYOLOv8(data []float32, attributes, candidates int, xFactor, yFactor, minScore float32, classes []int) []types.Detection {
	out := make([]types.Detection, 0)
	if len(data) < attributes*candidates {
		return out
	}

	at := func(attr, i int) float32 { return data[attr*candidates+i] }

	for i := 0; i < candidates; i++ {
		bestClass, bestScore := -1, float32(0)
		for c := 0; c < attributes-4; c++ {
			if s := at(4+c, i); s > bestScore {
				bestClass, bestScore = c, s
			}
		}
		if bestScore < minScore || !types.InClasses(bestClass, classes) {
			continue
		}

		cx, cy, w, h := at(0, i), at(1, i), at(2, i), at(3, i)
		left := int((cx - w/2) * xFactor)
		top := int((cy - h/2) * yFactor)
		right := int((cx + w/2) * xFactor)
		bottom := int((cy + h/2) * yFactor)

		out = append(out, types.Detection{
			Class:      bestClass,
			Confidence: bestScore,
			Box:        image.Rect(left, top, right, bottom),
		})
	}

	return out
}

//suppress runs class aware non maximum suppression
func suppress(dets []types.Detection, minScore, nms float32) []types.Detection {
	byClass := make(map[int][]types.Detection)
	order := make([]int, 0)
	for _, d := range dets {
		if _, ok := byClass[d.Class]; !ok {
			order = append(order, d.Class)
		}
		byClass[d.Class] = append(byClass[d.Class], d)
	}

	out := make([]types.Detection, 0, len(dets))
	for _, class := range order {
		group := byClass[class]
		boxes := make([]image.Rectangle, len(group))
		scores := make([]float32, len(group))
		for i, d := range group {
			boxes[i] = d.Box
			scores[i] = d.Confidence
		}

		for _, idx := range gocv.NMSBoxes(boxes, scores, minScore, nms) {
			out = append(out, group[idx])
		}
	}

	return out
}
