package detect

import (
	"context"
	"image"
	"path/filepath"
	"testing"

	"github.com/chenBenjamin97/match-analyzer/pkg/config"
	"github.com/chenBenjamin97/match-analyzer/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

//yoloOutput lays candidates out the way YOLOv8 does: one row per attribute, one column per candidate
func yoloOutput(candidates [][]float32) []float32 {
	attributes := len(candidates[0])
	out := make([]float32, attributes*len(candidates))
	for i, c := range candidates {
		for a, v := range c {
			out[a*len(candidates)+i] = v
		}
	}
	return out
}

var yoloCandidates = [][]float32{
	//cx, cy, w, h, person, ball
	{100, 100, 20, 40, 0.9, 0.1},
	{102, 101, 20, 40, 0.6, 0.1},
	{300, 300, 10, 10, 0.1, 0.8},
	{500, 500, 30, 30, 0.2, 0.1},
}

func TestDecodeYOLOv8(t *testing.T) {
	data := yoloOutput(yoloCandidates)

	dets := decodeYOLOv8(data, 6, len(yoloCandidates), 2, 1, 0.25, []int{types.ClassPerson})
	require.Len(t, dets, 2)
	assert.Equal(t, image.Rect(180, 80, 220, 120), dets[0].Box)
	assert.Equal(t, float32(0.9), dets[0].Confidence)

	all := decodeYOLOv8(data, 6, len(yoloCandidates), 2, 1, 0.25, []int{0, 1})
	assert.Len(t, all, 3)
}

func TestDecodeYOLOv8ShortOutput(t *testing.T) {
	assert.Empty(t, decodeYOLOv8([]float32{1, 2, 3}, 6, 4, 1, 1, 0.25, []int{0}))
}

func TestSuppress(t *testing.T) {
	data := yoloOutput(yoloCandidates)

	persons := suppress(decodeYOLOv8(data, 6, len(yoloCandidates), 2, 1, 0.25, []int{0}), 0.25, 0.7)
	require.Len(t, persons, 1)
	assert.Equal(t, float32(0.9), persons[0].Confidence)

	//suppression never crosses classes
	all := suppress(decodeYOLOv8(data, 6, len(yoloCandidates), 2, 1, 0.25, []int{0, 1}), 0.25, 0.7)
	assert.Len(t, all, 2)
}

func TestHOGDetect(t *testing.T) {
	d := NewHOG()
	defer d.Close()

	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0), 480, 640, gocv.MatTypeCV8UC3)
	defer frame.Close()

	_, err := d.Detect(context.Background(), &frame, []int{types.ClassPerson})
	assert.NoError(t, err)

	dets, err := d.Detect(context.Background(), &frame, []int{32})
	require.NoError(t, err)
	assert.Empty(t, dets)

	_, err = d.Detect(context.Background(), "frame", []int{types.ClassPerson})
	assert.Error(t, err)

	empty := gocv.NewMat()
	defer empty.Close()
	_, err = d.Detect(context.Background(), &empty, []int{types.ClassPerson})
	assert.Error(t, err)
}

func TestNewDetector(t *testing.T) {
	d, err := New(config.DetectorConfig{Kind: config.DetectorHOG})
	require.NoError(t, err)
	assert.Equal(t, "hog:default-people", d.Name())
	assert.NoError(t, d.Close())

	d, err = New(config.DetectorConfig{Kind: config.DetectorProcess, ModelName: "yolov8n", Command: []string{"python3", "worker.py"}})
	require.NoError(t, err)
	assert.Equal(t, "process:yolov8n", d.Name())
	assert.NoError(t, d.Close())

	_, err = New(config.DetectorConfig{Kind: config.DetectorONNX, ModelPath: filepath.Join(t.TempDir(), "missing.onnx")})
	assert.Error(t, err)

	_, err = New(config.DetectorConfig{Kind: "magic"})
	assert.Error(t, err)
}
