package detect

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/chenBenjamin97/match-analyzer/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//TestHelperProcess is not a real test, it is the fake worker started by helperDetector
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	defer os.Exit(0)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		req := processRequest{}
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			fmt.Printf("{\"error\":%q}\n", err.Error())
			continue
		}

		frame, _ := base64.StdEncoding.DecodeString(req.Frame)
		switch string(frame) {
		case "crash":
			os.Exit(3)
		case "bad":
			fmt.Println(`{"error":"could not decode frame"}`)
		default:
			fmt.Println("FPS: 12.5")
			json.NewEncoder(os.Stdout).Encode(processResponse{Detections: []types.BoundingBox{
				{Class: 0, Confidence: 0.9, Xmin: 10, Ymin: 10, Xmax: 50, Ymax: 120},
				{Class: 32, Confidence: 0.7, Xmin: 200, Ymin: 200, Xmax: 210, Ymax: 210},
				{Class: 0, Confidence: 0.6, Xmin: 300, Ymin: 40, Xmax: 340, Ymax: 160},
			}})
		}
	}
}

func helperDetector(t *testing.T) *Process {
	t.Setenv("GO_WANT_HELPER_PROCESS", "1")

	p, err := NewProcess("helper", []string{os.Args[0], "-test.run=^TestHelperProcess$", "--"})
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func TestProcessDetect(t *testing.T) {
	p := helperDetector(t)

	dets, err := p.Detect(context.Background(), []byte("frame"), []int{types.ClassPerson})
	require.NoError(t, err)
	require.Len(t, dets, 2)

	assert.Equal(t, types.ClassPerson, dets[0].Class)
	assert.Equal(t, float32(0.9), dets[0].Confidence)
	assert.Equal(t, 40, dets[0].Box.Dx())
	assert.Equal(t, 110, dets[0].Box.Dy())
}

func TestProcessWorkerError(t *testing.T) {
	p := helperDetector(t)

	_, err := p.Detect(context.Background(), []byte("bad"), []int{types.ClassPerson})
	assert.EqualError(t, err, "could not decode frame")

	//worker keeps serving after a per frame error
	dets, err := p.Detect(context.Background(), []byte("frame"), []int{types.ClassPerson})
	require.NoError(t, err)
	assert.Len(t, dets, 2)
}

func TestProcessRestartsAfterCrash(t *testing.T) {
	p := helperDetector(t)

	_, err := p.Detect(context.Background(), []byte("crash"), []int{types.ClassPerson})
	assert.Error(t, err)

	dets, err := p.Detect(context.Background(), []byte("frame"), []int{types.ClassPerson})
	require.NoError(t, err)
	assert.Len(t, dets, 2)
}

func TestProcessConcurrentDetect(t *testing.T) {
	p := helperDetector(t)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	counts := make([]int, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			dets, err := p.Detect(context.Background(), []byte("frame"), []int{types.ClassPerson})
			errs[i], counts[i] = err, len(dets)
		}(i)
	}
	wg.Wait()

	for i := range errs {
		assert.NoError(t, errs[i])
		assert.Equal(t, 2, counts[i])
	}
}

func TestProcessRejectsForeignFrame(t *testing.T) {
	p := helperDetector(t)

	_, err := p.Detect(context.Background(), 42, []int{types.ClassPerson})
	assert.Error(t, err)
}

func TestNewProcessEmptyCommand(t *testing.T) {
	_, err := NewProcess("x", nil)
	assert.Error(t, err)
}

func TestProcessMissingBinary(t *testing.T) {
	p, err := NewProcess("missing", []string{"/definitely/not/a/worker"})
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Detect(context.Background(), []byte("frame"), []int{types.ClassPerson})
	assert.Error(t, err)
}
