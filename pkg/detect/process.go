package detect

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/chenBenjamin97/match-analyzer/pkg/types"
	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

//closeTimeout is how long Close waits for the worker to exit on its own before killing it
const closeTimeout = 2 * time.Second

//maxLineSize bounds a single line read from the worker
const maxLineSize = 4 * 1024 * 1024

//processRequest is written to the worker's standard input, one JSON object per line
type processRequest struct {
	Frame   string `json:"frame"` //base64 encoded jpeg
	Classes []int  `json:"classes"`
}

//processResponse is read from the worker's standard output, one JSON object per line
type processResponse struct {
	Detections []types.BoundingBox `json:"detections"`
	Error      string              `json:"error"`
}

//Process delegates detection to a long lived external worker (e.g. scripts/yolo_worker.py running ultralytics YOLO).
//The worker is started on first use and restarted after it dies. Lines not starting with '{' are worker logs and are skipped.
type Process struct {
	mu      sync.Mutex
	name    string
	command []string

	cmd     *exec.Cmd
	stdin   io.WriteCloser
	scanner *bufio.Scanner
}

func NewProcess(name string, command []string) (*Process, error) {
	if len(command) == 0 {
		return nil, errors.New("NewProcess: empty worker command")
	}
	if name == "" {
		name = command[0]
	}

	return &Process{name: name, command: command}, nil
}

func (p *Process) Name() string {
	return "process:" + p.name
}

//start runs the worker, must be called with p.mu held
func (p *Process) start() error {
	cmd := exec.Command(p.command[0], p.command[1:]...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("could not open worker stdin, got '%v'", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("could not open worker stdout, got '%v'", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("could not start worker '%s', got '%v'", strings.Join(p.command, " "), err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	p.cmd, p.stdin, p.scanner = cmd, stdin, scanner
	log.Debugf("Process: started worker pid %d", cmd.Process.Pid)
	return nil
}

//stop kills the worker, must be called with p.mu held
func (p *Process) stop() {
	if p.cmd == nil {
		return
	}

	p.stdin.Close()
	done := make(chan error, 1)
	go func(cmd *exec.Cmd) { done <- cmd.Wait() }(p.cmd)

	select {
	case <-done:
	case <-time.After(closeTimeout):
		p.cmd.Process.Kill()
		<-done
	}

	p.cmd, p.stdin, p.scanner = nil, nil, nil
}

//Detect implements analysis.Detector
func (p *Process) Detect(_ context.Context, frame types.Frame, classes []int) ([]types.Detection, error) {
	jpeg, err := encodeFrame(frame)
	if err != nil {
		return nil, err
	}

	req, err := json.Marshal(processRequest{Frame: base64.StdEncoding.EncodeToString(jpeg), Classes: classes})
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd == nil {
		if err := p.start(); err != nil {
			return nil, err
		}
	}

	if _, err := p.stdin.Write(append(req, '\n')); err != nil {
		p.stop()
		return nil, fmt.Errorf("could not send frame to worker, got '%v'", err)
	}

	for p.scanner.Scan() {
		line := strings.TrimSpace(p.scanner.Text())
		if !strings.HasPrefix(line, "{") { //this is a log print, skip it
			continue
		}

		resp := processResponse{}
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			return nil, fmt.Errorf("invalid worker response, got '%v'", err)
		}
		if resp.Error != "" {
			return nil, errors.New(resp.Error)
		}

		dets := make([]types.Detection, 0, len(resp.Detections))
		for _, b := range resp.Detections {
			dets = append(dets, b.Detection())
		}
		return filterClasses(dets, classes), nil
	}

	scanErr := p.scanner.Err()
	p.stop()
	if scanErr != nil {
		return nil, fmt.Errorf("worker output unreadable, got '%v'", scanErr)
	}
	return nil, errors.New("worker exited")
}

func (p *Process) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stop()
	return nil
}

//encodeFrame returns jpeg bytes for frame. Raw byte slices are assumed to be encoded already.
func encodeFrame(frame types.Frame) ([]byte, error) {
	if b, ok := frame.([]byte); ok {
		return b, nil
	}

	mat, err := asMat(frame)
	if err != nil {
		return nil, err
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *mat)
	if err != nil {
		return nil, fmt.Errorf("could not encode frame, got '%v'", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}
