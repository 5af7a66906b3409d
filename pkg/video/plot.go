package video

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"github.com/chenBenjamin97/match-analyzer/pkg/analysis"
	"github.com/chenBenjamin97/match-analyzer/pkg/types"
	"gocv.io/x/gocv"
)

var personColor = color.RGBA{0, 255, 0, 0}
var whiteRGB = color.RGBA{255, 255, 255, 0}

//Annotator saves every analyzed frame as a jpeg with detected persons plotted on it.
//Snapshots of a video go to <dir>/<video name without extension>/frame_<index>.jpg
type Annotator struct {
	dir string
}

//NewAnnotator returns an annotator writing under dir
func NewAnnotator(dir string) (*Annotator, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("NewAnnotator: could not create '%s', got '%v'", dir, err)
	}
	return &Annotator{dir: dir}, nil
}

//Annotate implements analysis.Annotator
func (a *Annotator) Annotate(videoPath string, frame types.Frame, obs analysis.FrameObservation, detections []types.Detection) error {
	mat, ok := frame.(*gocv.Mat)
	if !ok || mat.Empty() {
		return errors.New("Annotate: frame is not a decoded image")
	}

	//draw on a copy, the source reuses its frame buffer
	tagged := mat.Clone()
	defer tagged.Close()

	for i, det := range detections {
		plotPersonOnFrame(&tagged, det, i+1)
	}
	gocv.PutText(&tagged, fmt.Sprintf("%.1fs - %d players", obs.Time, obs.PeopleCount), image.Pt(10, 30), gocv.FontHersheyPlain, 2, personColor, 2)

	name := filepath.Base(videoPath)
	outDir := filepath.Join(a.dir, strings.TrimSuffix(name, filepath.Ext(name)))
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return err
	}

	out := filepath.Join(outDir, fmt.Sprintf("frame_%06d.jpg", obs.Frame))
	if !gocv.IMWrite(out, tagged) {
		return fmt.Errorf("Annotate: could not write '%s'", out)
	}

	return nil
}

//plotPersonOnFrame plots given detection's bounding box and writes its number and confidence above it
func plotPersonOnFrame(frame *gocv.Mat, det types.Detection, number int) {
	box := det.Box.Intersect(image.Rect(0, 0, frame.Cols(), frame.Rows()))
	if box.Empty() {
		return
	}

	gocv.Rectangle(frame, box, personColor, 3)

	text := fmt.Sprintf("Person %d: %.0f%%", number, det.Confidence*100)
	startPoint := image.Pt(box.Min.X, box.Min.Y-5)
	textBackgroundRect := image.Rect(startPoint.X, startPoint.Y-15, startPoint.X+len(text)*10, startPoint.Y+5)

	gocv.Rectangle(frame, textBackgroundRect, personColor, -1) //thickness -1 == filled rectangle
	gocv.PutText(frame, text, startPoint, gocv.FontHersheyPlain, 1, whiteRGB, 2)
}
