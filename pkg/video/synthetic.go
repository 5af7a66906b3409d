package video

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

//DefaultPlayers are two standing "players" drawn on every frame of a synthetic video
var DefaultPlayers = []image.Rectangle{
	image.Rect(100, 100, 150, 250),
	image.Rect(300, 150, 350, 300),
}

var playerColors = []color.RGBA{{255, 0, 0, 0}, {0, 0, 255, 0}}

//WriteSynthetic writes a white 640x480 MJPG video of given length with a filled rectangle per player on every frame
func WriteSynthetic(path string, fps, frames int, players []image.Rectangle) error {
	if fps <= 0 || frames < 0 {
		return fmt.Errorf("WriteSynthetic: invalid fps %d or frames %d", fps, frames)
	}

	writer, err := gocv.VideoWriterFile(path, "MJPG", float64(fps), 640, 480, true)
	if err != nil {
		return fmt.Errorf("WriteSynthetic: Error, got '%v'", err)
	}
	defer writer.Close()

	if !writer.IsOpened() {
		return errors.New("WriteSynthetic: video writer could not be opened")
	}

	for i := 0; i < frames; i++ {
		frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0), 480, 640, gocv.MatTypeCV8UC3)
		for j, p := range players {
			gocv.Rectangle(&frame, p, playerColors[j%len(playerColors)], -1)
		}
		gocv.PutText(&frame, fmt.Sprintf("Frame %d", i), image.Pt(10, 30), gocv.FontHersheySimplex, 1, color.RGBA{0, 0, 0, 0}, 2)

		err := writer.Write(frame)
		frame.Close()
		if err != nil {
			return fmt.Errorf("WriteSynthetic: could not write frame %d, got '%v'", i, err)
		}
	}

	return nil
}
