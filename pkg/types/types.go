package types

import "image"

//ClassPerson is the COCO class id of a person
const ClassPerson = 0

//Frame is a decoded video frame as handed from a frame source to a detector.
//The pipeline never looks inside it; the gocv source yields *gocv.Mat values which are only valid until the next read.
type Frame interface{}

//Detection is one detected instance inside a frame
type Detection struct {
	Class      int             `json:"class"`
	Confidence float32         `json:"confidence"`
	Box        image.Rectangle `json:"-"`
}

//BoundingBox is the wire representation of a detection, matching what external detector workers print
type BoundingBox struct {
	Class      int     `json:"class"`
	Confidence float32 `json:"confidence"`
	Xmin       int     `json:"xmin"`
	Ymin       int     `json:"ymin"`
	Xmax       int     `json:"xmax"`
	Ymax       int     `json:"ymax"`
}

//Detection converts a wire bounding box into a Detection
func (b BoundingBox) Detection() Detection {
	return Detection{
		Class:      b.Class,
		Confidence: b.Confidence,
		Box:        image.Rect(b.Xmin, b.Ymin, b.Xmax, b.Ymax),
	}
}

//InClasses returns true if class appears in given classes
func InClasses(class int, classes []int) bool {
	for _, c := range classes {
		if c == class {
			return true
		}
	}

	return false
}
