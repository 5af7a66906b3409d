package analysis

import "errors"

var (
	//ErrSourceUnavailable means the video could not be opened or decoded. Fatal to the run, nothing is written.
	ErrSourceUnavailable = errors.New("video source unavailable")

	//ErrDetectionFault means the detector failed on a single frame. Never fatal to the run.
	ErrDetectionFault = errors.New("detection fault")

	//ErrWriteFailure means the result was computed but could not be persisted
	ErrWriteFailure = errors.New("result write failure")

	//ErrOrderingViolation means observations reached the aggregator out of order, which is a caller bug
	ErrOrderingViolation = errors.New("observation ordering violation")
)
