package analysis

//FrameObservation is the outcome of analyzing one sampled frame
type FrameObservation struct {
	Frame       int     `json:"frame" yaml:"frame"`
	Time        float64 `json:"time" yaml:"time"`
	PeopleCount int     `json:"people_count" yaml:"people_count"`
}

//RunSummary holds the statistics derived from a run's observations
type RunSummary struct {
	AveragePlayersDetected float64 `json:"average_players_detected" yaml:"average_players_detected"`
	AnalysisDuration       float64 `json:"analysis_duration" yaml:"analysis_duration"`
	FramesAnalyzed         int     `json:"frames_analyzed" yaml:"frames_analyzed"`
}

//DetectionFault describes a frame whose detection failed and was recorded as zero people
type DetectionFault struct {
	Frame int    `json:"frame" yaml:"frame"`
	Error string `json:"error" yaml:"error"`
}

//AnalysisResult is everything a run produced. The json/yaml field names are read by downstream consumers, do not rename them.
type AnalysisResult struct {
	VideoPath   string             `json:"video_path" yaml:"video_path"`
	FPS         int                `json:"fps" yaml:"fps"`
	TotalFrames int                `json:"total_frames" yaml:"total_frames"`
	Detections  []FrameObservation `json:"detections" yaml:"detections"`
	Summary     RunSummary         `json:"summary" yaml:"summary"`

	//not part of the persisted artifact
	Termination State            `json:"-" yaml:"-"`
	Faults      []DetectionFault `json:"-" yaml:"-"`
}
