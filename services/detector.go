package services

// Detection is a single object found in a camera frame. Coordinates are
// normalized to the frame size (0.0 to 1.0).
type Detection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
}

// FrameDetector analyzes a base64-encoded camera frame. Sensitivity ranges
// 0.0 to 1.0 and lets the client trade false positives for recall.
type FrameDetector interface {
	Detect(frame string, sensitivity float64) []Detection
}

// StubDetector is the built-in detector used when no inference backend is
// configured. It never reports detections.
type StubDetector struct{}

func (StubDetector) Detect(frame string, sensitivity float64) []Detection {
	return []Detection{}
}
