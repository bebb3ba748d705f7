// Package vision implements the vision request client: the core's
// side of the request/reply exchange with the vision daemon over
// visd.sock (spec.md §4.5).
package vision

// GlanceRequest is the VISION_GLANCE_REQUEST payload.
type GlanceRequest struct {
	RequestID string `json:"request_id"`
}

// GlanceResult is the VISION_GLANCE_RESULT payload.
type GlanceResult struct {
	RequestID  string  `json:"request_id"`
	Verdict    string  `json:"verdict"` // FACE_TOWARD|FACE_AWAY|NO_FACE|ERROR
	Confidence float64 `json:"confidence"`
	LatencyMS  int     `json:"latency_ms"`
	Error      string  `json:"error,omitempty"`
}
