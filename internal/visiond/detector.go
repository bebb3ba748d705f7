// Package visiond implements the vision daemon: a request/reply
// camera-glance service (spec.md §4.9) plus a small debug HTTP surface
// for observing its status and last detected face (SPEC_FULL.md §4.13).
package visiond

import (
	"errors"
	"image"
	"time"
)

// Verdict is the daemon's own orientation classification, decoupled
// from activation.AttentionKind so this package never imports the
// activation state machine's internals beyond the narrow verdict type
// it needs to produce.
type Verdict int

const (
	VerdictNoFace Verdict = iota
	VerdictFaceToward
	VerdictFaceAway
)

// Result is what a single glance produces: the classification, the
// detector's own confidence, and (when a face was found) its crop for
// the debug snapshot endpoint.
type Result struct {
	Verdict    Verdict
	Confidence float64
	Face       image.Image // nil if no face was found
}

// Detector performs face-orientation inference over a burst of frames.
// The actual algorithm is an out-of-scope external collaborator
// (spec.md §1); this interface is the seam a gocv-backed implementation
// or a null stub plugs into, per spec.md §9's "optional hardware"
// pattern.
type Detector interface {
	// Detect classifies one frame. Implementations never hold the
	// camera open between calls — Open/Close around a burst is the
	// daemon's responsibility, not the detector's.
	Detect(frame image.Image) (Result, error)
}

// ErrNoCamera is returned by a Camera.Open implementation when no
// capture device is available, mapping to Error{camera} on the wire
// per spec.md §4.9.
var ErrNoCamera = errors.New("visiond: no camera available")

// Camera captures frames for the burst window. Grounded on the null
// implementation pattern used throughout this repo for optional
// hardware (internal/distance.Reader, internal/gpio.Pin).
type Camera interface {
	Open() error
	Read() (image.Image, error)
	Close()
}

// NullCamera always fails to open, so a host with no camera attached
// runs the daemon but every glance returns Error{camera}.
type NullCamera struct{}

func (NullCamera) Open() error                  { return ErrNoCamera }
func (NullCamera) Read() (image.Image, error)   { return nil, ErrNoCamera }
func (NullCamera) Close()                       {}

// NullDetector classifies every frame as NoFace with zero confidence.
// Used when no inference backend is configured; it lets the daemon run
// (and the debug HTTP surface serve status) without ever producing a
// usable verdict.
type NullDetector struct{}

func (NullDetector) Detect(image.Image) (Result, error) {
	return Result{Verdict: VerdictNoFace}, nil
}

// WireLabel renders the verdict the way it travels in a
// VISION_GLANCE_RESULT envelope; internal/vision.Client maps this
// string back to an activation.AttentionVerdict on the requesting side.
func (v Verdict) WireLabel() string {
	switch v {
	case VerdictFaceToward:
		return "FACE_TOWARD"
	case VerdictFaceAway:
		return "FACE_AWAY"
	default:
		return "NO_FACE"
	}
}

// burstWindow is the capture duration per spec.md §4.9 ("a burst of
// 0.7-1.2s at 320x240"); the daemon samples frames across this window
// and keeps the highest-confidence classification.
const burstWindow = time.Second
