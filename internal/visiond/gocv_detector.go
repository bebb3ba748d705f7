package visiond

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// YuNetDetector backs Detector with OpenCV's FaceDetectorYN, the same
// detector teslashibe-go-reachy's pkg/tracking/detection/yunet.go uses
// for face tracking; here it classifies orientation (toward/away)
// instead of tracking a bounding box across frames.
type YuNetDetector struct {
	net gocv.FaceDetectorYN
}

// NewYuNetDetector loads an ONNX face-orientation model. modelPath must
// point at a YuNet-format model; callers fall back to NullDetector if
// the model file is absent rather than failing the whole daemon.
func NewYuNetDetector(modelPath string, inputW, inputH int, confidenceThresh float32) (*YuNetDetector, error) {
	net := gocv.NewFaceDetectorYNWithParams(
		modelPath,
		"",
		image.Pt(inputW, inputH),
		confidenceThresh,
		0.3,
		5000,
		int(gocv.NetBackendDefault),
		int(gocv.NetTargetCPU),
	)
	return &YuNetDetector{net: net}, nil
}

func (d *YuNetDetector) Close() error { return d.net.Close() }

// Detect runs orientation inference on one frame. Orientation is
// derived from the landmark geometry YuNet returns (eye/nose symmetry);
// a frame with no detected face reports VerdictNoFace.
func (d *YuNetDetector) Detect(frame image.Image) (Result, error) {
	mat, err := gocv.ImageToMatRGB(frame)
	if err != nil {
		return Result{}, fmt.Errorf("visiond: convert frame: %w", err)
	}
	defer mat.Close()
	if mat.Empty() {
		return Result{}, fmt.Errorf("visiond: empty frame")
	}

	d.net.SetInputSize(image.Pt(mat.Cols(), mat.Rows()))

	faces := gocv.NewMat()
	defer faces.Close()
	d.net.Detect(mat, &faces)

	if faces.Rows() == 0 {
		return Result{Verdict: VerdictNoFace}, nil
	}

	// Highest-score row wins; row layout per YuNet: 0-3 bbox, 4-13 five
	// landmark (x,y) pairs, 14 score.
	bestRow, bestScore := 0, float32(0)
	for r := 0; r < faces.Rows(); r++ {
		score := faces.GetFloatAt(r, 14)
		if score > bestScore {
			bestScore, bestRow = score, r
		}
	}

	leftEyeX := faces.GetFloatAt(bestRow, 4)
	rightEyeX := faces.GetFloatAt(bestRow, 6)
	noseX := faces.GetFloatAt(bestRow, 8)
	verdict := orientationFromLandmarks(leftEyeX, rightEyeX, noseX)

	return Result{Verdict: verdict, Confidence: float64(bestScore)}, nil
}

// orientationFromLandmarks classifies toward-vs-away from nose
// position relative to the eye midpoint: a face turned away shifts the
// nose markedly off the inter-eye midpoint.
func orientationFromLandmarks(leftEyeX, rightEyeX, noseX float32) Verdict {
	mid := (leftEyeX + rightEyeX) / 2
	eyeSpan := rightEyeX - leftEyeX
	if eyeSpan <= 0 {
		return VerdictNoFace
	}
	offset := (noseX - mid) / eyeSpan
	if offset > -0.2 && offset < 0.2 {
		return VerdictFaceToward
	}
	return VerdictFaceAway
}
