package visiond

import (
	"image"
	"sync"
	"testing"
)

type fakeCamera struct {
	openErr error
	frame   image.Image
	opened  bool
}

func (f *fakeCamera) Open() error {
	if f.openErr != nil {
		return f.openErr
	}
	f.opened = true
	return nil
}
func (f *fakeCamera) Read() (image.Image, error) { return f.frame, nil }
func (f *fakeCamera) Close()                     { f.opened = false }

type fakeDetector struct {
	result Result
}

func (f *fakeDetector) Detect(image.Image) (Result, error) { return f.result, nil }

func TestGlanceCameraFailureReturnsCameraError(t *testing.T) {
	d := NewDaemon("/tmp/does-not-matter.sock", &fakeCamera{openErr: ErrNoCamera}, NullDetector{}, nil)
	res := d.glance("req-1")
	if res.Error != "camera" {
		t.Fatalf("Error = %q, want camera", res.Error)
	}
}

func TestGlanceRejectsConcurrentRequests(t *testing.T) {
	cam := &fakeCamera{frame: image.NewRGBA(image.Rect(0, 0, 4, 4))}
	det := &fakeDetector{result: Result{Verdict: VerdictFaceToward, Confidence: 0.9}}
	d := NewDaemon("/tmp/does-not-matter.sock", cam, det, nil)

	d.mu.Lock()
	d.inFlight = true
	d.mu.Unlock()

	res := d.glance("req-2")
	if res.Error != "busy" {
		t.Fatalf("Error = %q, want busy", res.Error)
	}
}

func TestGlanceSuccessPicksHighestConfidence(t *testing.T) {
	cam := &fakeCamera{frame: image.NewRGBA(image.Rect(0, 0, 4, 4))}
	det := &fakeDetector{result: Result{Verdict: VerdictFaceAway, Confidence: 0.6}}
	d := NewDaemon("/tmp/does-not-matter.sock", cam, det, nil)

	res := d.glance("req-3")
	if res.Verdict != "FACE_AWAY" {
		t.Fatalf("Verdict = %q, want FACE_AWAY", res.Verdict)
	}
	if res.Confidence != 0.6 {
		t.Fatalf("Confidence = %v, want 0.6", res.Confidence)
	}
	if cam.opened {
		t.Fatal("camera must be closed after the glance completes")
	}
}

func TestGlanceIsSerializedNotParallel(t *testing.T) {
	cam := &fakeCamera{frame: image.NewRGBA(image.Rect(0, 0, 4, 4))}
	det := &fakeDetector{result: Result{Verdict: VerdictNoFace}}
	d := NewDaemon("/tmp/does-not-matter.sock", cam, det, nil)

	var wg sync.WaitGroup
	results := make([]string, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = d.glance("req").Verdict
		}(i)
	}
	wg.Wait()

	busyCount := 0
	for _, r := range results {
		if r == "ERROR" {
			busyCount++
		}
	}
	if busyCount == len(results) {
		t.Fatal("at least one glance should have succeeded")
	}
}
