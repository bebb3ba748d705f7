package frontpanel

import (
	"context"
	"testing"
	"time"

	"lva/internal/gpio"
	"lva/pkg/ipc"
)

func TestTouchDebounceRequiresSustainedPress(t *testing.T) {
	touch := gpio.NewNullPin(1)
	encA, encB := gpio.NewNullPin(2), gpio.NewNullPin(3)

	var sent []string
	d := New(touch, ipc.TypeManualWake, encA, encB, func(t string) error {
		sent = append(sent, t)
		return nil
	})

	base := time.Now()
	d.now = func() time.Time { return base }

	touch.Set(true)
	d.pollTouch() // first observation of the new level, starts the debounce window
	if len(sent) != 0 {
		t.Fatalf("sent = %v, want nothing before the debounce window elapses", sent)
	}

	d.now = func() time.Time { return base.Add(10 * time.Millisecond) }
	d.pollTouch()
	if len(sent) != 0 {
		t.Fatalf("sent = %v, want nothing before 50ms elapses", sent)
	}

	d.now = func() time.Time { return base.Add(60 * time.Millisecond) }
	d.pollTouch()
	if len(sent) != 1 || sent[0] != ipc.TypeManualWake {
		t.Fatalf("sent = %v, want one manual_wake after the debounce window", sent)
	}

	// Holding the pad down must not refire.
	d.pollTouch()
	if len(sent) != 1 {
		t.Fatalf("sent = %v, want no repeat while still held", sent)
	}
}

func TestTouchTypeSelectsMuteToggle(t *testing.T) {
	touch := gpio.NewNullPin(1)
	encA, encB := gpio.NewNullPin(2), gpio.NewNullPin(3)

	var sent []string
	d := New(touch, ipc.TypeMuteToggle, encA, encB, func(t string) error {
		sent = append(sent, t)
		return nil
	})
	base := time.Now()
	d.now = func() time.Time { return base }
	touch.Set(true)
	d.pollTouch()
	d.now = func() time.Time { return base.Add(60 * time.Millisecond) }
	d.pollTouch()

	if len(sent) != 1 || sent[0] != ipc.TypeMuteToggle {
		t.Fatalf("sent = %v, want mute_toggle", sent)
	}
}

func TestEncoderRotationEmitsVolumeSteps(t *testing.T) {
	touch := gpio.NewNullPin(1)
	encA, encB := gpio.NewNullPin(2), gpio.NewNullPin(3)

	var sent []string
	d := New(touch, ipc.TypeManualWake, encA, encB, func(t string) error {
		sent = append(sent, t)
		return nil
	})
	d.encLast = d.encoderPhase() // 00

	// Drive a clockwise quadrature sequence: 00 -> 01 -> 11 -> 10 -> 00
	encB.Set(true)
	d.pollEncoder()
	encA.Set(true)
	d.pollEncoder()
	encB.Set(false)
	d.pollEncoder()
	encA.Set(false)
	d.pollEncoder()

	if len(sent) == 0 {
		t.Fatal("expected at least one volume step from the rotation sequence")
	}
	for _, s := range sent {
		if s != ipc.TypeVolumeUp && s != ipc.TypeVolumeDown {
			t.Fatalf("unexpected event type %q", s)
		}
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	touch := gpio.NewNullPin(1)
	encA, encB := gpio.NewNullPin(2), gpio.NewNullPin(3)
	d := New(touch, ipc.TypeManualWake, encA, encB, func(string) error { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
