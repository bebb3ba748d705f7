package distance

import (
	"testing"
	"time"

	"lva/internal/activation"
	"lva/internal/config"
)

type fakeReader struct {
	values  []int
	ok      []bool
	i       int
	reinits int
}

func (f *fakeReader) Available() bool { return true }
func (f *fakeReader) ReadMM() (int, bool) {
	if f.i >= len(f.values) {
		return 0, false
	}
	mm, ok := f.values[f.i], f.ok[f.i]
	f.i++
	return mm, ok
}
func (f *fakeReader) SetTimingBudgetMS(int) bool     { return true }
func (f *fakeReader) SetIntermeasurementMS(int) bool { return true }
func (f *fakeReader) Reinit() error                  { f.reinits++; return nil }
func (f *fakeReader) Close()                         {}

func TestDebounceRequiresSustainedBelowThreshold(t *testing.T) {
	reader := &fakeReader{
		values: []int{90, 90, 90},
		ok:     []bool{true, true, true},
	}
	var fired []activation.TriggerSource
	cfg := config.Default()
	cfg.DistanceActivationThreshold = 120

	tr := New(reader, func() activation.State { return activation.StateIdle }, func() config.Config { return cfg },
		func(ts activation.TriggerSource) { fired = append(fired, ts) }, func(int, bool) {})

	base := time.Unix(1000, 0)
	clock := base
	tr.now = func() time.Time { return clock }

	tr.poll() // first below-threshold reading: starts belowSince, does not fire yet
	if len(fired) != 0 {
		t.Fatalf("fired = %v, want none before debounce elapses", fired)
	}

	clock = base.Add(100 * time.Millisecond)
	tr.poll()
	if len(fired) != 0 {
		t.Fatalf("fired = %v, want none at 100ms (< 250ms debounce)", fired)
	}

	clock = base.Add(300 * time.Millisecond)
	tr.poll()
	if len(fired) != 1 {
		t.Fatalf("fired = %v, want exactly one trigger once debounce elapses", fired)
	}
	if fired[0].DistanceMM != 90 {
		t.Fatalf("fired[0].DistanceMM = %d, want 90", fired[0].DistanceMM)
	}
}

func TestDebounceDoesNotRefireWhileStillBelow(t *testing.T) {
	reader := &fakeReader{
		values: []int{90, 90, 90, 90},
		ok:     []bool{true, true, true, true},
	}
	var fired int
	cfg := config.Default()
	cfg.DistanceActivationThreshold = 120

	tr := New(reader, func() activation.State { return activation.StateIdle }, func() config.Config { return cfg },
		func(activation.TriggerSource) { fired++ }, func(int, bool) {})

	base := time.Unix(2000, 0)
	clock := base
	tr.now = func() time.Time { return clock }

	for i := 0; i < 4; i++ {
		clock = base.Add(time.Duration(i) * 100 * time.Millisecond)
		tr.poll()
	}
	if fired != 1 {
		t.Fatalf("fired = %d, want exactly 1 while continuously below threshold", fired)
	}
}

func TestReinitAfterThreeConsecutiveFailures(t *testing.T) {
	reader := &fakeReader{
		values: []int{0, 0, 0},
		ok:     []bool{false, false, false},
	}
	cfg := config.Default()
	tr := New(reader, func() activation.State { return activation.StateIdle }, func() config.Config { return cfg },
		func(activation.TriggerSource) {}, func(int, bool) {})
	tr.now = time.Now

	tr.poll()
	tr.poll()
	if reader.reinits != 0 {
		t.Fatalf("reinits = %d, want 0 before third failure", reader.reinits)
	}
	tr.poll()
	if reader.reinits != 1 {
		t.Fatalf("reinits = %d, want 1 after three consecutive failures", reader.reinits)
	}
}

func TestCadenceByState(t *testing.T) {
	if cadenceFor(activation.StateIdle) != idleCadence {
		t.Fatal("IDLE should poll at idle cadence")
	}
	if cadenceFor(activation.StateProxVerify) != fastCadence {
		t.Fatal("PROX_VERIFY should poll at fast cadence")
	}
	if cadenceFor(activation.StateEngaged) != fastCadence {
		t.Fatal("ENGAGED should poll at fast cadence")
	}
}
