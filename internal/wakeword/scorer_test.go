package wakeword

import (
	"testing"
	"time"

	"lva/internal/activation"
	"lva/internal/audio"
	"lva/internal/config"
)

func constScore(v float64) ScoreFunc {
	return func([]float32) float64 { return v }
}

func TestScorerTriggersAboveEffectiveThreshold(t *testing.T) {
	var fired []activation.TriggerSource
	cfg := config.Default()
	cfg.ThresholdPreset = config.PresetDefault // 0.50

	s := NewScorer(func() config.Config { return cfg }, func(t activation.TriggerSource) { fired = append(fired, t) })
	s.Register(&Model{Descriptor: Descriptor{ID: "hey_lva", DefaultThreshold: 0.5}, Score: constScore(0.9)})

	ts := time.Now()
	for i := 0; i < 5; i++ {
		s.Push(audio.Block{Samples: make([]float32, 10), Timestamp: ts.Add(time.Duration(i) * 20 * time.Millisecond)})
	}

	if len(fired) == 0 {
		t.Fatal("expected at least one trigger once the smoothed score exceeds threshold")
	}
	if fired[0].ModelID != "hey_lva" {
		t.Fatalf("ModelID = %q, want hey_lva", fired[0].ModelID)
	}
}

func TestScorerIgnoresDisabledModel(t *testing.T) {
	var fired int
	cfg := config.Default()
	s := NewScorer(func() config.Config { return cfg }, func(activation.TriggerSource) { fired++ })
	s.Register(&Model{Descriptor: Descriptor{ID: "bad", DefaultThreshold: 0.1}, Score: constScore(0.99)})
	s.Disable("bad", nil)

	s.Push(audio.Block{Samples: make([]float32, 10), Timestamp: time.Now()})
	if fired != 0 {
		t.Fatalf("fired = %d, want 0 for a disabled model", fired)
	}
}

func TestScorerRespectsWakeWordDetectionOff(t *testing.T) {
	var fired int
	cfg := config.Default()
	cfg.WakeWordDetection = false
	s := NewScorer(func() config.Config { return cfg }, func(activation.TriggerSource) { fired++ })
	s.Register(&Model{Descriptor: Descriptor{ID: "hey_lva", DefaultThreshold: 0.1}, Score: constScore(0.99)})

	s.Push(audio.Block{Samples: make([]float32, 10), Timestamp: time.Now()})
	if fired != 0 {
		t.Fatalf("fired = %d, want 0 when wake_word_detection is disabled", fired)
	}
}

func TestEffectiveThresholdCustomPreset(t *testing.T) {
	var fired int
	cfg := config.Default()
	cfg.ThresholdPreset = config.PresetCustom
	cfg.CustomThreshold = 0.8
	s := NewScorer(func() config.Config { return cfg }, func(activation.TriggerSource) { fired++ })
	s.Register(&Model{Descriptor: Descriptor{ID: "m", DefaultThreshold: 0.1}, Score: constScore(0.75)})

	s.Push(audio.Block{Samples: make([]float32, 10), Timestamp: time.Now()})
	if fired != 0 {
		t.Fatalf("fired = %d, want 0 below the custom threshold of 0.8", fired)
	}
}
