// Package wakeword implements the wake-word scorer: the consumer of
// captured audio blocks that triggers activation when any registered
// model's smoothed score crosses its effective threshold. The
// inference kernels themselves are an out-of-scope external
// collaborator (spec.md §1); this package only computes smoothing,
// threshold resolution, debouncing of debug logs, and model lifecycle.
package wakeword

import (
	"encoding/json"
	"fmt"
	log "log/slog"
	"os"
	"path/filepath"
)

// ModelType distinguishes the two inference backends named in
// SPEC_FULL.md §3's AvailableWakeWord.
type ModelType string

const (
	ModelMicro          ModelType = "micro"
	ModelOpenWakeWord   ModelType = "openWakeWord"
)

// Descriptor is the on-disk shape of a model directory entry: a small
// JSON sidecar naming the model, its backend type, and its built-in
// default threshold. The inference kernel binary/weights file itself is
// out of scope.
type Descriptor struct {
	ID               string    `json:"id"`
	Type             ModelType `json:"type"`
	WakeWord         string    `json:"wake_word"`
	TrainedLanguages []string  `json:"trained_languages"`
	DefaultThreshold float64   `json:"default_threshold"`
}

// ScoreFunc computes a single model's raw (unsmoothed) score for one
// audio block. Production code wires this to the model's actual
// inference call; tests and the null model supply a deterministic
// stub. The real kernel is out of scope per spec.md §1.
type ScoreFunc func(samples []float32) float64

// Model is a registered wake-word model: its descriptor plus the
// inference entry point.
type Model struct {
	Descriptor
	Path  string
	Score ScoreFunc

	disabled bool
}

// ScanDir discovers model descriptors in dir (files named
// "*.wakeword.json"), matching the AvailableWakeWord discovery
// contract in SPEC_FULL.md §3. A model whose descriptor fails to parse
// is logged once and skipped — it never halts the scan of the rest of
// the directory.
func ScanDir(dir string) ([]Descriptor, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("wakeword: scan %s: %w", dir, err)
	}

	var out []Descriptor
	for _, ent := range entries {
		if ent.IsDir() || filepath.Ext(ent.Name()) != ".json" {
			continue
		}
		path := filepath.Join(dir, ent.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			log.Warn("wakeword: cannot read descriptor", "path", path, "err", err)
			continue
		}
		var d Descriptor
		if err := json.Unmarshal(raw, &d); err != nil {
			log.Warn("wakeword: cannot parse descriptor", "path", path, "err", err)
			continue
		}
		if d.ID == "" {
			log.Warn("wakeword: descriptor missing id, skipped", "path", path)
			continue
		}
		out = append(out, d)
	}
	return out, nil
}
