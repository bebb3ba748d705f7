package config

import (
	"encoding/json"
	"fmt"
	log "log/slog"
	"os"
	"path/filepath"
)

// Preferences is the small persisted subset of Config described in
// spec.md §3, plus the fields original_source/models.py's Preferences
// dataclass carries that the distillation dropped (SPEC_FULL.md §4.14).
type Preferences struct {
	WakeWordModel   string          `json:"wake_word_model"`
	ThresholdPreset ThresholdPreset `json:"wake_word_threshold_preset"`
	CustomThreshold float64         `json:"custom_threshold"`

	VisionEnabled     bool `json:"vision_enabled"`
	AttentionRequired bool `json:"attention_required"`

	EnableThinkingSound bool `json:"enable_thinking_sound"`

	LEDIntensity            int  `json:"led_intensity"`
	LEDNightMode            bool `json:"led_night_mode"`
	DistanceActivationSound bool `json:"distance_activation_sound"`
}

// DefaultPreferences mirrors Default()'s behavioral defaults for the
// fields preferences also tracks.
func DefaultPreferences() Preferences {
	return Preferences{
		WakeWordModel:            "",
		ThresholdPreset:          PresetDefault,
		CustomThreshold:          0.50,
		VisionEnabled:            false,
		AttentionRequired:        false,
		EnableThinkingSound:      true,
		LEDIntensity:             80,
		LEDNightMode:             false,
		DistanceActivationSound: true,
	}
}

// PreferencesPath returns preferences.json adjacent to the config file
// at configPath.
func PreferencesPath(configPath string) string {
	return filepath.Join(filepath.Dir(configPath), "preferences.json")
}

// LoadPreferences reads preferences.json, falling back to
// DefaultPreferences when the file is absent.
func LoadPreferences(path string) (Preferences, error) {
	prefs := DefaultPreferences()

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return prefs, nil
		}
		return prefs, err
	}
	if err := json.Unmarshal(raw, &prefs); err != nil {
		return prefs, err
	}
	return prefs, nil
}

// SavePreferences writes prefs atomically: marshal, write to
// "<path>.tmp", fsync, rename over path. This satisfies invariant I3
// (preferences on disk are never partial) and the round-trip testable
// property in spec.md §8.
func SavePreferences(path string, prefs Preferences) error {
	b, err := json.MarshalIndent(prefs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal preferences: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open preferences tmp: %w", err)
	}

	if _, err := f.Write(b); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write preferences tmp: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("fsync preferences tmp: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close preferences tmp: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename preferences: %w", err)
	}

	log.Debug("preferences written", "path", path)
	return nil
}
