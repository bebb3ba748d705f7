package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Default()
	if cfg.HubPort != want.HubPort || cfg.VisionCooldownS != want.VisionCooldownS {
		t.Fatalf("Load(missing) = %+v, want defaults %+v", cfg, want)
	}
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"hub_port": 7000, "vision_enabled": true, "unknown_future_key": 123}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HubPort != 7000 {
		t.Fatalf("HubPort = %d, want 7000", cfg.HubPort)
	}
	if !cfg.VisionEnabled {
		t.Fatal("VisionEnabled = false, want true")
	}
	// untouched keys keep their default
	if cfg.EngagedVADWindowS != Default().EngagedVADWindowS {
		t.Fatalf("EngagedVADWindowS = %v, want default", cfg.EngagedVADWindowS)
	}
}

func TestEffectiveThreshold(t *testing.T) {
	cases := []struct {
		preset ThresholdPreset
		custom float64
		model  float64
		want   float64
	}{
		{PresetModelDefault, 0.9, 0.42, 0.42},
		{PresetCustom, 0.33, 0.42, 0.33},
		{PresetStrict, 0.33, 0.42, 0.60},
		{PresetSensitive, 0.33, 0.42, 0.45},
	}
	for _, c := range cases {
		cfg := Config{ThresholdPreset: c.preset, CustomThreshold: c.custom}
		if got := cfg.EffectiveThreshold(c.model); got != c.want {
			t.Errorf("preset %s: EffectiveThreshold = %v, want %v", c.preset, got, c.want)
		}
	}
}

func TestPreferencesRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := PreferencesPath(filepath.Join(dir, "config.json"))

	prefs := DefaultPreferences()
	prefs.ThresholdPreset = PresetStrict
	prefs.VisionEnabled = true

	if err := SavePreferences(path, prefs); err != nil {
		t.Fatalf("SavePreferences: %v", err)
	}

	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("tmp file should not survive a successful save, stat err = %v", err)
	}

	got, err := LoadPreferences(path)
	if err != nil {
		t.Fatalf("LoadPreferences: %v", err)
	}
	if got.ThresholdPreset != PresetStrict || !got.VisionEnabled {
		t.Fatalf("LoadPreferences = %+v, want round-tripped %+v", got, prefs)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("written preferences are not valid JSON: %v", err)
	}
}
