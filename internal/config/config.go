// Package config loads and represents the satellite's JSON config file,
// mirroring original_source/config.py's "unknown keys ignored, missing
// keys default" contract.
package config

import (
	"encoding/json"
	log "log/slog"
	"os"
)

// DistanceSensorModel selects polling/timing defaults for the distance
// reader capability.
type DistanceSensorModel string

const (
	DistanceSensorL0X DistanceSensorModel = "l0x"
	DistanceSensorL1X DistanceSensorModel = "l1x"
)

// ThresholdPreset is a named wake-word threshold value.
type ThresholdPreset string

const (
	PresetModelDefault    ThresholdPreset = "model_default"
	PresetStrict          ThresholdPreset = "strict"
	PresetDefault         ThresholdPreset = "default"
	PresetSensitive       ThresholdPreset = "sensitive"
	PresetVerySensitive   ThresholdPreset = "very_sensitive"
	PresetCustom          ThresholdPreset = "custom"
)

// PresetValue returns the fixed threshold for preset, or (0, false) for
// ModelDefault/Custom which defer to the model default or
// CustomThreshold respectively.
func PresetValue(p ThresholdPreset) (float64, bool) {
	switch p {
	case PresetStrict:
		return 0.60, true
	case PresetDefault:
		return 0.50, true
	case PresetSensitive:
		return 0.45, true
	case PresetVerySensitive:
		return 0.40, true
	default:
		return 0, false
	}
}

// DefaultConfigPath is used when LVA_CONFIG_PATH is unset.
const DefaultConfigPath = "/home/user/linux-voice-assistant/config.json"

// Sounds names the sound asset paths played on various events, per
// SPEC_FULL.md §4.14 (beyond spec.md's bare "sound paths").
type Sounds struct {
	Wakeup          string `json:"wakeup_sound"`
	Processing      string `json:"processing_sound"`
	Mute            string `json:"mute_sound"`
	Unmute          string `json:"unmute_sound"`
	TimerFinished   string `json:"timer_finished_sound"`
	DistanceTrigger string `json:"distance_activation_sound"`
}

// Config is the full recognized-option set from spec.md §3, plus the
// audio device and GPIO knobs spec.md calls out without enumerating.
type Config struct {
	WakeWordDetection bool     `json:"wake_word_detection"`
	WakeWordDirs      []string `json:"wake_word_dirs"`

	ThresholdPreset  ThresholdPreset `json:"wake_word_threshold_preset"`
	CustomThreshold  float64         `json:"custom_threshold"`

	DistanceActivation          bool                 `json:"distance_activation"`
	DistanceActivationThreshold int                  `json:"distance_activation_threshold_mm"`
	DistanceSensorModel         DistanceSensorModel  `json:"distance_sensor_model"`

	VisionEnabled      bool    `json:"vision_enabled"`
	AttentionRequired  bool    `json:"attention_required"`
	VisionCooldownS    float64 `json:"vision_cooldown_s"`
	VisionMinConfidence float64 `json:"vision_min_confidence"`
	VisionFallback     bool    `json:"vision_fallback"`

	EngagedVADWindowS float64 `json:"engaged_vad_window_s"`

	HubHost string `json:"hub_host"`
	HubPort int    `json:"hub_port"`

	AudioInputDevice  string `json:"audio_input_device"`
	AudioOutputDevice string `json:"audio_output_device"`

	EnableThinkingSound bool `json:"enable_thinking_sound"`

	GPIOEnabled bool `json:"gpio_enabled"`

	FaceSnapshotPort int `json:"face_snapshot_port"`

	Sounds Sounds `json:"sounds"`
}

// Default returns the documented defaults applied for any key absent
// from the loaded file.
func Default() Config {
	return Config{
		WakeWordDetection:           true,
		WakeWordDirs:                []string{"/usr/share/lva/wake-words"},
		ThresholdPreset:             PresetDefault,
		CustomThreshold:             0.50,
		DistanceActivation:          false,
		DistanceActivationThreshold: 150,
		DistanceSensorModel:         DistanceSensorL0X,
		VisionEnabled:               false,
		AttentionRequired:           false,
		VisionCooldownS:             4.0,
		VisionMinConfidence:         0.60,
		VisionFallback:              true,
		EngagedVADWindowS:           2.5,
		HubHost:                     "",
		HubPort:                     6053,
		AudioInputDevice:            "default",
		AudioOutputDevice:           "default",
		EnableThinkingSound:         true,
		GPIOEnabled:                 false,
		FaceSnapshotPort:            8766,
		Sounds: Sounds{
			Wakeup:          "",
			Processing:      "",
			Mute:            "",
			Unmute:          "",
			TimerFinished:   "",
			DistanceTrigger: "",
		},
	}
}

// Path resolves the config file location: LVA_CONFIG_PATH, else
// DefaultConfigPath.
func Path() string {
	if p := os.Getenv("LVA_CONFIG_PATH"); p != "" {
		return p
	}
	return DefaultConfigPath
}

// Load reads and merges the config file at path onto the documented
// defaults. A missing file is not an error: Default() is returned
// unchanged, matching config.py's "run with defaults if absent"
// behavior. Unknown top-level keys are logged as warnings and ignored
// (json.Unmarshal already ignores them; we re-decode into a generic map
// to detect and warn about them).
func Load(path string) (Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn("config file absent, using defaults", "path", path)
			return cfg, nil
		}
		return cfg, err
	}

	if err := json.Unmarshal(raw, &cfg); err != nil {
		return cfg, err
	}

	warnUnknownKeys(raw)
	return cfg, nil
}

func warnUnknownKeys(raw []byte) {
	var generic map[string]json.RawMessage
	if err := json.Unmarshal(raw, &generic); err != nil {
		return
	}
	known := map[string]bool{
		"wake_word_detection": true, "wake_word_dirs": true,
		"wake_word_threshold_preset": true, "custom_threshold": true,
		"distance_activation": true, "distance_activation_threshold_mm": true,
		"distance_sensor_model": true, "vision_enabled": true,
		"attention_required": true, "vision_cooldown_s": true,
		"vision_min_confidence": true, "vision_fallback": true,
		"engaged_vad_window_s": true, "hub_host": true, "hub_port": true,
		"audio_input_device": true, "audio_output_device": true,
		"enable_thinking_sound": true, "gpio_enabled": true,
		"face_snapshot_port": true, "sounds": true,
	}
	for k := range generic {
		if !known[k] {
			log.Warn("config: unrecognized key ignored", "key", k)
		}
	}
}

// EffectiveThreshold resolves the wake-word threshold to apply for a
// model whose own built-in default is modelDefault, per spec.md §4.2.
func (c Config) EffectiveThreshold(modelDefault float64) float64 {
	if c.ThresholdPreset == PresetModelDefault {
		return modelDefault
	}
	if c.ThresholdPreset == PresetCustom {
		return c.CustomThreshold
	}
	if v, ok := PresetValue(c.ThresholdPreset); ok {
		return v
	}
	return modelDefault
}
