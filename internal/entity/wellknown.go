package entity

import (
	"fmt"

	"lva/internal/config"
)

// Deps are the callbacks BuildRegistry wires into entity handlers. Per
// spec.md §4.6, a config-affecting write never mutates shared state
// directly: it calls PostConfig with the full updated snapshot, and the
// caller (internal/hub) is responsible for enqueueing that snapshot as
// an activation.EvConfigMutated event and rewriting preferences.
type Deps struct {
	PostConfig func(config.Config)
	OnReboot   func()
	OnShutdown func()
	GetVolume  func() float64
	SetVolume  func(float64) bool
}

// BuildRegistry constructs the entity set from spec.md §6 plus the
// supplemented entities from SPEC_FULL.md §4.14
// (original_source/entity.py's SystemVolumeNumberEntity, night-mode
// switch, reboot/shutdown buttons, and a MediaPlayer entity for the
// SPEAKING-state playback sink).
func BuildRegistry(cfg config.Config, deps Deps) *Registry {
	r := NewRegistry()
	cur := cfg // handlers close over a running snapshot they keep updated

	post := func() {
		if deps.PostConfig != nil {
			deps.PostConfig(cur)
		}
	}

	r.Register(NewSelect(
		"select.wake_word_threshold_preset", "Wake word threshold preset",
		string(cur.ThresholdPreset),
		[]string{
			string(config.PresetModelDefault), string(config.PresetStrict),
			string(config.PresetDefault), string(config.PresetSensitive),
			string(config.PresetVerySensitive), string(config.PresetCustom),
		},
	), func(e Entity, w Write) (Entity, error) {
		preset := config.ThresholdPreset(w.StringValue)
		valid := false
		for _, opt := range e.Options {
			if opt == string(preset) {
				valid = true
				break
			}
		}
		if !valid {
			return e, fmt.Errorf("entity: invalid threshold preset %q", w.StringValue)
		}
		cur.ThresholdPreset = preset
		e.StringValue = w.StringValue
		post()
		return e, nil
	})

	r.Register(NewNumber("number.wake_word_threshold", "Wake word threshold", cur.CustomThreshold*100, 10, 95, "%"),
		func(e Entity, w Write) (Entity, error) {
			if w.NumberValue < e.Min || w.NumberValue > e.Max {
				return e, fmt.Errorf("entity: wake word threshold out of range [%v,%v]", e.Min, e.Max)
			}
			cur.CustomThreshold = w.NumberValue / 100
			e.NumberValue = w.NumberValue
			post()
			return e, nil
		})

	r.Register(NewSwitch("switch.vision_enabled", "Vision enabled", cur.VisionEnabled),
		func(e Entity, w Write) (Entity, error) {
			cur.VisionEnabled = w.BoolValue
			e.BoolValue = w.BoolValue
			post()
			return e, nil
		})

	r.Register(NewSwitch("switch.attention_required", "Attention required", cur.AttentionRequired),
		func(e Entity, w Write) (Entity, error) {
			cur.AttentionRequired = w.BoolValue
			e.BoolValue = w.BoolValue
			post()
			return e, nil
		})

	r.Register(NewNumber("number.vision_cooldown_s", "Vision cooldown", cur.VisionCooldownS, 0.5, 15.0, "s"),
		func(e Entity, w Write) (Entity, error) {
			if w.NumberValue < e.Min || w.NumberValue > e.Max {
				return e, fmt.Errorf("entity: vision cooldown out of range")
			}
			cur.VisionCooldownS = w.NumberValue
			e.NumberValue = w.NumberValue
			post()
			return e, nil
		})

	r.Register(NewNumber("number.vision_min_confidence", "Vision minimum confidence", cur.VisionMinConfidence, 0.0, 1.0, ""),
		func(e Entity, w Write) (Entity, error) {
			if w.NumberValue < e.Min || w.NumberValue > e.Max {
				return e, fmt.Errorf("entity: vision min confidence out of range")
			}
			cur.VisionMinConfidence = w.NumberValue
			e.NumberValue = w.NumberValue
			post()
			return e, nil
		})

	r.Register(NewNumber("number.engaged_vad_window_s", "Engaged VAD window", cur.EngagedVADWindowS, 0.5, 10.0, "s"),
		func(e Entity, w Write) (Entity, error) {
			if w.NumberValue < e.Min || w.NumberValue > e.Max {
				return e, fmt.Errorf("entity: VAD window out of range")
			}
			cur.EngagedVADWindowS = w.NumberValue
			e.NumberValue = w.NumberValue
			post()
			return e, nil
		})

	r.Register(NewSwitch("switch.enable_thinking_sound", "Enable thinking sound", cur.EnableThinkingSound),
		func(e Entity, w Write) (Entity, error) {
			cur.EnableThinkingSound = w.BoolValue
			e.BoolValue = w.BoolValue
			post()
			return e, nil
		})

	r.Register(NewSensor("sensor.distance", "Distance", nil), nil)
	r.Register(NewSensor("sensor.last_attention_state", "Last attention state", "UNKNOWN"), nil)
	r.Register(NewSensor("sensor.last_vision_latency_ms", "Last vision latency", 0), nil)
	r.Register(NewSensor("sensor.last_vision_error", "Last vision error", ""), nil)

	// Supplemented entities (SPEC_FULL.md §4.14), none participate in
	// activation-gate invariants.
	r.Register(NewSwitch("switch.night_mode", "Night mode", false),
		func(e Entity, w Write) (Entity, error) {
			e.BoolValue = w.BoolValue
			return e, nil
		})

	if deps.GetVolume != nil && deps.SetVolume != nil {
		r.Register(NewNumber("number.system_volume", "System volume", deps.GetVolume(), 0, 100, "%"),
			func(e Entity, w Write) (Entity, error) {
				if w.NumberValue < 0 || w.NumberValue > 100 {
					return e, fmt.Errorf("entity: volume out of range")
				}
				if !deps.SetVolume(w.NumberValue) {
					return e, fmt.Errorf("entity: failed to set volume")
				}
				e.NumberValue = w.NumberValue
				return e, nil
			})
	}

	r.Register(NewButton("button.reboot", "Reboot"), func(e Entity, w Write) (Entity, error) {
		if deps.OnReboot != nil {
			deps.OnReboot()
		}
		return e, nil
	})
	r.Register(NewButton("button.shutdown", "Shutdown"), func(e Entity, w Write) (Entity, error) {
		if deps.OnShutdown != nil {
			deps.OnShutdown()
		}
		return e, nil
	})

	r.Register(NewMediaPlayer("media_player.lva", "LVA playback"), func(e Entity, w Write) (Entity, error) {
		// Volume/mute writes from the hub; play/pause/stop are driven
		// internally by the activation state machine, not by hub writes.
		e.Volume = w.NumberValue
		e.BoolValue = w.BoolValue
		return e, nil
	})

	return r
}
