package entity

import (
	"testing"

	"lva/internal/config"
	"lva/pkg/util"
)

func TestApplyDispatchesToHandler(t *testing.T) {
	var posted []config.Config
	deps := Deps{PostConfig: func(c config.Config) { posted = append(posted, c) }}
	r := BuildRegistry(config.Default(), deps)

	updated, err := r.Apply(Write{EntityID: "switch.vision_enabled", BoolValue: true})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !updated.BoolValue {
		t.Fatal("expected vision_enabled entity to reflect true")
	}
	if len(posted) != 1 || !posted[0].VisionEnabled {
		t.Fatalf("posted = %v, want one snapshot with VisionEnabled=true", posted)
	}
}

func TestApplyRejectsOutOfRangeNumber(t *testing.T) {
	r := BuildRegistry(config.Default(), Deps{})
	_, err := r.Apply(Write{EntityID: "number.vision_cooldown_s", NumberValue: 100})
	if err == nil {
		t.Fatal("expected range validation error")
	}
	got, _ := r.Get("number.vision_cooldown_s")
	if got.NumberValue != config.Default().VisionCooldownS {
		t.Fatal("rejected write must not change the stored value")
	}
}

func TestApplyUnknownEntity(t *testing.T) {
	r := BuildRegistry(config.Default(), Deps{})
	if _, err := r.Apply(Write{EntityID: "switch.does_not_exist"}); err == nil {
		t.Fatal("expected error for unknown entity id")
	}
}

func TestSensorIsReadOnly(t *testing.T) {
	r := BuildRegistry(config.Default(), Deps{})
	if _, err := r.Apply(Write{EntityID: "sensor.distance", NumberValue: 42}); err == nil {
		t.Fatal("expected write to a sensor to be rejected")
	}
	if err := r.SetSensor("sensor.distance", 88); err != nil {
		t.Fatalf("SetSensor: %v", err)
	}
	got, _ := r.Get("sensor.distance")
	if got.SensorValue != 88 {
		t.Fatalf("SensorValue = %v, want 88", got.SensorValue)
	}
}

func TestAllContainsExpectedIDsRegardlessOfOrder(t *testing.T) {
	r := BuildRegistry(config.Default(), Deps{})
	all := r.All()

	want := []string{
		"select.wake_word_threshold_preset", "number.wake_word_threshold",
		"switch.vision_enabled", "switch.attention_required",
		"number.vision_cooldown_s", "number.vision_min_confidence",
		"number.engaged_vad_window_s", "sensor.distance",
		"sensor.last_attention_state", "sensor.last_vision_latency_ms",
		"sensor.last_vision_error", "switch.enable_thinking_sound",
		"switch.night_mode", "button.reboot", "button.shutdown",
		"media_player.lva",
	}
	got := make([]string, 0, len(all))
	for _, e := range all {
		got = append(got, e.ID)
	}

	if !util.SameIDs(got, want) {
		t.Fatalf("entity ids = %v, want (any order) %v", got, want)
	}
}
