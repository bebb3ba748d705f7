package activation

import (
	"testing"
	"time"

	"lva/internal/config"
)

type fakeEffects struct {
	sessionsStarted  []bool // useVAD per start
	sessionActive    bool
	visionSent       []string
	visionCancelled  []string
	thinkingPlaying  bool
	states           []State
	muted            []bool
	lastAttention    string
	lastVisionError  string
}

func (f *fakeEffects) StartSession(useVAD bool) {
	f.sessionsStarted = append(f.sessionsStarted, useVAD)
	f.sessionActive = true
}
func (f *fakeEffects) CancelSession()                 { f.sessionActive = false }
func (f *fakeEffects) SendVisionRequest(id string)     { f.visionSent = append(f.visionSent, id) }
func (f *fakeEffects) CancelVisionRequest(id string)   { f.visionCancelled = append(f.visionCancelled, id) }
func (f *fakeEffects) PlayThinkingSound()              { f.thinkingPlaying = true }
func (f *fakeEffects) StopThinkingSound()              { f.thinkingPlaying = false }
func (f *fakeEffects) PublishState(s State, muted bool) {
	f.states = append(f.states, s)
	f.muted = append(f.muted, muted)
}
func (f *fakeEffects) SetLastAttentionState(label string) { f.lastAttention = label }
func (f *fakeEffects) SetLastVisionError(msg string)      { f.lastVisionError = msg }

type fakeMetrics struct {
	visionRequests, visionSuccess, visionTimeout, falseTriggersPrevented int
}

func (f *fakeMetrics) IncVisionRequests()         { f.visionRequests++ }
func (f *fakeMetrics) IncVisionSuccess()          { f.visionSuccess++ }
func (f *fakeMetrics) IncVisionTimeout()          { f.visionTimeout++ }
func (f *fakeMetrics) IncFalseTriggersPrevented() { f.falseTriggersPrevented++ }

func newTestMachine(cfg config.Config) (*Machine, *fakeEffects, *fakeMetrics, *virtualClock) {
	fx := &fakeEffects{}
	mx := &fakeMetrics{}
	clk := newVirtualClock()
	m := New(cfg, clk, fx, mx)
	return m, fx, mx, clk
}

// Scenario 1: happy path wake-word.
func TestWakeWordHappyPath(t *testing.T) {
	m, fx, _, _ := newTestMachine(config.Default())

	m.Post(Event{Kind: EvTrigger, Trigger: WakeWordTrigger("hey_lva", 0.72)})
	m.ProcessPending()
	if m.State() != StateListening {
		t.Fatalf("state = %v, want LISTENING", m.State())
	}
	if len(fx.sessionsStarted) != 1 || fx.sessionsStarted[0] != false {
		t.Fatalf("sessionsStarted = %v, want one USE_VAD=false start", fx.sessionsStarted)
	}

	m.Post(Event{Kind: EvSessionProcessing})
	m.ProcessPending()
	if m.State() != StateProcessing {
		t.Fatalf("state = %v, want PROCESSING", m.State())
	}

	m.Post(Event{Kind: EvSessionSpeaking})
	m.ProcessPending()
	if m.State() != StateSpeaking {
		t.Fatalf("state = %v, want SPEAKING", m.State())
	}

	m.Post(Event{Kind: EvPlaybackComplete})
	m.ProcessPending()
	if m.State() != StateIdle {
		t.Fatalf("state = %v, want IDLE", m.State())
	}
}

func attentionConfig() config.Config {
	cfg := config.Default()
	cfg.DistanceActivation = true
	cfg.DistanceActivationThreshold = 120
	cfg.VisionEnabled = true
	cfg.AttentionRequired = true
	cfg.VisionMinConfidence = 0.60
	cfg.VisionCooldownS = 4.0
	return cfg
}

// Scenario 2: distance + attention success.
func TestDistanceAttentionSuccess(t *testing.T) {
	m, fx, mx, _ := newTestMachine(attentionConfig())

	m.Post(Event{Kind: EvTrigger, Trigger: DistanceTrigger(90)})
	m.ProcessPending()
	if m.State() != StateVisionGlance {
		t.Fatalf("state = %v, want VISION_GLANCE", m.State())
	}
	if len(fx.visionSent) != 1 {
		t.Fatalf("visionSent = %v, want exactly one request", fx.visionSent)
	}

	m.Post(Event{Kind: EvVisionResult, RequestID: fx.visionSent[0], Verdict: FaceToward(0.75)})
	m.ProcessPending()

	if m.State() != StateEngaged {
		t.Fatalf("state = %v, want ENGAGED", m.State())
	}
	if mx.visionSuccess != 1 {
		t.Fatalf("visionSuccess = %d, want 1", mx.visionSuccess)
	}
}

// Scenario 3: attention reject, then cooldown suppresses a second
// distance trigger.
func TestAttentionRejectThenCooldown(t *testing.T) {
	m, fx, mx, clk := newTestMachine(attentionConfig())

	m.Post(Event{Kind: EvTrigger, Trigger: DistanceTrigger(80)})
	m.ProcessPending()
	reqID := fx.visionSent[0]

	m.Post(Event{Kind: EvVisionResult, RequestID: reqID, Verdict: FaceAway()})
	m.ProcessPending()

	if m.State() != StateIdle {
		t.Fatalf("state = %v, want IDLE after rejection", m.State())
	}
	if mx.falseTriggersPrevented != 1 {
		t.Fatalf("falseTriggersPrevented = %d, want 1", mx.falseTriggersPrevented)
	}

	clk.Advance(1 * time.Second) // still within the 4s cooldown
	m.Post(Event{Kind: EvTrigger, Trigger: DistanceTrigger(80)})
	m.ProcessPending()

	if m.State() != StateIdle {
		t.Fatalf("state = %v, want IDLE (cooldown active, no re-entry)", m.State())
	}
	if len(fx.visionSent) != 1 {
		t.Fatalf("visionSent = %v, want no second request during cooldown", fx.visionSent)
	}
	if mx.falseTriggersPrevented != 2 {
		t.Fatalf("falseTriggersPrevented = %d, want 2 (cooldown-suppressed trigger also counts)", mx.falseTriggersPrevented)
	}
}

// Scenario 4: vision timeout with fallback configured.
func TestVisionTimeoutFallback(t *testing.T) {
	cfg := attentionConfig()
	cfg.VisionFallback = true
	m, fx, mx, clk := newTestMachine(cfg)

	m.Post(Event{Kind: EvTrigger, Trigger: DistanceTrigger(80)})
	m.ProcessPending()

	clk.Advance(1300 * time.Millisecond)
	m.ProcessPending()

	if m.State() != StateEngaged {
		t.Fatalf("state = %v, want ENGAGED after fallback", m.State())
	}
	if mx.visionTimeout != 1 {
		t.Fatalf("visionTimeout = %d, want 1", mx.visionTimeout)
	}
	if fx.lastVisionError != "timeout" {
		t.Fatalf("lastVisionError = %q, want timeout", fx.lastVisionError)
	}
}

// Scenario 4b: vision result carrying an Error verdict (visd
// unreachable) falls back to ENGAGED when fallback is configured,
// same as a timeout.
func TestVisionErrorVerdictFallback(t *testing.T) {
	cfg := attentionConfig()
	cfg.VisionFallback = true
	m, fx, mx, _ := newTestMachine(cfg)

	m.Post(Event{Kind: EvTrigger, Trigger: DistanceTrigger(80)})
	m.ProcessPending()
	reqID := fx.visionSent[0]

	m.Post(Event{Kind: EvVisionResult, RequestID: reqID, Verdict: VerdictError("unreachable")})
	m.ProcessPending()

	if m.State() != StateEngaged {
		t.Fatalf("state = %v, want ENGAGED after error-verdict fallback", m.State())
	}
	if mx.falseTriggersPrevented != 0 {
		t.Fatalf("falseTriggersPrevented = %d, want 0 (fallback, not rejection)", mx.falseTriggersPrevented)
	}
	if fx.lastVisionError != "unreachable" {
		t.Fatalf("lastVisionError = %q, want unreachable", fx.lastVisionError)
	}
}

// Scenario 4c: the same Error verdict without fallback configured
// still counts as a rejection back to IDLE.
func TestVisionErrorVerdictNoFallbackRejects(t *testing.T) {
	cfg := attentionConfig()
	cfg.VisionFallback = false
	m, fx, mx, _ := newTestMachine(cfg)

	m.Post(Event{Kind: EvTrigger, Trigger: DistanceTrigger(80)})
	m.ProcessPending()
	reqID := fx.visionSent[0]

	m.Post(Event{Kind: EvVisionResult, RequestID: reqID, Verdict: VerdictError("unreachable")})
	m.ProcessPending()

	if m.State() != StateIdle {
		t.Fatalf("state = %v, want IDLE (no fallback configured)", m.State())
	}
	if mx.falseTriggersPrevented != 1 {
		t.Fatalf("falseTriggersPrevented = %d, want 1", mx.falseTriggersPrevented)
	}
}

// Scenario 5: mute blocks distance trigger entirely.
func TestMuteBlocksDistance(t *testing.T) {
	m, fx, mx, _ := newTestMachine(attentionConfig())

	m.Post(Event{Kind: EvMuteToggle})
	m.ProcessPending()
	if !m.Muted() {
		t.Fatal("expected muted after toggle")
	}

	m.Post(Event{Kind: EvTrigger, Trigger: DistanceTrigger(80)})
	m.ProcessPending()

	if m.State() != StateIdle {
		t.Fatalf("state = %v, want IDLE (muted)", m.State())
	}
	if len(fx.visionSent) != 0 {
		t.Fatal("expected no vision request while muted")
	}
	if mx.falseTriggersPrevented != 0 {
		t.Fatalf("falseTriggersPrevented = %d, want 0 while muted", mx.falseTriggersPrevented)
	}
}

// Scenario 6: VAD window expiry with no VAD start returns to IDLE and
// cancels the session.
func TestVADWindowExpiry(t *testing.T) {
	cfg := config.Default()
	cfg.EngagedVADWindowS = 2.5
	// Drive straight into ENGAGED via a distance trigger with no
	// attention gating configured.
	cfg.DistanceActivation = true
	cfg.DistanceActivationThreshold = 120
	m, fx, _, clk := newTestMachine(cfg)

	m.Post(Event{Kind: EvTrigger, Trigger: DistanceTrigger(90)})
	m.ProcessPending()
	if m.State() != StateEngaged {
		t.Fatalf("state = %v, want ENGAGED", m.State())
	}
	if !fx.sessionActive {
		t.Fatal("expected session active in ENGAGED")
	}

	clk.Advance(2600 * time.Millisecond)
	m.ProcessPending()

	if m.State() != StateIdle {
		t.Fatalf("state = %v, want IDLE after VAD window elapses", m.State())
	}
	if fx.sessionActive {
		t.Fatal("expected session cancelled after VAD window elapses")
	}
}

// Tie-break: Manual cancel takes priority over a WakeWord trigger
// arriving in the same drain.
func TestTieBreakManualBeforeWakeWord(t *testing.T) {
	m, fx, _, _ := newTestMachine(config.Default())

	m.Post(Event{Kind: EvTrigger, Trigger: WakeWordTrigger("hey_lva", 0.9)})
	m.ProcessPending()
	if m.State() != StateListening {
		t.Fatalf("state = %v, want LISTENING", m.State())
	}

	// Queue both without draining between them: manual cancel must be
	// applied first per §4.4, even though wake-word is now a no-op in
	// LISTENING anyway; the ordering matters once more states are
	// reachable by both events.
	m.Post(Event{Kind: EvTrigger, Trigger: WakeWordTrigger("hey_lva", 0.9)})
	m.Post(Event{Kind: EvTrigger, Trigger: ManualTrigger(ManualCancel)})
	m.ProcessPending()

	if m.State() != StateIdle {
		t.Fatalf("state = %v, want IDLE after manual cancel", m.State())
	}
	if fx.sessionActive {
		t.Fatal("expected session cancelled")
	}
}

// WakeWord preempts an in-flight VISION_GLANCE (Open Question
// resolution in spec.md §9 / DESIGN.md).
func TestWakeWordPreemptsVisionGlance(t *testing.T) {
	m, fx, _, _ := newTestMachine(attentionConfig())

	m.Post(Event{Kind: EvTrigger, Trigger: DistanceTrigger(80)})
	m.ProcessPending()
	if m.State() != StateVisionGlance {
		t.Fatalf("state = %v, want VISION_GLANCE", m.State())
	}
	reqID := fx.visionSent[0]

	m.Post(Event{Kind: EvTrigger, Trigger: WakeWordTrigger("hey_lva", 0.9)})
	m.ProcessPending()

	if m.State() != StateListening {
		t.Fatalf("state = %v, want LISTENING", m.State())
	}
	if len(fx.visionCancelled) != 1 || fx.visionCancelled[0] != reqID {
		t.Fatalf("visionCancelled = %v, want [%s]", fx.visionCancelled, reqID)
	}

	// A late reply for the preempted request must not be applied.
	m.Post(Event{Kind: EvVisionResult, RequestID: reqID, Verdict: FaceToward(0.9)})
	m.ProcessPending()
	if m.State() != StateListening {
		t.Fatalf("stale vision reply changed state to %v", m.State())
	}
}

// Idempotence: replaying the same MUTE_TOGGLE twice returns to the
// prior overlay state.
func TestMuteToggleIdempotentOnReplay(t *testing.T) {
	m, _, _, _ := newTestMachine(config.Default())

	m.Post(Event{Kind: EvMuteToggle})
	m.ProcessPending()
	m.Post(Event{Kind: EvMuteToggle})
	m.ProcessPending()

	if m.Muted() {
		t.Fatal("expected unmuted after toggling twice")
	}
}
