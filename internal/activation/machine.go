package activation

import (
	"fmt"
	log "log/slog"
	"time"

	"lva/internal/config"
)

// EventKind tags the Event variants the reducer accepts: triggers,
// vision replies, VAD signals, timeouts, manual commands, config
// mutations and mute toggles (spec.md §4.4).
type EventKind int

const (
	EvTrigger EventKind = iota
	EvVisionResult
	EvVisionTimeout
	EvVADStart
	EvVADWindowElapsed
	EvSessionProcessing
	EvSessionSpeaking
	EvPlaybackComplete
	EvMuteToggle
	EvConfigMutated
)

// Event is the single type flowing through the state machine's queue.
type Event struct {
	Kind EventKind

	Trigger TriggerSource

	Verdict   AttentionVerdict
	RequestID string
	LatencyMS int

	Config config.Config

	// gen correlates a timer-fired event to the armed request/window it
	// belongs to; stale timers (fired after cancellation) carry a gen
	// that no longer matches and are ignored.
	gen int64
}

// Metrics is the subset of internal/metrics.Counters the state machine
// drives directly.
type Metrics interface {
	IncVisionRequests()
	IncVisionSuccess()
	IncVisionTimeout()
	IncFalseTriggersPrevented()
}

// Effects is every side effect the reducer can request. Implemented by
// internal/session (hub session lifecycle), internal/vision (request
// client) and internal/notify (thinking sound) in production; tests
// supply a recording fake.
type Effects interface {
	StartSession(useVAD bool)
	CancelSession()
	SendVisionRequest(requestID string)
	CancelVisionRequest(requestID string)
	PlayThinkingSound()
	StopThinkingSound()
	PublishState(state State, muted bool)
	SetLastAttentionState(label string)
	SetLastVisionError(msg string)
}

// Machine is the activation state machine: a single-owner reducer over
// a serialized event queue (invariant I2). All exported methods other
// than Run/Post are safe to call only from the Run goroutine; external
// callers communicate exclusively through Post.
type Machine struct {
	state State
	muted bool
	cfg   config.Config

	clock   Clock
	effects Effects
	metrics Metrics

	queue chan Event

	lastVisionDecision time.Time
	haveLastVision      bool

	visionRequestID string
	visionGen       int64
	visionTimer     Timer

	vadGen   int64
	vadTimer Timer

	reqCounter int64

	stopped chan struct{}
}

// New constructs a Machine in StateIdle, unmuted, with the given
// initial config snapshot.
func New(cfg config.Config, clock Clock, effects Effects, metrics Metrics) *Machine {
	if clock == nil {
		clock = RealClock{}
	}
	return &Machine{
		state:   StateIdle,
		cfg:     cfg,
		clock:   clock,
		effects: effects,
		metrics: metrics,
		queue:   make(chan Event, 64),
		stopped: make(chan struct{}),
	}
}

// Post enqueues an event for processing on the Run goroutine. Safe to
// call from any goroutine (timer callbacks, IPC handlers, the hub
// session).
func (m *Machine) Post(e Event) {
	select {
	case m.queue <- e:
	case <-m.stopped:
	}
}

// State returns the current primary state (for status reporting only;
// racy with respect to Run, callers needing consistency should read it
// via a PublishState effect instead).
func (m *Machine) State() State { return m.state }

// Muted reports the current overlay value.
func (m *Machine) Muted() bool { return m.muted }

// Stop terminates Run.
func (m *Machine) Stop() { close(m.stopped) }

// Run drains the queue until Stop is called. Within a single
// non-blocking drain, events are reordered by the §4.4 tie-break
// (Manual > WakeWord > Distance); other event kinds keep arrival order
// relative to triggers.
func (m *Machine) Run() {
	for {
		var first Event
		select {
		case first = <-m.queue:
		case <-m.stopped:
			return
		}
		m.drainBatch(first)
	}
}

// ProcessPending drains and processes every event currently queued
// without blocking for more to arrive. Tests drive the machine this
// way against a virtual clock instead of racing a Run goroutine.
func (m *Machine) ProcessPending() {
	for {
		select {
		case first := <-m.queue:
			m.drainBatch(first)
		default:
			return
		}
	}
}

func (m *Machine) drainBatch(first Event) {
	batch := []Event{first}
drain:
	for {
		select {
		case e := <-m.queue:
			batch = append(batch, e)
		default:
			break drain
		}
	}

	sortByTieBreak(batch)
	for _, e := range batch {
		m.process(e)
	}
}

// sortByTieBreak stably reorders batch so that Manual triggers precede
// WakeWord triggers precede Distance triggers; non-trigger events keep
// their relative position among themselves and relative to triggers of
// equal or lower priority.
func sortByTieBreak(batch []Event) {
	priority := func(e Event) int {
		if e.Kind != EvTrigger {
			return 10 // non-trigger events sort after all triggers in their slot
		}
		return e.Trigger.priority()
	}
	// insertion sort: batches are tiny (bounded by one drain), and we
	// need stability, which sort.SliceStable would also give, but this
	// keeps the package free of an extra import for a handful of items.
	for i := 1; i < len(batch); i++ {
		j := i
		for j > 0 && priority(batch[j-1]) > priority(batch[j]) {
			batch[j-1], batch[j] = batch[j], batch[j-1]
			j--
		}
	}
}

func (m *Machine) process(e Event) {
	switch e.Kind {
	case EvTrigger:
		m.handleTrigger(e.Trigger)
	case EvVisionResult:
		m.handleVisionResult(e)
	case EvVisionTimeout:
		m.handleVisionTimeout(e)
	case EvVADStart:
		m.handleVADStart()
	case EvVADWindowElapsed:
		m.handleVADWindowElapsed(e)
	case EvSessionProcessing:
		m.handleSessionProcessing()
	case EvSessionSpeaking:
		m.handleSessionSpeaking()
	case EvPlaybackComplete:
		m.handlePlaybackComplete()
	case EvMuteToggle:
		m.handleMuteToggle()
	case EvConfigMutated:
		m.cfg = e.Config
	}
}

func (m *Machine) handleTrigger(t TriggerSource) {
	switch t.Kind {
	case TriggerManual:
		m.handleManual(t)
	case TriggerWakeWord:
		m.handleWakeWord(t)
	case TriggerDistance:
		m.handleDistance(t)
	}
}

func (m *Machine) handleManual(t TriggerSource) {
	if t.Reason == ManualCancel {
		m.cancelOutstanding()
		m.setState(StateIdle)
		return
	}
	// ManualWake
	if m.muted {
		return
	}
	if m.state != StateIdle {
		return
	}
	m.effects.StartSession(true)
	m.setState(StateListening)
}

func (m *Machine) handleWakeWord(t TriggerSource) {
	if m.muted {
		return
	}
	switch m.state {
	case StateIdle:
		m.effects.StartSession(false)
		m.setState(StateListening)
	case StateVisionGlance:
		// Open Question resolution: WakeWord preempts an in-flight
		// VISION_GLANCE into LISTENING.
		m.cancelVision()
		m.effects.StartSession(false)
		m.setState(StateListening)
	default:
		// already past the gate; ignore
	}
}

func (m *Machine) handleDistance(t TriggerSource) {
	if m.muted || !m.cfg.DistanceActivation {
		return
	}
	if m.state != StateIdle {
		// Open Question resolution: distance is ignored while an
		// escalation from a prior trigger is in flight.
		return
	}
	if t.DistanceMM >= m.cfg.DistanceActivationThreshold {
		return
	}

	if m.cooldownActive() {
		if m.cfg.AttentionRequired {
			m.metrics.IncFalseTriggersPrevented()
		}
		return
	}

	m.setState(StateProxVerify)
	m.enterProxVerify()
}

// enterProxVerify evaluates the PROX_VERIFY guard synchronously: this
// state is not held waiting for an external event, it decides on entry
// whether to escalate to VISION_GLANCE or straight to ENGAGED.
func (m *Machine) enterProxVerify() {
	if m.cfg.VisionEnabled && m.cfg.AttentionRequired {
		m.startVisionGlance()
		return
	}
	m.enterEngaged()
}

func (m *Machine) startVisionGlance() {
	m.reqCounter++
	reqID := fmt.Sprintf("vg-%d", m.reqCounter)
	m.visionRequestID = reqID
	m.visionGen++
	gen := m.visionGen

	m.metrics.IncVisionRequests()
	m.effects.SendVisionRequest(reqID)
	m.setState(StateVisionGlance)

	m.visionTimer = m.clock.AfterFunc(1200*time.Millisecond, func() {
		m.Post(Event{Kind: EvVisionTimeout, RequestID: reqID, gen: gen})
	})
}

func (m *Machine) handleVisionResult(e Event) {
	if m.state != StateVisionGlance || e.RequestID != m.visionRequestID || e.gen != m.visionGen {
		return // stale or unmatched reply
	}
	m.stopVisionTimer()
	m.visionRequestID = ""

	m.effects.SetLastAttentionState(e.Verdict.AttentionLabel())
	if e.Verdict.Kind == AttentionError {
		m.effects.SetLastVisionError(e.Verdict.Message)
	} else {
		m.effects.SetLastVisionError("")
	}

	if e.Verdict.Kind == AttentionFaceToward && e.Verdict.Confidence >= m.cfg.VisionMinConfidence {
		m.metrics.IncVisionSuccess()
		m.enterEngaged()
		return
	}

	if e.Verdict.Kind == AttentionError && m.cfg.VisionFallback {
		m.enterEngaged()
		return
	}

	m.metrics.IncFalseTriggersPrevented()
	m.markVisionRejected()
	m.setState(StateIdle)
}

func (m *Machine) handleVisionTimeout(e Event) {
	if m.state != StateVisionGlance || e.RequestID != m.visionRequestID || e.gen != m.visionGen {
		return
	}
	m.visionRequestID = ""
	m.metrics.IncVisionTimeout()
	m.effects.SetLastVisionError("timeout")
	m.effects.SetLastAttentionState("UNKNOWN")
	m.effects.CancelVisionRequest(e.RequestID)

	if m.cfg.VisionFallback {
		m.enterEngaged()
		return
	}
	m.markVisionRejected()
	m.setState(StateIdle)
}

func (m *Machine) enterEngaged() {
	m.effects.StartSession(true)
	m.setState(StateEngaged)

	m.vadGen++
	gen := m.vadGen
	window := time.Duration(m.cfg.EngagedVADWindowS * float64(time.Second))
	m.vadTimer = m.clock.AfterFunc(window, func() {
		m.Post(Event{Kind: EvVADWindowElapsed, gen: gen})
	})
}

func (m *Machine) handleVADStart() {
	if m.state != StateEngaged {
		return
	}
	m.stopVADTimer()
	m.setState(StateListening)
}

func (m *Machine) handleVADWindowElapsed(e Event) {
	if m.state != StateEngaged || e.gen != m.vadGen {
		return
	}
	m.effects.CancelSession()
	m.markVisionRejected()
	m.setState(StateIdle)
}

func (m *Machine) handleSessionProcessing() {
	if m.state != StateListening {
		return
	}
	if m.cfg.EnableThinkingSound {
		m.effects.PlayThinkingSound()
	}
	m.setState(StateProcessing)
}

func (m *Machine) handleSessionSpeaking() {
	if m.state != StateProcessing {
		return
	}
	m.effects.StopThinkingSound()
	m.setState(StateSpeaking)
}

func (m *Machine) handlePlaybackComplete() {
	if m.state != StateSpeaking {
		return
	}
	m.setState(StateIdle)
}

func (m *Machine) handleMuteToggle() {
	m.muted = !m.muted
	if m.muted && m.state != StateIdle {
		m.cancelOutstanding()
		m.setState(StateIdle)
		return
	}
	m.effects.PublishState(m.state, m.muted)
}

func (m *Machine) cancelOutstanding() {
	m.cancelVision()
	m.stopVADTimer()
	m.effects.CancelSession()
	m.effects.StopThinkingSound()
}

func (m *Machine) cancelVision() {
	if m.visionRequestID == "" {
		return
	}
	m.stopVisionTimer()
	m.effects.CancelVisionRequest(m.visionRequestID)
	m.visionRequestID = ""
}

func (m *Machine) stopVisionTimer() {
	if m.visionTimer != nil {
		m.visionTimer.Stop()
		m.visionTimer = nil
	}
}

func (m *Machine) stopVADTimer() {
	if m.vadTimer != nil {
		m.vadTimer.Stop()
		m.vadTimer = nil
	}
}

func (m *Machine) markVisionRejected() {
	m.lastVisionDecision = m.clock.Now()
	m.haveLastVision = true
}

func (m *Machine) cooldownActive() bool {
	if !m.haveLastVision {
		return false
	}
	elapsed := m.clock.Now().Sub(m.lastVisionDecision).Seconds()
	return elapsed < m.cfg.VisionCooldownS
}

func (m *Machine) setState(s State) {
	if m.state == s {
		return
	}
	prev := m.state
	m.state = s
	log.Debug("activation: state transition", "from", prev, "to", s, "muted", m.muted)
	m.effects.PublishState(s, m.muted)
}
