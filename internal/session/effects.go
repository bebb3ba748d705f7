// Package session composes the hub session, the vision client and the
// notification-sound player into the single activation.Effects
// implementation the core wires into internal/activation.Machine. It
// has no state-machine logic of its own — every decision still lives
// in the reducer; this package only performs the side effects the
// reducer requests and reports their outcomes back onto the machine's
// queue.
package session

import (
	"context"
	log "log/slog"
	"sync"
	"time"

	"lva/internal/activation"
	"lva/internal/config"
	"lva/internal/hub"
	"lva/internal/metrics"
	"lva/internal/notify"
	"lva/internal/vision"
	"lva/pkg/ipc"
)

// EventsBus is the narrow slice of pkg/ipc.Server that Effects needs to
// publish outbound state/LED events on gpio-events.sock (spec.md §6).
type EventsBus interface {
	Broadcast(ipc.Envelope) error
}

// Effects implements activation.Effects by composing a hub session, a
// vision client and a notification-sound player.
type Effects struct {
	hub     *hub.Session
	vision  *vision.Client
	sounds  *notify.Sounds
	events  EventsBus
	getCfg  func() config.Config
	metrics *metrics.Counters

	mu        sync.Mutex
	cancelFns map[string]context.CancelFunc // requestID -> cancel, for in-flight vision requests

	post func(activation.Event)
}

// New builds an Effects adapter. post is the Machine's Post method
// (supplied by the caller to avoid an import cycle between
// internal/activation and internal/session).
func New(h *hub.Session, v *vision.Client, s *notify.Sounds, events EventsBus, getCfg func() config.Config, m *metrics.Counters, post func(activation.Event)) *Effects {
	return &Effects{
		hub:       h,
		vision:    v,
		sounds:    s,
		events:    events,
		getCfg:    getCfg,
		metrics:   m,
		cancelFns: make(map[string]context.CancelFunc),
		post:      post,
	}
}

func (e *Effects) StartSession(useVAD bool) {
	if err := e.hub.StartVoiceAssistant(useVAD); err != nil {
		log.Warn("session: start voice assistant failed", "err", err)
	}
}

func (e *Effects) CancelSession() {
	if err := e.hub.CancelVoiceAssistant(); err != nil {
		log.Debug("session: cancel voice assistant", "err", err)
	}
}

// SendVisionRequest dials the vision daemon on its own goroutine (the
// reducer never blocks on I/O, per spec.md §5) and posts the resolved
// verdict back onto the machine's queue as EvVisionResult.
func (e *Effects) SendVisionRequest(requestID string) {
	ctx, cancel := context.WithCancel(context.Background())
	e.mu.Lock()
	e.cancelFns[requestID] = cancel
	e.mu.Unlock()

	go func() {
		defer func() {
			e.mu.Lock()
			delete(e.cancelFns, requestID)
			e.mu.Unlock()
		}()

		verdict := e.vision.Request(ctx, requestID)
		if ctx.Err() != nil {
			return // cancelled; the reducer already moved on
		}
		e.post(activation.Event{Kind: activation.EvVisionResult, RequestID: requestID, Verdict: verdict})
	}()
}

func (e *Effects) CancelVisionRequest(requestID string) {
	e.mu.Lock()
	cancel, ok := e.cancelFns[requestID]
	delete(e.cancelFns, requestID)
	e.mu.Unlock()
	if ok {
		cancel()
	}
}

func (e *Effects) PlayThinkingSound() {
	e.sounds.Play(e.getCfg().Sounds.Processing)
}

func (e *Effects) StopThinkingSound() {
	e.sounds.Stop()
}

// PublishState broadcasts STATE_CHANGED on the outbound gpio-events bus
// (spec.md §6), the channel the front-panel daemon and any external
// LED controller observe state transitions on.
func (e *Effects) PublishState(state activation.State, muted bool) {
	if e.events == nil {
		return
	}
	payload := struct {
		State string `json:"state"`
		Muted bool   `json:"muted"`
	}{State: state.String(), Muted: muted}
	env, err := ipc.New(ipc.TypeStateChanged, payload, ipc.SourceCore, nowSeconds())
	if err != nil {
		return
	}
	if err := e.events.Broadcast(env); err != nil {
		log.Debug("session: broadcast state", "err", err)
	}
}

func nowSeconds() float64 { return float64(time.Now().UnixNano()) / 1e9 }

func (e *Effects) SetLastAttentionState(label string) {
	e.hub.PublishSensor("sensor.last_attention_state", label)
}

func (e *Effects) SetLastVisionError(msg string) {
	e.hub.PublishSensor("sensor.last_vision_error", msg)
}
