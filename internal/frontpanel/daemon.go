// Package frontpanel implements the front-panel daemon: it polls
// capacitive touch and rotary encoder hardware, debounces the raw
// readings, and translates them into logical commands sent as IPC
// envelopes to the core's control socket (spec.md §4.8). The daemon is
// stateless across restarts — it keeps no state beyond the debounce
// window of whatever poll is currently in flight.
package frontpanel

import (
	"context"
	log "log/slog"
	"time"

	"lva/internal/gpio"
	"lva/pkg/ipc"
)

const (
	pollInterval   = 10 * time.Millisecond
	debounceWindow = 50 * time.Millisecond
)

// Sender delivers a logical command envelope to the core. Production
// code wires this to ipc.SendLine against the control socket; tests
// substitute a recording stub.
type Sender func(envType string) error

// Daemon polls a touch pin and a two-phase quadrature encoder, emits
// mute_toggle/volume_up/volume_down/manual_wake commands, and debounces
// each input line independently.
type Daemon struct {
	touch     gpio.Pin
	touchType string // ipc.TypeManualWake or ipc.TypeMuteToggle, per config
	encA      gpio.Pin
	encB      gpio.Pin
	send      Sender
	now       func() time.Time

	touchState     bool
	touchSince     time.Time
	touchDebounced bool

	encLast int // last 2-bit (A<<1 | B) phase
}

// New builds a Daemon. touch is the touch pad; touchType selects which
// logical command a touch-down emits (manual wake, or mute toggle, per
// how the panel is configured). encA/encB are the rotary encoder's two
// quadrature phase lines. Any of the three may be a gpio.NullPin on
// hosts without the hardware attached — the daemon simply never
// observes a transition and sends nothing.
func New(touch gpio.Pin, touchType string, encA, encB gpio.Pin, send Sender) *Daemon {
	return &Daemon{
		touch:     touch,
		touchType: touchType,
		encA:      encA,
		encB:      encB,
		send:      send,
		now:       time.Now,
	}
}

// Run polls until ctx is cancelled. It never blocks on send — a failed
// or slow control-socket write is logged and the poll loop continues,
// since the daemon has no queue of its own to apply backpressure to.
func (d *Daemon) Run(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	d.encLast = d.encoderPhase()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.pollTouch()
			d.pollEncoder()
		}
	}
}

func (d *Daemon) pollTouch() {
	level := d.touch.Get()
	now := d.now()

	if level != d.touchState {
		d.touchState = level
		d.touchSince = now
		d.touchDebounced = false
		return
	}

	if d.touchDebounced || now.Sub(d.touchSince) < debounceWindow {
		return
	}
	d.touchDebounced = true

	if level {
		d.emit(d.touchType)
	}
}

// encoderPhase packs the two quadrature lines into a 2-bit phase value.
func (d *Daemon) encoderPhase() int {
	phase := 0
	if d.encA.Get() {
		phase |= 0b10
	}
	if d.encB.Get() {
		phase |= 0b01
	}
	return phase
}

// quadrature transition table: (prev<<2 | cur) -> +1, -1, or 0 for an
// invalid/bounce transition. Standard Gray-code encoder decode.
var quadratureStep = map[int]int{
	0b0001: +1, 0b0111: +1, 0b1110: +1, 0b1000: +1,
	0b0010: -1, 0b0100: -1, 0b1101: -1, 0b1011: -1,
}

func (d *Daemon) pollEncoder() {
	cur := d.encoderPhase()
	if cur == d.encLast {
		return
	}
	step := quadratureStep[d.encLast<<2|cur]
	d.encLast = cur
	if step == 0 {
		return
	}

	if step > 0 {
		d.emit(ipc.TypeVolumeUp)
	} else {
		d.emit(ipc.TypeVolumeDown)
	}
}

func (d *Daemon) emit(envType string) {
	if err := d.send(envType); err != nil {
		log.Warn("frontpanel: send failed", "type", envType, "err", err)
	}
}

// NewSender builds the production Sender: it dials the control socket
// fresh for every command (commands are rare enough, relative to the
// 10 ms poll tick, that a persistent connection buys nothing) and
// stamps ts from nowSeconds.
func NewSender(controlSockPath string, nowSeconds func() float64) Sender {
	return func(envType string) error {
		env, err := ipc.New(envType, nil, ipc.SourceFrontPanelD, nowSeconds())
		if err != nil {
			return err
		}
		return ipc.SendLine(controlSockPath, env)
	}
}
