package distance

import (
	"context"
	log "log/slog"
	"time"

	"lva/internal/activation"
	"lva/internal/config"
)

const (
	idleCadence  = time.Second            // ~1 Hz
	fastCadence  = 200 * time.Millisecond // ~5 Hz
	debounce     = 250 * time.Millisecond
	publishEvery = 5 * time.Second
	failuresToReinit = 3
)

// Trigger polls Reader at a state-dependent cadence and posts Distance
// triggers to the activation machine, per spec.md §4.3. It owns no
// state-machine logic itself: guards (distance_activation, cooldown,
// muted) are evaluated inside internal/activation, this package only
// debounces the raw signal.
type Trigger struct {
	reader   Reader
	getState func() activation.State
	getConfig func() config.Config
	post     func(activation.TriggerSource)
	setSensor func(mm int, ok bool)

	now func() time.Time

	consecutiveFailures int
	belowSince          time.Time
	below                bool
	fired                bool
	lastPublish          time.Time
	lastMM               int
	lastOK               bool
}

// New constructs a Trigger. getState reports the activation machine's
// current primary state (used only to pick a polling cadence); post
// delivers debounced Distance triggers; setSensor publishes the
// periodic sensor.distance reading.
func New(reader Reader, getState func() activation.State, getConfig func() config.Config, post func(activation.TriggerSource), setSensor func(mm int, ok bool)) *Trigger {
	return &Trigger{
		reader:    reader,
		getState:  getState,
		getConfig: getConfig,
		post:      post,
		setSensor: setSensor,
		now:       time.Now,
	}
}

func cadenceFor(s activation.State) time.Duration {
	switch s {
	case activation.StateProxVerify, activation.StateEngaged:
		return fastCadence
	default:
		return idleCadence
	}
}

// Run polls until ctx is cancelled. It never returns an error: hardware
// failures are handled internally per spec.md §7's hardware-absent and
// transient-I/O policies.
func (t *Trigger) Run(ctx context.Context) {
	if !t.reader.Available() {
		log.Warn("distance: no sensor available, trigger disabled")
		return
	}

	timer := time.NewTimer(cadenceFor(t.getState()))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			t.poll()
			timer.Reset(cadenceFor(t.getState()))
		}
	}
}

func (t *Trigger) poll() {
	mm, ok := t.reader.ReadMM()
	if !ok {
		t.consecutiveFailures++
		if t.consecutiveFailures >= failuresToReinit {
			log.Warn("distance: reinitializing sensor after repeated failures")
			if err := t.reader.Reinit(); err != nil {
				log.Debug("distance: reinit failed", "err", err)
			}
			t.consecutiveFailures = 0
		}
		t.maybePublish(0, false)
		return
	}
	t.consecutiveFailures = 0
	t.lastMM, t.lastOK = mm, true

	cfg := t.getConfig()
	now := t.now()

	if mm < cfg.DistanceActivationThreshold {
		if !t.below {
			t.below = true
			t.belowSince = now
			t.fired = false
		}
		if !t.fired && now.Sub(t.belowSince) >= debounce {
			t.fired = true
			t.post(activation.DistanceTrigger(mm))
		}
	} else {
		t.below = false
		t.fired = false
	}

	t.maybePublish(mm, true)
}

func (t *Trigger) maybePublish(mm int, ok bool) {
	now := t.now()
	if t.lastPublish.IsZero() || now.Sub(t.lastPublish) >= publishEvery {
		t.lastPublish = now
		if ok {
			t.setSensor(mm, true)
		} else {
			t.setSensor(t.lastMM, t.lastOK)
		}
	}
}
