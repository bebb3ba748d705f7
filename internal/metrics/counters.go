// Package metrics holds the monotonic counters exposed as hub sensors
// and surfaced on the vision daemon's debug status endpoint.
package metrics

import "sync/atomic"

// Counters is the set from spec.md §3: vision_requests, vision_success,
// vision_timeout, false_triggers_prevented, xrun_counter. Each is a
// free-running counter, incremented only, read via atomic loads.
type Counters struct {
	visionRequests         atomic.Int64
	visionSuccess          atomic.Int64
	visionTimeout          atomic.Int64
	falseTriggersPrevented atomic.Int64
	xrunCounter            atomic.Int64
}

func New() *Counters { return &Counters{} }

func (c *Counters) IncVisionRequests()         { c.visionRequests.Add(1) }
func (c *Counters) IncVisionSuccess()          { c.visionSuccess.Add(1) }
func (c *Counters) IncVisionTimeout()          { c.visionTimeout.Add(1) }
func (c *Counters) IncFalseTriggersPrevented() { c.falseTriggersPrevented.Add(1) }

// IncXrun is called by the audio pipeline when current_block() observes
// an underrun; xrun_counter is documented in spec.md §9 as a
// placeholder with no reconciliation against the driver's own
// underrun count, so this is a plain increment-on-drop counter (the
// Open Question resolution recorded in DESIGN.md).
func (c *Counters) IncXrun() { c.xrunCounter.Add(1) }

// Snapshot is a point-in-time read of every counter, used for the
// debug status endpoint and for hub sensor publication.
type Snapshot struct {
	VisionRequests         int64 `json:"vision_requests"`
	VisionSuccess          int64 `json:"vision_success"`
	VisionTimeout          int64 `json:"vision_timeout"`
	FalseTriggersPrevented int64 `json:"false_triggers_prevented"`
	XrunCounter            int64 `json:"xrun_counter"`
}

func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		VisionRequests:         c.visionRequests.Load(),
		VisionSuccess:          c.visionSuccess.Load(),
		VisionTimeout:          c.visionTimeout.Load(),
		FalseTriggersPrevented: c.falseTriggersPrevented.Load(),
		XrunCounter:            c.xrunCounter.Load(),
	}
}
