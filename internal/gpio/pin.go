// Package gpio provides the digital pin capability the front-panel and
// distance-sensor daemons use for buttons, LEDs, and encoder lines. The
// actual SoC pin driver is an out-of-scope external collaborator
// (spec.md §1); this package only defines the Pin contract and a null
// implementation for hosts with no GPIO hardware, per spec.md §9's
// "optional hardware" redesign note.
package gpio

// Pull selects the pin's bias resistor when configured as an input.
type Pull int

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

// Edge selects which transition an interrupt-capable pin reports.
type Edge int

const (
	EdgeNone Edge = iota
	EdgeRising
	EdgeFalling
	EdgeBoth
)

// Pin is a single digital GPIO line, configurable as input or output.
type Pin interface {
	ConfigureInput(pull Pull) error
	ConfigureOutput(initial bool) error
	Set(level bool)
	Get() bool
	Toggle()
	Number() int
}

// IRQPin extends Pin with edge-triggered interrupt support, used by the
// front-panel daemon's encoder and mute-button lines instead of busy
// polling where the host supports it.
type IRQPin interface {
	Pin
	SetIRQ(edge Edge, handler func()) error
	ClearIRQ() error
}

// Factory supplies Pin values by board pin number.
type Factory interface {
	ByNumber(n int) (Pin, bool)
}

// NullPin satisfies Pin for hosts with no GPIO controller (e.g.
// development machines, or a core process running without the
// front-panel attached). Set/Toggle are no-ops; Get always reports low.
type NullPin struct {
	number int
	level  bool
}

func NewNullPin(number int) *NullPin { return &NullPin{number: number} }

func (p *NullPin) ConfigureInput(Pull) error    { return nil }
func (p *NullPin) ConfigureOutput(initial bool) error {
	p.level = initial
	return nil
}
func (p *NullPin) Set(level bool) { p.level = level }
func (p *NullPin) Get() bool      { return p.level }
func (p *NullPin) Toggle()        { p.level = !p.level }
func (p *NullPin) Number() int    { return p.number }

// NullFactory vends NullPin for every requested number, so callers can
// wire the front-panel and distance-reader daemons identically whether
// or not real GPIO hardware is present.
type NullFactory struct{}

func (NullFactory) ByNumber(n int) (Pin, bool) { return NewNullPin(n), true }
