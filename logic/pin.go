package logic

import (
	"fmt"
	"strings"
)

// Direction tells if a pin receives or drives a signal.
type Direction int

// Pin directions.
const (
	Input Direction = iota
	Output
)

// A Listener is notified when the state of an input pin changes.
type Listener interface {
	NotifyInputChange()
}

// A Pin is a single signal line on a chip.
type Pin struct {
	name      string
	direction Direction
	state     Bit
	listeners []Listener
}

// NewPin creates a pin in the low state.
func NewPin(name string, direction Direction) *Pin {
	return &Pin{name: name, direction: direction}
}

// Name returns the name of the pin.
func (p *Pin) Name() string {
	return p.name
}

// Direction returns whether the pin is an input or an output.
func (p *Pin) Direction() Direction {
	return p.direction
}

// State returns the current signal on the pin.
func (p *Pin) State() Bit {
	return p.state
}

// AddListener registers a listener that is notified on state changes.
func (p *Pin) AddListener(l Listener) {
	p.listeners = append(p.listeners, l)
}

// ReceiveSignal sets the state of the pin. Listeners are notified only if the
// state actually changes. It reports whether the state changed.
func (p *Pin) ReceiveSignal(b Bit) bool {
	if p.state == b {
		return false
	}

	p.state = b
	for _, l := range p.listeners {
		l.NotifyInputChange()
	}

	return true
}

// Sample reads the state of an ordered group of pins.
func Sample(pins []*Pin) Vector {
	v := make(Vector, len(pins))
	for i, p := range pins {
		v[i] = p.State()
	}

	return v
}

// Drive sets the state of an ordered group of pins. Pins beyond the length of
// the vector are driven low. It reports whether any pin changed.
func Drive(pins []*Pin, v Vector) bool {
	changed := false
	for i, p := range pins {
		b := Low
		if i < len(v) {
			b = v[i]
		}

		if p.ReceiveSignal(b) {
			changed = true
		}
	}

	return changed
}

// A Bus is the set of pins of a chip, organized into named ordered groups.
type Bus struct {
	pins   []*Pin
	byName map[string]*Pin
	groups map[string][]*Pin
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		byName: make(map[string]*Pin),
		groups: make(map[string][]*Pin),
	}
}

// AddPin adds a single pin that forms a group of its own.
func (b *Bus) AddPin(name string, direction Direction) *Pin {
	return b.AddGroup(name, name, direction, 1)[0]
}

// AddGroup adds width pins named prefix followed by the hexadecimal bit
// position. The first pin carries the most significant bit, such as A3, A2,
// A1, A0 for a 4-bit group with prefix A.
func (b *Bus) AddGroup(
	group, prefix string,
	direction Direction,
	width int,
) []*Pin {
	if _, found := b.groups[group]; found {
		panic(fmt.Sprintf("pin group %s already exists", group))
	}

	pins := make([]*Pin, width)
	for i := 0; i < width; i++ {
		name := prefix
		if width > 1 || prefix != group {
			name = prefix + strings.ToUpper(fmt.Sprintf("%x", width-i-1))
		}

		if _, found := b.byName[name]; found {
			panic(fmt.Sprintf("pin %s already exists", name))
		}

		pin := NewPin(name, direction)
		pins[i] = pin
		b.pins = append(b.pins, pin)
		b.byName[name] = pin
	}

	b.groups[group] = pins

	return pins
}

// Pin returns the pin with the given name, or nil.
func (b *Bus) Pin(name string) *Pin {
	return b.byName[name]
}

// Group returns the ordered pins of a group, or nil.
func (b *Bus) Group(name string) []*Pin {
	return b.groups[name]
}

// Pins returns all the pins in the order they were added.
func (b *Bus) Pins() []*Pin {
	return b.pins
}

// Listen registers a listener on every input pin of the bus.
func (b *Bus) Listen(l Listener) {
	for _, p := range b.pins {
		if p.direction == Input {
			p.AddListener(l)
		}
	}
}
