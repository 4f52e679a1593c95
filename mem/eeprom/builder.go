package eeprom

import (
	"github.com/sarchlab/eepromsim/persistence"
	"github.com/sarchlab/eepromsim/sim"
)

// Builder can build EEPROM chips.
type Builder struct {
	engine      sim.Engine
	freq        sim.Freq
	geometry    Geometry
	id          string
	registry    *Registry
	store       persistence.Store
	saver       ContentSaver
	autoPersist bool
	maxSize     uint64
	flashPolicy FlashPolicy
}

// MakeBuilder returns a Builder with a 2-byte address bus and a 2-byte data
// bus.
func MakeBuilder() Builder {
	return Builder{
		freq:        1 * sim.MHz,
		geometry:    GeometryFromBusBytes(2, 2),
		maxSize:     DefaultMaxSize,
		flashPolicy: FlashFit,
	}
}

// WithEngine sets the engine that the chip ticks on.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the frequency of the chip.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithGeometry sets the number of address bits and the word size.
func (b Builder) WithGeometry(g Geometry) Builder {
	b.geometry = g
	return b
}

// WithAddressBusBytes sets the width of the address bus in bytes.
func (b Builder) WithAddressBusBytes(n uint) Builder {
	b.geometry.AddressBits = n * 8
	return b
}

// WithDataBusBytes sets the width of the data bus in bytes.
func (b Builder) WithDataBusBytes(n uint) Builder {
	b.geometry.WordBytes = n
	return b
}

// WithID sets the identity of the chip contents. Chips with the same id in a
// registry share their memory. A generated id is used if none is given.
func (b Builder) WithID(id string) Builder {
	b.id = id
	return b
}

// WithRegistry sets the registry that owns the memory arrays.
func (b Builder) WithRegistry(r *Registry) Builder {
	b.registry = r
	return b
}

// WithStore sets where the contents are saved and loaded.
func (b Builder) WithStore(store persistence.Store) Builder {
	b.store = store
	return b
}

// WithSaver sets who is notified when a write changes the memory.
func (b Builder) WithSaver(saver ContentSaver) Builder {
	b.saver = saver
	return b
}

// WithAutoPersist sets whether changing writes are handed to the saver.
func (b Builder) WithAutoPersist(autoPersist bool) Builder {
	b.autoPersist = autoPersist
	return b
}

// WithMaxBufferSize sets the largest memory, in bytes, the chip may have.
func (b Builder) WithMaxBufferSize(maxSize uint64) Builder {
	b.maxSize = maxSize
	return b
}

// WithFlashPolicy sets how flashed images are fitted into the memory.
func (b Builder) WithFlashPolicy(policy FlashPolicy) Builder {
	b.flashPolicy = policy
	return b
}

// Build creates a chip. The memory is allocated on the first tick. It returns
// a ConfigurationError if the geometry cannot be used.
func (b Builder) Build(name string) (*Comp, error) {
	if b.engine == nil {
		panic("engine is not set")
	}

	err := b.geometry.validate(b.maxSize)
	if err != nil {
		return nil, err
	}

	registry := b.registry
	if registry == nil {
		registry = NewRegistry()
	}

	id := b.id
	if id == "" {
		id = registry.NextID()
	}

	array := registry.Array(id)
	array.SetMaxSize(b.maxSize)

	c := &Comp{
		registry:    registry,
		store:       b.store,
		flashPolicy: b.flashPolicy,
	}
	c.TickingComponent = sim.NewSecondaryTickingComponent(
		name, b.engine, b.freq, c)

	c.engine = NewEngine(id, b.geometry, array)
	c.engine.HookableBase = &c.ComponentBase.HookableBase
	c.engine.domain = c
	c.engine.SetSaver(b.saver, b.autoPersist)

	c.buildBus(b.geometry)

	return c, nil
}
