package eeprom

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sarchlab/eepromsim/logic"
	"github.com/sarchlab/eepromsim/persistence"
	"github.com/sarchlab/eepromsim/sim"
	"github.com/sarchlab/eepromsim/tracing"
)

// Names of the pin groups on the bus of a Comp.
const (
	GroupWriteEnable = "WE"
	GroupAddress     = "Address"
	GroupDataIn      = "DataIn"
	GroupDataOut     = "DataOut"
)

// Comp is an EEPROM chip. Every tick it reads the word selected by the
// address pins onto the Q pins and, while WE is high, writes the word on the
// D pins into memory.
//
// Comp ticks after all the primary events of a cycle, so drivers that change
// its pins in a cycle are seen in the same cycle.
type Comp struct {
	*sim.TickingComponent

	bus         *logic.Bus
	writeEnable *logic.Pin
	addrPins    []*logic.Pin
	dataInPins  []*logic.Pin
	dataOutPins []*logic.Pin

	engine      *Engine
	registry    *Registry
	store       persistence.Store
	flashPolicy FlashPolicy
}

// Tick samples the pins, evaluates the memory and drives the outputs.
func (c *Comp) Tick() bool {
	state := BusState{
		Address:     logic.Sample(c.addrPins),
		DataIn:      logic.Sample(c.dataInPins),
		WriteEnable: c.writeEnable.State(),
	}

	before := c.engine.Stats()
	taskID := c.startTask(state)

	out := c.engine.Evaluate(state)
	outputChanged := logic.Drive(c.dataOutPins, out)

	after := c.engine.Stats()
	if after.Faults != before.Faults {
		tracing.AddTaskStep(taskID, c, "fault")
	}

	tracing.EndTask(taskID, c)

	return outputChanged || after.Writes != before.Writes
}

func (c *Comp) startTask(state BusState) string {
	if c.NumHooks() == 0 {
		return ""
	}

	what := "read"
	if state.WriteEnable.IsHigh() {
		what = "write"
	}

	taskID := sim.GetIDGenerator().Generate()
	tracing.StartTask(taskID, "", c, "eeprom", what, state)

	return taskID
}

// Bus returns the pins of the chip. The bus is replaced when the chip is
// reconfigured or loaded.
func (c *Comp) Bus() *logic.Bus {
	return c.bus
}

// ID returns the identity of the chip contents.
func (c *Comp) ID() string {
	return c.engine.ID()
}

// Geometry returns the current geometry of the chip.
func (c *Comp) Geometry() Geometry {
	return c.engine.Geometry()
}

// MemoryEngine returns the memory engine of the chip.
func (c *Comp) MemoryEngine() *Engine {
	return c.engine
}

// FlashPolicy returns how flashed images are fitted into the memory.
func (c *Comp) FlashPolicy() FlashPolicy {
	return c.flashPolicy
}

// Stats returns the counters of the memory engine.
func (c *Comp) Stats() Stats {
	c.Lock()
	defer c.Unlock()

	return c.engine.Stats()
}

// ReconfigureBus changes the geometry of the chip. The pins are rebuilt and
// the memory is cleared when the geometry changes.
func (c *Comp) ReconfigureBus(g Geometry) error {
	c.Lock()
	defer c.Unlock()

	err := c.engine.Configure(g)
	if err != nil {
		return err
	}

	c.buildBus(g)
	c.TickLater()

	return nil
}

func (c *Comp) buildBus(g Geometry) {
	c.bus = logic.NewBus()
	c.writeEnable = c.bus.AddPin(GroupWriteEnable, logic.Input)
	c.addrPins = c.bus.AddGroup(
		GroupAddress, "A", logic.Input, int(g.AddressBits))
	c.dataInPins = c.bus.AddGroup(
		GroupDataIn, "D", logic.Input, int(g.DataBits()))
	c.dataOutPins = c.bus.AddGroup(
		GroupDataOut, "Q", logic.Output, int(g.DataBits()))
	c.bus.Listen(c)
}

// SaveMetadata saves the contents to the store and returns the metadata blob
// that Load accepts.
func (c *Comp) SaveMetadata(ctx context.Context) ([]byte, error) {
	c.Lock()
	id := c.engine.ID()
	g := c.engine.Geometry()
	contents := c.engine.Array().Snapshot()
	c.Unlock()

	if c.store != nil && contents != nil {
		err := c.store.Save(ctx, id, contents)
		if err != nil {
			return nil, fmt.Errorf("eeprom: saving %s: %w", id, err)
		}
	}

	return MetadataFor(id, g).Marshal()
}

// Load restores the chip from a metadata blob. The geometry and the identity
// come from the blob and the contents from the store. Missing contents give
// a zeroed memory. Contents of another size are fitted. An empty blob leaves
// the chip as it is.
func (c *Comp) Load(ctx context.Context, blob []byte) error {
	if len(blob) == 0 {
		return nil
	}

	md, err := ParseMetadata(blob)
	if err != nil {
		return err
	}

	g := md.Geometry()

	c.Lock()
	id := md.ID
	if id == "" {
		id = c.engine.ID()
	}

	array := c.registry.Array(id)

	err = array.Configure(g)
	if err != nil {
		c.Unlock()
		return err
	}

	c.engine.rebind(id, array)
	c.engine.geometry = g
	c.buildBus(g)
	c.Unlock()

	contents, err := c.loadContents(ctx, id)
	if err != nil {
		return err
	}

	c.Lock()
	defer c.Unlock()

	if contents != nil && uint64(len(contents)) != g.Size() {
		fmt.Fprintf(os.Stderr,
			"EEPROM %s: stored contents have %d bytes, fitting to %d\n",
			id, len(contents), g.Size())
	}

	err = array.Replace(contents, FlashFit)
	if err != nil {
		return err
	}

	c.TickLater()

	return nil
}

func (c *Comp) loadContents(ctx context.Context, id string) ([]byte, error) {
	if c.store == nil {
		return nil, nil
	}

	contents, err := c.store.Load(ctx, id)
	if errors.Is(err, persistence.ErrNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("eeprom: loading %s: %w", id, err)
	}

	return contents, nil
}

// FlashBinary replaces the memory with image and saves it to the store.
func (c *Comp) FlashBinary(ctx context.Context, image []byte) error {
	c.Lock()

	err := c.engine.ensureConfigured()
	if err == nil {
		err = c.engine.Array().Replace(image, c.flashPolicy)
	}

	if err != nil {
		c.Unlock()
		return err
	}

	id := c.engine.ID()
	contents := c.engine.Array().Snapshot()
	c.Unlock()

	if c.store != nil {
		err = c.store.Save(ctx, id, contents)
		if err != nil {
			return fmt.Errorf("eeprom: saving %s: %w", id, err)
		}
	}

	c.TickLater()

	return nil
}

// DumpBinary returns a copy of the memory.
func (c *Comp) DumpBinary() ([]byte, error) {
	c.Lock()
	defer c.Unlock()

	err := c.engine.ensureConfigured()
	if err != nil {
		return nil, err
	}

	return c.engine.Array().Snapshot(), nil
}

// FlashFile flashes the binary image stored at path.
func (c *Comp) FlashFile(ctx context.Context, path string) error {
	image, err := persistence.ReadBinary(path)
	if err != nil {
		return err
	}

	return c.FlashBinary(ctx, image)
}

// DumpFile writes the memory to path.
func (c *Comp) DumpFile(path string) error {
	contents, err := c.DumpBinary()
	if err != nil {
		return err
	}

	return persistence.WriteBinary(path, contents)
}
