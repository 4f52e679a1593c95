package eeprom

import (
	"bytes"

	"github.com/sarchlab/eepromsim/logic"
	"github.com/sarchlab/eepromsim/sim"
)

// HookPosAccessFault marks an access that could not be served. The hook item
// is the error, a *MemoryAccessError unless the array could not be configured.
var HookPosAccessFault = &sim.HookPos{Name: "EEPROM Access Fault"}

// HookPosContentChange marks a write that changed the memory. The hook item
// is a ContentChange.
var HookPosContentChange = &sim.HookPos{Name: "EEPROM Content Change"}

// HookPosReconfigure marks a change of geometry. The hook item is the new
// Geometry.
var HookPosReconfigure = &sim.HookPos{Name: "EEPROM Reconfigure"}

// A ContentSaver is notified after a write changes the memory. The contents
// are only valid during the call.
type ContentSaver interface {
	SaveLater(id string, contents []byte)
}

// ContentChange describes a committed write.
type ContentChange struct {
	ID      string
	Address uint64
	Old     []byte
	New     []byte
}

// BusState is what the engine sees on the pins of the chip in one
// evaluation.
type BusState struct {
	Address     logic.Vector
	DataIn      logic.Vector
	WriteEnable logic.Bit
}

// Stats counts what the engine has done.
type Stats struct {
	Reads  uint64
	Writes uint64
	Faults uint64
	Saves  uint64
}

// Engine evaluates the address and data bus against a MemoryArray.
type Engine struct {
	*sim.HookableBase

	domain      sim.Hookable
	id          string
	geometry    Geometry
	array       *MemoryArray
	saver       ContentSaver
	autoPersist bool
	stats       Stats
}

// NewEngine creates an engine over array. The array is configured with g on
// the first evaluation if it is not configured that way yet.
func NewEngine(id string, g Geometry, array *MemoryArray) *Engine {
	e := &Engine{
		HookableBase: sim.NewHookableBase(),
		id:           id,
		geometry:     g,
		array:        array,
	}
	e.domain = e

	return e
}

// ID returns the identity of the chip the engine serves.
func (e *Engine) ID() string {
	return e.id
}

// Geometry returns the geometry the engine works with.
func (e *Engine) Geometry() Geometry {
	return e.geometry
}

// Array returns the memory array.
func (e *Engine) Array() *MemoryArray {
	return e.array
}

// Stats returns the counters of the engine.
func (e *Engine) Stats() Stats {
	return e.stats
}

// SetSaver sets who is notified after changing writes. Notifications are
// only sent while autoPersist is true.
func (e *Engine) SetSaver(saver ContentSaver, autoPersist bool) {
	e.saver = saver
	e.autoPersist = autoPersist
}

// Configure applies a new geometry to the engine and its array.
func (e *Engine) Configure(g Geometry) error {
	err := e.array.Configure(g)
	if err != nil {
		return err
	}

	e.geometry = g
	e.InvokeHook(sim.HookCtx{
		Domain: e.domain,
		Pos:    HookPosReconfigure,
		Item:   g,
	})

	return nil
}

func (e *Engine) rebind(id string, array *MemoryArray) {
	e.id = id
	e.array = array
}

func (e *Engine) ensureConfigured() error {
	if e.array.IsConfigured() && e.array.Geometry() == e.geometry {
		return nil
	}

	return e.Configure(e.geometry)
}

// Evaluate runs one bus cycle. It returns the word stored at the decoded
// address before any write of this cycle, most significant bit first. When
// write enable is high and the data bus carries a different word, the word is
// written and the saver is notified once.
//
// Faults do not stop the evaluation. They are reported through
// HookPosAccessFault and produce a zero output word.
func (e *Engine) Evaluate(bus BusState) logic.Vector {
	if err := e.ensureConfigured(); err != nil {
		e.InvokeHook(sim.HookCtx{
			Domain: e.domain,
			Pos:    HookPosAccessFault,
			Item:   err,
		})

		return make(logic.Vector, e.geometry.DataBits())
	}

	address := DecodeAddress(bus.Address, e.geometry.AddressBits)

	old, err := e.array.Read(address)
	if err != nil {
		e.fault(err)
	} else {
		e.stats.Reads++
	}

	out := logic.VectorFromBytes(old)

	if !bus.WriteEnable.IsHigh() {
		return out
	}

	word := e.wordFromDataBus(bus.DataIn)
	if bytes.Equal(word, old) {
		return out
	}

	err = e.array.Write(address, word)
	if err != nil {
		e.fault(err)
		return out
	}

	e.stats.Writes++
	e.InvokeHook(sim.HookCtx{
		Domain: e.domain,
		Pos:    HookPosContentChange,
		Item: ContentChange{
			ID:      e.id,
			Address: address,
			Old:     old,
			New:     word,
		},
	})

	e.persist()

	return out
}

func (e *Engine) wordFromDataBus(dataIn logic.Vector) []byte {
	bits := make(logic.Vector, e.geometry.DataBits())
	copy(bits, dataIn)

	return bits.Bytes()
}

func (e *Engine) fault(err error) {
	e.stats.Faults++
	e.InvokeHook(sim.HookCtx{
		Domain: e.domain,
		Pos:    HookPosAccessFault,
		Item:   err,
	})
}

func (e *Engine) persist() {
	if !e.autoPersist || e.saver == nil {
		return
	}

	e.stats.Saves++
	e.saver.SaveLater(e.id, e.array.Snapshot())
}
