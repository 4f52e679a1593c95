package stimulus

import (
	"fmt"

	"github.com/sarchlab/eepromsim/logic"
	"github.com/sarchlab/eepromsim/mem/eeprom"
	"github.com/sarchlab/eepromsim/sim"
)

// A Mismatch is a read whose output differed from the expected word.
type Mismatch struct {
	Step    int
	Address uint64
	Want    uint64
	Got     uint64
}

func (m Mismatch) String() string {
	return fmt.Sprintf("step %d: read 0x%x, want 0x%x, got 0x%x",
		m.Step, m.Address, m.Want, m.Got)
}

// HookPosStepPlayed is triggered after the driver puts a step on the bus. The
// item is the Step.
var HookPosStepPlayed = &sim.HookPos{Name: "StepPlayed"}

type check struct {
	step    int
	address uint64
	want    uint64
}

// Driver is a ticking component that plays a Script onto the bus of an
// EEPROM, one step per cycle. The word a read expects is checked in the cycle
// after the read.
type Driver struct {
	*sim.TickingComponent

	script *Script

	writeEnable *logic.Pin
	addrPins    []*logic.Pin
	dataInPins  []*logic.Pin
	dataOutPins []*logic.Pin

	pc         int
	idleLeft   int
	pending    *check
	mismatches []Mismatch
	cycles     uint64
	done       bool
}

// NewDriver creates a driver for the pins of bus.
func NewDriver(
	name string,
	engine sim.Engine,
	freq sim.Freq,
	bus *logic.Bus,
	script *Script,
) *Driver {
	d := &Driver{script: script}
	d.TickingComponent = sim.NewTickingComponent(name, engine, freq, d)
	d.Attach(bus)

	return d
}

// Attach makes the driver drive the pins of bus from now on.
func (d *Driver) Attach(bus *logic.Bus) {
	d.writeEnable = bus.Pin(eeprom.GroupWriteEnable)
	d.addrPins = bus.Group(eeprom.GroupAddress)
	d.dataInPins = bus.Group(eeprom.GroupDataIn)
	d.dataOutPins = bus.Group(eeprom.GroupDataOut)
}

// Start schedules the first step in the current cycle.
func (d *Driver) Start() {
	d.TickNow()
}

// Tick plays the next step.
func (d *Driver) Tick() bool {
	if d.done {
		return false
	}

	d.cycles++
	d.checkPending()

	if d.idleLeft > 0 {
		d.idleLeft--
		return true
	}

	if d.pc >= len(d.script.Steps) {
		d.writeEnable.ReceiveSignal(logic.Low)
		d.done = true

		return false
	}

	step := d.script.Steps[d.pc]
	d.play(d.pc, step)
	d.pc++

	d.InvokeHook(sim.HookCtx{
		Domain: d,
		Pos:    HookPosStepPlayed,
		Item:   step,
	})

	return true
}

func (d *Driver) play(index int, step Step) {
	switch step.Op {
	case OpWrite:
		d.driveAddress(step.Address)
		logic.Drive(d.dataInPins,
			logic.VectorFromUint(step.Data, len(d.dataInPins)))
		d.writeEnable.ReceiveSignal(logic.High)
	case OpRead:
		d.writeEnable.ReceiveSignal(logic.Low)
		d.driveAddress(step.Address)

		if step.Expect != nil {
			d.pending = &check{
				step:    index,
				address: step.Address,
				want:    *step.Expect,
			}
		}
	case OpIdle:
		d.writeEnable.ReceiveSignal(logic.Low)
		if step.Cycles > 1 {
			d.idleLeft = step.Cycles - 1
		}
	}
}

func (d *Driver) driveAddress(address uint64) {
	logic.Drive(d.addrPins, logic.VectorFromUint(address, len(d.addrPins)))
}

func (d *Driver) checkPending() {
	if d.pending == nil {
		return
	}

	got := logic.Sample(d.dataOutPins).Uint()
	if got != d.pending.want {
		d.mismatches = append(d.mismatches, Mismatch{
			Step:    d.pending.step,
			Address: d.pending.address,
			Want:    d.pending.want,
			Got:     got,
		})
	}

	d.pending = nil
}

// Done tells if every step has been played and checked.
func (d *Driver) Done() bool {
	return d.done
}

// Cycles returns how many cycles the driver has ticked.
func (d *Driver) Cycles() uint64 {
	return d.cycles
}

// Mismatches returns the reads that did not give the expected word.
func (d *Driver) Mismatches() []Mismatch {
	return d.mismatches
}
