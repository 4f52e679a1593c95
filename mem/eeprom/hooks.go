package eeprom

import (
	"log"

	"github.com/sarchlab/eepromsim/sim"
)

// FaultLogger writes access faults and content changes to a logger.
type FaultLogger struct {
	sim.LogHookBase

	LogChanges bool
}

// NewFaultLogger creates a FaultLogger that writes to logger.
func NewFaultLogger(logger *log.Logger) *FaultLogger {
	h := new(FaultLogger)
	h.Logger = logger

	return h
}

// Func writes the hook context to the log.
func (h *FaultLogger) Func(ctx sim.HookCtx) {
	name := "eeprom"
	if named, ok := ctx.Domain.(sim.Named); ok {
		name = named.Name()
	}

	switch ctx.Pos {
	case HookPosAccessFault:
		h.Printf("%s: %v", name, ctx.Item)
	case HookPosContentChange:
		if !h.LogChanges {
			return
		}

		change := ctx.Item.(ContentChange)
		h.Printf("%s: [0x%x] %x -> %x", name, change.Address, change.Old, change.New)
	}
}
