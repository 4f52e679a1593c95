// Package simulation wires an engine, the chip contents registry, the stores,
// the recorders and the monitor into one simulation.
package simulation

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sarchlab/eepromsim/datarecording"
	"github.com/sarchlab/eepromsim/mem/eeprom"
	"github.com/sarchlab/eepromsim/monitoring"
	"github.com/sarchlab/eepromsim/persistence"
	"github.com/sarchlab/eepromsim/sim"
	"github.com/sarchlab/eepromsim/tracing"
)

// A Simulation provides the service requires to define a simulation.
type Simulation struct {
	id     string
	config Config
	engine sim.Engine

	components *sim.Simulation
	registry   *eeprom.Registry
	store      persistence.Store
	saver      *persistence.AsyncSaver

	dataRecorder datarecording.DataRecorder
	execRecorder *datarecording.ExecRecorder
	visTracer    *tracing.DBTracer
	monitor      *monitoring.Monitor
}

// ID returns the unique id of the simulation.
func (s *Simulation) ID() string {
	return s.id
}

// Config returns the settings the simulation was built with.
func (s *Simulation) Config() Config {
	return s.config
}

// GetEngine returns the engine used in the simulation.
func (s *Simulation) GetEngine() sim.Engine {
	return s.engine
}

// Registry returns the contents shared by the chips of the simulation.
func (s *Simulation) Registry() *eeprom.Registry {
	return s.registry
}

// Store returns where chip contents are persisted.
func (s *Simulation) Store() persistence.Store {
	return s.store
}

// Saver returns the background saver of the chips.
func (s *Simulation) Saver() *persistence.AsyncSaver {
	return s.saver
}

// GetDataRecorder returns the data recorder used in the simulation. It is nil
// if nothing is recorded.
func (s *Simulation) GetDataRecorder() datarecording.DataRecorder {
	return s.dataRecorder
}

// GetMonitor returns the monitor used in the simulation. It is nil if the
// monitor is off.
func (s *Simulation) GetMonitor() *monitoring.Monitor {
	return s.monitor
}

// GetVisTracer returns the tracer used in the simulation. It is nil if
// nothing is recorded.
func (s *Simulation) GetVisTracer() *tracing.DBTracer {
	return s.visTracer
}

// EEPROMBuilder returns a chip builder that uses the engine, the registry,
// the store and the saver of the simulation. Changed words are saved in the
// background.
func (s *Simulation) EEPROMBuilder() eeprom.Builder {
	return eeprom.MakeBuilder().
		WithEngine(s.engine).
		WithRegistry(s.registry).
		WithStore(s.store).
		WithSaver(s.saver).
		WithAutoPersist(true).
		WithMaxBufferSize(s.config.MaxBufferBytes).
		WithFlashPolicy(s.config.FlashPolicy)
}

// RegisterComponent registers a component with the simulation. The component
// is traced if there is a tracer and shown by the monitor if there is one.
func (s *Simulation) RegisterComponent(c sim.Component) {
	s.components.RegisterComponent(c)

	if h, ok := c.(tracing.NamedHookable); ok && s.visTracer != nil {
		tracing.CollectTrace(h, s.visTracer)
	}

	if s.monitor != nil {
		s.monitor.RegisterComponent(c)
	}
}

// Components returns all the registered components.
func (s *Simulation) Components() []sim.Component {
	return s.components.Components()
}

// GetComponentByName returns the component with the given name.
func (s *Simulation) GetComponentByName(name string) sim.Component {
	return s.components.GetComponentByName(name)
}

// Terminate saves pending chip contents and flushes and closes the recorders
// and the store.
func (s *Simulation) Terminate() {
	s.saver.Close()

	if s.visTracer != nil {
		s.visTracer.Terminate()
	}

	if s.execRecorder != nil {
		s.execRecorder.End()
	}

	if s.dataRecorder != nil {
		err := s.dataRecorder.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Closing recorder: %v\n", err)
		}
	}

	if closer, ok := s.store.(io.Closer); ok {
		err := closer.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Closing store: %v\n", err)
		}
	}

	if s.monitor != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		_ = s.monitor.StopServer(ctx)
	}
}
