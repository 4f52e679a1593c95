package simulation

import (
	"fmt"

	"github.com/rs/xid"
	"github.com/sarchlab/eepromsim/datarecording"
	"github.com/sarchlab/eepromsim/mem/eeprom"
	"github.com/sarchlab/eepromsim/monitoring"
	"github.com/sarchlab/eepromsim/persistence"
	"github.com/sarchlab/eepromsim/sim"
	"github.com/sarchlab/eepromsim/tracing"
)

// Builder can be used to build a simulation.
type Builder struct {
	config Config
	engine sim.Engine
}

// MakeBuilder creates a new builder with the default configuration.
func MakeBuilder() Builder {
	return Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the configuration.
func (b Builder) WithConfig(c Config) Builder {
	b.config = c
	return b
}

// WithEngine makes the simulation run on the given engine instead of a new
// serial engine.
func (b Builder) WithEngine(e sim.Engine) Builder {
	b.engine = e
	return b
}

// WithoutMonitoring sets the simulation to not use monitoring.
func (b Builder) WithoutMonitoring() Builder {
	b.config.Monitor = false
	b.config.MonitorPort = 0
	b.config.OpenBrowser = false

	return b
}

// WithMemoryStore keeps chip contents in memory only.
func (b Builder) WithMemoryStore() Builder {
	b.config.Store = StoreMemory
	return b
}

// WithOutputFileName sets the name of the recording database.
func (b Builder) WithOutputFileName(filename string) Builder {
	b.config.TraceDB = filename
	return b
}

// Build builds the simulation.
func (b Builder) Build() (*Simulation, error) {
	err := b.config.Validate()
	if err != nil {
		return nil, err
	}

	s := &Simulation{
		id:     xid.New().String(),
		config: b.config,
	}

	s.engine = b.engine
	if s.engine == nil {
		s.engine = sim.NewSerialEngine()
	}

	s.components = sim.NewSimulation(s.engine)

	s.registry = eeprom.NewRegistry()
	s.registry.SetMaxSize(b.config.MaxBufferBytes)

	s.store, err = openStore(b.config)
	if err != nil {
		return nil, err
	}

	s.saver = persistence.NewAsyncSaver(s.store)

	if b.config.TraceDB != "" {
		b.buildRecorders(s)
	}

	if b.config.Monitor {
		b.buildMonitor(s)
	}

	return s, nil
}

func openStore(c Config) (persistence.Store, error) {
	switch c.Store {
	case StoreDir:
		return persistence.NewDirStore(c.StorePath), nil
	case StoreSQLite:
		store, err := persistence.OpenSQLiteStore(c.StorePath)
		if err != nil {
			return nil, fmt.Errorf("simulation: opening store: %w", err)
		}

		return store, nil
	case StoreMemory:
		return persistence.NewMemStore(), nil
	}

	return nil, fmt.Errorf("simulation: unknown store %q", c.Store)
}

func (b Builder) buildRecorders(s *Simulation) {
	s.dataRecorder = datarecording.New(b.config.TraceDB)

	s.execRecorder = datarecording.NewExecRecorder(s.dataRecorder)
	s.execRecorder.Start()
	s.execRecorder.Add("Simulation ID", s.id)
	s.execRecorder.Add("Store", string(b.config.Store))
	s.execRecorder.Add("Flash Policy", b.config.FlashPolicy.String())

	s.visTracer = tracing.NewDBTracer(s.engine, s.dataRecorder)
}

func (b Builder) buildMonitor(s *Simulation) {
	s.monitor = monitoring.NewMonitor()
	if b.config.MonitorPort > 0 {
		s.monitor.WithPortNumber(b.config.MonitorPort)
	}

	if b.config.OpenBrowser {
		s.monitor.WithBrowser()
	}

	if b.config.StatsViewAddr != "" {
		s.monitor.WithStatsView(b.config.StatsViewAddr)
	}

	s.monitor.RegisterEngine(s.engine)
	s.monitor.StartServer()
}
