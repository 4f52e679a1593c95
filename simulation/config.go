package simulation

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/sarchlab/eepromsim/mem/eeprom"
)

// StoreKind selects where chip contents are persisted.
type StoreKind string

// Kinds of store.
const (
	StoreDir    StoreKind = "dir"
	StoreSQLite StoreKind = "sqlite"
	StoreMemory StoreKind = "memory"
)

// Environment variables read by LoadConfig.
const (
	EnvStore          = "EEPROMSIM_STORE"
	EnvStorePath      = "EEPROMSIM_STORE_PATH"
	EnvMaxBufferBytes = "EEPROMSIM_MAX_BUFFER_BYTES"
	EnvFlashPolicy    = "EEPROMSIM_FLASH_POLICY"
	EnvMonitor        = "EEPROMSIM_MONITOR"
	EnvMonitorPort    = "EEPROMSIM_MONITOR_PORT"
	EnvOpenBrowser    = "EEPROMSIM_OPEN_BROWSER"
	EnvStatsView      = "EEPROMSIM_STATSVIEW_ADDR"
	EnvTraceDB        = "EEPROMSIM_TRACE_DB"
)

// Config holds the settings of a simulation.
type Config struct {
	Store          StoreKind
	StorePath      string
	MaxBufferBytes uint64
	FlashPolicy    eeprom.FlashPolicy

	Monitor       bool
	MonitorPort   int
	OpenBrowser   bool
	StatsViewAddr string

	// TraceDB is the recording database, without the .sqlite3 extension.
	// Nothing is recorded when it is empty.
	TraceDB string
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Store:          StoreDir,
		StorePath:      "eeprom_data",
		MaxBufferBytes: eeprom.DefaultMaxSize,
		FlashPolicy:    eeprom.FlashFit,
	}
}

// LoadConfig reads the settings from the environment. The named env files are
// loaded first; with no names, a .env file in the working directory is loaded
// if there is one. Variables already set in the environment win over the
// files.
func LoadConfig(envFiles ...string) (Config, error) {
	err := godotenv.Load(envFiles...)
	if err != nil && (len(envFiles) > 0 || !errors.Is(err, fs.ErrNotExist)) {
		return Config{}, fmt.Errorf("simulation: loading env files: %w", err)
	}

	return ConfigFromEnv(os.LookupEnv)
}

// ConfigFromEnv builds a Config from the variables that lookup returns.
func ConfigFromEnv(lookup func(string) (string, bool)) (Config, error) {
	c := DefaultConfig()
	p := envParser{lookup: lookup}

	if v, ok := lookup(EnvStore); ok {
		c.Store = StoreKind(v)
	}

	if v, ok := lookup(EnvStorePath); ok {
		c.StorePath = v
	}

	if v, ok := lookup(EnvFlashPolicy); ok {
		policy, err := eeprom.ParseFlashPolicy(v)
		if err != nil {
			p.fail(EnvFlashPolicy, err)
		}

		c.FlashPolicy = policy
	}

	if v, ok := lookup(EnvStatsView); ok {
		c.StatsViewAddr = v
	}

	if v, ok := lookup(EnvTraceDB); ok {
		c.TraceDB = v
	}

	p.uint64(EnvMaxBufferBytes, &c.MaxBufferBytes)
	p.bool(EnvMonitor, &c.Monitor)
	p.int(EnvMonitorPort, &c.MonitorPort)
	p.bool(EnvOpenBrowser, &c.OpenBrowser)

	if p.err != nil {
		return Config{}, p.err
	}

	err := c.Validate()
	if err != nil {
		return Config{}, err
	}

	return c, nil
}

// Validate checks that the settings can be used together.
func (c Config) Validate() error {
	switch c.Store {
	case StoreDir, StoreSQLite:
		if c.StorePath == "" {
			return fmt.Errorf("simulation: store %s needs a path", c.Store)
		}
	case StoreMemory:
	default:
		return fmt.Errorf("simulation: unknown store %q", c.Store)
	}

	if c.MaxBufferBytes == 0 {
		return errors.New("simulation: max buffer bytes must be positive")
	}

	if !c.Monitor && (c.MonitorPort != 0 || c.OpenBrowser) {
		return errors.New(
			"simulation: monitor options are set while the monitor is off")
	}

	return nil
}

type envParser struct {
	lookup func(string) (string, bool)
	err    error
}

func (p *envParser) fail(name string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("simulation: parsing %s: %w", name, err)
	}
}

func (p *envParser) uint64(name string, dst *uint64) {
	v, ok := p.lookup(name)
	if !ok {
		return
	}

	n, err := strconv.ParseUint(v, 0, 64)
	if err != nil {
		p.fail(name, err)
		return
	}

	*dst = n
}

func (p *envParser) int(name string, dst *int) {
	v, ok := p.lookup(name)
	if !ok {
		return
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(name, err)
		return
	}

	*dst = n
}

func (p *envParser) bool(name string, dst *bool) {
	v, ok := p.lookup(name)
	if !ok {
		return
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(name, err)
		return
	}

	*dst = b
}
