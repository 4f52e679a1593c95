package main

import (
	"fmt"

	"github.com/sarchlab/eepromsim/mem/eeprom"
	"github.com/sarchlab/eepromsim/persistence"
	"github.com/sarchlab/eepromsim/simulation"
	"github.com/spf13/cobra"
)

// config is the simulation configuration after the flags are applied.
var config simulation.Config

var rootCmd = &cobra.Command{
	Use:   "eepromsim",
	Short: "Simulate EEPROM chips driven by scripted bus cycles.",
	Long: `eepromsim simulates EEPROM chips with configurable address and data ` +
		`buses. It can run stimulus scripts against a chip, flash images ` +
		`into the store that keeps chip contents, and dump or inspect them.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringSlice("env-file", nil, "env files to load settings from")
	f.String("store", "", "where chip contents are kept: dir, sqlite or memory")
	f.String("store-path", "", "directory or database of the store")
	f.Uint64("max-buffer-bytes", 0, "largest memory buffer of a chip")
	f.String("flash-policy", "", "how images of a different size are flashed: fit or strict")
	f.Bool("monitor", false, "serve the monitoring page while running")
	f.Int("monitor-port", 0, "port of the monitoring page")
	f.Bool("open-browser", false, "open the monitoring page in a browser")
	f.String("statsview", "", "address to serve runtime statistics at")
	f.String("trace-db", "", "record traces into this database")
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	f := cmd.Flags()

	envFiles, _ := f.GetStringSlice("env-file")

	c, err := simulation.LoadConfig(envFiles...)
	if err != nil {
		return err
	}

	if f.Changed("store") {
		v, _ := f.GetString("store")
		c.Store = simulation.StoreKind(v)
	}

	if f.Changed("store-path") {
		c.StorePath, _ = f.GetString("store-path")
	}

	if f.Changed("max-buffer-bytes") {
		c.MaxBufferBytes, _ = f.GetUint64("max-buffer-bytes")
	}

	if f.Changed("flash-policy") {
		v, _ := f.GetString("flash-policy")

		c.FlashPolicy, err = eeprom.ParseFlashPolicy(v)
		if err != nil {
			return err
		}
	}

	if f.Changed("monitor") {
		c.Monitor, _ = f.GetBool("monitor")
	}

	if f.Changed("monitor-port") {
		c.MonitorPort, _ = f.GetInt("monitor-port")
	}

	if f.Changed("open-browser") {
		c.OpenBrowser, _ = f.GetBool("open-browser")
	}

	if f.Changed("statsview") {
		c.StatsViewAddr, _ = f.GetString("statsview")
	}

	if f.Changed("trace-db") {
		c.TraceDB, _ = f.GetString("trace-db")
	}

	err = c.Validate()
	if err != nil {
		return err
	}

	config = c

	return nil
}

// addChipFlags adds the flags that select a chip and its buses.
func addChipFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Uint("addr-bytes", 2, "width of the address bus in bytes")
	f.Uint("data-bytes", 2, "width of the data bus in bytes")
	f.Uint("addr-bits", 0, "width of the address bus in bits, overrides --addr-bytes")
	f.String("metadata", "", "file with the saved chip metadata, overrides the bus flags")
}

type chipFlags struct {
	geometry eeprom.Geometry
	metadata []byte
}

func readChipFlags(cmd *cobra.Command) (chipFlags, error) {
	f := cmd.Flags()

	addrBytes, _ := f.GetUint("addr-bytes")
	dataBytes, _ := f.GetUint("data-bytes")
	addrBits, _ := f.GetUint("addr-bits")
	metadataPath, _ := f.GetString("metadata")

	flags := chipFlags{
		geometry: eeprom.GeometryFromBusBytes(addrBytes, dataBytes),
	}

	if addrBits > 0 {
		flags.geometry.AddressBits = addrBits
	}

	if metadataPath != "" {
		blob, err := persistence.ReadBinary(metadataPath)
		if err != nil {
			return chipFlags{}, err
		}

		md, err := eeprom.ParseMetadata(blob)
		if err != nil {
			return chipFlags{}, err
		}

		flags.geometry = md.Geometry()
		flags.metadata = blob
	}

	return flags, nil
}

// buildSim builds a simulation and a chip for the contents named id. The
// stored contents of the chip are loaded.
func buildSim(
	cmd *cobra.Command,
	id string,
) (*simulation.Simulation, *eeprom.Comp, error) {
	flags, err := readChipFlags(cmd)
	if err != nil {
		return nil, nil, err
	}

	s, err := simulation.MakeBuilder().WithConfig(config).Build()
	if err != nil {
		return nil, nil, err
	}

	b := s.EEPROMBuilder().WithGeometry(flags.geometry)
	if id != "" {
		b = b.WithID(id)
	}

	chip, err := b.Build("EEPROM")
	if err != nil {
		s.Terminate()
		return nil, nil, err
	}

	md := flags.metadata
	if md == nil {
		md, err = eeprom.MetadataFor(chip.ID(), flags.geometry).Marshal()
		if err != nil {
			s.Terminate()
			return nil, nil, err
		}
	}

	err = chip.Load(cmd.Context(), md)
	if err != nil {
		s.Terminate()
		return nil, nil, fmt.Errorf("loading %s: %w", chip.ID(), err)
	}

	s.RegisterComponent(chip)

	return s, chip, nil
}
