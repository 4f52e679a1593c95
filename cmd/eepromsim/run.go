package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/sarchlab/eepromsim/mem/eeprom"
	"github.com/sarchlab/eepromsim/monitoring"
	"github.com/sarchlab/eepromsim/persistence"
	"github.com/sarchlab/eepromsim/sim"
	"github.com/sarchlab/eepromsim/stimulus"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <script.yaml> [id]",
	Short: "Play a stimulus script against a chip.",
	Long: "`run` plays the bus cycles of a yaml script against the chip whose " +
		"contents are named id, checks the words the reads expect, and saves " +
		"the changed contents to the store.",
	Args: cobra.RangeArgs(1, 2),
	RunE: runScript,
}

func init() {
	addChipFlags(runCmd)
	runCmd.Flags().Float64("freq", 1, "clock frequency in MHz")
	runCmd.Flags().Bool("log-faults", false, "log out-of-range accesses to stderr")
	runCmd.Flags().Bool("log-changes", false, "log every changed word to stderr")
	runCmd.Flags().String("save-metadata", "", "write the chip metadata to this file")
	runCmd.Flags().Bool("wait", false, "keep the monitor running until interrupted")

	rootCmd.AddCommand(runCmd)
}

// A progressHook advances a progress bar for every played step.
type progressHook struct {
	bar *monitoring.ProgressBar
}

func (h progressHook) Func(ctx sim.HookCtx) {
	if ctx.Pos == stimulus.HookPosStepPlayed {
		h.bar.IncrementFinished(1)
	}
}

func runScript(cmd *cobra.Command, args []string) error {
	script, err := stimulus.LoadScript(args[0])
	if err != nil {
		return err
	}

	id := ""
	if len(args) > 1 {
		id = args[1]
	}

	s, chip, err := buildSim(cmd, id)
	if err != nil {
		return err
	}
	defer s.Terminate()

	attachLoggers(cmd, chip)

	freq, _ := cmd.Flags().GetFloat64("freq")
	driver := stimulus.NewDriver("Driver", s.GetEngine(),
		sim.Freq(freq)*sim.MHz, chip.Bus(), script)
	s.RegisterComponent(driver)

	var bar *monitoring.ProgressBar
	if m := s.GetMonitor(); m != nil {
		bar = m.CreateProgressBar("Script", uint64(len(script.Steps)))
		driver.AcceptHook(progressHook{bar: bar})
	}

	driver.Start()

	err = s.GetEngine().Run()
	if err != nil {
		return err
	}

	s.GetEngine().Finished()

	if bar != nil {
		s.GetMonitor().CompleteProgressBar(bar)
	}

	err = saveMetadata(cmd, chip)
	if err != nil {
		return err
	}

	stats := chip.Stats()
	fmt.Fprintf(os.Stderr,
		"%s: %d steps in %d cycles, %d reads, %d writes, %d faults\n",
		chip.ID(), len(script.Steps), driver.Cycles(),
		stats.Reads, stats.Writes, stats.Faults)

	wait(cmd, s.GetMonitor())

	for _, m := range driver.Mismatches() {
		fmt.Fprintln(os.Stderr, m)
	}

	if n := len(driver.Mismatches()); n > 0 {
		return fmt.Errorf("%d reads did not return the expected word", n)
	}

	return nil
}

func attachLoggers(cmd *cobra.Command, chip *eeprom.Comp) {
	logFaults, _ := cmd.Flags().GetBool("log-faults")
	logChanges, _ := cmd.Flags().GetBool("log-changes")

	if !logFaults && !logChanges {
		return
	}

	logger := eeprom.NewFaultLogger(log.New(os.Stderr, "", 0))
	logger.LogChanges = logChanges
	chip.AcceptHook(logger)
}

func saveMetadata(cmd *cobra.Command, chip *eeprom.Comp) error {
	path, _ := cmd.Flags().GetString("save-metadata")
	if path == "" {
		return nil
	}

	md, err := chip.SaveMetadata(cmd.Context())
	if err != nil {
		return err
	}

	return persistence.WriteBinary(path, md)
}

func wait(cmd *cobra.Command, m *monitoring.Monitor) {
	hold, _ := cmd.Flags().GetBool("wait")
	if !hold || m == nil {
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Fprintf(os.Stderr, "Simulation finished, monitor at %s. "+
		"Press Ctrl-C to exit.\n", m.URL())

	<-ctx.Done()
}
