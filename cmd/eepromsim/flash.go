package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var flashCmd = &cobra.Command{
	Use:   "flash <id> <image.bin>",
	Short: "Write a binary image into the contents named id.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, chip, err := buildSim(cmd, args[0])
		if err != nil {
			return err
		}
		defer s.Terminate()

		err = chip.FlashFile(cmd.Context(), args[1])
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stderr, "Flashed %s into %s (%s)\n",
			args[1], chip.ID(), chip.Geometry())

		return nil
	},
}

var dumpCmd = &cobra.Command{
	Use:   "dump <id> <image.bin>",
	Short: "Write the contents named id into a binary file.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, chip, err := buildSim(cmd, args[0])
		if err != nil {
			return err
		}
		defer s.Terminate()

		return chip.DumpFile(args[1])
	},
}

func init() {
	addChipFlags(flashCmd)
	addChipFlags(dumpCmd)

	rootCmd.AddCommand(flashCmd)
	rootCmd.AddCommand(dumpCmd)
}
