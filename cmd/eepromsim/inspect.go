package main

import (
	"encoding/hex"
	"fmt"

	"github.com/sarchlab/eepromsim/mem/eeprom"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <id>",
	Short: "Print the metadata and a hex dump of the contents named id.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, chip, err := buildSim(cmd, args[0])
		if err != nil {
			return err
		}
		defer s.Terminate()

		md, err := eeprom.MetadataFor(chip.ID(), chip.Geometry()).Marshal()
		if err != nil {
			return err
		}

		contents, err := chip.DumpBinary()
		if err != nil {
			return err
		}

		limit, _ := cmd.Flags().GetInt("limit")
		if limit > 0 && limit < len(contents) {
			contents = contents[:limit]
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s\n%s\n", md, chip.Geometry())
		fmt.Fprint(out, hex.Dump(contents))

		return nil
	},
}

func init() {
	addChipFlags(inspectCmd)
	inspectCmd.Flags().Int("limit", 256, "bytes to print, 0 for all")

	rootCmd.AddCommand(inspectCmd)
}
