// Command eepromsim runs scripted bus cycles against simulated EEPROM chips and
// manages the chip contents kept in a store.
package main

import "github.com/tebeka/atexit"

func main() {
	err := rootCmd.Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
