// Package stimulus plays scripted bus cycles onto the pins of a memory chip
// and checks what the chip drives back.
package stimulus

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Op is the kind of a bus cycle.
type Op string

// Bus cycle kinds.
const (
	OpWrite Op = "write"
	OpRead  Op = "read"
	OpIdle  Op = "idle"
)

// A Step is one scripted bus cycle, or a run of idle cycles.
type Step struct {
	Op      Op      `yaml:"op"`
	Address uint64  `yaml:"address"`
	Data    uint64  `yaml:"data"`
	Expect  *uint64 `yaml:"expect,omitempty"`
	Cycles  int     `yaml:"cycles,omitempty"`
}

// A Script is an ordered list of steps.
type Script struct {
	Steps []Step `yaml:"steps"`
}

// ParseScript decodes a yaml script and validates it.
func ParseScript(data []byte) (*Script, error) {
	s := new(Script)

	err := yaml.Unmarshal(data, s)
	if err != nil {
		return nil, fmt.Errorf("stimulus: parsing script: %w", err)
	}

	err = s.Validate()
	if err != nil {
		return nil, err
	}

	return s, nil
}

// LoadScript reads and parses the script at path.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("stimulus: reading script: %w", err)
	}

	return ParseScript(data)
}

// Validate checks that every step can be played.
func (s *Script) Validate() error {
	for i, step := range s.Steps {
		switch step.Op {
		case OpWrite, OpRead:
			if step.Cycles != 0 {
				return fmt.Errorf("stimulus: step %d: cycles only apply to idle", i)
			}
		case OpIdle:
			if step.Cycles < 0 {
				return fmt.Errorf("stimulus: step %d: negative cycles", i)
			}
		default:
			return fmt.Errorf("stimulus: step %d: unknown op %q", i, step.Op)
		}

		if step.Expect != nil && step.Op != OpRead {
			return fmt.Errorf("stimulus: step %d: only reads can expect data", i)
		}
	}

	return nil
}

// Marshal encodes the script as yaml.
func (s *Script) Marshal() ([]byte, error) {
	return yaml.Marshal(s)
}
