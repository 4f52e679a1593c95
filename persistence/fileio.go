package persistence

import (
	"fmt"
	"os"
)

// ReadBinary reads a binary image from a user-chosen path.
func ReadBinary(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("persistence: reading binary: %w", err)
	}

	return data, nil
}

// WriteBinary writes a binary image to a user-chosen path, replacing any file
// that is already there.
func WriteBinary(path string, data []byte) error {
	err := os.WriteFile(path, data, 0o644)
	if err != nil {
		return fmt.Errorf("persistence: writing binary: %w", err)
	}

	return nil
}
