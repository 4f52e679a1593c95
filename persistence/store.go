// Package persistence keeps the contents of memory chips across simulation
// runs.
//
// A Store saves and loads raw byte buffers keyed by the identity of a chip.
// The AsyncSaver sits between a running simulation and a Store so that saving
// never stalls the simulation.
package persistence

import (
	"context"
	"errors"
)

// ErrNotFound is returned by a Store when nothing has been saved under an id.
var ErrNotFound = errors.New("persistence: contents not found")

// A Store saves and loads memory contents by chip identity.
type Store interface {
	// Load returns the contents saved under the id. It returns an error that
	// wraps ErrNotFound if nothing is saved under the id.
	Load(ctx context.Context, id string) ([]byte, error)

	// Save replaces the contents saved under the id. The store must not keep a
	// reference to contents after returning.
	Save(ctx context.Context, id string, contents []byte) error
}
