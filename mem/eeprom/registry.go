package eeprom

import (
	"fmt"
	"sort"
	"sync"
)

// A Registry owns the memory arrays of a simulation, keyed by chip identity.
// Chips built with the same id share one array. Distinct ids never share.
type Registry struct {
	lock    sync.Mutex
	arrays  map[string]*MemoryArray
	maxSize uint64
	nextID  int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		arrays:  make(map[string]*MemoryArray),
		maxSize: DefaultMaxSize,
	}
}

// SetMaxSize sets the size limit of the arrays created from now on.
func (r *Registry) SetMaxSize(maxSize uint64) {
	r.lock.Lock()
	r.maxSize = maxSize
	r.lock.Unlock()
}

// Array returns the array of id, creating an unconfigured one if needed.
func (r *Registry) Array(id string) *MemoryArray {
	r.lock.Lock()
	defer r.lock.Unlock()

	a, found := r.arrays[id]
	if !found {
		a = NewMemoryArray()
		a.SetMaxSize(r.maxSize)
		r.arrays[id] = a
	}

	return a
}

// Lookup returns the array of id if there is one.
func (r *Registry) Lookup(id string) (*MemoryArray, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()

	a, found := r.arrays[id]

	return a, found
}

// IDs returns the sorted ids of all arrays.
func (r *Registry) IDs() []string {
	r.lock.Lock()
	defer r.lock.Unlock()

	ids := make([]string, 0, len(r.arrays))
	for id := range r.arrays {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}

// NextID generates an id that no array uses yet, in the form "EEPROM 1",
// "EEPROM 2", and so on.
func (r *Registry) NextID() string {
	r.lock.Lock()
	defer r.lock.Unlock()

	for {
		r.nextID++

		id := fmt.Sprintf("EEPROM %d", r.nextID)
		if _, taken := r.arrays[id]; !taken {
			return id
		}
	}
}

// Remove drops the array of id.
func (r *Registry) Remove(id string) {
	r.lock.Lock()
	delete(r.arrays, id)
	r.lock.Unlock()
}
