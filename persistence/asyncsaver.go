package persistence

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/tebeka/atexit"
)

// ErrSaverClosed is reported for contents handed to a closed AsyncSaver.
var ErrSaverClosed = errors.New("persistence: saver is closed")

// An ErrorHandler is called by the AsyncSaver when saving fails.
type ErrorHandler func(id string, err error)

// AsyncSaver saves contents to a Store in a background goroutine.
//
// SaveLater never blocks on the store. When the same id is handed over again
// before the previous contents reached the store, only the latest contents
// are saved.
type AsyncSaver struct {
	store   Store
	onError ErrorHandler

	lock     sync.Mutex
	pending  map[string][]byte
	order    []string
	inflight bool
	waiters  []chan struct{}
	closed   bool
	saved    uint64

	wake      chan struct{}
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewAsyncSaver creates a saver and starts its worker. The saver is flushed
// and closed when the program exits through atexit.
func NewAsyncSaver(store Store) *AsyncSaver {
	s := &AsyncSaver{
		store:   store,
		onError: printSaveError,
		pending: make(map[string][]byte),
		wake:    make(chan struct{}, 1),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	go s.run()

	atexit.Register(func() { s.Close() })

	return s
}

func printSaveError(id string, err error) {
	fmt.Fprintf(os.Stderr, "failed to save contents of %s: %v\n", id, err)
}

// OnError replaces the handler for failed saves.
func (s *AsyncSaver) OnError(h ErrorHandler) {
	s.lock.Lock()
	s.onError = h
	s.lock.Unlock()
}

// SaveLater queues the contents of id to be saved. The contents are copied
// before SaveLater returns, so callers may keep mutating their buffer.
func (s *AsyncSaver) SaveLater(id string, contents []byte) {
	s.lock.Lock()

	if s.closed {
		h := s.onError
		s.lock.Unlock()
		h(id, ErrSaverClosed)

		return
	}

	buf, found := s.pending[id]
	if found && len(buf) == len(contents) {
		copy(buf, contents)
	} else {
		if !found {
			s.order = append(s.order, id)
		}

		s.pending[id] = append([]byte(nil), contents...)
	}

	s.lock.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// NumSaved returns how many saves have reached the store.
func (s *AsyncSaver) NumSaved() uint64 {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.saved
}

// Flush blocks until all the contents queued before the call are in the store,
// or the context is done.
func (s *AsyncSaver) Flush(ctx context.Context) error {
	s.lock.Lock()
	if len(s.order) == 0 && !s.inflight {
		s.lock.Unlock()
		return nil
	}

	ch := make(chan struct{})
	s.waiters = append(s.waiters, ch)
	s.lock.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close saves everything that is still queued and stops the worker. Contents
// handed over after Close are reported to the error handler.
func (s *AsyncSaver) Close() {
	s.closeOnce.Do(func() {
		s.lock.Lock()
		s.closed = true
		s.lock.Unlock()

		close(s.quit)
	})

	<-s.done
}

func (s *AsyncSaver) run() {
	defer close(s.done)

	for {
		select {
		case <-s.wake:
			s.drain()
		case <-s.quit:
			s.drain()
			return
		}
	}
}

func (s *AsyncSaver) drain() {
	for {
		s.lock.Lock()

		if len(s.order) == 0 {
			s.inflight = false
			for _, ch := range s.waiters {
				close(ch)
			}

			s.waiters = nil
			s.lock.Unlock()

			return
		}

		id := s.order[0]
		s.order = s.order[1:]
		data := s.pending[id]
		delete(s.pending, id)
		s.inflight = true
		onError := s.onError
		s.lock.Unlock()

		err := s.store.Save(context.Background(), id, data)

		s.lock.Lock()
		if err == nil {
			s.saved++
		}
		s.lock.Unlock()

		if err != nil {
			onError(id, err)
		}
	}
}
