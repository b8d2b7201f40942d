package state

import (
	"sync"
	"sync/atomic"
)

// Interrupt is a cooperative stop flag owned by the caller and shared by
// every session that should stop together.
type Interrupt struct {
	stopped atomic.Bool
	once    sync.Once
	done    chan struct{}
}

func NewInterrupt() *Interrupt {
	return &Interrupt{done: make(chan struct{})}
}

// RequestStop sets the flag. It never blocks and may be called any number of times.
func (i *Interrupt) RequestStop() {
	i.once.Do(func() {
		i.stopped.Store(true)
		close(i.done)
	})
}

func (i *Interrupt) IsStopRequested() bool {
	return i.stopped.Load()
}

// Done is closed once a stop was requested.
func (i *Interrupt) Done() <-chan struct{} {
	return i.done
}
