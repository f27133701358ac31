package tasks

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Bag tracks fire-and-forget background work so shutdown can wait for it, up to a point.
// Work may be added while someone is waiting.
type Bag struct {
	mu     sync.Mutex
	n      int
	idle   chan struct{}
	logger *log.Logger
}

// NewBag creates an empty [Bag].
func NewBag(logger *log.Logger) *Bag {
	return &Bag{logger: logger}
}

// Go runs fn on its own goroutine. A panic in fn is logged and swallowed.
func (b *Bag) Go(name string, fn func()) {
	b.mu.Lock()
	if b.n == 0 {
		b.idle = make(chan struct{})
	}
	b.n++
	b.mu.Unlock()

	go func() {
		defer b.done()
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("background worker panicked", "worker", name, "panic", r)
			}
		}()
		fn()
	}()
}

func (b *Bag) done() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.n--
	if b.n == 0 {
		close(b.idle)
	}
}

// Len returns the number of workers still running.
func (b *Bag) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.n
}

// Wait blocks until the bag is empty or timeout elapses. It reports whether the bag
// drained; on false the stragglers are left running.
func (b *Bag) Wait(timeout time.Duration) bool {
	b.mu.Lock()
	if b.n == 0 {
		b.mu.Unlock()
		return true
	}
	idle := b.idle
	b.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-idle:
		return true
	case <-timer.C:
		return false
	}
}
