package tasks

import (
	"fmt"
	"sync"
	"time"

	"github.com/desertthunder/audiograb/internal/models"
	"github.com/desertthunder/audiograb/internal/process"
	"github.com/desertthunder/audiograb/internal/shared"
)

// Ref names one run of one task. Callbacks carry the ref they were started with, so
// anything from an earlier run, or from a task that was removed and resubmitted, is ignored.
type Ref struct {
	URL string
	ID  string
	Run int
}

// RefOf returns the ref of t's current run.
func RefOf(t *models.Task) Ref {
	return Ref{URL: t.URL, ID: t.ID, Run: t.Run}
}

type entry struct {
	task   *models.Task
	handle *process.Handle
}

// Store is the task list. Every read-modify-write of a task goes through one of its
// methods, under a single lock. Tasks handed out are clones.
type Store struct {
	mu      sync.Mutex
	order   []string
	entries map[string]*entry
	changed chan struct{}
	closed  bool
}

// NewStore creates an empty [Store].
func NewStore() *Store {
	return &Store{
		entries: make(map[string]*entry),
		changed: make(chan struct{}),
	}
}

// notify wakes everyone waiting on [Store.Changed]. Callers hold s.mu.
func (s *Store) notify() {
	close(s.changed)
	s.changed = make(chan struct{})
}

// Add inserts t. A live task with the same URL is refused; a finished one is replaced in place.
func (s *Store) Add(t *models.Task) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, shared.ErrSchedulerClosed
	}
	if e, ok := s.entries[t.URL]; ok {
		if !e.task.State.IsTerminal() {
			return nil, fmt.Errorf("%w: %s", shared.ErrDuplicateTask, t.URL)
		}
	} else {
		s.order = append(s.order, t.URL)
	}
	s.entries[t.URL] = &entry{task: t}
	s.notify()
	return t.Clone(), nil
}

// Get returns a clone of the task for url.
func (s *Store) Get(url string) (*models.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[url]
	if !ok {
		return nil, false
	}
	return e.task.Clone(), true
}

// Lookup returns a clone of the task ref names, if that run is still current.
func (s *Store) Lookup(ref Ref) (*models.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.current(ref)
	if !ok {
		return nil, false
	}
	return e.task.Clone(), true
}

// List returns clones of every task in submission order.
func (s *Store) List() []*models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Task, 0, len(s.order))
	for _, url := range s.order {
		out = append(out, s.entries[url].task.Clone())
	}
	return out
}

func (s *Store) current(ref Ref) (*entry, bool) {
	e, ok := s.entries[ref.URL]
	if !ok || e.task.ID != ref.ID || e.task.Run != ref.Run {
		return nil, false
	}
	return e, true
}

// Update runs fn on the task ref names while holding the lock. fn reports whether it
// changed anything. Stale refs are a no-op. A task left terminal loses its process handle.
func (s *Store) Update(ref Ref, fn func(t *models.Task) bool) (*models.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.current(ref)
	if !ok || !fn(e.task) {
		return nil, false
	}
	if e.task.State.IsTerminal() {
		e.handle = nil
	}
	s.notify()
	return e.task.Clone(), true
}

// Attach stores the process handle of a running task. It returns false when the run is
// stale or no longer downloading, in which case the caller owns h and must cancel it.
func (s *Store) Attach(ref Ref, h *process.Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.current(ref)
	if !ok || e.task.State != models.StateDownloading {
		return false
	}
	e.handle = h
	return true
}

// Active returns the number of downloading tasks.
func (s *Store) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active()
}

func (s *Store) active() int {
	n := 0
	for _, e := range s.entries {
		if e.task.State == models.StateDownloading {
			n++
		}
	}
	return n
}

// Promote moves queued tasks that satisfy ready to downloading, in submission order,
// while fewer than limit are active. prepare runs on each promoted task under the lock.
func (s *Store) Promote(limit int, now time.Time, ready func(*models.Task) bool, prepare func(*models.Task)) []*models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	var started []*models.Task
	active := s.active()
	for _, url := range s.order {
		if active >= limit {
			break
		}
		t := s.entries[url].task
		if t.State != models.StateQueued || !ready(t) {
			continue
		}
		if err := t.Transition(models.StateDownloading, now); err != nil {
			continue
		}
		prepare(t)
		active++
		started = append(started, t.Clone())
	}
	if len(started) > 0 {
		s.notify()
	}
	return started
}

// Cancel marks a queued or downloading task cancelled and hands back its process handle,
// which the caller cancels after the lock is gone.
func (s *Store) Cancel(url string, now time.Time) (*models.Task, *process.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[url]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", shared.ErrTaskNotFound, url)
	}
	if err := e.task.Transition(models.StateCancelled, now); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", shared.ErrIllegalTransition, err)
	}

	h := e.handle
	e.handle = nil
	s.notify()
	return e.task.Clone(), h, nil
}

// CancelAll cancels every live task and returns the clones with their handles.
func (s *Store) CancelAll(now time.Time) ([]*models.Task, []*process.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var tasks []*models.Task
	var handles []*process.Handle
	for _, url := range s.order {
		e := s.entries[url]
		if err := e.task.Transition(models.StateCancelled, now); err != nil {
			continue
		}
		tasks = append(tasks, e.task.Clone())
		if e.handle != nil {
			handles = append(handles, e.handle)
			e.handle = nil
		}
	}
	if len(tasks) > 0 {
		s.notify()
	}
	return tasks, handles
}

// Requeue moves a finished task back to queued for another run and lets reset clear
// whatever the previous run left behind. id guards against the task having been replaced.
func (s *Store) Requeue(url, id string, now time.Time, reset func(*models.Task)) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, shared.ErrSchedulerClosed
	}
	e, ok := s.entries[url]
	if !ok || e.task.ID != id {
		return nil, fmt.Errorf("%w: %s", shared.ErrTaskNotFound, url)
	}
	if !e.task.State.IsTerminal() {
		return nil, fmt.Errorf("%w: %s", shared.ErrTaskActive, url)
	}
	if err := e.task.Transition(models.StateQueued, now); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrIllegalTransition, err)
	}
	reset(e.task)
	s.notify()
	return e.task.Clone(), nil
}

// Remove drops the task for url and returns its handle, if it had one.
func (s *Store) Remove(url string) (*models.Task, *process.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[url]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", shared.ErrTaskNotFound, url)
	}
	delete(s.entries, url)
	for i, u := range s.order {
		if u == url {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.notify()
	return e.task.Clone(), e.handle, nil
}

// ClearFinished drops every terminal task and returns them.
func (s *Store) ClearFinished() []*models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []*models.Task
	kept := s.order[:0]
	for _, url := range s.order {
		e := s.entries[url]
		if e.task.State.IsTerminal() {
			removed = append(removed, e.task.Clone())
			delete(s.entries, url)
			continue
		}
		kept = append(kept, url)
	}
	s.order = kept
	if len(removed) > 0 {
		s.notify()
	}
	return removed
}

// Settled returns a channel closed on the next change and whether every task is terminal.
// Both are read under the same lock so no change can slip between them.
func (s *Store) Settled() (<-chan struct{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if !e.task.State.IsTerminal() {
			return s.changed, false
		}
	}
	return s.changed, true
}

// Close stops further promotion and additions.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.notify()
}
