package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/desertthunder/audiograb/internal/models"
	"github.com/desertthunder/audiograb/internal/shared"
	"github.com/desertthunder/audiograb/internal/tasks"
)

// Broadcaster fans scheduler updates out to any number of subscribers. Slow subscribers
// miss updates rather than stall the others.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[chan tasks.ProgressUpdate]struct{}
	buffer int
}

// NewBroadcaster creates a [Broadcaster] whose subscriber channels hold buffer updates.
func NewBroadcaster(buffer int) *Broadcaster {
	if buffer < 1 {
		buffer = 1
	}
	return &Broadcaster{subs: make(map[chan tasks.ProgressUpdate]struct{}), buffer: buffer}
}

// Run forwards everything from in until it is closed or ctx is done.
func (b *Broadcaster) Run(ctx context.Context, in <-chan tasks.ProgressUpdate) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-in:
			if !ok {
				return
			}
			b.Publish(u)
		}
	}
}

// Publish sends u to every subscriber without blocking.
func (b *Broadcaster) Publish(u tasks.ProgressUpdate) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- u:
		default:
		}
	}
}

// Subscribe returns a channel of updates and a func that ends the subscription.
func (b *Broadcaster) Subscribe() (<-chan tasks.ProgressUpdate, func()) {
	ch := make(chan tasks.ProgressUpdate, b.buffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
		})
	}
}

// Subscribers returns the current subscriber count.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Event is the payload of one server-sent event.
type Event struct {
	Phase   string       `json:"phase"`
	Message string       `json:"message"`
	Task    *models.Task `json:"task"`
}

// EventsHandler streams scheduler updates as server-sent events.
type EventsHandler struct {
	source *Broadcaster
}

// NewEventsHandler creates an [EventsHandler] over source.
func NewEventsHandler(source *Broadcaster) *EventsHandler {
	return &EventsHandler{source: source}
}

// Routes returns the HTTP routes this handler serves.
func (h *EventsHandler) Routes() []string {
	return []string{"/api/events"}
}

func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	updates, unsubscribe := h.source.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case u := <-updates:
			data, err := shared.MarshalJSON(Event{Phase: u.Phase.String(), Message: u.Message, Task: u.Task}, false)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", u.Phase, data)
			flusher.Flush()
		}
	}
}
