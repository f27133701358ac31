package models

import (
	"fmt"
	"strings"
	"time"
)

// TaskState is the lifecycle state of a [Task].
type TaskState int

const (
	StateQueued TaskState = iota
	StateDownloading
	StateCompleted
	StateError
	StateCancelled
	StateAlreadyExists
)

var stateNames = map[TaskState]string{
	StateQueued:        "queued",
	StateDownloading:   "downloading",
	StateCompleted:     "completed",
	StateError:         "error",
	StateCancelled:     "cancelled",
	StateAlreadyExists: "already_exists",
}

// allowed lists the legal successors of every state. Terminal states may only go back
// to queued, which happens on an explicit retry.
var allowed = map[TaskState][]TaskState{
	StateQueued:        {StateDownloading, StateCancelled, StateError, StateAlreadyExists},
	StateDownloading:   {StateCompleted, StateError, StateCancelled, StateAlreadyExists},
	StateCompleted:     {StateQueued},
	StateError:         {StateQueued},
	StateCancelled:     {StateQueued},
	StateAlreadyExists: {StateQueued},
}

func (s TaskState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("TaskState(%d)", int(s))
}

// IsTerminal reports whether no further progress can happen without a retry.
func (s TaskState) IsTerminal() bool {
	switch s {
	case StateCompleted, StateError, StateCancelled, StateAlreadyExists:
		return true
	}
	return false
}

// CanTransition reports whether moving from s to next is legal.
func (s TaskState) CanTransition(next TaskState) bool {
	for _, candidate := range allowed[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// MarshalText encodes the state as its name.
func (s TaskState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *TaskState) UnmarshalText(text []byte) error {
	parsed, err := ParseTaskState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseTaskState converts a state name back to a [TaskState].
func ParseTaskState(name string) (TaskState, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for state, n := range stateNames {
		if n == name {
			return state, nil
		}
	}
	return StateQueued, fmt.Errorf("unknown task state %q", name)
}

// IllegalTransitionError is returned by [Transition] when next is not a legal successor.
type IllegalTransitionError struct {
	From, To TaskState
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal state transition %s -> %s", e.From, e.To)
}

// Transition moves t to next, or returns an [*IllegalTransitionError] and leaves t untouched.
func (t *Task) Transition(next TaskState, now time.Time) error {
	if !t.State.CanTransition(next) {
		return &IllegalTransitionError{From: t.State, To: next}
	}

	t.State = next
	switch {
	case next == StateDownloading:
		t.StartedAt = now
	case next == StateQueued:
		t.StartedAt = time.Time{}
		t.FinishedAt = time.Time{}
	case next.IsTerminal():
		t.FinishedAt = now
	}
	return nil
}

// Task is one user-requested download. The URL is its identity while it is live.
type Task struct {
	ID       string    `json:"id"`
	URL      string    `json:"url"`
	State    TaskState `json:"state"`
	Platform string    `json:"platform"`

	Progress        float64 `json:"progress"`
	Speed           float64 `json:"speed,omitempty"`
	DownloadedBytes int64   `json:"downloaded_bytes,omitempty"`
	TotalBytes      int64   `json:"total_bytes,omitempty"`

	OutputDir string `json:"output_dir"`
	Format    string `json:"format"`
	Quality   string `json:"quality"`

	IsPlaylist   bool           `json:"is_playlist"`
	PlaylistName string         `json:"playlist_name,omitempty"`
	Items        []PlaylistItem `json:"items,omitempty"`
	CurrentItem  int            `json:"current_item"`
	TotalItems   int            `json:"total_items"`
	LastTitle    string         `json:"-"`
	// RetryItems scopes a run to these 1-based item numbers. Empty means the whole URL.
	RetryItems   []int          `json:"retry_items,omitempty"`
	Prefetched   bool           `json:"prefetched"`

	Title         string   `json:"title,omitempty"`
	Artist        string   `json:"artist,omitempty"`
	Thumbnail     string   `json:"thumbnail,omitempty"`
	ThumbnailPath string   `json:"thumbnail_path,omitempty"`
	FilePath      string   `json:"file_path,omitempty"`
	FilePaths     []string `json:"file_paths,omitempty"`
	Size          int64    `json:"size,omitempty"`
	Duration      float64  `json:"duration,omitempty"`
	Bitrate       int      `json:"bitrate,omitempty"`

	Error      string `json:"error,omitempty"`
	ErrorCause string `json:"error_cause,omitempty"`
	Warning    string `json:"warning,omitempty"`

	// ReportedPath is the last full path announced by the extractor; ReportedName a bare filename.
	ReportedPath      string `json:"-"`
	ReportedName      string `json:"-"`
	AlreadyDownloaded bool   `json:"-"`

	// Run increments on every promotion so callbacks from an earlier process can be told apart.
	Run int `json:"run"`

	CreatedAt  time.Time `json:"created_at"`
	StartedAt  time.Time `json:"started_at,omitempty"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// NewTask creates a queued task for url.
func NewTask(id, url string, now time.Time) *Task {
	return &Task{
		ID:          id,
		URL:         url,
		State:       StateQueued,
		Platform:    DetectPlatform(url),
		IsPlaylist:  LooksLikePlaylist(url),
		CurrentItem: -1,
		CreatedAt:   now,
	}
}

// Clone returns a deep copy that is safe to hand out while the original keeps changing.
func (t *Task) Clone() *Task {
	c := *t
	if t.Items != nil {
		c.Items = make([]PlaylistItem, len(t.Items))
		copy(c.Items, t.Items)
	}
	if t.FilePaths != nil {
		c.FilePaths = append([]string(nil), t.FilePaths...)
	}
	if t.RetryItems != nil {
		c.RetryItems = append([]int(nil), t.RetryItems...)
	}
	return &c
}

// ApplyPlaylistInfo installs a prefetch result. A result with at most one item always
// makes the task a single file, whatever the URL looked like.
func (t *Task) ApplyPlaylistInfo(info *PlaylistInfo) {
	t.Prefetched = true
	if info == nil {
		return
	}

	if !info.IsCollection() {
		t.IsPlaylist = false
		t.Items = nil
		t.TotalItems = 0
		t.CurrentItem = -1
		if len(info.Items) == 1 && t.Title == "" {
			t.Title = info.Items[0].Title
			t.Duration = info.Items[0].Duration
		}
		if t.Thumbnail == "" {
			t.Thumbnail = info.Thumbnail
		}
		return
	}

	t.IsPlaylist = true
	t.Items = make([]PlaylistItem, len(info.Items))
	copy(t.Items, info.Items)
	for i := range t.Items {
		t.Items[i].Index = i
		if t.Items[i].Title == "" {
			t.Items[i].Title = PlaceholderTitle(i)
		}
	}
	t.TotalItems = len(t.Items)
	t.CurrentItem = -1
	if t.PlaylistName == "" {
		t.PlaylistName = info.Title
	}
	if t.Thumbnail == "" {
		t.Thumbnail = info.Thumbnail
	}
}

// DownloadedCount returns how many playlist items are flagged downloaded.
func (t *Task) DownloadedCount() int {
	n := 0
	for _, item := range t.Items {
		if item.Downloaded {
			n++
		}
	}
	return n
}

// DisplayName is the best human label for the task.
func (t *Task) DisplayName() string {
	switch {
	case t.IsPlaylist && t.PlaylistName != "":
		return t.PlaylistName
	case t.Title != "":
		return t.Title
	default:
		return t.URL
	}
}
