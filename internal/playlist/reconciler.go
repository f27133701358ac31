package playlist

import (
	"github.com/charmbracelet/log"
	"github.com/desertthunder/audiograb/internal/models"
	"github.com/desertthunder/audiograb/internal/shared"
)

// State is the reconciler's view of a running collection task.
type State struct {
	Items     []models.PlaylistItem
	Current   int
	LastTitle string
	Total     int
	Name      string
}

// StateOf builds a [State] over t. Items share t's backing array, so call it only while
// holding whatever lock guards t, and write scalar fields back with [State.CommitTo].
func StateOf(t *models.Task) State {
	return State{
		Items:     t.Items,
		Current:   t.CurrentItem,
		LastTitle: t.LastTitle,
		Total:     t.TotalItems,
		Name:      t.PlaylistName,
	}
}

// CommitTo writes the state back into t.
func (s State) CommitTo(t *models.Task) {
	t.Items = s.Items
	t.CurrentItem = s.Current
	t.LastTitle = s.LastTitle
	t.TotalItems = s.Total
	t.PlaylistName = s.Name
}

func (s *State) valid(i int) bool {
	return i >= 0 && i < len(s.Items)
}

// Outcome describes what one [Reconciler.Apply] call did.
type Outcome struct {
	Index    int
	Previous int
	Advanced bool
	Strategy string
}

// Reconciler applies ranked strategies to keep a collection's current item pointer.
type Reconciler struct {
	strategies []Strategy
	logger     *log.Logger
}

// New creates a reconciler. With no strategies it uses [DefaultStrategies].
func New(logger *log.Logger, strategies ...Strategy) *Reconciler {
	if len(strategies) == 0 {
		strategies = DefaultStrategies
	}
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &Reconciler{strategies: strategies, logger: logger}
}

// Resolve returns the index the first opinionated strategy names, and that strategy's name.
// It returns -1 when the state has no items.
func (r *Reconciler) Resolve(s *State, ev *models.ProgressEvent) (int, string) {
	for _, strategy := range r.strategies {
		idx, ok := strategy.Resolve(s, ev)
		if ok && s.valid(idx) {
			return idx, strategy.Name()
		}
	}
	return -1, ""
}

// Apply reconciles ev against s and fills in the resolved item.
func (r *Reconciler) Apply(s *State, ev models.ProgressEvent) Outcome {
	prev := s.Current
	if ev.PlaylistCount > 0 {
		s.Total = ev.PlaylistCount
	} else if s.Total == 0 {
		s.Total = len(s.Items)
	}
	if ev.PlaylistTitle != "" && s.Name == "" {
		s.Name = ev.PlaylistTitle
	}

	idx, strategy := r.Resolve(s, &ev)
	if idx < 0 {
		return Outcome{Index: s.Current, Previous: prev}
	}

	out := Outcome{Index: idx, Previous: prev, Strategy: strategy}
	if prev >= 0 && idx > prev && s.valid(prev) {
		s.Items[prev].MarkDownloaded()
		out.Advanced = true
	}
	s.Current = idx

	item := &s.Items[idx]
	switch {
	case ev.Title != "":
		s.LastTitle = ev.Title
		if item.HasPlaceholderTitle() {
			item.Title = ev.Title
		}
	case strategy == explicitIndexName && !item.HasPlaceholderTitle():
		// Anchor on the stored title so the first title-bearing update for this item,
		// index 0 in particular, is not read as the next item.
		s.LastTitle = item.Title
	}

	if ev.Duration > 0 && item.Duration == 0 {
		item.Duration = ev.Duration
	}
	if ev.Bitrate > 0 {
		item.Bitrate = ev.Bitrate
	}
	if ev.ID != "" && item.ID == "" {
		item.ID = ev.ID
	}
	if ev.FilePath != "" {
		item.FilePath = ev.FilePath
	}
	if ev.Status == models.StatusCompleted || ev.AlreadyDownloaded {
		item.MarkDownloaded()
	}

	if out.Advanced || prev != idx {
		r.logger.Debug("playlist item", "index", idx, "previous", prev, "strategy", strategy, "title", item.Title)
	}
	return out
}
