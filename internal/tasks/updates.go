package tasks

import (
	"fmt"

	"github.com/desertthunder/audiograb/internal/formatter"
	"github.com/desertthunder/audiograb/internal/models"
)

// ProgressUpdate represents a change to one task.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase        // What happened
	Task    *models.Task // Snapshot taken right after the change
	Message string       // Human-readable message for display
}

// Task lifecycle phase enumeration
type Phase int

const (
	Queued Phase = iota
	Prefetched
	Started
	Downloading
	Finished
	Removed
)

func (p Phase) String() string {
	switch p {
	case Queued:
		return "queued"
	case Prefetched:
		return "prefetched"
	case Started:
		return "started"
	case Downloading:
		return "downloading"
	case Finished:
		return "finished"
	case Removed:
		return "removed"
	default:
		return ""
	}
}

func queuedUpdate(t *models.Task) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Queued,
		Task:    t,
		Message: fmt.Sprintf("Queued %s", t.URL),
	}
}

func prefetchedUpdate(t *models.Task) ProgressUpdate {
	msg := fmt.Sprintf("Found single file: %s", t.DisplayName())
	if t.IsPlaylist {
		msg = fmt.Sprintf("Found playlist: %s (%d items)", t.DisplayName(), len(t.Items))
	}
	return ProgressUpdate{
		Phase:   Prefetched,
		Task:    t,
		Message: msg,
	}
}

func startedUpdate(t *models.Task) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Started,
		Task:    t,
		Message: fmt.Sprintf("Downloading %s...", t.DisplayName()),
	}
}

func progressUpdate(t *models.Task) ProgressUpdate {
	msg := fmt.Sprintf("%s %s", formatter.FormatPercent(t.Progress), t.DisplayName())
	if t.IsPlaylist && t.CurrentItem >= 0 {
		msg = fmt.Sprintf("[%d/%d] %s", t.CurrentItem+1, t.TotalItems, t.LastTitle)
	}
	return ProgressUpdate{
		Phase:   Downloading,
		Task:    t,
		Message: msg,
	}
}

func finishedUpdate(t *models.Task) ProgressUpdate {
	var msg string
	switch t.State {
	case models.StateCompleted, models.StateAlreadyExists:
		msg = fmt.Sprintf("✓ %s", t.DisplayName())
	case models.StateCancelled:
		msg = fmt.Sprintf("Cancelled %s", t.DisplayName())
	default:
		msg = fmt.Sprintf("✗ %s: %s", t.DisplayName(), t.Error)
	}
	return ProgressUpdate{
		Phase:   Finished,
		Task:    t,
		Message: msg,
	}
}

func removedUpdate(t *models.Task) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Removed,
		Task:    t,
		Message: fmt.Sprintf("Removed %s", t.URL),
	}
}
