package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/audiograb/internal/formatter"
	"github.com/desertthunder/audiograb/internal/models"
)

var (
	_ list.Item         = taskItem{}
	_ list.ItemDelegate = taskDelegate{}
)

// taskItem wraps [models.Task] to implement [list.Item].
type taskItem struct {
	task *models.Task
}

func (i taskItem) FilterValue() string { return i.task.DisplayName() }
func (i taskItem) Title() string       { return i.task.DisplayName() }
func (i taskItem) Description() string {
	t := i.task
	parts := []string{t.State.String()}
	if t.IsPlaylist && t.TotalItems > 0 {
		parts = append(parts, fmt.Sprintf("%d/%d items", t.DownloadedCount(), t.TotalItems))
	}
	switch {
	case t.State == models.StateDownloading && t.Speed > 0:
		parts = append(parts, formatter.FormatSpeed(t.Speed))
	case t.Error != "":
		parts = append(parts, t.Error)
	case t.Warning != "":
		parts = append(parts, t.Warning)
	case t.Size > 0:
		parts = append(parts, formatter.FormatBytes(t.Size))
	}
	return strings.Join(parts, " • ")
}

func toItems(tasks []*models.Task) []list.Item {
	items := make([]list.Item, len(tasks))
	for i, t := range tasks {
		items[i] = taskItem{task: t}
	}
	return items
}

// taskDelegate draws a task as a title line and a progress bar line.
type taskDelegate struct {
	bar progress.Model
}

func newTaskDelegate() taskDelegate {
	return taskDelegate{bar: progress.New(progress.WithDefaultGradient(), progress.WithWidth(30))}
}

func (d taskDelegate) Height() int                             { return 2 }
func (d taskDelegate) Spacing() int                            { return 1 }
func (d taskDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (d taskDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	ti, ok := item.(taskItem)
	if !ok {
		return
	}
	t := ti.task

	title := fmt.Sprintf("%s  %s", ti.Title(), styles.state(t.State))
	detail := ti.Description()
	if i := strings.Index(detail, " • "); i >= 0 {
		detail = detail[i+len(" • "):]
	} else {
		detail = ""
	}
	if t.Error != "" {
		detail = styles.err.Render(detail)
	} else if t.Warning != "" {
		detail = styles.warn.Render(detail)
	} else {
		detail = styles.help.Render(detail)
	}
	line := fmt.Sprintf("%s %s", d.bar.ViewAs(t.Progress), detail)

	if index == m.Index() {
		fmt.Fprintf(w, "%s\n%s", styles.selected.Render(title), styles.selected.Render(line))
		return
	}
	fmt.Fprintf(w, "  %s\n  %s", title, line)
}
