package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/audiograb/internal/models"
)

var styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title    lipgloss.Style
	ok       lipgloss.Style
	err      lipgloss.Style
	warn     lipgloss.Style
	help     lipgloss.Style
	accent   lipgloss.Style
	selected lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title:    NewBold(t).MarginBottom(1),
		ok:       NewBold(s),
		err:      NewBold(e),
		warn:     NewStyle(w),
		help:     NewEm(h),
		accent:   NewStyle(t),
		selected: NewBold(t).PaddingLeft(1).Border(lipgloss.NormalBorder(), false, false, false, true).BorderForeground(lipgloss.Color(t)),
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}

// state renders a task state label in its color.
func (p *Palette) state(s models.TaskState) string {
	switch s {
	case models.StateCompleted, models.StateAlreadyExists:
		return p.ok.Render(s.String())
	case models.StateError:
		return p.err.Render(s.String())
	case models.StateCancelled:
		return p.warn.Render(s.String())
	case models.StateDownloading:
		return p.accent.Render(s.String())
	default:
		return p.help.Render(s.String())
	}
}
