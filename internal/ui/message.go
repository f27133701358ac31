package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/audiograb/internal/models"
	"github.com/desertthunder/audiograb/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgProgressUpdate MsgKind = iota
	MsgUpdatesClosed
	MsgSubmitted
	MsgActionDone
	MsgTick
)

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// updatesClosedMsg is the constructor for [MsgUpdatesClosed]
func updatesClosedMsg() Msg {
	return Msg{kind: MsgUpdatesClosed}
}

// submittedMsg is the constructor for [MsgSubmitted]
func submittedMsg(task *models.Task, err error) Msg {
	return Msg{
		kind: MsgSubmitted,
		data: struct {
			task *models.Task
			err  error
		}{task, err},
	}
}

// actionDoneMsg is the constructor for [MsgActionDone]
func actionDoneMsg(status string, err error) Msg {
	return Msg{
		kind: MsgActionDone,
		data: struct {
			status string
			err    error
		}{status, err},
	}
}

// tickMsg is the constructor for [MsgTick]
func tickMsg() Msg {
	return Msg{kind: MsgTick}
}
