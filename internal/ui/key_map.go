package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up      key.Binding
	down    key.Binding
	add     key.Binding
	submit  key.Binding
	back    key.Binding
	cancel  key.Binding
	retry   key.Binding
	missing key.Binding
	remove  key.Binding
	clear   key.Binding
	quit    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		add:     key.NewBinding(key.WithKeys("a", "/"), key.WithHelp("a", "add url")),
		submit:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "download")),
		back:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		cancel:  key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "cancel")),
		retry:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "retry")),
		missing: key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "retry missing")),
		remove:  key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "remove")),
		clear:   key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "clear finished")),
		quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.add, k.cancel, k.retry, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.add, k.submit, k.back},
		{k.cancel, k.retry, k.missing},
		{k.remove, k.clear, k.quit},
	}
}
