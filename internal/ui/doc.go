// Package ui implements an interactive download monitor using bubbletea's Elm architecture.
//
// The TUI has two views:
//  1. [TaskListView] : Every task with its state, a progress bar, and speed or error details
//  2. [InputView] : A text box for submitting a new URL
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Scheduler updates flow through the channel passed to [NewModel]. Each update triggers a reload of the task list, and a
// one second tick reloads it as well, since the scheduler drops updates when the channel is full.
//
// Keyboard navigation uses vim-style bindings (j/k, a, c, r, m, d, x, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
