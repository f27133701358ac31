// Package tasks schedules audio downloads and runs one extractor process per active task.
//
// # Lifecycle
//
// A task moves queued → downloading → completed, error, cancelled or already_exists.
// Illegal moves are rejected by [models.Task.Transition]. A finished task only goes
// back to queued through [Scheduler.Retry] or [Scheduler.RetryMissing].
//
// # Promotion
//
// Queued tasks are promoted in submission order while fewer than Config.MaxConcurrent
// tasks are downloading. A task waits for its metadata prefetch first. A collection
// with its own folder also waits until it has a name, which the prefetch usually
// supplies and [Scheduler.SetPlaylistName] can provide.
//
// # State
//
// All task fields live in a [Store] behind one lock. Worker callbacks carry a [Ref] naming
// the run they belong to, so output from a cancelled or replaced run never lands. File
// system checks and network calls happen with the lock released.
//
// # Progress Reporting
//
// Every change is sent as a [ProgressUpdate] on the optional Deps.Updates channel.
// Updates use select with default so a slow reader never stalls a download.
//
// # Background Work
//
// Prefetches, thumbnail downloads, history writes and playlist manifests run in a [Bag].
// [Scheduler.Shutdown] waits for them up to a grace window, then leaves them behind.
package tasks
