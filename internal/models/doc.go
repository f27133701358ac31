// Package models defines the data types that flow through the audiograb download engine.
//
// The package contains three groups of types:
//
// 1. Engine state, owned by the task scheduler and mutated only under its lock
//   - [Task] : one submitted URL, single file or collection
//   - [TaskState] : closed lifecycle enum with an explicit [Transition] function
//   - [PlaylistItem] : one entry of a prefetched collection
//
// 2. Ephemeral values
//   - [ProgressEvent] : one normalized update parsed from a line of extractor output
//   - [PlaylistInfo] : the result of a metadata prefetch
//
// 3. Persistent entities
//   - [HistoryRecord] : a flattened snapshot of a finalized task
//
// [HistoryRecord] implements [Model]; the [Repository] interface defines standard CRUD operations for database access.
package models
