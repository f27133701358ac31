// Package repositories implements SQLite persistence for the download history.
//
// [HistoryRepository] stores one row per submitted URL. The engine only calls Upsert
// and Exists; the CLI and the HTTP API use Get, GetByURL, List and Delete.
//
// Playlist items and file paths are stored as JSON arrays in TEXT columns. Sequence
// numbers come from [NextSequence], which increments a dedicated per-table counter.
package repositories
