package models

import (
	"errors"
	"time"
)

// HistoryRecord is the flattened snapshot of a finalized task that the history store persists.
type HistoryRecord struct {
	ID           string         `json:"id"`
	URL          string         `json:"url"`
	Status       TaskState      `json:"status"`
	Platform     string         `json:"platform"`
	Title        string         `json:"title"`
	Artist       string         `json:"artist,omitempty"`
	Duration     float64        `json:"duration,omitempty"`
	Bitrate      int            `json:"bitrate,omitempty"`
	Format       string         `json:"format,omitempty"`
	FilePath     string         `json:"file_path,omitempty"`
	FilePaths    []string       `json:"file_paths,omitempty"`
	FileSize     int64          `json:"file_size,omitempty"`
	IsPlaylist   bool           `json:"is_playlist"`
	PlaylistName string         `json:"playlist_name,omitempty"`
	Items        []PlaylistItem `json:"items,omitempty"`
	Error        string         `json:"error,omitempty"`
	ErrorCause   string         `json:"error_cause,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// NewHistoryRecord flattens a task snapshot for persistence.
func NewHistoryRecord(t *Task) *HistoryRecord {
	c := t.Clone()
	updated := c.FinishedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	return &HistoryRecord{
		URL:          c.URL,
		Status:       c.State,
		Platform:     c.Platform,
		Title:        c.DisplayName(),
		Artist:       c.Artist,
		Duration:     c.Duration,
		Bitrate:      c.Bitrate,
		Format:       c.Format,
		FilePath:     c.FilePath,
		FilePaths:    c.FilePaths,
		FileSize:     c.Size,
		IsPlaylist:   c.IsPlaylist,
		PlaylistName: c.PlaylistName,
		Items:        c.Items,
		Error:        c.Error,
		ErrorCause:   c.ErrorCause,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    updated,
	}
}

// ToTask rebuilds a terminal task from a record so it can be retried.
func (r *HistoryRecord) ToTask(id string) *Task {
	t := NewTask(id, r.URL, time.Now())
	t.State = r.Status
	t.Platform = r.Platform
	t.Title = r.Title
	t.Artist = r.Artist
	t.Duration = r.Duration
	t.Bitrate = r.Bitrate
	t.Format = r.Format
	t.FilePath = r.FilePath
	t.FilePaths = append([]string(nil), r.FilePaths...)
	t.Size = r.FileSize
	t.IsPlaylist = r.IsPlaylist
	t.PlaylistName = r.PlaylistName
	t.Error = r.Error
	t.ErrorCause = r.ErrorCause
	t.Prefetched = true
	if len(r.Items) > 0 {
		t.Items = make([]PlaylistItem, len(r.Items))
		copy(t.Items, r.Items)
		t.TotalItems = len(t.Items)
	}
	return t
}

func (r *HistoryRecord) GetID() string           { return r.ID }
func (r *HistoryRecord) GetCreatedAt() time.Time { return r.CreatedAt }
func (r *HistoryRecord) GetUpdatedAt() time.Time { return r.UpdatedAt }

// Validate checks the fields the history table requires.
func (r *HistoryRecord) Validate() error {
	if r.URL == "" {
		return errors.New("history record url is required")
	}
	if !r.Status.IsTerminal() {
		return errors.New("history record must have a terminal status")
	}
	return nil
}
