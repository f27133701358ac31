package repositories

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/audiograb/internal/models"
	"github.com/desertthunder/audiograb/internal/shared"
)

const historyColumns = `id, sequence, url, status, platform, title, artist, duration, bitrate, format,
	file_path, file_paths, file_size, is_playlist, playlist_name, items, error, error_cause, created_at, updated_at`

var _ models.Repository[*models.HistoryRecord] = (*HistoryRepository)(nil)

// HistoryRepository implements models.Repository[*models.HistoryRecord].
type HistoryRepository struct {
	db *sql.DB
}

// NewHistoryRepository creates a new HistoryRepository with the given database connection
func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Create inserts a new record with generated ID and sequence
func (r *HistoryRepository) Create(rec *models.HistoryRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "history")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	if rec.ID == "" {
		rec.ID = shared.GenerateID()
	}
	now := time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}

	filePaths, items, err := encodeLists(rec)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO history (` + historyColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		rec.ID,
		sequence,
		rec.URL,
		rec.Status.String(),
		rec.Platform,
		rec.Title,
		rec.Artist,
		rec.Duration,
		rec.Bitrate,
		rec.Format,
		rec.FilePath,
		filePaths,
		rec.FileSize,
		rec.IsPlaylist,
		rec.PlaylistName,
		items,
		rec.Error,
		rec.ErrorCause,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert history record: %w", err)
	}

	return nil
}

// Get retrieves a record by ID
func (r *HistoryRepository) Get(id string) (*models.HistoryRecord, error) {
	query := `SELECT ` + historyColumns + ` FROM history WHERE id = ?`
	return r.scan(r.db.QueryRow(query, id))
}

// GetByURL retrieves the record for url
func (r *HistoryRepository) GetByURL(url string) (*models.HistoryRecord, error) {
	query := `SELECT ` + historyColumns + ` FROM history WHERE url = ?`
	return r.scan(r.db.QueryRow(query, url))
}

// Exists reports whether url was recorded before.
func (r *HistoryRepository) Exists(url string) (bool, error) {
	var n int
	if err := r.db.QueryRow(`SELECT COUNT(1) FROM history WHERE url = ?`, url).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to query history: %w", err)
	}
	return n > 0, nil
}

// Update rewrites the record with the same ID
func (r *HistoryRepository) Update(rec *models.HistoryRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	filePaths, items, err := encodeLists(rec)
	if err != nil {
		return err
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}

	query := `
		UPDATE history
		SET url = ?, status = ?, platform = ?, title = ?, artist = ?, duration = ?, bitrate = ?, format = ?,
			file_path = ?, file_paths = ?, file_size = ?, is_playlist = ?, playlist_name = ?, items = ?,
			error = ?, error_cause = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query,
		rec.URL,
		rec.Status.String(),
		rec.Platform,
		rec.Title,
		rec.Artist,
		rec.Duration,
		rec.Bitrate,
		rec.Format,
		rec.FilePath,
		filePaths,
		rec.FileSize,
		rec.IsPlaylist,
		rec.PlaylistName,
		items,
		rec.Error,
		rec.ErrorCause,
		rec.UpdatedAt,
		rec.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update history record: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: history record %s", shared.ErrNotFound, rec.ID)
	}

	return nil
}

// Upsert inserts rec or replaces the existing record for the same URL, keeping its ID,
// sequence and creation time.
func (r *HistoryRepository) Upsert(rec *models.HistoryRecord) error {
	existing, err := r.GetByURL(rec.URL)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		return r.Create(rec)
	case err != nil:
		return err
	}

	rec.ID = existing.ID
	rec.CreatedAt = existing.CreatedAt
	return r.Update(rec)
}

// Delete removes a record by ID
func (r *HistoryRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM history WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete history record: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: history record %s", shared.ErrNotFound, id)
	}

	return nil
}

// DeleteByURL removes the record for url
func (r *HistoryRepository) DeleteByURL(url string) error {
	rec, err := r.GetByURL(url)
	if err != nil {
		return err
	}
	return r.Delete(rec.ID)
}

// List retrieves records matching criteria, newest first. Supported keys are "status"
// (a [models.TaskState] or its name), "platform" and "limit".
func (r *HistoryRepository) List(criteria map[string]any) ([]*models.HistoryRecord, error) {
	query := `SELECT ` + historyColumns + ` FROM history WHERE 1 = 1`
	args := []any{}

	switch status := criteria["status"].(type) {
	case models.TaskState:
		query += " AND status = ?"
		args = append(args, status.String())
	case string:
		if status != "" {
			query += " AND status = ?"
			args = append(args, status)
		}
	}

	if platform, ok := criteria["platform"].(string); ok && platform != "" {
		query += " AND platform = ?"
		args = append(args, platform)
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var records []*models.HistoryRecord
	for rows.Next() {
		rec, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return records, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *HistoryRepository) scan(row scanner) (*models.HistoryRecord, error) {
	var (
		rec       models.HistoryRecord
		sequence  int
		status    string
		filePaths string
		items     string
	)

	err := row.Scan(
		&rec.ID, &sequence, &rec.URL, &status, &rec.Platform, &rec.Title, &rec.Artist,
		&rec.Duration, &rec.Bitrate, &rec.Format, &rec.FilePath, &filePaths, &rec.FileSize,
		&rec.IsPlaylist, &rec.PlaylistName, &items, &rec.Error, &rec.ErrorCause,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: history record", shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan history record: %w", err)
	}

	if rec.Status, err = models.ParseTaskState(status); err != nil {
		return nil, fmt.Errorf("failed to scan history record: %w", err)
	}
	if err := json.Unmarshal([]byte(filePaths), &rec.FilePaths); err != nil {
		return nil, fmt.Errorf("failed to decode file paths: %w", err)
	}
	if err := json.Unmarshal([]byte(items), &rec.Items); err != nil {
		return nil, fmt.Errorf("failed to decode playlist items: %w", err)
	}

	return &rec, nil
}

func encodeLists(rec *models.HistoryRecord) (string, string, error) {
	filePaths := rec.FilePaths
	if filePaths == nil {
		filePaths = []string{}
	}
	items := rec.Items
	if items == nil {
		items = []models.PlaylistItem{}
	}

	fp, err := json.Marshal(filePaths)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode file paths: %w", err)
	}
	it, err := json.Marshal(items)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode playlist items: %w", err)
	}
	return string(fp), string(it), nil
}
