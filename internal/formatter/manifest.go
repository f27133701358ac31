package formatter

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/desertthunder/audiograb/internal/models"
	"github.com/desertthunder/audiograb/internal/shared"
	"github.com/grafov/m3u8"
)

// BuildManifest encodes the downloaded items of a playlist as an m3u8 media playlist.
// Entries are relative to dir and keep the playlist order; items without a file are skipped.
func BuildManifest(items []models.PlaylistItem, dir string) ([]byte, int, error) {
	var present []models.PlaylistItem
	for _, item := range items {
		if item.FilePath != "" {
			present = append(present, item)
		}
	}
	if len(present) == 0 {
		return nil, 0, fmt.Errorf("%w: no downloaded items", shared.ErrNotFound)
	}

	pl, err := m3u8.NewMediaPlaylist(0, uint(len(present)))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create manifest: %w", err)
	}

	for _, item := range present {
		uri := item.FilePath
		if rel, err := filepath.Rel(dir, item.FilePath); err == nil {
			uri = filepath.ToSlash(rel)
		}
		duration := item.Duration
		if duration <= 0 {
			duration = -1
		}
		if err := pl.Append(uri, duration, item.Title); err != nil {
			return nil, 0, fmt.Errorf("failed to add %s to manifest: %w", item.Title, err)
		}
	}
	pl.Close()

	return pl.Encode().Bytes(), len(present), nil
}

// WritePlaylistManifest writes <name>.m3u8 into dir and returns its path.
func WritePlaylistManifest(name string, items []models.PlaylistItem, dir string) (string, error) {
	data, _, err := BuildManifest(items, dir)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, shared.SanitizeFilename(name)+".m3u8")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}
	return path, nil
}
