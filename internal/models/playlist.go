package models

import (
	"fmt"
	"strings"
)

// PlaylistItem is one entry of a prefetched collection. Items are never reordered;
// fields are only filled in as the download progresses.
type PlaylistItem struct {
	Index      int     `json:"index"`
	ID         string  `json:"id,omitempty"`
	Title      string  `json:"title"`
	URL        string  `json:"url,omitempty"`
	Downloaded bool    `json:"downloaded"`
	FilePath   string  `json:"file_path,omitempty"`
	Duration   float64 `json:"duration,omitempty"`
	Bitrate    int     `json:"bitrate,omitempty"`
	FileSize   int64   `json:"file_size,omitempty"`
}

// MarkDownloaded sets the downloaded flag. Nothing clears it.
func (p *PlaylistItem) MarkDownloaded() {
	p.Downloaded = true
}

// HasPlaceholderTitle reports whether the title was invented rather than reported.
func (p PlaylistItem) HasPlaceholderTitle() bool {
	return p.Title == "" || p.Title == PlaceholderTitle(p.Index)
}

// PlaceholderTitle is the title given to an item whose real title is not known yet.
func PlaceholderTitle(index int) string {
	return fmt.Sprintf("Track %d", index+1)
}

// PlaceholderItems builds n items with placeholder titles.
func PlaceholderItems(n int) []PlaylistItem {
	items := make([]PlaylistItem, n)
	for i := range items {
		items[i] = PlaylistItem{Index: i, Title: PlaceholderTitle(i)}
	}
	return items
}

// PlaylistInfo is the result of a metadata prefetch.
type PlaylistInfo struct {
	Title     string         `json:"title"`
	Thumbnail string         `json:"thumbnail,omitempty"`
	Items     []PlaylistItem `json:"items"`
	Error     string         `json:"error,omitempty"`
}

// IsCollection reports whether the prefetch found more than one item. Only then is the
// owning task treated as a playlist.
func (p *PlaylistInfo) IsCollection() bool {
	return p != nil && len(p.Items) > 1
}

// LooksLikePlaylist guesses from the URL alone whether it names a collection.
// The guess is overridden by the prefetch item count and by the extractor's own playlist fields.
func LooksLikePlaylist(url string) bool {
	lower := strings.ToLower(url)
	for _, marker := range []string{"list=", "/playlist", "/sets/", "/album/"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
