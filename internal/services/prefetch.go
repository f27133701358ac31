package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"path"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/audiograb/internal/models"
	"github.com/desertthunder/audiograb/internal/shared"
	"github.com/ytget/ytdlp/v2"
)

const (
	defaultPrefetchTimeout = 60 * time.Second
	minPrefixLength        = 10
	playlistSuffix         = " Playlist"
	youtubeVideoURL        = "https://www.youtube.com/watch?v=%s"
)

// flatPlaylist is the subset of the extractor's -J output that the prefetch reads.
type flatPlaylist struct {
	Type       string       `json:"_type"`
	ID         string       `json:"id"`
	Title      string       `json:"title"`
	Thumbnail  string       `json:"thumbnail"`
	Thumbnails []flatThumb  `json:"thumbnails"`
	Duration   float64      `json:"duration"`
	Entries    []*flatEntry `json:"entries"`
}

type flatThumb struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type flatEntry struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	URL      string  `json:"url"`
	Duration float64 `json:"duration"`
}

// CommandPrefetcher asks the extractor binary for flat collection metadata.
type CommandPrefetcher struct {
	binary  string
	timeout time.Duration
	extra   []string
	logger  *log.Logger
}

// NewCommandPrefetcher creates a prefetcher around the configured extractor binary.
func NewCommandPrefetcher(cfg shared.ExtractorConfig, logger *log.Logger) *CommandPrefetcher {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	timeout := cfg.PrefetchTimeout()
	if timeout <= 0 {
		timeout = defaultPrefetchTimeout
	}

	var extra []string
	if cfg.Proxy != "" {
		extra = append(extra, "--proxy", cfg.Proxy)
	}
	switch {
	case cfg.CookiesFile != "":
		extra = append(extra, "--cookies", shared.ExpandHome(cfg.CookiesFile))
	case cfg.CookiesFromBrowser != "":
		extra = append(extra, "--cookies-from-browser", cfg.CookiesFromBrowser)
	}

	binary := cfg.Binary
	if binary == "" {
		binary = "yt-dlp"
	}
	return &CommandPrefetcher{binary: binary, timeout: timeout, extra: extra, logger: logger}
}

func (c *CommandPrefetcher) Name() string { return "command" }

// Args returns the argument vector used for url.
func (c *CommandPrefetcher) Args(url string) []string {
	args := []string{
		"-J", "--flat-playlist", "--no-warnings",
		"--socket-timeout", strconv.Itoa(int(c.timeout.Seconds())),
	}
	args = append(args, c.extra...)
	return append(args, "--", url)
}

// Prefetch runs the extractor and decodes its JSON dump. The whole call is bounded by
// twice the socket timeout.
func (c *CommandPrefetcher) Prefetch(ctx context.Context, url string) (*models.PlaylistInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*c.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.binary, c.Args(url)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		msg := lastLine(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		c.logger.Warn("prefetch failed", "url", url, "error", msg)
		return &models.PlaylistInfo{Error: msg}, fmt.Errorf("%w: %s", shared.ErrPrefetchFailed, msg)
	}

	info, err := DecodeFlatPlaylist(stdout.Bytes())
	if err != nil {
		return &models.PlaylistInfo{Error: err.Error()}, err
	}
	c.logger.Debug("prefetched", "url", url, "items", len(info.Items), "title", info.Title, "took", time.Since(start))
	return info, nil
}

// DecodeFlatPlaylist converts an extractor JSON dump into a [models.PlaylistInfo]. A dump
// without entries is a single item.
func DecodeFlatPlaylist(data []byte) (*models.PlaylistInfo, error) {
	var raw flatPlaylist
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", shared.ErrPrefetchFailed, err)
	}

	info := &models.PlaylistInfo{Thumbnail: raw.Thumbnail}
	if info.Thumbnail == "" && len(raw.Thumbnails) > 0 {
		info.Thumbnail = raw.Thumbnails[len(raw.Thumbnails)-1].URL
	}

	if raw.Type != "playlist" && len(raw.Entries) == 0 {
		info.Items = []models.PlaylistItem{{ID: raw.ID, Title: raw.Title, Duration: raw.Duration}}
		return info, nil
	}

	info.Title = raw.Title
	for _, e := range raw.Entries {
		if e == nil {
			continue
		}
		i := len(info.Items)
		item := models.PlaylistItem{Index: i, ID: e.ID, Title: e.Title, URL: e.URL, Duration: e.Duration}
		if item.Title == "" {
			item.Title = models.PlaceholderTitle(i)
		}
		info.Items = append(info.Items, item)
	}
	return info, nil
}

// PlaylistFetchFunc lists the items of a YouTube playlist id.
type PlaylistFetchFunc func(ctx context.Context, playlistID string) ([]models.PlaylistItem, error)

// YouTubePrefetcher lists YouTube playlists without the extractor binary. It only
// answers URLs with a list= parameter.
type YouTubePrefetcher struct {
	fetch   PlaylistFetchFunc
	timeout time.Duration
	logger  *log.Logger
}

// NewYouTubePrefetcher creates a prefetcher backed by the ytdlp client.
func NewYouTubePrefetcher(timeout time.Duration, logger *log.Logger) *YouTubePrefetcher {
	return NewYouTubePrefetcherWithFetch(fetchYouTubePlaylist, timeout, logger)
}

// NewYouTubePrefetcherWithFetch is [NewYouTubePrefetcher] with an injected fetch.
func NewYouTubePrefetcherWithFetch(fetch PlaylistFetchFunc, timeout time.Duration, logger *log.Logger) *YouTubePrefetcher {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	if timeout <= 0 {
		timeout = defaultPrefetchTimeout
	}
	return &YouTubePrefetcher{fetch: fetch, timeout: timeout, logger: logger}
}

func (y *YouTubePrefetcher) Name() string { return "youtube" }

func (y *YouTubePrefetcher) Prefetch(ctx context.Context, rawURL string) (*models.PlaylistInfo, error) {
	id := PlaylistID(rawURL)
	if id == "" {
		return nil, fmt.Errorf("%w: no playlist id in %s", shared.ErrPrefetchFailed, rawURL)
	}

	ctx, cancel := context.WithTimeout(ctx, y.timeout)
	defer cancel()

	items, err := y.fetch(ctx, id)
	if err != nil {
		return &models.PlaylistInfo{Error: err.Error()}, fmt.Errorf("%w: %v", shared.ErrPrefetchFailed, err)
	}
	for i := range items {
		items[i].Index = i
		if items[i].Title == "" {
			items[i].Title = models.PlaceholderTitle(i)
		}
	}

	info := &models.PlaylistInfo{Items: items}
	if len(items) > 1 {
		info.Title = DerivePlaylistTitle(items, rawURL)
	}
	y.logger.Debug("prefetched playlist", "id", id, "items", len(items))
	return info, nil
}

func fetchYouTubePlaylist(ctx context.Context, playlistID string) ([]models.PlaylistItem, error) {
	d := ytdlp.New()
	entries, err := d.GetPlaylistItemsAll(ctx, playlistID, 0)
	if err != nil {
		return nil, err
	}

	items := make([]models.PlaylistItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, models.PlaylistItem{
			ID:    e.VideoID,
			Title: e.Title,
			URL:   fmt.Sprintf(youtubeVideoURL, e.VideoID),
		})
	}
	return items, nil
}

// ChainPrefetcher returns the first successful result of its members.
type ChainPrefetcher struct {
	members []Prefetcher
	logger  *log.Logger
}

// NewChainPrefetcher creates a chain that tries members in order.
func NewChainPrefetcher(logger *log.Logger, members ...Prefetcher) *ChainPrefetcher {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &ChainPrefetcher{members: members, logger: logger}
}

func (c *ChainPrefetcher) Name() string { return "chain" }

func (c *ChainPrefetcher) Prefetch(ctx context.Context, url string) (*models.PlaylistInfo, error) {
	var (
		last *models.PlaylistInfo
		errs []error
	)
	for _, m := range c.members {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		info, err := m.Prefetch(ctx, url)
		if err == nil && info != nil && len(info.Items) > 0 {
			return info, nil
		}
		if err == nil {
			err = fmt.Errorf("%w: %s returned no items", shared.ErrPrefetchFailed, m.Name())
		}
		c.logger.Debug("prefetcher gave up", "prefetcher", m.Name(), "url", url, "error", err)
		errs = append(errs, err)
		if info != nil {
			last = info
		}
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("%w: no prefetchers configured", shared.ErrPrefetchFailed)
	}
	return last, errors.Join(errs...)
}

// DerivePlaylistTitle makes up a collection name. It uses the common prefix of the first
// two titles when that is long enough, else the first title with a " Playlist" suffix,
// else the list id or last path segment of rawURL.
func DerivePlaylistTitle(items []models.PlaylistItem, rawURL string) string {
	var titles []string
	for _, item := range items {
		if !item.HasPlaceholderTitle() {
			titles = append(titles, item.Title)
		}
	}

	if len(titles) > 1 {
		prefix := strings.TrimRight(commonPrefix(titles[0], titles[1]), " -|:(")
		if len(prefix) > minPrefixLength {
			return prefix
		}
	}
	if len(titles) > 0 {
		return titles[0] + playlistSuffix
	}

	if id := PlaylistID(rawURL); id != "" {
		return id
	}
	if u, err := url.Parse(rawURL); err == nil {
		if base := path.Base(strings.TrimRight(u.Path, "/")); base != "." && base != "/" && base != "" {
			return base
		}
	}
	return strings.TrimSpace(playlistSuffix)
}

// PlaylistID returns the list= query value of rawURL.
func PlaylistID(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Query().Get("list")
}

func commonPrefix(a, b string) string {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return validPrefix(a[:i])
		}
	}
	return validPrefix(a[:n])
}

// validPrefix drops a trailing partial UTF-8 sequence.
func validPrefix(s string) string {
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return strings.TrimPrefix(l, "ERROR: ")
		}
	}
	return ""
}
