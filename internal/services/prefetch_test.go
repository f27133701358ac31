package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/audiograb/internal/models"
	"github.com/desertthunder/audiograb/internal/shared"
	tu "github.com/desertthunder/audiograb/internal/testing"
)

func TestDecodeFlatPlaylist(t *testing.T) {
	t.Run("playlist entries", func(t *testing.T) {
		data := `{"_type":"playlist","id":"PL1","title":"Mix","thumbnails":[{"url":"small"},{"url":"large"}],
			"entries":[{"id":"a","title":"First","url":"https://y/a","duration":61},null,{"id":"b","title":""}]}`

		info, err := DecodeFlatPlaylist([]byte(data))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if info.Title != "Mix" || info.Thumbnail != "large" {
			t.Errorf("expected Mix with large thumbnail, got %q %q", info.Title, info.Thumbnail)
		}
		if len(info.Items) != 2 {
			t.Fatalf("expected 2 items, got %d", len(info.Items))
		}
		if info.Items[0].Duration != 61 || info.Items[0].URL != "https://y/a" {
			t.Errorf("unexpected first item: %+v", info.Items[0])
		}
		if info.Items[1].Index != 1 || info.Items[1].Title != models.PlaceholderTitle(1) {
			t.Errorf("expected placeholder second item, got %+v", info.Items[1])
		}
	})

	t.Run("single video", func(t *testing.T) {
		info, err := DecodeFlatPlaylist([]byte(`{"_type":"video","id":"x","title":"Solo","duration":200}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if info.IsCollection() {
			t.Error("expected single item result")
		}
		if len(info.Items) != 1 || info.Items[0].Title != "Solo" {
			t.Errorf("unexpected items: %+v", info.Items)
		}
	})

	t.Run("playlist with one entry", func(t *testing.T) {
		info, err := DecodeFlatPlaylist([]byte(`{"_type":"playlist","title":"One","entries":[{"id":"a","title":"Only"}]}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if info.IsCollection() {
			t.Error("a one item playlist must not be a collection")
		}
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := DecodeFlatPlaylist([]byte("not json"))
		if !errors.Is(err, shared.ErrPrefetchFailed) {
			t.Errorf("expected ErrPrefetchFailed, got %v", err)
		}
	})
}

func TestCommandPrefetcher(t *testing.T) {
	t.Run("Args", func(t *testing.T) {
		p := NewCommandPrefetcher(shared.ExtractorConfig{
			Binary:                 "yt-dlp",
			Proxy:                  "socks5://127.0.0.1:1080",
			CookiesFromBrowser:     "firefox",
			PrefetchTimeoutSeconds: 15,
		}, nil)

		got := strings.Join(p.Args("https://x/list?list=1"), " ")
		want := "-J --flat-playlist --no-warnings --socket-timeout 15 --proxy socks5://127.0.0.1:1080 --cookies-from-browser firefox -- https://x/list?list=1"
		if got != want {
			t.Errorf("expected %q, got %q", want, got)
		}
	})

	t.Run("Runs Binary", func(t *testing.T) {
		bin := tu.WriteScript(t, `cat <<'JSON'
{"_type":"playlist","title":"Road Trip","entries":[{"id":"1","title":"A"},{"id":"2","title":"B"},{"id":"3","title":"C"}]}
JSON`)
		p := NewCommandPrefetcher(shared.ExtractorConfig{Binary: bin, PrefetchTimeoutSeconds: 5}, nil)

		info, err := p.Prefetch(context.Background(), "https://x/playlist?list=1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if info.Title != "Road Trip" || len(info.Items) != 3 {
			t.Errorf("expected Road Trip with 3 items, got %q with %d", info.Title, len(info.Items))
		}
	})

	t.Run("Reports Stderr", func(t *testing.T) {
		bin := tu.WriteScript(t, `echo "WARNING: something" >&2; echo "ERROR: Private video" >&2; exit 1`)
		p := NewCommandPrefetcher(shared.ExtractorConfig{Binary: bin, PrefetchTimeoutSeconds: 5}, nil)

		info, err := p.Prefetch(context.Background(), "https://x/watch?v=1")
		if !errors.Is(err, shared.ErrPrefetchFailed) {
			t.Fatalf("expected ErrPrefetchFailed, got %v", err)
		}
		if info == nil || info.Error != "Private video" {
			t.Errorf("expected error text 'Private video', got %+v", info)
		}
	})
}

func TestYouTubePrefetcher(t *testing.T) {
	var gotID string
	fetch := func(ctx context.Context, id string) ([]models.PlaylistItem, error) {
		gotID = id
		return []models.PlaylistItem{
			{ID: "a", Title: "Lofi Beats Vol. 1 - Morning"},
			{ID: "b", Title: "Lofi Beats Vol. 1 - Evening"},
			{ID: "c"},
		}, nil
	}
	p := NewYouTubePrefetcherWithFetch(fetch, time.Second, nil)

	info, err := p.Prefetch(context.Background(), "https://www.youtube.com/playlist?list=PLxyz&index=2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotID != "PLxyz" {
		t.Errorf("expected playlist id PLxyz, got %s", gotID)
	}
	if info.Title != "Lofi Beats Vol. 1" {
		t.Errorf("expected derived title, got %q", info.Title)
	}
	if info.Items[2].Index != 2 || info.Items[2].Title != models.PlaceholderTitle(2) {
		t.Errorf("expected placeholder third item, got %+v", info.Items[2])
	}

	if _, err := p.Prefetch(context.Background(), "https://www.youtube.com/watch?v=abc"); !errors.Is(err, shared.ErrPrefetchFailed) {
		t.Errorf("expected ErrPrefetchFailed without list id, got %v", err)
	}
}

func TestChainPrefetcher(t *testing.T) {
	failing := PrefetchFunc(func(ctx context.Context, url string) (*models.PlaylistInfo, error) {
		return &models.PlaylistInfo{Error: "boom"}, errors.New("boom")
	})
	empty := PrefetchFunc(func(ctx context.Context, url string) (*models.PlaylistInfo, error) {
		return &models.PlaylistInfo{}, nil
	})
	working := &tu.StaticPrefetcher{Info: map[string]*models.PlaylistInfo{
		"u": {Title: "T", Items: []models.PlaylistItem{{Title: "a"}, {Title: "b"}}},
	}}

	t.Run("first usable result wins", func(t *testing.T) {
		info, err := NewChainPrefetcher(nil, failing, empty, working).Prefetch(context.Background(), "u")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if info.Title != "T" {
			t.Errorf("expected T, got %q", info.Title)
		}
	})

	t.Run("all failing", func(t *testing.T) {
		info, err := NewChainPrefetcher(nil, failing, empty).Prefetch(context.Background(), "u")
		if err == nil {
			t.Fatal("expected error")
		}
		if !errors.Is(err, shared.ErrPrefetchFailed) {
			t.Errorf("expected joined ErrPrefetchFailed, got %v", err)
		}
		if info == nil {
			t.Error("expected last partial result")
		}
	})

	t.Run("no members", func(t *testing.T) {
		if _, err := NewChainPrefetcher(nil).Prefetch(context.Background(), "u"); err == nil {
			t.Error("expected error")
		}
	})
}

func TestDerivePlaylistTitle(t *testing.T) {
	tests := []struct {
		name  string
		items []models.PlaylistItem
		url   string
		want  string
	}{
		{
			name:  "common prefix",
			items: []models.PlaylistItem{{Title: "Best of Jazz 1959: Side A"}, {Title: "Best of Jazz 1959: Side B"}},
			want:  "Best of Jazz 1959: Side",
		},
		{
			name:  "short prefix falls back to first title",
			items: []models.PlaylistItem{{Title: "Intro"}, {Title: "Interlude"}},
			want:  "Intro Playlist",
		},
		{
			name:  "placeholders fall back to list id",
			items: models.PlaceholderItems(3),
			url:   "https://www.youtube.com/playlist?list=PL123",
			want:  "PL123",
		},
		{
			name: "path segment",
			url:  "https://artist.bandcamp.com/album/night-drive/",
			want: "night-drive",
		},
		{
			name: "nothing known",
			url:  "::",
			want: "Playlist",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DerivePlaylistTitle(tt.items, tt.url); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
