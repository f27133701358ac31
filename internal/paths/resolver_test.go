package paths

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/desertthunder/audiograb/internal/models"
	"github.com/desertthunder/audiograb/internal/shared"
)

func touch(t *testing.T, path string, mod time.Time) string {
	t.Helper()
	if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	if !mod.IsZero() {
		if err := os.Chtimes(path, mod, mod); err != nil {
			t.Fatalf("failed to set mtime: %v", err)
		}
	}
	return path
}

func TestTargetExt(t *testing.T) {
	tests := map[string]string{
		"mp3":    ".mp3",
		".flac":  ".flac",
		"AAC":    ".m4a",
		"vorbis": ".ogg",
		"best":   "",
		"":       "",
	}
	for format, want := range tests {
		if got := TargetExt(format); got != want {
			t.Errorf("TargetExt(%q): expected %q, got %q", format, want, got)
		}
	}
}

func TestResolve(t *testing.T) {
	r := New(nil)

	t.Run("intermediate extension swapped for target", func(t *testing.T) {
		dir := t.TempDir()
		want := touch(t, filepath.Join(dir, "Song.mp3"), time.Time{})

		got, err := r.Resolve(filepath.Join(dir, "Song.opus"), "mp3", dir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != want {
			t.Errorf("expected %s, got %s", want, got)
		}
	})

	t.Run("intermediate file alone is not final", func(t *testing.T) {
		dir := t.TempDir()
		touch(t, filepath.Join(dir, "Song.webm"), time.Time{})

		_, err := r.Resolve(filepath.Join(dir, "Song.webm"), "mp3", dir)
		if !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("target extension used directly", func(t *testing.T) {
		dir := t.TempDir()
		want := touch(t, filepath.Join(dir, "Track.flac"), time.Time{})

		got, err := r.Resolve(want, "flac", dir)
		if err != nil || got != want {
			t.Errorf("expected %s, got %s (%v)", want, got, err)
		}
	})

	t.Run("partial suffix stripped", func(t *testing.T) {
		dir := t.TempDir()
		want := touch(t, filepath.Join(dir, "Song.mp3"), time.Time{})

		got, err := r.Resolve(filepath.Join(dir, "Song.webm.part"), "mp3", dir)
		if err != nil || got != want {
			t.Errorf("expected %s, got %s (%v)", want, got, err)
		}
	})

	t.Run("bare filename joined with directory", func(t *testing.T) {
		dir := t.TempDir()
		want := touch(t, filepath.Join(dir, "Named.mp3"), time.Time{})

		got, err := r.ResolveFile(Query{FileName: "Named.m4a", Format: "mp3", Dir: dir})
		if err != nil || got != want {
			t.Errorf("expected %s, got %s (%v)", want, got, err)
		}
	})

	t.Run("directory scan picks newest after since", func(t *testing.T) {
		dir := t.TempDir()
		base := time.Now().Add(-time.Hour)
		touch(t, filepath.Join(dir, "old.mp3"), base)
		want := touch(t, filepath.Join(dir, "new.mp3"), base.Add(30*time.Minute))
		touch(t, filepath.Join(dir, "newer.webm"), base.Add(40*time.Minute))

		got, err := r.ResolveFile(Query{Reported: filepath.Join(dir, "gone.opus"), Format: "mp3", Dir: dir, Since: base.Add(time.Minute)})
		if err != nil || got != want {
			t.Errorf("expected %s, got %s (%v)", want, got, err)
		}

		_, err = r.ResolveFile(Query{Format: "mp3", Dir: dir, Since: base.Add(time.Hour)})
		if !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound for files older than since, got %v", err)
		}
	})

	t.Run("missing directory", func(t *testing.T) {
		_, err := r.Resolve("", "mp3", filepath.Join(t.TempDir(), "nope"))
		if !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestResolveItems(t *testing.T) {
	r := New(nil)

	t.Run("stored path then title then ordinal", func(t *testing.T) {
		dir := t.TempDir()
		stored := touch(t, filepath.Join(dir, "whatever.mp3"), time.Time{})
		titled := touch(t, filepath.Join(dir, "Artist - Second Song (Official).mp3"), time.Time{})
		ordinal := touch(t, filepath.Join(dir, "03 untitled.mp3"), time.Time{})

		items := []models.PlaylistItem{
			{Index: 0, Title: "First", FilePath: filepath.Join(dir, "whatever.webm")},
			{Index: 1, Title: "Second Song"},
			{Index: 2, Title: models.PlaceholderTitle(2)},
			{Index: 3, Title: "Nowhere"},
		}

		got := r.ResolveItems(items, "mp3", dir)
		want := []string{stored, titled, ordinal, ""}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("files are claimed once", func(t *testing.T) {
		dir := t.TempDir()
		exact := touch(t, filepath.Join(dir, "Intro.mp3"), time.Time{})
		longer := touch(t, filepath.Join(dir, "Intro Reprise.mp3"), time.Time{})

		items := []models.PlaylistItem{
			{Index: 0, Title: "Intro Reprise"},
			{Index: 1, Title: "Intro"},
			{Index: 2, Title: "intro"},
		}

		got := r.ResolveItems(items, "mp3", dir)
		want := []string{longer, exact, ""}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("ordinal prefix needs a non digit", func(t *testing.T) {
		dir := t.TempDir()
		touch(t, filepath.Join(dir, "010 other.mp3"), time.Time{})

		got := r.ResolveItems([]models.PlaylistItem{{Index: 0}}, "mp3", dir)
		if got[0] != "" {
			t.Errorf("expected no match, got %s", got[0])
		}
	})
}

func TestMissingItems(t *testing.T) {
	r := New(nil)
	dir := t.TempDir()
	a := touch(t, filepath.Join(dir, "Alpha.mp3"), time.Time{})
	c := touch(t, filepath.Join(dir, "Charlie.mp3"), time.Time{})

	items := []models.PlaylistItem{
		{Index: 0, Title: "Alpha"},
		{Index: 1, Title: "Bravo"},
		{Index: 2, Title: "Charlie"},
		{Index: 3, Title: "Delta"},
	}

	missing, found := r.MissingItems(items, "mp3", dir)
	if !reflect.DeepEqual(missing, []int{2, 4}) {
		t.Errorf("expected missing [2 4], got %v", missing)
	}
	if found[0] != a || found[2] != c {
		t.Errorf("unexpected found paths: %v", found)
	}

	task := &models.Task{Items: items, Format: "mp3", OutputDir: dir}
	missing = r.RetryMissingItems(task, "")
	if !reflect.DeepEqual(missing, []int{2, 4}) {
		t.Errorf("expected missing [2 4], got %v", missing)
	}
	if !task.Items[0].Downloaded || task.Items[0].FilePath != a {
		t.Errorf("expected item 0 recorded as downloaded at %s, got %+v", a, task.Items[0])
	}
	if task.Items[1].Downloaded {
		t.Error("expected item 1 to stay missing")
	}
}

func TestRetryMissingItemsPlaylistFolder(t *testing.T) {
	r := New(nil)
	out := t.TempDir()
	folder := filepath.Join(out, "My List")
	if err := os.MkdirAll(folder, 0o755); err != nil {
		t.Fatalf("failed to create folder: %v", err)
	}
	a := touch(t, filepath.Join(folder, "Alpha.mp3"), time.Time{})
	touch(t, filepath.Join(folder, "Beta.mp3"), time.Time{})

	task := &models.Task{
		Format:       "mp3",
		OutputDir:    out,
		IsPlaylist:   true,
		PlaylistName: "My List",
		Items: []models.PlaylistItem{
			{Index: 0, Title: "Alpha"},
			{Index: 1, Title: "Beta"},
			{Index: 2, Title: "Gamma"},
		},
	}

	missing := r.RetryMissingItems(task, folder)
	if !reflect.DeepEqual(missing, []int{3}) {
		t.Errorf("expected missing [3], got %v", missing)
	}
	if !task.Items[0].Downloaded || task.Items[0].FilePath != a {
		t.Errorf("expected item 0 recorded at %s, got %+v", a, task.Items[0])
	}
	if !task.Items[1].Downloaded {
		t.Error("expected item 1 recorded as downloaded")
	}
	if task.Items[2].Downloaded {
		t.Error("expected item 2 to stay missing")
	}
}
