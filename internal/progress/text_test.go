package progress

import (
	"testing"

	"github.com/desertthunder/audiograb/internal/models"
)

func TestParseText(t *testing.T) {
	t.Run("percent line", func(t *testing.T) {
		ev := ParseLine("[download]  45.0% of ~  4.00MiB at  1.00MiB/s ETA 00:03")
		if ev.Status != models.StatusDownloading || ev.Progress != 0.45 {
			t.Fatalf("unexpected event %+v", ev)
		}
		if ev.TotalBytes != 4<<20 {
			t.Errorf("expected total %d, got %d", 4<<20, ev.TotalBytes)
		}
		if ev.Speed != 1<<20 {
			t.Errorf("expected speed %d, got %v", 1<<20, ev.Speed)
		}
	})

	t.Run("percent without size", func(t *testing.T) {
		ev := ParseLine("[download] 100%")
		if ev.Progress != 1 || ev.TotalBytes != 0 {
			t.Errorf("unexpected event %+v", ev)
		}
	})

	t.Run("destination", func(t *testing.T) {
		ev := ParseLine("[download] Destination: /music/Song.webm")
		if ev.FilePath != "/music/Song.webm" || ev.Status != models.StatusDownloading {
			t.Errorf("unexpected event %+v", ev)
		}
		if ev.Title != "" {
			t.Errorf("destination lines must not carry a title, got %q", ev.Title)
		}
	})

	t.Run("extract audio destination", func(t *testing.T) {
		ev := ParseLine("[ExtractAudio] Destination: /music/Song.mp3")
		if ev.FilePath != "/music/Song.mp3" || ev.Status != models.StatusPostProcessing {
			t.Errorf("unexpected event %+v", ev)
		}
	})

	t.Run("bare destination", func(t *testing.T) {
		ev := ParseLine("[download] Destination: Song.webm")
		if ev.FileName != "Song.webm" || ev.FilePath != "" {
			t.Errorf("unexpected event %+v", ev)
		}
	})

	t.Run("already downloaded", func(t *testing.T) {
		ev := ParseLine("[download] /music/Song.mp3 has already been downloaded")
		if !ev.AlreadyDownloaded || ev.Status != models.StatusCompleted || ev.FilePath != "/music/Song.mp3" {
			t.Errorf("unexpected event %+v", ev)
		}
	})

	t.Run("item counter", func(t *testing.T) {
		ev := ParseLine("[download] Downloading item 3 of 10")
		if ev.PlaylistIndex != 3 || ev.PlaylistCount != 10 {
			t.Errorf("unexpected event %+v", ev)
		}
		ev = ParseLine("[download] Downloading video 2 of 5")
		if ev.PlaylistIndex != 2 || ev.PlaylistCount != 5 {
			t.Errorf("unexpected event %+v", ev)
		}
	})

	t.Run("playlist name", func(t *testing.T) {
		if got := ParseLine("[download] Downloading playlist: Summer Mix").PlaylistTitle; got != "Summer Mix" {
			t.Errorf("expected Summer Mix, got %q", got)
		}
	})

	t.Run("move files", func(t *testing.T) {
		ev := ParseLine(`[MoveFiles] Moving file "/tmp/Song.mp3" to "/music/Song.mp3"`)
		if ev.FilePath != "/music/Song.mp3" {
			t.Errorf("expected final path, got %q", ev.FilePath)
		}
	})

	t.Run("error marker", func(t *testing.T) {
		ev := ParseLine("ERROR: [youtube] abc: Sign in to confirm your age")
		if ev.Status != models.StatusError || ev.ErrorMessage != "[youtube] abc: Sign in to confirm your age" {
			t.Errorf("unexpected event %+v", ev)
		}
	})

	t.Run("warning marker", func(t *testing.T) {
		ev := ParseLine("WARNING: [youtube] Falling back to generic n function search")
		if ev.Warning != "[youtube] Falling back to generic n function search" || ev.Status != models.StatusUnknown {
			t.Errorf("unexpected event %+v", ev)
		}
	})

	t.Run("marker inside a path", func(t *testing.T) {
		ev := ParseLine("[ExtractAudio] Destination: /out/ERROR: Live at Wembley.mp3")
		if ev.Status != models.StatusPostProcessing || ev.ErrorMessage != "" {
			t.Errorf("expected a post-processing event without error, got %+v", ev)
		}
		if ev.FilePath != "/out/ERROR: Live at Wembley.mp3" {
			t.Errorf("expected the path to survive, got %q", ev.FilePath)
		}

		ev = ParseLine("[download] Destination: /out/WARNING: Demo.webm")
		if ev.Warning != "" || ev.FilePath != "/out/WARNING: Demo.webm" {
			t.Errorf("unexpected event %+v", ev)
		}
	})

	t.Run("marker after tag prefix", func(t *testing.T) {
		ev := ParseLine("[youtube] [abc] ERROR: Private video")
		if ev.Status != models.StatusError || ev.ErrorMessage != "Private video" {
			t.Errorf("unexpected event %+v", ev)
		}
	})

	t.Run("noise", func(t *testing.T) {
		for _, line := range []string{
			"",
			"   ",
			"[youtube] Extracting URL: https://youtu.be/x",
			"[info] abc: Downloading 1 format(s): 251",
			"Deleting original file /music/Song.webm (pass -k to keep)",
			"random garbage }{",
		} {
			if ev := ParseLine(line); !ev.IsEmpty() {
				t.Errorf("expected empty event for %q, got %+v", line, ev)
			}
		}
	})
}

func TestPipeline(t *testing.T) {
	calls := 0
	never := func(string) (models.ProgressEvent, bool) {
		calls++
		return models.ProgressEvent{}, false
	}
	always := func(line string) (models.ProgressEvent, bool) {
		return models.ProgressEvent{Title: line}, true
	}

	ev := Pipeline{never, always, never}.Parse("x")
	if ev.Title != "x" {
		t.Errorf("expected second strategy to win, got %+v", ev)
	}
	if calls != 1 {
		t.Errorf("expected strategies after the match to be skipped, got %d calls", calls)
	}
}
