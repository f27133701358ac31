package process

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/audiograb/internal/shared"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "yt-dlp")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755); err != nil {
		t.Fatalf("failed to write fake binary: %v", err)
	}
	return path
}

func TestRunner(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("requires /bin/sh")
	}

	t.Run("streams merged output", func(t *testing.T) {
		bin := writeScript(t, `echo '[info] starting'
echo 'WARNING: from stderr' >&2
printf '{"status":"downloading","title":"A {x}"'
sleep 0.1
printf ',"downloaded_bytes":5}\n'
printf 'trailing'
`)
		h, err := NewRunner(nil).WithReadSize(8).Start(context.Background(), bin, nil)
		if err != nil {
			t.Fatalf("Start() error = %v", err)
		}

		var lines []string
		res, err := h.Stream(func(line string) { lines = append(lines, line) })
		if err != nil {
			t.Fatalf("Stream() error = %v", err)
		}

		want := []string{
			"[info] starting",
			"WARNING: from stderr",
			`{"status":"downloading","title":"A {x}","downloaded_bytes":5}`,
		}
		if strings.Join(lines, "|") != strings.Join(want, "|") {
			t.Errorf("expected %q, got %q", want, lines)
		}
		if res.ExitCode != 0 || res.Cancelled {
			t.Errorf("unexpected result %+v", res)
		}
		if res.Trailing != "trailing" {
			t.Errorf("expected trailing text, got %q", res.Trailing)
		}
	})

	t.Run("reports exit code", func(t *testing.T) {
		bin := writeScript(t, "echo 'ERROR: nope'\nexit 3\n")
		h, err := NewRunner(nil).Start(context.Background(), bin, nil)
		if err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		res, err := h.Stream(func(string) {})
		if err != nil {
			t.Fatalf("Stream() error = %v", err)
		}
		if res.ExitCode != 3 {
			t.Errorf("expected exit code 3, got %d", res.ExitCode)
		}
	})

	t.Run("passes argv as a vector", func(t *testing.T) {
		bin := writeScript(t, `for a in "$@"; do echo "arg:$a"; done`)
		h, err := NewRunner(nil).Start(context.Background(), bin, []string{"-o", "My Music/%(title)s.%(ext)s", "it's"})
		if err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		var lines []string
		if _, err := h.Stream(func(l string) { lines = append(lines, l) }); err != nil {
			t.Fatalf("Stream() error = %v", err)
		}
		want := "arg:-o|arg:My Music/%(title)s.%(ext)s|arg:it's"
		if strings.Join(lines, "|") != want {
			t.Errorf("expected %s, got %s", want, strings.Join(lines, "|"))
		}
	})

	t.Run("spawn failure", func(t *testing.T) {
		_, err := NewRunner(nil).Start(context.Background(), filepath.Join(t.TempDir(), "missing"), nil)
		if !errors.Is(err, shared.ErrSpawnFailure) {
			t.Errorf("expected ErrSpawnFailure, got %v", err)
		}
	})

	t.Run("cancel stops delivery immediately", func(t *testing.T) {
		bin := writeScript(t, `echo started
sleep 30
echo '{"status":"finished"}'
`)
		h, err := NewRunner(nil).Start(context.Background(), bin, nil)
		if err != nil {
			t.Fatalf("Start() error = %v", err)
		}

		var mu sync.Mutex
		var lines []string
		start := time.Now()
		res, err := h.Stream(func(line string) {
			mu.Lock()
			lines = append(lines, line)
			mu.Unlock()
			if line == "started" {
				go h.Cancel()
			}
		})
		if err != nil {
			t.Fatalf("Stream() error = %v", err)
		}

		if !res.Cancelled {
			t.Error("expected cancelled result")
		}
		if time.Since(start) > 10*time.Second {
			t.Errorf("cancel took too long: %v", time.Since(start))
		}
		mu.Lock()
		defer mu.Unlock()
		if len(lines) != 1 {
			t.Errorf("expected only the first line, got %q", lines)
		}
		if !h.Cancelled() {
			t.Error("expected handle to report cancelled")
		}
	})

	t.Run("cancel is idempotent", func(t *testing.T) {
		bin := writeScript(t, "sleep 30\n")
		h, err := NewRunner(nil).Start(context.Background(), bin, nil)
		if err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		h.Cancel()
		h.Cancel()
		res, _ := h.Stream(func(string) { t.Error("no line expected") })
		if !res.Cancelled {
			t.Error("expected cancelled result")
		}
	})

	t.Run("context cancellation", func(t *testing.T) {
		bin := writeScript(t, "echo begin\nsleep 30\n")
		ctx, cancel := context.WithCancel(context.Background())
		h, err := NewRunner(nil).Start(ctx, bin, nil)
		if err != nil {
			t.Fatalf("Start() error = %v", err)
		}

		res, _ := h.Stream(func(line string) {
			if line == "begin" {
				cancel()
			}
		})
		if !res.Cancelled {
			t.Error("expected context cancel to cancel the handle")
		}
	})

	t.Run("cancelled context refuses to start", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := NewRunner(nil).Start(ctx, "/bin/sh", nil)
		if !errors.Is(err, shared.ErrCancelled) {
			t.Errorf("expected ErrCancelled, got %v", err)
		}
	})
}
