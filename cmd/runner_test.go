package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/audiograb/internal/services"
	"github.com/desertthunder/audiograb/internal/shared"
	tu "github.com/desertthunder/audiograb/internal/testing"
	"github.com/urfave/cli/v3"
)

// songScript stands in for yt-dlp: it writes Song.mp3 into the -o directory and reports it.
const songScript = `out=""
prev=""
for a in "$@"; do
  if [ "$prev" = "-o" ]; then out="$a"; fi
  prev="$a"
done
dir=$(dirname "$out")
printf '{"status":"downloading","title":"Song","downloaded_bytes":50,"total_bytes":100}\n'
printf 'audio' > "$dir/Song.mp3"
printf '{"status":"completed","filepath":"%s/Song.mp3","title":"Song"}\n' "$dir"
`

func newTestRunner(t *testing.T, script string) (*Runner, *bytes.Buffer, string) {
	t.Helper()
	tmp := t.TempDir()
	out := filepath.Join(tmp, "music")

	config := shared.DefaultConfig()
	config.Extractor.Binary = tu.WriteScript(t, script)
	config.Downloads.OutputDir = out
	config.Downloads.WritePlaylistManifest = false
	config.Database.Path = filepath.Join(tmp, "history.db")
	config.Thumbnails.Enabled = false

	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{
		Config:     config,
		Logger:     shared.DiscardLogger(),
		Output:     output,
		Prefetcher: &tu.StaticPrefetcher{},
		Exit:       func(int) {},
	})
	return runner, output, out
}

func run(r *Runner, args ...string) error {
	app := &cli.Command{
		Name:     "audiograb",
		Flags:    globalFlags(),
		Before:   r.Before,
		Commands: r.register(),
	}
	return app.Run(context.Background(), append([]string{"audiograb"}, args...))
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}
			api := &services.APIService{}
			prefetcher := &tu.StaticPrefetcher{}

			runner := NewRunner(RunnerOpts{
				Config:     config,
				ConfigPath: "config.toml",
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
				API:        api,
				Prefetcher: prefetcher,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.configPath != "config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
			if runner.api != api {
				t.Error("expected api to be set")
			}
			if runner.prefetcher != prefetcher {
				t.Error("expected prefetcher to be set")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Config: nil})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Logger: nil})

			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: nil})

			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})

		t.Run("with nil httpClient uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{HTTPClient: nil})

			if runner.httpClient != http.DefaultClient {
				t.Error("expected httpClient to default to http.DefaultClient")
			}
		})

		t.Run("with nil api points at the configured server", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.api == nil {
				t.Error("expected default api client to be set")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			err := runner.writeJSON(map[string]string{"key": "value"}, true)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if output.String() != expected {
				t.Errorf("expected %q, got %q", expected, output.String())
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(make(chan int), false)
			if err == nil {
				t.Fatal("expected error for non-serializable data")
			}
			if !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil {
				t.Fatal("expected error writing newline")
			}
			if !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "hello world" {
				t.Errorf("expected 'hello world', got %q", output.String())
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")
			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		names := map[string]bool{}
		for i, cmd := range commands {
			if cmd == nil {
				t.Fatalf("command at index %d is nil", i)
			}
			names[cmd.Name] = true
		}
		for _, want := range []string{"get", "retry", "history", "serve", "remote", "tui", "setup"} {
			if !names[want] {
				t.Errorf("expected command %q to be registered", want)
			}
		}
	})
}

func TestBefore(t *testing.T) {
	t.Run("loads an explicit config file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "custom.toml")
		if err := os.WriteFile(path, []byte("[downloads]\nmax_concurrent = 7\n\n[server]\nport = 4100\n"), 0o644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		runner := NewRunner(RunnerOpts{Logger: shared.DiscardLogger(), Output: &bytes.Buffer{}})
		dst := filepath.Join(t.TempDir(), "out.toml")
		if err := run(runner, "--config", path, "setup", "config", "-o", dst); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if runner.config.Downloads.MaxConcurrent != 7 {
			t.Errorf("expected max_concurrent 7, got %d", runner.config.Downloads.MaxConcurrent)
		}
		if runner.configPath != path {
			t.Errorf("expected config path %s, got %s", path, runner.configPath)
		}
	})

	t.Run("missing config file", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{Logger: shared.DiscardLogger(), Output: &bytes.Buffer{}})
		err := run(runner, "--config", filepath.Join(t.TempDir(), "nope.toml"), "setup", "config", "-o", filepath.Join(t.TempDir(), "c.toml"))
		if !errors.Is(err, shared.ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})

	t.Run("invalid log level", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{Logger: shared.DiscardLogger(), Output: &bytes.Buffer{}})
		err := run(runner, "--log-level", "loud", "setup", "config", "-o", filepath.Join(t.TempDir(), "c.toml"))
		if !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("log file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "audiograb.log")
		runner := NewRunner(RunnerOpts{Logger: shared.DiscardLogger(), Output: &bytes.Buffer{}})
		defer runner.Close()

		if err := run(runner, "--log-file", path, "setup", "config", "-o", filepath.Join(t.TempDir(), "c.toml")); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		tu.AssertFileExists(t, path)
		if runner.logFile == nil {
			t.Error("expected log file to be kept open")
		}
	})
}

func TestGetAndHistory(t *testing.T) {
	runner, output, out := newTestRunner(t, songScript)
	url := "https://www.youtube.com/watch?v=abc123"

	if err := run(runner, "get", url); err != nil {
		t.Fatalf("get failed: %v", err)
	}
	tu.AssertFileExists(t, filepath.Join(out, "Song.mp3"))
	if !strings.Contains(output.String(), "Song") {
		t.Errorf("expected summary to mention Song, got %q", output.String())
	}

	t.Run("second get is skipped", func(t *testing.T) {
		output.Reset()
		if err := run(runner, "get", url); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), "skipped") {
			t.Errorf("expected skip notice, got %q", output.String())
		}
	})

	t.Run("history list", func(t *testing.T) {
		output.Reset()
		if err := run(runner, "history", "list", "--json"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), url) {
			t.Errorf("expected %s in history, got %q", url, output.String())
		}
	})

	t.Run("history show", func(t *testing.T) {
		output.Reset()
		if err := run(runner, "history", "show", url); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), "completed") {
			t.Errorf("expected completed status, got %q", output.String())
		}
	})

	t.Run("history export", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "history.md")
		if err := run(runner, "history", "export", "--format", "markdown", "-o", path); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if content := tu.MustReadFile(t, path); !strings.Contains(content, url) {
			t.Errorf("expected export to contain %s, got %q", url, content)
		}
	})

	t.Run("retry --missing is refused for a single file", func(t *testing.T) {
		err := run(runner, "retry", "--missing", url)
		if !errors.Is(err, shared.ErrNotPlaylist) {
			t.Errorf("expected ErrNotPlaylist, got %v", err)
		}
	})

	t.Run("retry reruns the download", func(t *testing.T) {
		output.Reset()
		if err := run(runner, "retry", url); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), "Song") {
			t.Errorf("expected summary to mention Song, got %q", output.String())
		}
	})

	t.Run("history forget", func(t *testing.T) {
		if err := run(runner, "history", "forget", url); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		err := run(runner, "history", "show", url)
		if !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound after forget, got %v", err)
		}
	})
}

func TestRetryUnknown(t *testing.T) {
	runner, _, _ := newTestRunner(t, songScript)
	err := run(runner, "retry", "https://www.youtube.com/watch?v=never")
	if !errors.Is(err, shared.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGetFailures(t *testing.T) {
	t.Run("requires a url", func(t *testing.T) {
		runner, _, _ := newTestRunner(t, songScript)
		err := run(runner, "get", "--no-history")
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("rejects a zero concurrency", func(t *testing.T) {
		runner, _, _ := newTestRunner(t, songScript)
		err := run(runner, "get", "--no-history", "--concurrency", "0", "https://youtu.be/x")
		if !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag, got %v", err)
		}
	})

	t.Run("reports extractor errors", func(t *testing.T) {
		runner, output, _ := newTestRunner(t, `echo "ERROR: [youtube] abc: Sign in to confirm your age" >&2; exit 1`)
		err := run(runner, "get", "--no-history", "https://www.youtube.com/watch?v=abc")
		if err == nil || !strings.Contains(err.Error(), "failed") {
			t.Fatalf("expected a failure, got %v", err)
		}
		if !strings.Contains(output.String(), "Sign in") {
			t.Errorf("expected the extractor error in the summary, got %q", output.String())
		}
	})
}

func TestSetup(t *testing.T) {
	t.Run("config", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		runner := NewRunner(RunnerOpts{Logger: shared.DiscardLogger(), Output: &bytes.Buffer{}})

		if err := run(runner, "setup", "config", "-o", path); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if _, err := shared.LoadConfig(path); err != nil {
			t.Errorf("expected written config to load, got %v", err)
		}
	})

	t.Run("database", func(t *testing.T) {
		runner, output, _ := newTestRunner(t, songScript)
		if err := run(runner, "setup", "database"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		tu.AssertFileExists(t, runner.config.Database.Path)
		if !strings.Contains(output.String(), "Database ready") {
			t.Errorf("expected confirmation, got %q", output.String())
		}

		output.Reset()
		if err := run(runner, "setup", "database", "--rollback"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), "Rolled back to schema version 0") {
			t.Errorf("expected rollback confirmation, got %q", output.String())
		}
	})

	t.Run("cookies", func(t *testing.T) {
		dir := t.TempDir()
		src := filepath.Join(dir, "curl.sh")
		dst := filepath.Join(dir, "cookies.txt")
		curl := `curl 'https://www.youtube.com/watch?v=abc' -H 'cookie: SID=abc; LOGIN_INFO=xyz'`
		if err := os.WriteFile(src, []byte(curl), 0o644); err != nil {
			t.Fatalf("failed to write curl file: %v", err)
		}

		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Logger: shared.DiscardLogger(), Output: output})
		if err := run(runner, "setup", "cookies", "--curl", src, "--output", dst); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		tu.AssertFileExists(t, dst)
		if !strings.Contains(output.String(), "2 cookies") {
			t.Errorf("expected cookie count, got %q", output.String())
		}
	})
}
