package shared

import (
	"bytes"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestSanitizeFilename(t *testing.T) {
	tc := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain", input: "Road Trip Mix", want: "Road Trip Mix"},
		{name: "separators", input: "AC/DC: Live", want: "AC_DC_ Live"},
		{name: "reserved characters", input: `a*b?c"d<e>f|g\h`, want: "a_b_c_d_e_f_g_h"},
		{name: "collapses whitespace", input: "  Lo-fi   Beats \t ", want: "Lo-fi Beats"},
		{name: "trims dots", input: "...hidden.", want: "hidden"},
		{name: "empty", input: "  ", want: "untitled"},
		{name: "windows reserved name", input: "CON", want: "_CON"},
		{name: "unicode kept", input: "Café del Mar", want: "Café del Mar"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeFilename(tt.input); got != tt.want {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}

	t.Run("truncates long names on a rune boundary", func(t *testing.T) {
		got := SanitizeFilename(strings.Repeat("é", 150))
		if len(got) > maxFilenameLength {
			t.Errorf("expected at most %d bytes, got %d", maxFilenameLength, len(got))
		}
		if !strings.HasPrefix(got, "éé") || strings.ContainsRune(got, '�') {
			t.Errorf("truncation produced invalid text: %q", got)
		}
	})
}

func TestMatchKey(t *testing.T) {
	if got := MatchKey("Song: Title (Live)"); got != "songtitlelive" {
		t.Errorf("expected songtitlelive, got %s", got)
	}
	if MatchKey("AC/DC") != MatchKey("AC⧸DC") {
		t.Error("expected slash variants to share a key")
	}
}

func TestReplaceExt(t *testing.T) {
	tc := []struct {
		path, ext, want string
	}{
		{"/music/Song.opus", "mp3", "/music/Song.mp3"},
		{"/music/Song.webm", ".m4a", "/music/Song.m4a"},
		{"/music/Song", "mp3", "/music/Song.mp3"},
		{"/music/My.Song.v2.webm", "mp3", "/music/My.Song.v2.mp3"},
	}
	for _, tt := range tc {
		if got := ReplaceExt(tt.path, tt.ext); got != tt.want {
			t.Errorf("ReplaceExt(%q, %q) = %q, want %q", tt.path, tt.ext, got, tt.want)
		}
	}

	if !HasExt("Song.MP3", "mp3") || HasExt("Song.mp3.part", "mp3") {
		t.Error("HasExt returned the wrong answer")
	}
}

func TestGenerateID(t *testing.T) {
	a, b := GenerateID(), GenerateID()
	if a == b {
		t.Error("expected unique ids")
	}
	if _, err := uuid.Parse(a); err != nil {
		t.Errorf("expected a valid uuid, got %s", a)
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf)

	if err := SetLogLevel(logger, "warn"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown")

	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("unexpected log output: %s", buf.String())
	}

	if err := SetLogLevel(logger, "loud"); err == nil {
		t.Error("expected error for unknown level")
	}

	t.Run("NewFileLogger", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "audiograb.log")
		l, f, err := NewFileLogger(path)
		if err != nil {
			t.Fatalf("NewFileLogger() error = %v", err)
		}
		defer f.Close()
		l.Info("written")
	})
}

func TestOpenCommand(t *testing.T) {
	orig := getRuntime
	origStart := startCommand
	defer func() {
		getRuntime = orig
		startCommand = origStart
	}()

	var started *exec.Cmd
	startCommand = func(cmd *exec.Cmd) error {
		started = cmd
		return nil
	}

	tc := []struct {
		goos string
		want string
	}{
		{"darwin", "open"},
		{"linux", "xdg-open"},
		{"windows", "cmd"},
	}
	for _, tt := range tc {
		t.Run(tt.goos, func(t *testing.T) {
			getRuntime = func() string { return tt.goos }
			if err := OpenBrowser("http://127.0.0.1:3000"); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if filepath.Base(started.Args[0]) != tt.want {
				t.Errorf("expected %s, got %s", tt.want, started.Args[0])
			}
		})
	}

	t.Run("unsupported", func(t *testing.T) {
		getRuntime = func() string { return "plan9" }
		if err := OpenBrowser("http://127.0.0.1:3000"); err == nil {
			t.Error("expected error on unsupported platform")
		}
	})

	t.Run("RevealFile missing", func(t *testing.T) {
		getRuntime = func() string { return "linux" }
		if err := RevealFile(filepath.Join(t.TempDir(), "nope.mp3")); err == nil {
			t.Error("expected error for missing file")
		}
	})
}
