package shared

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

var getRuntime = func() string { return runtime.GOOS }

var startCommand = func(cmd *exec.Cmd) error { return cmd.Start() }

// OpenBrowser opens the default system handler for the specified URL or path.
//
// Supports macOS, Linux, and Windows platforms.
func OpenBrowser(url string) error {
	cmd, err := openCommand(url)
	if err != nil {
		return err
	}
	if err := startCommand(cmd); err != nil {
		return fmt.Errorf("failed to open %s: %w", url, err)
	}
	return nil
}

// RevealFile shows path in the platform file manager. Finder and Explorer select the
// file; on Linux the containing directory is opened.
func RevealFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	var cmd *exec.Cmd
	switch rt := getRuntime(); rt {
	case "darwin":
		cmd = exec.Command("open", "-R", path)
	case "windows":
		cmd = exec.Command("explorer", "/select,", path)
	default:
		var err error
		if cmd, err = openCommand(filepath.Dir(path)); err != nil {
			return err
		}
	}

	if err := startCommand(cmd); err != nil {
		return fmt.Errorf("failed to reveal %s: %w", path, err)
	}
	return nil
}

func openCommand(target string) (*exec.Cmd, error) {
	switch rt := getRuntime(); rt {
	case "darwin":
		return exec.Command("open", target), nil
	case "linux", "freebsd", "openbsd":
		return exec.Command("xdg-open", target), nil
	case "windows":
		return exec.Command("cmd", "/c", "start", "", target), nil
	default:
		return nil, fmt.Errorf("unsupported platform: %s", rt)
	}
}
