// package process supervises the external extraction process for one task
package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/audiograb/internal/shared"
)

const defaultReadSize = 4096

// Starter launches extraction processes. [*Runner] is the production implementation.
type Starter interface {
	Start(ctx context.Context, executable string, argv []string) (*Handle, error)
}

// Runner spawns extraction processes with stdout and stderr merged into one stream.
type Runner struct {
	logger   *log.Logger
	readSize int
	env      []string
}

// NewRunner creates a [Runner]. A nil logger discards output.
func NewRunner(logger *log.Logger) *Runner {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &Runner{logger: logger, readSize: defaultReadSize}
}

// WithReadSize sets the size of each read from the process output. Mostly useful in tests.
func (r *Runner) WithReadSize(n int) *Runner {
	if n > 0 {
		r.readSize = n
	}
	return r
}

// WithEnv appends environment entries ("KEY=value") to the inherited environment.
func (r *Runner) WithEnv(env ...string) *Runner {
	r.env = append(r.env, env...)
	return r
}

// Result is the outcome of [Handle.Stream].
type Result struct {
	ExitCode  int
	Trailing  string
	Cancelled bool
}

// Handle is one running process.
type Handle struct {
	cmd      *exec.Cmd
	out      *os.File
	logger   *log.Logger
	readSize int

	cancelled atomic.Bool
	killOnce  sync.Once
	waitOnce  sync.Once
	waitErr   error
	stop      func() bool
}

// Start spawns executable with argv passed as a discrete vector. The returned handle is
// cancelled when ctx is done. Failure to spawn is reported as [shared.ErrSpawnFailure].
func (r *Runner) Start(ctx context.Context, executable string, argv []string) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrCancelled, err)
	}

	path, err := exec.LookPath(executable)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", shared.ErrSpawnFailure, executable, err)
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrSpawnFailure, err)
	}

	cmd := exec.Command(path, argv...)
	cmd.Stdout = pw
	cmd.Stderr = pw
	if len(r.env) > 0 {
		cmd.Env = append(os.Environ(), r.env...)
	}
	configureProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return nil, fmt.Errorf("%w: %s: %v", shared.ErrSpawnFailure, executable, err)
	}
	// The child holds its own copy of the write end; ours must go so EOF arrives on exit.
	pw.Close()

	h := &Handle{
		cmd:      cmd,
		out:      pr,
		logger:   r.logger,
		readSize: r.readSize,
	}
	h.stop = context.AfterFunc(ctx, h.Cancel)

	r.logger.Debug("extractor started", "pid", cmd.Process.Pid, "exe", path)
	return h, nil
}

// PID returns the operating system process id.
func (h *Handle) PID() int {
	return h.cmd.Process.Pid
}

// Cancel marks the handle cancelled and kills the process tree immediately.
// It is safe to call from any goroutine and more than once.
func (h *Handle) Cancel() {
	if h.cancelled.Swap(true) {
		return
	}
	h.kill()
	h.out.Close()
}

// Cancelled reports whether [Handle.Cancel] has been called.
func (h *Handle) Cancelled() bool {
	return h.cancelled.Load()
}

// Stream reads the merged output until the process exits or the handle is cancelled,
// calling onLine for every logical line. Once cancellation is observed no further line
// is delivered and the result has Cancelled set, whatever the process printed last.
func (h *Handle) Stream(onLine func(line string)) (Result, error) {
	defer h.stop()

	var asm LineAssembler
	buf := make([]byte, h.readSize)
	for {
		if h.cancelled.Load() {
			return h.abort(), nil
		}

		n, err := h.out.Read(buf)
		if n > 0 {
			for _, line := range asm.Feed(buf[:n]) {
				if h.cancelled.Load() {
					return h.abort(), nil
				}
				onLine(line)
			}
		}

		if err != nil {
			if h.cancelled.Load() {
				return h.abort(), nil
			}
			if !errors.Is(err, io.EOF) {
				h.logger.Warn("extractor output read failed", "err", err)
			}
			break
		}
	}

	h.out.Close()
	err := h.wait()
	if h.cancelled.Load() {
		return Result{ExitCode: -1, Cancelled: true}, nil
	}

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return Result{ExitCode: -1, Trailing: asm.Pending()}, fmt.Errorf("failed waiting for extractor: %w", err)
	}

	code := h.cmd.ProcessState.ExitCode()
	h.logger.Debug("extractor exited", "pid", h.cmd.Process.Pid, "code", code)
	return Result{ExitCode: code, Trailing: asm.Pending()}, nil
}

func (h *Handle) abort() Result {
	h.kill()
	go h.wait()
	h.logger.Debug("extractor cancelled", "pid", h.cmd.Process.Pid)
	return Result{ExitCode: -1, Cancelled: true}
}

func (h *Handle) kill() {
	h.killOnce.Do(func() {
		if err := killProcessTree(h.cmd); err != nil {
			h.logger.Debug("kill failed", "pid", h.cmd.Process.Pid, "err", err)
		}
	})
}

func (h *Handle) wait() error {
	h.waitOnce.Do(func() {
		h.waitErr = h.cmd.Wait()
	})
	return h.waitErr
}
