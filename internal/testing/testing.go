// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/audiograb/internal/models"
)

// StaticPrefetcher is a test double for [services.Prefetcher] that answers from a map.
// URLs missing from Info fail with Err, or return a single-item result when Err is nil.
type StaticPrefetcher struct {
	Info map[string]*models.PlaylistInfo
	Err  error
	// Gate, when non-nil, blocks every call until it is closed.
	Gate  chan struct{}
	calls atomic.Int32
}

func (p *StaticPrefetcher) Prefetch(ctx context.Context, url string) (*models.PlaylistInfo, error) {
	p.calls.Add(1)
	if p.Gate != nil {
		select {
		case <-p.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if info, ok := p.Info[url]; ok {
		c := *info
		c.Items = append([]models.PlaylistItem(nil), info.Items...)
		return &c, nil
	}
	if p.Err != nil {
		return nil, p.Err
	}
	return &models.PlaylistInfo{Items: []models.PlaylistItem{{Title: "single"}}}, nil
}

func (p *StaticPrefetcher) Name() string { return "static" }

// Calls returns how many times Prefetch ran.
func (p *StaticPrefetcher) Calls() int { return int(p.calls.Load()) }

// MemoryHistory is an in-memory history store keyed by URL.
type MemoryHistory struct {
	mu      sync.Mutex
	records map[string]*models.HistoryRecord
	upserts int
}

// NewMemoryHistory creates a store pre-seeded with urls as completed records.
func NewMemoryHistory(urls ...string) *MemoryHistory {
	h := &MemoryHistory{records: make(map[string]*models.HistoryRecord)}
	for _, u := range urls {
		h.records[u] = &models.HistoryRecord{URL: u, Status: models.StateCompleted}
	}
	return h
}

func (h *MemoryHistory) Upsert(rec *models.HistoryRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	c := *rec
	h.records[rec.URL] = &c
	h.upserts++
	return nil
}

func (h *MemoryHistory) Exists(url string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.records[url]
	return ok, nil
}

// Record returns the stored record for url, or nil.
func (h *MemoryHistory) Record(url string) *models.HistoryRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	if rec, ok := h.records[url]; ok {
		c := *rec
		return &c
	}
	return nil
}

// Upserts returns how many upserts were made.
func (h *MemoryHistory) Upserts() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.upserts
}

// WriteScript writes an executable shell script standing in for the extractor binary
// and returns its path. The test is skipped where /bin/sh is unavailable.
func WriteScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not supported on windows")
	}
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}

	path := filepath.Join(t.TempDir(), "yt-dlp")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	return path
}

// Eventually polls cond until it holds or timeout elapses.
func Eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s: %s", timeout, msg)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
