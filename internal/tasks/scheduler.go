package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/audiograb/internal/formatter"
	"github.com/desertthunder/audiograb/internal/models"
	"github.com/desertthunder/audiograb/internal/paths"
	"github.com/desertthunder/audiograb/internal/playlist"
	"github.com/desertthunder/audiograb/internal/process"
	"github.com/desertthunder/audiograb/internal/services"
	"github.com/desertthunder/audiograb/internal/shared"
)

// HistoryStore is the persistence collaborator. [*repositories.HistoryRepository] implements it.
type HistoryStore interface {
	Upsert(rec *models.HistoryRecord) error
	Exists(url string) (bool, error)
}

// Config holds the scheduler settings.
type Config struct {
	Binary                  string
	OutputDir               string
	Format                  string
	Quality                 string
	OutputTemplate          string
	MaxConcurrent           int
	SeparatePlaylistFolders bool
	WriteManifest           bool
	Proxy                   string
	CookiesFile             string
	CookiesFromBrowser      string
	// ThumbnailDir enables thumbnail downloads into this directory when set.
	ThumbnailDir string
	Grace        time.Duration
	Watchdog     time.Duration
}

// ConfigFrom maps the application config onto scheduler settings.
func ConfigFrom(c *shared.Config) Config {
	cfg := Config{
		Binary:                  c.Extractor.Binary,
		OutputDir:               shared.ExpandHome(c.Downloads.OutputDir),
		Format:                  c.Downloads.Format,
		Quality:                 c.Downloads.Quality,
		OutputTemplate:          c.Downloads.OutputTemplate,
		MaxConcurrent:           c.Downloads.MaxConcurrent,
		SeparatePlaylistFolders: c.Downloads.SeparatePlaylistFolders,
		WriteManifest:           c.Downloads.WritePlaylistManifest,
		Proxy:                   c.Extractor.Proxy,
		CookiesFile:             shared.ExpandHome(c.Extractor.CookiesFile),
		CookiesFromBrowser:      c.Extractor.CookiesFromBrowser,
		Grace:                   c.Shutdown.Grace(),
		Watchdog:                c.Shutdown.Watchdog(),
	}
	if c.Thumbnails.Enabled {
		cfg.ThumbnailDir = shared.ExpandHome(c.Thumbnails.CacheDir)
		if cfg.ThumbnailDir == "" {
			cfg.ThumbnailDir = filepath.Join(cfg.OutputDir, ".thumbnails")
		}
	}
	return cfg
}

// Deps are the collaborators of a [Scheduler]. Nil members get production defaults,
// except Prefetcher, History and Images which are simply skipped.
type Deps struct {
	Starter    process.Starter
	Prefetcher services.Prefetcher
	History    HistoryStore
	Resolver   *paths.Resolver
	Reconciler *playlist.Reconciler
	Images     *formatter.ImageFetcher
	Logger     *log.Logger
	Updates    chan<- ProgressUpdate
	Now        func() time.Time
	Exit       func(code int)
}

// SubmitOptions override the configured defaults for one task.
type SubmitOptions struct {
	Format    string
	Quality   string
	OutputDir string
	// Force skips the history check.
	Force bool
}

// Scheduler owns the task list and runs at most MaxConcurrent extractor processes.
type Scheduler struct {
	cfg        Config
	store      *Store
	starter    process.Starter
	prefetcher services.Prefetcher
	history    HistoryStore
	resolver   *paths.Resolver
	reconciler *playlist.Reconciler
	images     *formatter.ImageFetcher
	logger     *log.Logger
	updates    chan<- ProgressUpdate
	now        func() time.Time
	exit       func(int)

	bag     *Bag
	workers sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	closed  atomic.Bool
}

// NewScheduler creates a [Scheduler].
func NewScheduler(cfg Config, deps Deps) *Scheduler {
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	if cfg.Binary == "" {
		cfg.Binary = "yt-dlp"
	}
	if cfg.Format == "" {
		cfg.Format = "mp3"
	}
	if cfg.Grace <= 0 {
		cfg.Grace = 2 * time.Second
	}
	if cfg.Watchdog <= 0 {
		cfg.Watchdog = 5 * time.Second
	}

	logger := deps.Logger
	if logger == nil {
		logger = shared.DiscardLogger()
	}

	s := &Scheduler{
		cfg:        cfg,
		store:      NewStore(),
		starter:    deps.Starter,
		prefetcher: deps.Prefetcher,
		history:    deps.History,
		resolver:   deps.Resolver,
		reconciler: deps.Reconciler,
		images:     deps.Images,
		logger:     logger,
		updates:    deps.Updates,
		now:        deps.Now,
		exit:       deps.Exit,
		bag:        NewBag(logger),
	}
	if s.starter == nil {
		s.starter = process.NewRunner(logger)
	}
	if s.resolver == nil {
		s.resolver = paths.New(logger)
	}
	if s.reconciler == nil {
		s.reconciler = playlist.New(logger)
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.exit == nil {
		s.exit = os.Exit
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

// sendProgress sends a progress update through the channel without blocking.
func (s *Scheduler) sendProgress(update ProgressUpdate) {
	if s.updates == nil {
		return
	}
	select {
	case s.updates <- update:
	default:
		// Channel full, skip this update
	}
}

// Submit queues url for download. URLs already in history are refused unless opts.Force is set.
func (s *Scheduler) Submit(url string, opts SubmitOptions) (*models.Task, error) {
	if s.closed.Load() {
		return nil, shared.ErrSchedulerClosed
	}

	url = strings.TrimSpace(url)
	if err := models.ValidateURL(url); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	if !opts.Force && s.history != nil {
		recorded, err := s.history.Exists(url)
		if err != nil {
			s.logger.Warn("history lookup failed", "url", url, "err", err)
		}
		if recorded {
			return nil, fmt.Errorf("%w: %s", shared.ErrAlreadyRecorded, url)
		}
	}

	t := models.NewTask(shared.GenerateID(), url, s.now())
	t.Format = firstSet(opts.Format, s.cfg.Format)
	t.Quality = firstSet(opts.Quality, s.cfg.Quality)
	t.OutputDir = firstSet(opts.OutputDir, s.cfg.OutputDir)

	added, err := s.store.Add(t)
	if err != nil {
		return nil, err
	}
	s.logger.Info("task queued", "url", url, "id", added.ID)
	s.sendProgress(queuedUpdate(added))

	ref := RefOf(added)
	if s.prefetcher == nil {
		s.store.Update(ref, func(t *models.Task) bool {
			t.Prefetched = true
			return true
		})
		s.pump()
		return added, nil
	}

	s.bag.Go("prefetch", func() { s.prefetch(ref) })
	return added, nil
}

// Adopt inserts a finished task, typically rebuilt from a history record, so it can be retried.
func (s *Scheduler) Adopt(t *models.Task) (*models.Task, error) {
	if !t.State.IsTerminal() {
		return nil, fmt.Errorf("%w: %s", shared.ErrTaskActive, t.URL)
	}
	if t.ID == "" {
		t.ID = shared.GenerateID()
	}
	if t.Format == "" {
		t.Format = s.cfg.Format
	}
	if t.Quality == "" {
		t.Quality = s.cfg.Quality
	}
	if t.OutputDir == "" {
		t.OutputDir = s.cfg.OutputDir
	}
	t.Prefetched = true
	return s.store.Add(t)
}

func (s *Scheduler) prefetch(ref Ref) {
	info, err := s.prefetcher.Prefetch(s.ctx, ref.URL)
	if err != nil {
		s.logger.Warn("prefetch failed", "url", ref.URL, "prefetcher", s.prefetcher.Name(), "err", err)
	}

	updated, ok := s.store.Update(ref, func(t *models.Task) bool {
		if t.State != models.StateQueued {
			return false
		}
		if err != nil {
			t.Prefetched = true
			if info != nil && info.Error != "" {
				t.Warning = "prefetch failed: " + info.Error
			} else {
				t.Warning = "prefetch failed"
			}
			if t.IsPlaylist && t.PlaylistName == "" {
				t.PlaylistName = services.DerivePlaylistTitle(nil, t.URL)
			}
			return true
		}

		t.ApplyPlaylistInfo(info)
		if t.IsPlaylist && t.PlaylistName == "" {
			t.PlaylistName = services.DerivePlaylistTitle(t.Items, t.URL)
		}
		return true
	})
	if !ok {
		return
	}

	s.sendProgress(prefetchedUpdate(updated))
	s.pump()
}

// ready reports whether a queued task may be promoted. Collections wait for a name when
// they get their own folder, since the folder must exist before the process writes into it.
func (s *Scheduler) ready(t *models.Task) bool {
	if !t.Prefetched {
		return false
	}
	if t.IsPlaylist && s.cfg.SeparatePlaylistFolders && t.PlaylistName == "" {
		return false
	}
	return true
}

// pump promotes as many queued tasks as the concurrency cap allows.
func (s *Scheduler) pump() {
	if s.closed.Load() {
		return
	}

	prepare := func(t *models.Task) {
		t.Run++
		t.Progress = 0
		s.workers.Add(1)
	}
	for _, t := range s.store.Promote(s.cfg.MaxConcurrent, s.now(), s.ready, prepare) {
		s.logger.Info("task started", "url", t.URL, "run", t.Run, "playlist", t.IsPlaylist)
		s.sendProgress(startedUpdate(t))
		go s.run(t)
	}
}

// runDir is where a task's files land.
func (s *Scheduler) runDir(t *models.Task) string {
	dir := t.OutputDir
	if t.IsPlaylist && s.cfg.SeparatePlaylistFolders && t.PlaylistName != "" {
		dir = filepath.Join(dir, shared.SanitizeFilename(t.PlaylistName))
	}
	return dir
}

// Cancel stops a queued or downloading task. Cancelled is final for that run: nothing
// the process prints afterwards reaches the task.
func (s *Scheduler) Cancel(url string) error {
	t, h, err := s.store.Cancel(url, s.now())
	if err != nil {
		return err
	}
	if h != nil {
		h.Cancel()
	}

	s.logger.Info("task cancelled", "url", url)
	s.sendProgress(finishedUpdate(t))
	s.pump()
	return nil
}

// Retry requeues a finished task. A collection run is scoped to the items with no file
// on disk; when every item is present the whole URL runs again.
func (s *Scheduler) Retry(url string) error {
	t, ok := s.store.Get(url)
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrTaskNotFound, url)
	}
	if !t.State.IsTerminal() {
		return fmt.Errorf("%w: %s", shared.ErrTaskActive, url)
	}

	if !t.IsPlaylist || len(t.Items) == 0 {
		return s.requeue(t, nil, nil)
	}
	missing := s.resolver.RetryMissingItems(t, s.runDir(t))
	if len(missing) == 0 {
		return s.requeue(t, nil, nil)
	}
	return s.requeue(t, missing, t.Items)
}

// RetryMissing requeues a finished collection scoped to the items with no file on disk.
func (s *Scheduler) RetryMissing(url string) error {
	t, ok := s.store.Get(url)
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrTaskNotFound, url)
	}
	if !t.IsPlaylist || len(t.Items) == 0 {
		return fmt.Errorf("%w: %s", shared.ErrNotPlaylist, url)
	}
	if !t.State.IsTerminal() {
		return fmt.Errorf("%w: %s", shared.ErrTaskActive, url)
	}

	missing := s.resolver.RetryMissingItems(t, s.runDir(t))
	if len(missing) == 0 {
		return fmt.Errorf("%w: %s", shared.ErrNothingMissing, url)
	}
	return s.requeue(t, missing, t.Items)
}

// requeue starts another run of t limited to missing, or the whole URL when missing is
// empty. Items marked downloaded in checked carry over to the stored task.
func (s *Scheduler) requeue(t *models.Task, missing []int, checked []models.PlaylistItem) error {
	queued, err := s.store.Requeue(t.URL, t.ID, s.now(), func(t *models.Task) {
		t.Error = ""
		t.ErrorCause = ""
		t.Warning = ""
		t.Speed = 0
		t.DownloadedBytes = 0
		t.TotalBytes = 0
		t.ReportedPath = ""
		t.ReportedName = ""
		t.AlreadyDownloaded = false
		t.CurrentItem = -1
		t.LastTitle = ""
		t.RetryItems = missing
		if s.prefetcher == nil {
			t.Prefetched = true
		}
		for i, item := range checked {
			if item.Downloaded && i < len(t.Items) {
				t.Items[i].FilePath = item.FilePath
				t.Items[i].MarkDownloaded()
			}
		}
	})
	if err != nil {
		return err
	}

	s.logger.Info("task requeued", "url", t.URL, "items", len(missing))
	s.sendProgress(queuedUpdate(queued))
	if !queued.Prefetched {
		ref := RefOf(queued)
		s.bag.Go("prefetch", func() { s.prefetch(ref) })
		return nil
	}
	s.pump()
	return nil
}

// Remove cancels the task for url if it is running and drops it from the list.
func (s *Scheduler) Remove(url string) error {
	t, h, err := s.store.Remove(url)
	if err != nil {
		return err
	}
	if h != nil {
		h.Cancel()
	}

	s.sendProgress(removedUpdate(t))
	s.pump()
	return nil
}

// Clear drops every finished task and returns how many went.
func (s *Scheduler) Clear() int {
	removed := s.store.ClearFinished()
	for _, t := range removed {
		s.sendProgress(removedUpdate(t))
	}
	return len(removed)
}

// SetPlaylistName names a queued collection, which releases it when it was waiting for
// a folder name.
func (s *Scheduler) SetPlaylistName(url, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: playlist name is empty", shared.ErrInvalidInput)
	}

	t, ok := s.store.Get(url)
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrTaskNotFound, url)
	}
	_, ok = s.store.Update(RefOf(t), func(t *models.Task) bool {
		if t.State != models.StateQueued {
			return false
		}
		t.PlaylistName = name
		return true
	})
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrTaskActive, url)
	}

	s.pump()
	return nil
}

// Snapshot returns a copy of the task for url.
func (s *Scheduler) Snapshot(url string) (*models.Task, error) {
	t, ok := s.store.Get(url)
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrTaskNotFound, url)
	}
	return t, nil
}

// List returns copies of every task in submission order.
func (s *Scheduler) List() []*models.Task {
	return s.store.List()
}

// Active returns the number of running extractor processes.
func (s *Scheduler) Active() int {
	return s.store.Active()
}

// Wait blocks until every task is finished or ctx is done.
func (s *Scheduler) Wait(ctx context.Context) error {
	for {
		changed, settled := s.store.Settled()
		if settled {
			return nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Shutdown refuses new work, cancels every live task and waits up to the grace window
// for workers and background jobs. Past that they are left behind and a watchdog is armed
// that exits the process if the caller does not get there first.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.store.Close()

	cancelled, handles := s.store.CancelAll(s.now())
	for _, h := range handles {
		h.Cancel()
	}
	for _, t := range cancelled {
		s.sendProgress(finishedUpdate(t))
	}
	s.cancel()

	watchdog := time.AfterFunc(s.cfg.Watchdog, func() {
		s.logger.Error("shutdown watchdog fired, forcing exit")
		s.exit(1)
	})

	done := make(chan struct{})
	go func() {
		s.workers.Wait()
		close(done)
	}()

	deadline := time.NewTimer(s.cfg.Grace)
	defer deadline.Stop()
	start := time.Now()

	select {
	case <-done:
	case <-deadline.C:
		s.logger.Warn("workers still running after grace window", "grace", s.cfg.Grace)
		return fmt.Errorf("%w: workers", shared.ErrShutdownTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}

	remaining := s.cfg.Grace - time.Since(start)
	if !s.bag.Wait(max(remaining, 0)) {
		s.logger.Warn("background work detached", "pending", s.bag.Len())
		return fmt.Errorf("%w: %d background jobs", shared.ErrShutdownTimeout, s.bag.Len())
	}

	watchdog.Stop()
	s.logger.Debug("scheduler stopped")
	return nil
}

func firstSet(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
