package tasks

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/desertthunder/audiograb/internal/formatter"
	"github.com/desertthunder/audiograb/internal/models"
	"github.com/desertthunder/audiograb/internal/paths"
	"github.com/desertthunder/audiograb/internal/playlist"
	"github.com/desertthunder/audiograb/internal/progress"
)

// scanSlack widens the directory scan window for filesystems with coarse mtimes.
const scanSlack = 2 * time.Second

// run drives one extractor process for t from start to finalization.
func (s *Scheduler) run(t *models.Task) {
	defer s.workers.Done()
	defer s.pump()

	ref := RefOf(t)
	dir := s.runDir(t)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		s.finalize(ref, outcome{code: -1, err: fmt.Sprintf("failed to create output directory: %v", err), fatal: true})
		return
	}

	args := BuildArgs(t.URL, ArgsOptions{
		Format:             t.Format,
		Quality:            t.Quality,
		OutputDir:          dir,
		Template:           s.cfg.OutputTemplate,
		Proxy:              s.cfg.Proxy,
		CookiesFile:        s.cfg.CookiesFile,
		CookiesFromBrowser: s.cfg.CookiesFromBrowser,
		Playlist:           t.IsPlaylist,
		Items:              t.RetryItems,
	})

	started := time.Now()
	h, err := s.starter.Start(s.ctx, s.cfg.Binary, args)
	if err != nil {
		s.logger.Error("extractor failed to start", "url", t.URL, "err", err)
		s.finalize(ref, outcome{code: -1, err: err.Error(), fatal: true})
		return
	}

	if !s.store.Attach(ref, h) {
		// Cancelled while the process was starting.
		h.Cancel()
		h.Stream(func(string) {})
		return
	}

	res, err := h.Stream(func(line string) { s.handleLine(ref, line) })
	if res.Cancelled {
		s.store.Update(ref, func(t *models.Task) bool {
			return t.Transition(models.StateCancelled, s.now()) == nil
		})
		return
	}
	if res.Trailing != "" {
		s.handleLine(ref, res.Trailing)
	}

	out := outcome{code: res.ExitCode, started: started}
	if err != nil {
		out.err = err.Error()
	}
	s.finalize(ref, out)
}

// handleLine parses one line and folds it into the task.
func (s *Scheduler) handleLine(ref Ref, line string) {
	ev := progress.ParseLine(line)
	if ev.IsEmpty() {
		return
	}
	if ev.Warning != "" {
		s.logger.Debug("extractor warning", "url", ref.URL, "warning", ev.Warning)
	}

	var thumbnail string
	updated, ok := s.store.Update(ref, func(t *models.Task) bool {
		if t.State != models.StateDownloading {
			return false
		}
		before := t.Thumbnail
		s.merge(t, ev)
		if t.Thumbnail != before {
			thumbnail = t.Thumbnail
		}
		return true
	})
	if !ok {
		return
	}

	s.sendProgress(progressUpdate(updated))
	if thumbnail != "" {
		s.fetchThumbnail(ref, thumbnail)
	}
}

// merge folds ev into t. Only fields the event carries are touched. Callers hold the store lock.
func (s *Scheduler) merge(t *models.Task, ev models.ProgressEvent) {
	if ev.ErrorMessage != "" {
		t.Error = ev.ErrorMessage
	}
	if ev.PlaylistNull && len(t.Items) <= 1 {
		t.IsPlaylist = false
		t.Items = nil
		t.TotalItems = 0
		t.CurrentItem = -1
	}
	if t.IsPlaylist && len(t.Items) == 0 && ev.PlaylistCount > 1 {
		t.Items = models.PlaceholderItems(ev.PlaylistCount)
		t.TotalItems = ev.PlaylistCount
	}

	if ev.Speed > 0 {
		t.Speed = ev.Speed
	}
	if ev.DownloadedBytes > 0 {
		t.DownloadedBytes = ev.DownloadedBytes
	}
	if ev.TotalBytes > 0 {
		t.TotalBytes = ev.TotalBytes
	}
	if ev.Uploader != "" && t.Artist == "" {
		t.Artist = ev.Uploader
	}
	if ev.Thumbnail != "" && t.Thumbnail == "" {
		t.Thumbnail = ev.Thumbnail
	}

	if t.IsPlaylist && len(t.Items) > 0 {
		st := playlist.StateOf(t)
		s.reconciler.Apply(&st, ev)
		st.CommitTo(t)

		n := float64(len(t.Items))
		frac := 0.0
		if cur := t.CurrentItem; cur >= 0 && !t.Items[cur].Downloaded {
			frac = ev.Progress
		}
		t.Progress = max(t.Progress, min(1, (float64(t.DownloadedCount())+frac)/n))
		return
	}

	if ev.Title != "" {
		t.Title = ev.Title
	}
	if ev.Duration > 0 {
		t.Duration = ev.Duration
	}
	if ev.Bitrate > 0 {
		t.Bitrate = ev.Bitrate
	}
	if ev.FilePath != "" {
		t.ReportedPath = ev.FilePath
	}
	if ev.FileName != "" {
		t.ReportedName = ev.FileName
	}
	if ev.AlreadyDownloaded {
		t.AlreadyDownloaded = true
	}
	t.Progress = max(t.Progress, ev.Progress)
}

// outcome describes how a run ended.
type outcome struct {
	code    int
	err     string
	fatal   bool
	started time.Time
}

// verdict is the outcome of one run, decided from a snapshot outside the lock.
type verdict struct {
	state    models.TaskState
	err      string
	warning  string
	filePath string
	found    []string
	size     int64
	clearErr bool
}

// finalize decides the outcome of a run and records it. File system checks happen on a
// snapshot with the lock released.
func (s *Scheduler) finalize(ref Ref, out outcome) {
	snap, ok := s.store.Lookup(ref)
	if !ok || snap.State != models.StateDownloading {
		return
	}

	v := s.decide(snap, out)
	updated, ok := s.store.Update(ref, func(t *models.Task) bool {
		if t.State != models.StateDownloading {
			return false
		}
		v.apply(t)
		return t.Transition(v.state, s.now()) == nil
	})
	if !ok {
		return
	}

	s.logger.Info("task finished", "url", updated.URL, "state", updated.State, "error", updated.Error)
	s.sendProgress(finishedUpdate(updated))
	s.record(updated)
	if s.cfg.WriteManifest && updated.IsPlaylist && updated.State == models.StateCompleted {
		dir := s.runDir(updated)
		s.bag.Go("manifest", func() {
			path, err := formatter.WritePlaylistManifest(updated.DisplayName(), updated.Items, dir)
			if err != nil {
				s.logger.Warn("playlist manifest not written", "url", updated.URL, "err", err)
				return
			}
			s.logger.Debug("playlist manifest written", "path", path)
		})
	}
}

func (s *Scheduler) decide(t *models.Task, out outcome) verdict {
	if out.fatal {
		return verdict{state: models.StateError, err: out.err}
	}
	if t.IsPlaylist && len(t.Items) > 0 {
		return s.decidePlaylist(t, out)
	}
	return s.decideSingle(t, out)
}

func (s *Scheduler) decideSingle(t *models.Task, out outcome) verdict {
	dir := s.runDir(t)
	q := paths.Query{Reported: t.ReportedPath, FileName: t.ReportedName, Format: t.Format}
	if out.code == 0 {
		// A clean exit may scan the directory. After a failure only the reported names
		// count, since another task may be writing into the same folder.
		q.Dir = dir
		q.Since = out.started.Add(-scanSlack)
	} else if q.Reported == "" && q.FileName != "" {
		q.Reported = filepath.Join(dir, q.FileName)
	}
	path, err := s.resolver.ResolveFile(q)

	switch {
	case err == nil && out.code == 0:
		state := models.StateCompleted
		if t.AlreadyDownloaded {
			state = models.StateAlreadyExists
		}
		return verdict{state: state, filePath: path, size: fileSize(path), clearErr: true}
	case err == nil:
		v := verdict{state: models.StateCompleted, filePath: path, size: fileSize(path), clearErr: true}
		if t.Error != "" && !IsStaleFileError(t.Error) {
			v.warning = t.Error
		}
		return v
	case out.code == 0:
		return verdict{state: models.StateError, err: firstSet(t.Error, err.Error())}
	default:
		return verdict{state: models.StateError, err: firstSet(t.Error, out.err, exitText(out.code))}
	}
}

// decidePlaylist applies the collection rules. A clean exit completes the run whatever
// the item count, since unavailable items are skipped by the extractor. A failed exit
// still completes when more than half of the items are on disk.
func (s *Scheduler) decidePlaylist(t *models.Task, out outcome) verdict {
	found := s.resolver.ResolveItems(t.Items, t.Format, s.runDir(t))
	present := 0
	var size int64
	for _, p := range found {
		if p != "" {
			present++
			size += fileSize(p)
		}
	}
	total := len(found)
	missing := total - present

	v := verdict{found: found, size: size, clearErr: true}
	if out.code == 0 || present*2 > total {
		v.state = models.StateCompleted
		if missing > 0 {
			v.warning = fmt.Sprintf("%d of %d items missing", missing, total)
		}
		return v
	}

	v.state = models.StateError
	v.clearErr = false
	v.err = firstSet(t.Error, out.err, exitText(out.code))
	if missing > 0 {
		v.warning = fmt.Sprintf("%d of %d items missing", missing, total)
	}
	return v
}

func (v verdict) apply(t *models.Task) {
	for i, p := range v.found {
		if p != "" && i < len(t.Items) {
			t.Items[i].FilePath = p
			t.Items[i].MarkDownloaded()
		}
	}
	if v.found != nil {
		t.FilePaths = nil
		for _, p := range v.found {
			if p != "" {
				t.FilePaths = append(t.FilePaths, p)
			}
		}
		if len(t.FilePaths) > 0 {
			t.FilePath = t.FilePaths[0]
		}
	}
	if v.filePath != "" {
		t.FilePath = v.filePath
		t.FilePaths = []string{v.filePath}
	}
	if v.size > 0 {
		t.Size = v.size
	}
	if v.warning != "" {
		t.Warning = v.warning
	}

	switch {
	case v.clearErr:
		t.Error = ""
		t.ErrorCause = ""
		t.Progress = 1
	case v.err != "":
		t.Error = v.err
		t.ErrorCause = ClassifyCause(v.err)
	}
	t.Speed = 0
	t.CurrentItem = -1
}

func (s *Scheduler) record(t *models.Task) {
	if s.history == nil {
		return
	}
	rec := models.NewHistoryRecord(t)
	s.bag.Go("history", func() {
		if err := s.history.Upsert(rec); err != nil {
			s.logger.Warn("history not saved", "url", rec.URL, "err", err)
		}
	})
}

func (s *Scheduler) fetchThumbnail(ref Ref, url string) {
	if s.images == nil || s.cfg.ThumbnailDir == "" {
		return
	}
	s.bag.Go("thumbnail", func() {
		path, err := s.images.Save(s.ctx, url, s.cfg.ThumbnailDir, ref.ID)
		if err != nil {
			s.logger.Debug("thumbnail not saved", "url", url, "err", err)
			return
		}
		s.store.Update(ref, func(t *models.Task) bool {
			if t.State == models.StateCancelled {
				return false
			}
			t.ThumbnailPath = path
			return true
		})
	})
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

func exitText(code int) string {
	return fmt.Sprintf("extractor exited with code %d", code)
}
