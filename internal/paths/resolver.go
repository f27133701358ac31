package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/audiograb/internal/models"
	"github.com/desertthunder/audiograb/internal/shared"
)

// intermediateExtensions are source containers the conversion step replaces.
var intermediateExtensions = map[string]bool{
	".webm": true, ".weba": true, ".m4a": true, ".mp4": true, ".m4b": true,
	".opus": true, ".ogg": true, ".oga": true, ".aac": true, ".flac": true,
	".wav": true, ".mka": true, ".mp3": true, ".3gp": true,
}

// partialSuffixes are appended to files that are still being written.
var partialSuffixes = []string{".part", ".ytdl", ".temp"}

// codecExtensions maps audio formats whose output extension differs from the format name.
var codecExtensions = map[string]string{
	"aac":    ".m4a",
	"alac":   ".m4a",
	"vorbis": ".ogg",
}

// TargetExt returns the file extension the extractor writes for format, or "" for "best"
// where the source container is kept.
func TargetExt(format string) string {
	format = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(format), "."))
	if format == "" || format == "best" {
		return ""
	}
	if ext, ok := codecExtensions[format]; ok {
		return ext
	}
	return "." + format
}

// Query describes one single-file lookup.
type Query struct {
	Reported string
	FileName string
	Format   string
	Dir      string
	// Since excludes files modified earlier from the directory scan.
	Since time.Time
}

// Resolver determines final output paths.
type Resolver struct {
	logger *log.Logger
}

// New creates a [Resolver].
func New(logger *log.Logger) *Resolver {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &Resolver{logger: logger}
}

// Resolve returns the final path for a reported path, or [shared.ErrNotFound].
func (r *Resolver) Resolve(reported, format, dir string) (string, error) {
	return r.ResolveFile(Query{Reported: reported, Format: format, Dir: dir})
}

// ResolveFile tries the reported path, then the bare filename inside Dir, then the most
// recently modified file in Dir with the target extension.
func (r *Resolver) ResolveFile(q Query) (string, error) {
	ext := TargetExt(q.Format)

	candidates := []string{q.Reported}
	if q.FileName != "" && q.Dir != "" {
		candidates = append(candidates, filepath.Join(q.Dir, q.FileName))
	}
	for _, c := range candidates {
		if p, ok := checkCandidate(c, ext); ok {
			return p, nil
		}
	}

	if p, ok := r.newest(q.Dir, ext, q.Since); ok {
		r.logger.Debug("resolved by directory scan", "path", p, "reported", q.Reported)
		return p, nil
	}
	return "", fmt.Errorf("%w: %s", shared.ErrNotFound, firstNonEmpty(q.Reported, q.FileName, q.Dir))
}

// ResolveItems returns one path per item, "" where nothing was found. Each file is
// claimed by at most one item: stored paths first, then exact and partial title matches,
// then a two-digit ordinal filename prefix.
func (r *Resolver) ResolveItems(items []models.PlaylistItem, format, dir string) []string {
	ext := TargetExt(format)
	paths := make([]string, len(items))
	claimed := make(map[string]bool)

	for i, item := range items {
		if p, ok := checkCandidate(item.FilePath, ext); ok && !claimed[p] {
			paths[i] = p
			claimed[p] = true
		}
	}

	files := listAudio(dir, ext)
	matchTitles(items, files, paths, claimed, func(fileKey, titleKey string) bool {
		return fileKey == titleKey
	})
	matchTitles(items, files, paths, claimed, strings.Contains)

	for i := range items {
		if paths[i] != "" {
			continue
		}
		prefix := fmt.Sprintf("%02d", i+1)
		for _, f := range files {
			base := filepath.Base(f)
			if claimed[f] || !strings.HasPrefix(base, prefix) {
				continue
			}
			if len(base) > len(prefix) && isDigit(base[len(prefix)]) {
				continue
			}
			paths[i] = f
			claimed[f] = true
			break
		}
	}
	return paths
}

// MissingItems returns the 1-based numbers of items with no file on disk, together with
// the paths found for the others.
func (r *Resolver) MissingItems(items []models.PlaylistItem, format, dir string) ([]int, []string) {
	found := r.ResolveItems(items, format, dir)
	var missing []int
	for i, p := range found {
		if p == "" {
			missing = append(missing, i+1)
		}
	}
	r.logger.Debug("missing playlist items", "dir", dir, "missing", len(missing), "total", len(items))
	return missing, found
}

// RetryMissingItems recomputes which of t's items are present in dir, the folder the
// run wrote into, records the paths it finds on t and returns the 1-based numbers still
// missing. Items already present are never part of the result. An empty dir means
// t.OutputDir.
func (r *Resolver) RetryMissingItems(t *models.Task, dir string) []int {
	if dir == "" {
		dir = t.OutputDir
	}
	missing, found := r.MissingItems(t.Items, t.Format, dir)
	for i, p := range found {
		if p == "" {
			continue
		}
		t.Items[i].FilePath = p
		t.Items[i].MarkDownloaded()
	}
	return missing
}

// checkCandidate accepts path when it has the target extension and exists, or swaps an
// intermediate extension for the target one. The intermediate file itself never counts.
func checkCandidate(path, ext string) (string, bool) {
	if path == "" {
		return "", false
	}
	path = stripPartial(path)
	cur := strings.ToLower(filepath.Ext(path))

	switch {
	case ext == "":
		return path, exists(path)
	case cur == ext:
		return path, exists(path)
	case cur == "" || intermediateExtensions[cur]:
		swapped := shared.ReplaceExt(path, ext)
		return swapped, exists(swapped)
	default:
		return "", false
	}
}

func (r *Resolver) newest(dir, ext string, since time.Time) (string, bool) {
	var best string
	var bestTime time.Time
	for _, f := range listAudio(dir, ext) {
		info, err := os.Stat(f)
		if err != nil {
			continue
		}
		mod := info.ModTime()
		if !since.IsZero() && mod.Before(since) {
			continue
		}
		if best == "" || mod.After(bestTime) {
			best, bestTime = f, mod
		}
	}
	return best, best != ""
}

func matchTitles(items []models.PlaylistItem, files, paths []string, claimed map[string]bool, match func(fileKey, titleKey string) bool) {
	for i, item := range items {
		if paths[i] != "" || item.HasPlaceholderTitle() {
			continue
		}
		key := shared.MatchKey(shared.SanitizeFilename(item.Title))
		if key == "" {
			continue
		}
		for _, f := range files {
			if claimed[f] {
				continue
			}
			if match(shared.MatchKey(stem(f)), key) {
				paths[i] = f
				claimed[f] = true
				break
			}
		}
	}
}

// listAudio returns the regular files in dir with extension ext (any final audio
// extension when ext is empty), sorted by name.
func listAudio(dir, ext string) []string {
	if dir == "" {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var files []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		cur := strings.ToLower(filepath.Ext(e.Name()))
		if ext == "" && !intermediateExtensions[cur] {
			continue
		}
		if ext != "" && cur != ext {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files
}

func stripPartial(path string) string {
	for {
		trimmed := path
		for _, s := range partialSuffixes {
			trimmed = strings.TrimSuffix(trimmed, s)
		}
		if trimmed == path {
			return path
		}
		path = trimmed
	}
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
