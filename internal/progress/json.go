package progress

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/desertthunder/audiograb/internal/models"
)

// object wraps a decoded progress payload. Lookups fall back to a nested "info_dict"
// because the raw progress hook nests the media metadata there.
type object map[string]any

// ParseJSON decodes one machine-readable progress line. Every field that is present is
// populated; absent or null fields stay zero.
func ParseJSON(line string) (models.ProgressEvent, bool) {
	var raw object
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return models.ProgressEvent{}, false
	}

	var ev models.ProgressEvent
	ev.Status = parseStatus(raw.str("status"))

	ev.DownloadedBytes = int64(raw.num("downloaded_bytes"))
	ev.TotalBytes = int64(raw.num("total_bytes"))
	if ev.TotalBytes == 0 {
		ev.TotalBytes = int64(raw.num("total_bytes_estimate"))
	}
	ev.Speed = raw.num("speed")

	switch {
	case ev.DownloadedBytes > 0 && ev.TotalBytes > 0:
		ev.Progress = clampFraction(float64(ev.DownloadedBytes) / float64(ev.TotalBytes))
	case raw.str("_percent_str") != "":
		if pct, ok := parsePercent(raw.str("_percent_str")); ok {
			ev.Progress = pct
		}
	case raw.num("percent") > 0:
		ev.Progress = clampFraction(raw.num("percent") / 100)
	}
	if ev.Status == models.StatusCompleted && ev.Progress == 0 {
		ev.Progress = 1
	}

	ev.PlaylistIndex = int(raw.num("playlist_index"))
	ev.PlaylistCount = int(raw.num("playlist_count"))
	if ev.PlaylistCount == 0 {
		ev.PlaylistCount = int(raw.num("n_entries"))
	}
	ev.PlaylistTitle = raw.str("playlist_title")
	if ev.PlaylistTitle == "" {
		ev.PlaylistTitle = raw.str("playlist")
	}
	ev.PlaylistNull = ev.PlaylistIndex == 0 && (raw.isNull("playlist") || raw.isNull("playlist_title"))

	ev.ID = raw.str("id")
	ev.Title = extractTitle(raw)
	ev.Uploader = firstNonEmpty(raw.str("artist"), raw.str("uploader"), raw.str("creator"), raw.nested("track", "artist"))
	ev.Duration = raw.num("duration")
	ev.Bitrate = int(raw.num("abr"))

	if ev.PlaylistIndex <= 1 {
		ev.Thumbnail = extractThumbnail(raw)
	}

	for _, key := range []string{"filepath", "filename", "_filename"} {
		if candidate := raw.str(key); candidate != "" {
			ev.FilePath, ev.FileName = classifyPath(candidate)
			break
		}
	}

	if ev.Status == models.StatusError {
		ev.ErrorMessage = firstNonEmpty(raw.str("error"), raw.str("message"))
	}

	return ev, true
}

func parseStatus(s string) models.EventStatus {
	switch strings.ToLower(s) {
	case "queued", "pending":
		return models.StatusQueued
	case "downloading", "started":
		return models.StatusDownloading
	case "finished", "processing", "postprocessing", "post_process":
		return models.StatusPostProcessing
	case "completed", "complete", "done", "after_move", "moved":
		return models.StatusCompleted
	case "error":
		return models.StatusError
	default:
		return models.StatusUnknown
	}
}

func (o object) lookup(key string) (any, bool) {
	if v, ok := o[key]; ok && v != nil {
		return v, true
	}
	if info, ok := o["info_dict"].(map[string]any); ok {
		if v, ok := info[key]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func (o object) str(key string) string {
	v, ok := o.lookup(key)
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return ""
}

func (o object) num(key string) float64 {
	v, ok := o.lookup(key)
	if !ok {
		return 0
	}
	switch t := v.(type) {
	case float64:
		return t
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		return f
	}
	return 0
}

// isNull reports whether key is present with an explicit null value.
func (o object) isNull(key string) bool {
	v, ok := o[key]
	if ok {
		return v == nil
	}
	if info, ok := o["info_dict"].(map[string]any); ok {
		v, ok := info[key]
		return ok && v == nil
	}
	return false
}

func (o object) nested(key, field string) string {
	v, ok := o.lookup(key)
	if !ok {
		return ""
	}
	m, ok := v.(map[string]any)
	if !ok {
		return ""
	}
	s, _ := m[field].(string)
	return strings.TrimSpace(s)
}

func (o object) list(key string) []map[string]any {
	v, ok := o.lookup(key)
	if !ok {
		return nil
	}
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(arr))
	for _, item := range arr {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
