package progress

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/desertthunder/audiograb/internal/models"
)

var (
	percentLine     = regexp.MustCompile(`^\[download\]\s+(\d+(?:\.\d+)?)%`)
	totalSize       = regexp.MustCompile(`of\s+~?\s*(\d+(?:\.\d+)?)\s*([KMGT]?i?B)\b`)
	speedValue      = regexp.MustCompile(`at\s+(\d+(?:\.\d+)?)\s*([KMGT]?i?B)/s`)
	destinationLine = regexp.MustCompile(`^\[download\]\s+Destination:\s+(.+)$`)
	extractLine     = regexp.MustCompile(`^\[ExtractAudio\]\s+Destination:\s+(.+)$`)
	alreadyLine     = regexp.MustCompile(`^\[download\]\s+(.+?) has already been downloaded`)
	itemLine        = regexp.MustCompile(`^\[download\]\s+Downloading (?:item|video) (\d+) of (\d+)`)
	playlistLine    = regexp.MustCompile(`^\[download\]\s+Downloading playlist:\s*(.+)$`)
	finishedLine    = regexp.MustCompile(`^\[download\]\s+Finished downloading playlist:\s*(.+)$`)
	moveLine        = regexp.MustCompile(`^\[MoveFiles\]\s+Moving file "(.+?)" to "(.+?)"`)
	errorLine       = regexp.MustCompile(`^(?:\[[^\]]+\]\s*)*ERROR:\s*(.*)$`)
	warningLine     = regexp.MustCompile(`^(?:\[[^\]]+\]\s*)*WARNING:\s*(.*)$`)
)

// ParseText interprets a human-readable progress line. ok is false for lines that match
// no known pattern.
func ParseText(line string) (models.ProgressEvent, bool) {
	var ev models.ProgressEvent
	line = strings.TrimSpace(line)

	if m := percentLine.FindStringSubmatch(line); m != nil {
		pct, _ := strconv.ParseFloat(m[1], 64)
		ev.Status = models.StatusDownloading
		ev.Progress = clampFraction(pct / 100)
		if s := totalSize.FindStringSubmatch(line); s != nil {
			ev.TotalBytes = int64(parseSize(s[1], s[2]))
			ev.DownloadedBytes = int64(float64(ev.TotalBytes) * ev.Progress)
		}
		if s := speedValue.FindStringSubmatch(line); s != nil {
			ev.Speed = parseSize(s[1], s[2])
		}
		return ev, true
	}

	if m := itemLine.FindStringSubmatch(line); m != nil {
		ev.Status = models.StatusDownloading
		ev.PlaylistIndex, _ = strconv.Atoi(m[1])
		ev.PlaylistCount, _ = strconv.Atoi(m[2])
		return ev, true
	}

	if m := playlistLine.FindStringSubmatch(line); m != nil {
		ev.PlaylistTitle = strings.TrimSpace(m[1])
		return ev, true
	}
	if m := finishedLine.FindStringSubmatch(line); m != nil {
		ev.PlaylistTitle = strings.TrimSpace(m[1])
		return ev, true
	}

	if m := alreadyLine.FindStringSubmatch(line); m != nil {
		ev.Status = models.StatusCompleted
		ev.AlreadyDownloaded = true
		ev.Progress = 1
		ev.FilePath, ev.FileName = classifyPath(m[1])
		return ev, true
	}

	if m := extractLine.FindStringSubmatch(line); m != nil {
		ev.Status = models.StatusPostProcessing
		ev.FilePath, ev.FileName = classifyPath(m[1])
		return ev, true
	}

	if m := moveLine.FindStringSubmatch(line); m != nil {
		ev.Status = models.StatusPostProcessing
		ev.FilePath, ev.FileName = classifyPath(m[2])
		return ev, true
	}

	if m := destinationLine.FindStringSubmatch(line); m != nil {
		ev.Status = models.StatusDownloading
		ev.FilePath, ev.FileName = classifyPath(m[1])
		return ev, true
	}

	// Markers count only at the start of a line or after its [tag] prefixes, so a path
	// containing "ERROR:" is not an error.
	if m := errorLine.FindStringSubmatch(line); m != nil {
		ev.Status = models.StatusError
		ev.ErrorMessage = strings.TrimSpace(m[1])
		return ev, ev.ErrorMessage != ""
	}
	if m := warningLine.FindStringSubmatch(line); m != nil {
		ev.Warning = strings.TrimSpace(m[1])
		return ev, ev.Warning != ""
	}

	return ev, false
}
