package progress

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/desertthunder/audiograb/internal/models"
)

// PreferredThumbnailID is the sized variant picked from a thumbnail array when present.
const PreferredThumbnailID = "t500x500"

// youTubeThumbnailURL is the conventional URL for a video's cover when none was reported.
const youTubeThumbnailURL = "https://i.ytimg.com/vi/%s/hqdefault.jpg"

var (
	ordinalPrefix = regexp.MustCompile(`^\d{2}\s*-\s*`)
	unicodeEscape = regexp.MustCompile(`\\u[0-9a-fA-F]{4}(?:\\u[0-9a-fA-F]{4})?`)
	percentValue  = regexp.MustCompile(`(\d+(?:\.\d+)?)%`)
	youTubeID     = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
)

// extractTitle tries title, fulltitle, track.title, then a filename.
func extractTitle(raw object) string {
	if t := firstNonEmpty(raw.str("title"), raw.str("fulltitle"), raw.nested("track", "title")); t != "" {
		return t
	}
	for _, key := range []string{"filename", "_filename"} {
		if name := raw.str(key); name != "" {
			return TitleFromFilename(name)
		}
	}
	return ""
}

// TitleFromFilename derives a display title from a path: directory, extension and a
// leading "NN - " ordinal are removed.
func TitleFromFilename(name string) string {
	name = UnescapeUnicode(name)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.LastIndex(name, "."); i > 0 {
		name = name[:i]
	}
	name = ordinalPrefix.ReplaceAllString(name, "")
	return strings.TrimSpace(name)
}

// classifyPath splits a reported path into a full-path candidate or a bare filename.
func classifyPath(candidate string) (fullPath, fileName string) {
	candidate = UnescapeUnicode(strings.Trim(candidate, `"'`))
	if strings.ContainsAny(candidate, `/\`) {
		return candidate, ""
	}
	return "", candidate
}

// UnescapeUnicode replaces literal \uXXXX escapes, including surrogate pairs, with the
// characters they encode.
func UnescapeUnicode(s string) string {
	if !strings.Contains(s, `\u`) {
		return s
	}
	return unicodeEscape.ReplaceAllStringFunc(s, func(m string) string {
		first, _ := strconv.ParseUint(m[2:6], 16, 32)
		r1 := rune(first)
		if len(m) == 12 {
			second, _ := strconv.ParseUint(m[8:12], 16, 32)
			r2 := rune(second)
			if utf16.IsSurrogate(r1) {
				if r := utf16.DecodeRune(r1, r2); r != '�' {
					return string(r)
				}
			}
			return string(r1) + string(r2)
		}
		return string(r1)
	})
}

// extractThumbnail picks a cover URL the way each platform family reports it.
func extractThumbnail(raw object) string {
	platform := platformOf(raw)
	variants := raw.list("thumbnails")

	if platform == models.PlatformSoundCloud && len(variants) > 0 {
		for _, v := range variants {
			if id, _ := v["id"].(string); id == PreferredThumbnailID {
				if u, _ := v["url"].(string); u != "" {
					return u
				}
			}
		}
		if u, _ := variants[0]["url"].(string); u != "" {
			return u
		}
	}

	if t := raw.str("thumbnail"); t != "" {
		return t
	}

	if platform == models.PlatformYouTube {
		if id := raw.str("id"); youTubeID.MatchString(id) {
			return fmt.Sprintf(youTubeThumbnailURL, id)
		}
	}
	return ""
}

func platformOf(raw object) string {
	key := strings.ToLower(firstNonEmpty(raw.str("extractor_key"), raw.str("extractor"), raw.str("ie_key")))
	switch {
	case strings.Contains(key, "soundcloud"):
		return models.PlatformSoundCloud
	case strings.Contains(key, "youtube"):
		return models.PlatformYouTube
	}
	if u := firstNonEmpty(raw.str("webpage_url"), raw.str("original_url")); u != "" {
		return models.DetectPlatform(u)
	}
	return models.PlatformGeneric
}

func parsePercent(s string) (float64, bool) {
	m := percentValue.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	pct, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return clampFraction(pct / 100), true
}

var sizeUnits = map[string]float64{
	"B":   1,
	"KB":  1e3,
	"MB":  1e6,
	"GB":  1e9,
	"TB":  1e12,
	"KIB": 1 << 10,
	"MIB": 1 << 20,
	"GIB": 1 << 30,
	"TIB": 1 << 40,
}

// parseSize converts "3.45" + "MiB" into bytes.
func parseSize(value, unit string) float64 {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return f * sizeUnits[strings.ToUpper(unit)]
}
