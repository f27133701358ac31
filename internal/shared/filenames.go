package shared

import (
	"path/filepath"
	"strings"
	"unicode"
)

const maxFilenameLength = 200

var reservedNames = map[string]bool{
	"con": true, "prn": true, "aux": true, "nul": true,
	"com1": true, "com2": true, "com3": true, "com4": true,
	"lpt1": true, "lpt2": true, "lpt3": true,
}

// SanitizeFilename makes name safe to use as a single path component on every platform.
//
// Separators and characters reserved on Windows become "_", control characters are dropped,
// and surrounding dots and spaces are trimmed. An empty result becomes "untitled".
func SanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			b.WriteRune('_')
		case unicode.IsControl(r):
		default:
			b.WriteRune(r)
		}
	}

	out := strings.Join(strings.Fields(b.String()), " ")
	out = strings.Trim(out, ". ")
	if len(out) > maxFilenameLength {
		out = strings.TrimRight(truncateUTF8(out, maxFilenameLength), ". ")
	}
	if out == "" {
		return "untitled"
	}
	if reservedNames[strings.ToLower(out)] {
		out = "_" + out
	}
	return out
}

// MatchKey reduces s to lower-case letters and digits so that titles can be compared
// against filenames the extractor has already rewritten.
func MatchKey(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ReplaceExt swaps the extension of path for ext. ext may be given with or without the leading dot.
func ReplaceExt(path, ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

// HasExt reports whether path ends with ext, case-insensitively.
func HasExt(path, ext string) bool {
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return strings.EqualFold(filepath.Ext(path), ext)
}

func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
