package tasks

import "strings"

// Error causes attached to failed tasks. They are hints for the user and never change
// what the scheduler does.
const (
	CauseAuth        = "authentication or cookies required"
	CauseRateLimited = "rate limited by the site"
	CauseNetwork     = "network blocked or unreachable"
	CauseUnavailable = "media unavailable"
	CauseFFmpeg      = "ffmpeg missing or failed"
	CauseSpawn       = "extractor not installed"
)

var causePatterns = []struct {
	cause    string
	patterns []string
}{
	{CauseSpawn, []string{"failed to start extractor", "executable file not found"}},
	{CauseAuth, []string{"sign in to confirm", "cookies", "login required", "private video", "members-only", "age-restricted", "confirm your age"}},
	{CauseRateLimited, []string{"429", "too many requests", "rate limit", "rate-limit"}},
	{CauseNetwork, []string{"timed out", "connection refused", "connection reset", "name resolution", "network is unreachable", "unable to download webpage", "403", "forbidden", "proxy"}},
	{CauseUnavailable, []string{"video unavailable", "not available", "has been removed", "does not exist", "404"}},
	{CauseFFmpeg, []string{"ffmpeg", "ffprobe", "postprocessing"}},
}

// ClassifyCause maps raw extractor error text to a human-readable cause, or "".
func ClassifyCause(msg string) string {
	lower := strings.ToLower(msg)
	if lower == "" {
		return ""
	}
	for _, c := range causePatterns {
		for _, p := range c.patterns {
			if strings.Contains(lower, p) {
				return c.cause
			}
		}
	}
	return ""
}

var stalePatterns = []string{
	"unable to rename",
	"no such file",
	"cannot find the file",
	"unable to remove",
	"file is being used by another process",
	"permission denied",
}

// IsStaleFileError reports whether msg is one of the rename or cleanup errors the
// extractor prints after conversion already produced the final file.
func IsStaleFileError(msg string) bool {
	lower := strings.ToLower(msg)
	for _, p := range stalePatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
