package models

import (
	"net/url"
	"strings"
)

// Platform identifiers used for thumbnail selection, history and display.
const (
	PlatformYouTube    = "youtube"
	PlatformSoundCloud = "soundcloud"
	PlatformBandcamp   = "bandcamp"
	PlatformVimeo      = "vimeo"
	PlatformGeneric    = "generic"
)

var platformHosts = []struct {
	suffix   string
	platform string
}{
	{"youtube.com", PlatformYouTube},
	{"youtu.be", PlatformYouTube},
	{"youtube-nocookie.com", PlatformYouTube},
	{"soundcloud.com", PlatformSoundCloud},
	{"snd.sc", PlatformSoundCloud},
	{"bandcamp.com", PlatformBandcamp},
	{"vimeo.com", PlatformVimeo},
}

// DetectPlatform maps a URL to the platform family that hosts it.
func DetectPlatform(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return PlatformGeneric
	}

	host := strings.ToLower(u.Hostname())
	for _, h := range platformHosts {
		if host == h.suffix || strings.HasSuffix(host, "."+h.suffix) {
			return h.platform
		}
	}
	return PlatformGeneric
}

// ValidateURL checks that raw is an absolute http(s) URL.
func ValidateURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return &InvalidURLError{URL: raw, Reason: err.Error()}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &InvalidURLError{URL: raw, Reason: "scheme must be http or https"}
	}
	if u.Host == "" {
		return &InvalidURLError{URL: raw, Reason: "missing host"}
	}
	return nil
}

// InvalidURLError describes a URL the engine refuses to submit.
type InvalidURLError struct {
	URL    string
	Reason string
}

func (e *InvalidURLError) Error() string {
	return "invalid url " + e.URL + ": " + e.Reason
}
