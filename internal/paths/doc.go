// Package paths maps what the extractor reports onto files that exist.
//
// The extractor often reports the pre-conversion container (Song.webm) while only the
// converted file (Song.mp3) survives. The reported name is trusted first, then the
// directory is searched. Playlist items are matched by stored path, sanitized title and
// finally by a two-digit ordinal prefix, each file claimed by one item at most.
package paths
