// Package services implements the external collaborators of the download engine.
//
// # Metadata Prefetch
//
// A [Prefetcher] returns a [models.PlaylistInfo] for a URL before the extractor is started:
//   - [CommandPrefetcher] runs the extractor with -J --flat-playlist and a socket timeout
//   - [YouTubePrefetcher] talks to YouTube directly for list= URLs
//   - [ChainPrefetcher] tries each in order and returns the first usable result
//
// A result with at most one item marks the task as a single file. When items arrive
// without a collection name, [DerivePlaylistTitle] makes one up from the item titles.
//
// # Remote API
//
// [APIService] is the HTTP client for a running `audiograb serve` instance. Non-2xx
// responses are returned as [shared.ErrAPIRequest] with the server's error message.
package services
