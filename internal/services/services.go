// package services defines the collaborators the download engine talks to
package services

import (
	"context"

	"github.com/desertthunder/audiograb/internal/models"
)

// Prefetcher loads collection metadata for a URL before any download starts. The item
// count of the result decides whether the task is a single file or a playlist.
type Prefetcher interface {
	// Prefetch returns the ordered items of url. A non-nil error may come with a partial
	// [models.PlaylistInfo] whose Error field describes the failure.
	Prefetch(ctx context.Context, url string) (*models.PlaylistInfo, error)

	// Name returns the name of the prefetcher (e.g., "command", "youtube")
	Name() string
}

// PrefetchFunc adapts a function to [Prefetcher].
type PrefetchFunc func(ctx context.Context, url string) (*models.PlaylistInfo, error)

func (f PrefetchFunc) Prefetch(ctx context.Context, url string) (*models.PlaylistInfo, error) {
	return f(ctx, url)
}

func (f PrefetchFunc) Name() string { return "func" }
