package formatter

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/desertthunder/audiograb/internal/shared"
	"golang.org/x/time/rate"
)

const maxImageSize = 10 << 20

// ImageFetcher downloads thumbnails, at most rps requests per second.
type ImageFetcher struct {
	client  *http.Client
	limiter *rate.Limiter
}

// NewImageFetcher creates a fetcher. rps <= 0 disables the limit; a nil client gets a 30s timeout.
func NewImageFetcher(rps float64, client *http.Client) *ImageFetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &ImageFetcher{client: client, limiter: rate.NewLimiter(limit, 1)}
}

// Fetch downloads url and returns the body and its content type.
func (f *ImageFetcher) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	if url == "" {
		return nil, "", fmt.Errorf("empty URL provided")
	}
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image data: %w", err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// Save downloads url into dir as name plus an extension guessed from the response.
func (f *ImageFetcher) Save(ctx context.Context, url, dir, name string) (string, error) {
	data, contentType, err := f.Fetch(ctx, url)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	dst := filepath.Join(dir, shared.SanitizeFilename(name)+imageExt(contentType, url))
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to save image: %w", err)
	}
	return dst, nil
}

// DownloadImage downloads an image from the given URL and returns the raw bytes
func DownloadImage(url string) ([]byte, error) {
	data, _, err := NewImageFetcher(0, nil).Fetch(context.Background(), url)
	return data, err
}

func imageExt(contentType, url string) string {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		switch mt {
		case "image/jpeg":
			return ".jpg"
		case "image/png":
			return ".png"
		case "image/webp":
			return ".webp"
		}
	}
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		url = url[:i]
	}
	switch ext := strings.ToLower(path.Ext(url)); ext {
	case ".jpg", ".jpeg", ".png", ".webp":
		return ext
	}
	return ".jpg"
}
