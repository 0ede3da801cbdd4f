package images

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/coursesnap/coursesnap/internal/models"
)

// Fetcher downloads screenshots referenced by URL
type Fetcher struct {
	HTTPClient *http.Client
}

// NewFetcher creates a new image fetcher
func NewFetcher() *Fetcher {
	return &Fetcher{
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Fetch downloads one image. Non-image responses are rejected with ErrNotImage.
func (f *Fetcher) Fetch(ctx context.Context, url string) (models.Image, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return models.Image{}, fmt.Errorf("unsupported image URL %q", url)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return models.Image{}, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return models.Image{}, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.Image{}, fmt.Errorf("image URL returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageSize+1))
	if err != nil {
		return models.Image{}, fmt.Errorf("failed to read image data: %w", err)
	}

	name := path.Base(req.URL.Path)
	if name == "/" || name == "." {
		name = req.URL.Host
	}
	img, err := FromBytes(name, data)
	if err != nil {
		return models.Image{}, err
	}
	slog.Debug("Fetched image", "url", url, "bytes", len(data))
	return img, nil
}
