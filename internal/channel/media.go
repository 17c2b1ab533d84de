package channel

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"voicerelay/internal/domain"
)

// MediaClientConfig configures the Graph API media fetcher.
type MediaClientConfig struct {
	APIBase     string // e.g. https://graph.facebook.com/v20.0
	AccessToken string
	Logger      *slog.Logger
	HTTPClient  *http.Client // optional, for tests
}

// MediaClient resolves a media id to its bytes in two steps: metadata fetch
// for the short-lived signed URL, then the download itself. Both carry the
// bearer token. It implements domain.MediaFetcher.
type MediaClient struct {
	apiBase string
	token   string
	client  *http.Client
	logger  *slog.Logger
}

func NewMediaClient(cfg MediaClientConfig) *MediaClient {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &MediaClient{
		apiBase: cfg.APIBase,
		token:   cfg.AccessToken,
		client:  client,
		logger:  cfg.Logger,
	}
}

// mediaMetadata is the Graph API response for GET /{media_id}.
type mediaMetadata struct {
	MimeType string `json:"mime_type"`
	URL      string `json:"url"`
}

// Fetch downloads the media identified by mediaID.
func (c *MediaClient) Fetch(ctx context.Context, mediaID string) (domain.MediaBlob, error) {
	meta, err := c.metadata(ctx, mediaID)
	if err != nil {
		return domain.MediaBlob{}, err
	}
	if meta.URL == "" {
		return domain.MediaBlob{}, domain.Upstream("media",
			fmt.Errorf("metadata for %s has no download URL", mediaID))
	}

	data, err := c.download(ctx, meta.URL)
	if err != nil {
		return domain.MediaBlob{}, err
	}

	c.logger.Info("media downloaded",
		"media_id", mediaID, "mime_type", meta.MimeType, "bytes", len(data))

	return domain.MediaBlob{Data: data, MimeType: meta.MimeType}, nil
}

func (c *MediaClient) metadata(ctx context.Context, mediaID string) (mediaMetadata, error) {
	url := fmt.Sprintf("%s/%s", c.apiBase, mediaID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return mediaMetadata{}, fmt.Errorf("build metadata request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return mediaMetadata{}, domain.Upstream("media", fmt.Errorf("metadata fetch: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return mediaMetadata{}, domain.Upstream("media",
			fmt.Errorf("metadata fetch %d: %s", resp.StatusCode, drainBody(resp.Body)))
	}

	var meta mediaMetadata
	if err := decodeJSON(resp.Body, &meta); err != nil {
		return mediaMetadata{}, domain.Upstream("media", fmt.Errorf("decode metadata: %w", err))
	}
	return meta, nil
}

func (c *MediaClient) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, domain.Upstream("media", fmt.Errorf("download: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, domain.Upstream("media",
			fmt.Errorf("download %d: %s", resp.StatusCode, drainBody(resp.Body)))
	}

	return io.ReadAll(resp.Body)
}
