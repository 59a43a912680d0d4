package hlsclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/cutdesk/cutdesk-agent/internal/logging"
	"github.com/cutdesk/cutdesk-agent/internal/manifest"
)

const (
	maxManifestBytes  = 16 << 20
	maxThumbnailBytes = 8 << 20
	maxErrorBody      = 4096
)

type updateRequest struct {
	M3U8Content string `json:"m3u8Content"`
}

type thumbnailsRequest struct {
	Duration float64 `json:"duration"`
}

type thumbnailsResponse struct {
	ImagePaths []string `json:"imagePaths"`
}

type thumbnailRequest struct {
	Path string `json:"path"`
}

// HTTPClient calls the upstream media server. Requests share one rate limiter
// so a dragging operator cannot flood the upstream with thumbnail fetches.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewHTTPClient builds a client. A non-positive rps disables limiting.
func NewHTTPClient(baseURL, token string, rps float64, burst int, logger *slog.Logger) *HTTPClient {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst < 1 {
		burst = 1
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		limiter:    rate.NewLimiter(limit, burst),
		logger:     logging.WithComponent(logging.OrDiscard(logger), "hlsclient"),
	}
}

func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

func (c *HTTPClient) do(ctx context.Context, op, method, path string, body any) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s: rate limit: %w", op, err)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: marshal request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: http request failed: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &UpdateError{Op: op, StatusCode: resp.StatusCode, Body: string(b)}
	}
	return resp, nil
}

func (c *HTTPClient) FetchManifest(ctx context.Context) (*manifest.Playlist, error) {
	resp, err := c.do(ctx, "fetch manifest", http.MethodGet, PathManifest, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	pl, err := manifest.Parse(io.LimitReader(resp.Body, maxManifestBytes))
	if err != nil {
		return nil, fmt.Errorf("parse upstream manifest: %w", err)
	}
	c.logger.Info("fetched manifest", "segments", len(pl.Segments), "duration", pl.Duration())
	return pl, nil
}

func (c *HTTPClient) PublishPlaylist(ctx context.Context, content string) (string, error) {
	resp, err := c.do(ctx, "publish playlist", http.MethodPost, PathUpdatePlaylist, updateRequest{M3U8Content: content})
	if err != nil {
		return "", err
	}
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()

	c.logger.Info("published merged playlist", "bytes", len(content))
	return c.baseURL + PathMergedPlaylist, nil
}

func (c *HTTPClient) ThumbnailPaths(ctx context.Context, duration float64) ([]string, error) {
	resp, err := c.do(ctx, "list thumbnails", http.MethodPost, PathThumbnails, thumbnailsRequest{Duration: duration})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out thumbnailsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode thumbnail paths: %w", err)
	}
	return out.ImagePaths, nil
}

func (c *HTTPClient) FetchThumbnail(ctx context.Context, path string) ([]byte, string, error) {
	escaped := strings.TrimLeft(path, "/")
	parts := strings.Split(escaped, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}

	resp, err := c.do(ctx, "fetch thumbnail", http.MethodPost, PathThumbnails+"/"+strings.Join(parts, "/"), thumbnailRequest{Path: path})
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxThumbnailBytes))
	if err != nil {
		return nil, "", fmt.Errorf("read thumbnail: %w", err)
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = http.DetectContentType(data)
	}
	return data, ct, nil
}
