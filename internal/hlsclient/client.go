// Package hlsclient talks to the media upstream that owns the source HLS
// playlist, accepts merged playlists and renders timeline thumbnails.
package hlsclient

import (
	"context"
	"fmt"

	"github.com/cutdesk/cutdesk-agent/internal/manifest"
)

const (
	PathManifest       = "/api/hls"
	PathUpdatePlaylist = "/api/hls/update"
	PathMergedPlaylist = "/api/updated_playlist.m3u8"
	PathThumbnails     = "/api/create/thumbnail"
)

// ManifestSource supplies the source playlist and accepts merged ones.
type ManifestSource interface {
	FetchManifest(ctx context.Context) (*manifest.Playlist, error)
	// PublishPlaylist stores a merged playlist and returns where it plays from.
	PublishPlaylist(ctx context.Context, content string) (string, error)
}

// ThumbnailSource renders frames for the timeline strip.
type ThumbnailSource interface {
	ThumbnailPaths(ctx context.Context, duration float64) ([]string, error)
	FetchThumbnail(ctx context.Context, path string) ([]byte, string, error)
}

type Client interface {
	ManifestSource
	ThumbnailSource
}

// UpdateError is a non-2xx answer from the upstream.
type UpdateError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *UpdateError) Error() string {
	return fmt.Sprintf("%s failed: HTTP %d: %s", e.Op, e.StatusCode, e.Body)
}

// IsRetryable is true for server side failures. Client errors are permanent.
func (e *UpdateError) IsRetryable() bool {
	return e.StatusCode >= 500
}
