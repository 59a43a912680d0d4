package hlsclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cutdesk/cutdesk-agent/internal/logging"
	"github.com/cutdesk/cutdesk-agent/internal/manifest"
)

const MergedPlaylistName = "updated_playlist.m3u8"

var ErrNoThumbnails = errors.New("no thumbnail directory configured")

// LocalClient serves the same contract from the filesystem: the source
// playlist is a file, merged playlists are written next to the media, and
// thumbnails are pre-rendered images in a directory.
type LocalClient struct {
	manifestPath  string
	publishDir    string
	publicURL     string
	thumbnailsDir string
	logger        *slog.Logger
}

type LocalConfig struct {
	ManifestPath string
	// PublishDir receives updated_playlist.m3u8.
	PublishDir string
	// PublicURL is where PublishDir is reachable by players.
	PublicURL     string
	ThumbnailsDir string
	Logger        *slog.Logger
}

func NewLocalClient(cfg LocalConfig) *LocalClient {
	return &LocalClient{
		manifestPath:  cfg.ManifestPath,
		publishDir:    cfg.PublishDir,
		publicURL:     strings.TrimRight(cfg.PublicURL, "/"),
		thumbnailsDir: cfg.ThumbnailsDir,
		logger:        logging.WithComponent(logging.OrDiscard(cfg.Logger), "hlsclient"),
	}
}

func (c *LocalClient) ManifestPath() string {
	return c.manifestPath
}

func (c *LocalClient) FetchManifest(ctx context.Context) (*manifest.Playlist, error) {
	f, err := os.Open(c.manifestPath)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()

	pl, err := manifest.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", logging.SanitizePath(c.manifestPath), err)
	}
	return pl, nil
}

// PublishPlaylist writes the playlist atomically via a temp file and rename.
func (c *LocalClient) PublishPlaylist(ctx context.Context, content string) (string, error) {
	if err := os.MkdirAll(c.publishDir, 0755); err != nil {
		return "", fmt.Errorf("create publish dir: %w", err)
	}

	tmp, err := os.CreateTemp(c.publishDir, ".playlist-*")
	if err != nil {
		return "", fmt.Errorf("create temp playlist: %w", err)
	}
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write playlist: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close playlist: %w", err)
	}

	dst := filepath.Join(c.publishDir, MergedPlaylistName)
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("publish playlist: %w", err)
	}

	c.logger.Info("published merged playlist", "path", logging.SanitizePath(dst), "bytes", len(content))
	if c.publicURL == "" {
		return dst, nil
	}
	return c.publicURL + "/" + MergedPlaylistName, nil
}

// ThumbnailPaths lists image files in name order. The duration is unused;
// the images are assumed to be evenly spaced over the media.
func (c *LocalClient) ThumbnailPaths(ctx context.Context, duration float64) ([]string, error) {
	if c.thumbnailsDir == "" {
		return nil, ErrNoThumbnails
	}
	entries, err := os.ReadDir(c.thumbnailsDir)
	if err != nil {
		return nil, fmt.Errorf("read thumbnails dir: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasPrefix(mime.TypeByExtension(filepath.Ext(e.Name())), "image/") {
			paths = append(paths, e.Name())
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func (c *LocalClient) FetchThumbnail(ctx context.Context, path string) ([]byte, string, error) {
	if c.thumbnailsDir == "" {
		return nil, "", ErrNoThumbnails
	}
	if path != filepath.Base(path) || path == "." || path == ".." {
		return nil, "", fmt.Errorf("invalid thumbnail path %q", path)
	}
	data, err := os.ReadFile(filepath.Join(c.thumbnailsDir, path))
	if err != nil {
		return nil, "", fmt.Errorf("read thumbnail: %w", err)
	}
	ct := mime.TypeByExtension(filepath.Ext(path))
	if ct == "" {
		ct = "application/octet-stream"
	}
	return data, ct, nil
}
