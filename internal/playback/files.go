package playback

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cutdesk/cutdesk-agent/internal/logging"
)

const (
	ContentTypePlaylist = "application/vnd.apple.mpegurl"
	ContentTypeSegment  = "video/mp2t"
)

var ErrOutsideRoot = errors.New("path escapes media root")

// MediaServer serves playlists and segments from a media directory, with
// byte-range support for players that probe segments.
type MediaServer struct {
	root   string
	logger *slog.Logger
}

func NewMediaServer(root string, logger *slog.Logger) *MediaServer {
	return &MediaServer{root: root, logger: logging.OrDiscard(logger)}
}

func (s *MediaServer) Root() string {
	return s.root
}

// Resolve maps a slash separated name to a path inside the media root.
func (s *MediaServer) Resolve(name string) (string, error) {
	if s.root == "" {
		return "", ErrOutsideRoot
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return "", ErrOutsideRoot
		}
	}
	clean := path.Clean("/" + name)
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

// ContentType picks the HLS content type by extension.
func ContentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".m3u8":
		return ContentTypePlaylist
	case ".ts":
		return ContentTypeSegment
	}
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// ServeFile writes the named file. Errors already answered on w are not returned.
func (s *MediaServer) ServeFile(w http.ResponseWriter, r *http.Request, name string) error {
	p, err := s.Resolve(name)
	if err != nil {
		http.Error(w, "forbidden", http.StatusForbidden)
		return nil
	}

	file, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			http.Error(w, "file not found", http.StatusNotFound)
			return nil
		}
		return fmt.Errorf("open media file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat media file: %w", err)
	}
	if stat.IsDir() {
		http.Error(w, "file not found", http.StatusNotFound)
		return nil
	}

	size := stat.Size()
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", ContentType(p))
	if strings.EqualFold(filepath.Ext(p), ".m3u8") {
		w.Header().Set("Cache-Control", "no-cache")
	}

	br, err := ParseByteRange(r.Header.Get("Range"), size)
	if errors.Is(err, ErrUnsatisfiable) {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		http.Error(w, "Range Not Satisfiable", http.StatusRequestedRangeNotSatisfiable)
		return nil
	}

	// Malformed Range headers fall back to a full response.
	if br == nil {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		if _, err := io.Copy(w, file); err != nil {
			s.logger.Debug("media copy interrupted", "path", logging.SanitizePath(p), "error", err)
		}
		return nil
	}

	if _, err := file.Seek(br.Start, io.SeekStart); err != nil {
		return fmt.Errorf("seek media file: %w", err)
	}
	w.Header().Set("Content-Length", strconv.FormatInt(br.ContentLength(), 10))
	w.Header().Set("Content-Range", br.ContentRange(size))
	w.WriteHeader(http.StatusPartialContent)
	if _, err := io.CopyN(w, file, br.ContentLength()); err != nil {
		s.logger.Debug("media copy interrupted", "path", logging.SanitizePath(p), "error", err)
	}
	return nil
}
