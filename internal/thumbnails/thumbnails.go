// Package thumbnails lays out the timeline's thumbnail strip and prefetches
// the frame images from the thumbnail collaborator.
package thumbnails

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/cutdesk/cutdesk-agent/internal/hlsclient"
	"github.com/cutdesk/cutdesk-agent/internal/logging"
	"github.com/cutdesk/cutdesk-agent/internal/timeline"
)

const DefaultConcurrency = 4

type Frame struct {
	Index int     `json:"index"`
	Path  string  `json:"path"`
	Time  float64 `json:"time"`
	Label string  `json:"label"`
}

// Strip is the presentation state of the thumbnail row. Ready is false until
// a load has completed successfully; a failed load leaves it empty.
type Strip struct {
	Duration float64 `json:"duration"`
	Frames   []Frame `json:"frames"`
	Ready    bool    `json:"ready"`
}

// Layout spaces frames evenly: frame i of n sits at duration/n*i.
// With limit > 0 at most limit paths are kept, sampled evenly.
func Layout(paths []string, duration float64, limit int) []Frame {
	if limit > 0 && len(paths) > limit {
		sampled := make([]string, limit)
		for i := range sampled {
			sampled[i] = paths[i*len(paths)/limit]
		}
		paths = sampled
	}

	frames := make([]Frame, len(paths))
	for i, p := range paths {
		t := duration / float64(len(paths)) * float64(i)
		frames[i] = Frame{Index: i, Path: p, Time: t, Label: timeline.FormatDuration(t)}
	}
	return frames
}

type image struct {
	data        []byte
	contentType string
}

// Loader fetches frames with bounded concurrency and keeps them in memory.
type Loader struct {
	src         hlsclient.ThumbnailSource
	limit       int
	concurrency int
	logger      *slog.Logger

	mu     sync.RWMutex
	strip  Strip
	images map[string]image
}

func NewLoader(src hlsclient.ThumbnailSource, limit int, logger *slog.Logger) *Loader {
	return &Loader{
		src:         src,
		limit:       limit,
		concurrency: DefaultConcurrency,
		logger:      logging.WithComponent(logging.OrDiscard(logger), "thumbnails"),
		images:      make(map[string]image),
	}
}

// Load replaces the strip for a media of the given duration. On failure the
// error is logged, the strip is left empty and the error returned.
func (l *Loader) Load(ctx context.Context, duration float64) (Strip, error) {
	paths, err := l.src.ThumbnailPaths(ctx, duration)
	if err != nil {
		l.fail(duration, err)
		return l.Strip(), fmt.Errorf("list thumbnails: %w", err)
	}
	frames := Layout(paths, duration, l.limit)

	fetched := make([]image, len(frames))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for i, f := range frames {
		g.Go(func() error {
			data, ct, err := l.src.FetchThumbnail(gctx, f.Path)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", f.Path, err)
			}
			fetched[i] = image{data: data, contentType: ct}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		l.fail(duration, err)
		return l.Strip(), err
	}

	l.mu.Lock()
	l.images = make(map[string]image, len(frames))
	for i, f := range frames {
		l.images[f.Path] = fetched[i]
	}
	l.strip = Strip{Duration: duration, Frames: frames, Ready: true}
	strip := l.strip
	l.mu.Unlock()

	l.logger.Info("thumbnail strip loaded", "frames", len(frames), "duration", duration)
	return strip, nil
}

func (l *Loader) fail(duration float64, err error) {
	l.logger.Warn("thumbnail strip unavailable", "error", err)
	l.mu.Lock()
	l.strip = Strip{Duration: duration}
	l.images = make(map[string]image)
	l.mu.Unlock()
}

func (l *Loader) Strip() Strip {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s := l.strip
	s.Frames = append([]Frame(nil), s.Frames...)
	return s
}

// Image returns a cached frame image.
func (l *Loader) Image(path string) ([]byte, string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	img, ok := l.images[path]
	return img.data, img.contentType, ok
}
