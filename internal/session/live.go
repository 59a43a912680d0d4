package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cutdesk/cutdesk-agent/internal/gesture"
	"github.com/cutdesk/cutdesk-agent/internal/logging"
	"github.com/cutdesk/cutdesk-agent/internal/manifest"
	"github.com/cutdesk/cutdesk-agent/internal/playback"
	"github.com/cutdesk/cutdesk-agent/internal/thumbnails"
	"github.com/cutdesk/cutdesk-agent/internal/timeline"
)

// durationSetter is implemented by players whose duration can change after
// a manifest reload.
type durationSetter interface {
	SetDuration(d float64)
}

// Live is an open session.
type Live struct {
	svc    *Service
	editor *gesture.Editor
	player playback.Player
	thumbs *thumbnails.Loader
	logger *slog.Logger

	mu       sync.RWMutex
	session  Session
	playlist *manifest.Playlist

	// persistMu orders range snapshot writes.
	persistMu sync.Mutex
}

func (l *Live) ID() string {
	return l.Session().ID
}

func (l *Live) Session() Session {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.session
}

func (l *Live) Editor() *gesture.Editor {
	return l.editor
}

func (l *Live) Player() playback.Player {
	return l.player
}

func (l *Live) Playlist() *manifest.Playlist {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.playlist
}

func (l *Live) Ticks() []timeline.Tick {
	sess := l.Session()
	return timeline.Ticks(sess.Duration, l.editor.TrackWidth(), sess.TickInterval())
}

// Thumbnails returns the current strip; it is empty until a load succeeds.
func (l *Live) Thumbnails() thumbnails.Strip {
	if l.thumbs == nil {
		return thumbnails.Strip{Duration: l.Session().Duration}
	}
	return l.thumbs.Strip()
}

func (l *Live) ThumbnailImage(path string) ([]byte, string, bool) {
	if l.thumbs == nil {
		return nil, "", false
	}
	return l.thumbs.Image(path)
}

// SetTrack changes the track layout. A zero width or interval keeps the
// current value.
func (l *Live) SetTrack(ctx context.Context, widthPx float64, interval timeline.Interval) (Session, error) {
	if widthPx > 0 {
		if err := l.editor.SetTrackWidth(widthPx); err != nil {
			return l.Session(), err
		}
	}

	l.mu.Lock()
	if widthPx > 0 {
		l.session.TrackWidthPx = widthPx
	}
	if interval != 0 {
		l.session.TickIntervalMinutes = int(interval)
	}
	l.session.UpdatedAt = time.Now().UTC()
	sess := l.session
	l.mu.Unlock()

	if err := l.svc.repo.UpdateSession(ctx, &sess); err != nil {
		return sess, err
	}
	return sess, nil
}

func (l *Live) setPlaylist(ctx context.Context, pl *manifest.Playlist) {
	d := pl.Duration()

	l.mu.Lock()
	l.playlist = pl
	changed := validDuration(d) && !l.session.DurationPinned && d != l.session.Duration
	l.mu.Unlock()

	if !changed {
		return
	}
	if err := l.editor.SetDuration(d); err != nil {
		l.logger.Warn("new duration not applied", "duration", d, "error", err)
		return
	}

	l.mu.Lock()
	l.session.Duration = d
	l.session.UpdatedAt = time.Now().UTC()
	sess := l.session
	l.mu.Unlock()

	if ds, ok := l.player.(durationSetter); ok {
		ds.SetDuration(d)
	}
	if err := l.svc.repo.UpdateSession(ctx, &sess); err != nil {
		l.logger.Warn("failed to store new duration", "duration", d, "error", err)
	}
	l.logger.Info("media duration changed", "duration", d)
}

// persistRanges writes the current range snapshot. Snapshots are taken under
// persistMu so the last write always carries the latest state.
func (l *Live) persistRanges(c gesture.Change) {
	l.persistMu.Lock()
	defer l.persistMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	rs := l.editor.Set().ListSorted()
	if err := l.svc.repo.ReplaceRanges(ctx, l.ID(), rs); err != nil {
		l.logger.Error("failed to persist ranges", "change", string(c.Kind), "error", err)
		return
	}
	logging.WithRangeID(l.logger, c.Range.ID).Debug("ranges persisted", "change", string(c.Kind), "count", len(rs))
}

// loadThumbnails fills the strip, then puts the player back at the start if
// nobody moved it meanwhile.
func (l *Live) loadThumbnails(ctx context.Context) {
	ps := l.editor.Sync()
	before := ps.Position().CurrentTime

	if _, err := l.thumbs.Load(ctx, l.Session().Duration); err != nil {
		return
	}
	if ctx.Err() != nil {
		return
	}
	if ps.Position().CurrentTime == before && before != 0 {
		if _, err := ps.Seek(0); err != nil {
			l.logger.Debug("reset after thumbnails failed", "error", err)
		}
	}
}

func (l *Live) teardown() {
	l.editor.Close()
	if err := l.player.Close(); err != nil {
		l.logger.Warn("player close failed", "error", err)
	}
}
