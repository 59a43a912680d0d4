package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/cutdesk/cutdesk-agent/internal/gesture"
	"github.com/cutdesk/cutdesk-agent/internal/hlsclient"
	"github.com/cutdesk/cutdesk-agent/internal/id"
	"github.com/cutdesk/cutdesk-agent/internal/logging"
	"github.com/cutdesk/cutdesk-agent/internal/manifest"
	"github.com/cutdesk/cutdesk-agent/internal/playback"
	"github.com/cutdesk/cutdesk-agent/internal/ranges"
	"github.com/cutdesk/cutdesk-agent/internal/stitch"
	"github.com/cutdesk/cutdesk-agent/internal/thumbnails"
	"github.com/cutdesk/cutdesk-agent/internal/timeline"
)

const (
	DefaultTrackWidthPx = 1000.0
	persistTimeout      = 5 * time.Second
)

var (
	ErrNotFound   = errors.New("session not found")
	ErrNoDuration = errors.New("media duration unknown")
	// ErrUpstream wraps failures of the manifest collaborator.
	ErrUpstream = errors.New("upstream unavailable")
)

// PlayerFactory attaches a player to a session's media.
type PlayerFactory func(ctx context.Context, s Session) (playback.Player, error)

type Config struct {
	Repository Repository
	Manifests  hlsclient.ManifestSource
	// Thumbnails may be nil; sessions then have an empty strip.
	Thumbnails hlsclient.ThumbnailSource
	NewPlayer  PlayerFactory

	Ranges         ranges.Options
	Gesture        gesture.Config
	FrameInterval  time.Duration
	ThumbnailLimit int
	TrackWidthPx   float64
	TickInterval   timeline.Interval
	Logger         *slog.Logger
}

// Service owns the open review sessions. Each live session has its own
// range set, player, position sync and gesture editor.
type Service struct {
	cfg    Config
	repo   Repository
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu   sync.RWMutex
	live map[string]*Live
}

func NewService(cfg Config) *Service {
	if cfg.TrackWidthPx <= 0 {
		cfg.TrackWidthPx = DefaultTrackWidthPx
	}
	if cfg.TickInterval == 0 {
		cfg.TickInterval = timeline.DefaultInterval
	}
	logger := logging.WithComponent(logging.OrDiscard(cfg.Logger), "session")
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		cfg:    cfg,
		repo:   cfg.Repository,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		live:   make(map[string]*Live),
	}
}

type OpenRequest struct {
	Source string
	// Duration overrides the manifest's total when positive and finite.
	Duration            float64
	TrackWidthPx        float64
	TickIntervalMinutes int
}

func validDuration(d float64) bool {
	return d > 0 && !math.IsInf(d, 0)
}

// Open starts a new session for req.Source.
func (s *Service) Open(ctx context.Context, req OpenRequest) (*Live, error) {
	interval := s.cfg.TickInterval
	if req.TickIntervalMinutes != 0 {
		iv, err := timeline.ParseInterval(req.TickIntervalMinutes)
		if err != nil {
			return nil, err
		}
		interval = iv
	}
	width := req.TrackWidthPx
	if width <= 0 {
		width = s.cfg.TrackWidthPx
	}

	pinned := validDuration(req.Duration)
	pl, err := s.cfg.Manifests.FetchManifest(ctx)
	if err != nil {
		if !pinned {
			return nil, fmt.Errorf("%w: fetch manifest: %w", ErrUpstream, err)
		}
		s.logger.Warn("manifest unavailable, opening without segments", "source", req.Source, "error", err)
		pl = nil
	}

	duration := req.Duration
	if !pinned && pl != nil {
		duration = pl.Duration()
	}
	if !validDuration(duration) {
		return nil, ErrNoDuration
	}

	sesID, err := id.Generate(id.PrefixSession)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	sess := Session{
		ID:                  sesID,
		Source:              req.Source,
		Duration:            duration,
		DurationPinned:      pinned,
		TrackWidthPx:        width,
		TickIntervalMinutes: int(interval),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.repo.CreateSession(ctx, &sess); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}

	l, err := s.start(sess, pl, nil)
	if err != nil {
		if derr := s.repo.DeleteSession(ctx, sess.ID); derr != nil {
			s.logger.Warn("failed to remove half-open session", "session_id", sess.ID, "error", derr)
		}
		return nil, err
	}
	s.logger.Info("session opened", "session_id", sess.ID, "source", sess.Source, "duration", duration)
	return l, nil
}

// Load reopens every persisted session with its stored ranges. Sessions
// whose player cannot be attached are skipped.
func (s *Service) Load(ctx context.Context) (int, error) {
	stored, err := s.repo.ListSessions(ctx)
	if err != nil {
		return 0, fmt.Errorf("list sessions: %w", err)
	}
	if len(stored) == 0 {
		return 0, nil
	}

	pl, err := s.cfg.Manifests.FetchManifest(ctx)
	if err != nil {
		s.logger.Warn("manifest unavailable while restoring sessions", "error", err)
		pl = nil
	}

	n := 0
	for _, sess := range stored {
		rs, err := s.repo.ListRanges(ctx, sess.ID)
		if err != nil {
			return n, fmt.Errorf("list ranges for %s: %w", sess.ID, err)
		}
		if _, err := s.start(*sess, pl, rs); err != nil {
			s.logger.Warn("failed to restore session", "session_id", sess.ID, "error", err)
			continue
		}
		n++
	}
	s.logger.Info("sessions restored", "count", n)
	return n, nil
}

func (s *Service) start(sess Session, pl *manifest.Playlist, stored []ranges.Range) (*Live, error) {
	logger := logging.WithSessionID(s.logger, sess.ID)

	p, err := s.cfg.NewPlayer(s.ctx, sess)
	if err != nil {
		return nil, fmt.Errorf("attach player: %w", err)
	}

	set := ranges.NewSet(sess.Duration, s.cfg.Ranges)
	if len(stored) > 0 {
		if err := set.Restore(stored); err != nil {
			logger.Warn("stored ranges rejected, starting empty", "error", err)
		}
	}

	l := &Live{session: sess, playlist: pl, player: p, logger: logger, svc: s}

	ps := playback.NewSync(p, s.cfg.FrameInterval, logger)
	ps.SetDuration(sess.Duration)

	gcfg := s.cfg.Gesture
	gcfg.TrackWidthPx = sess.TrackWidthPx
	gcfg.Logger = logger
	gcfg.OnCommit = func(c gesture.Change) {
		l.persistRanges(c)
	}
	l.editor = gesture.NewEditor(set, p, ps, gcfg)

	if err := ps.Start(s.ctx); err != nil {
		logger.Warn("position sync not started", "error", err)
	}

	if s.cfg.Thumbnails != nil {
		l.thumbs = thumbnails.NewLoader(s.cfg.Thumbnails, s.cfg.ThumbnailLimit, logger)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			l.loadThumbnails(s.ctx)
		}()
	}

	s.mu.Lock()
	s.live[sess.ID] = l
	s.mu.Unlock()
	return l, nil
}

func (s *Service) Get(sessionID string) (*Live, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.live[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	return l, nil
}

// List returns open sessions, oldest first.
func (s *Service) List() []Session {
	s.mu.RLock()
	out := make([]Session, 0, len(s.live))
	for _, l := range s.live {
		out = append(out, l.Session())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (s *Service) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{Sessions: len(s.live)}
	for _, l := range s.live {
		st.Ranges += l.editor.Set().Len()
	}
	return st
}

// PauseAll pauses every live player and returns how many accepted it.
func (s *Service) PauseAll() int {
	s.mu.RLock()
	live := make([]*Live, 0, len(s.live))
	for _, l := range s.live {
		live = append(live, l)
	}
	s.mu.RUnlock()

	n := 0
	for _, l := range live {
		if err := l.player.Pause(); err != nil {
			l.logger.Warn("pause failed", "error", err)
			continue
		}
		n++
	}
	return n
}

// Close tears down a session and deletes it with its ranges and merges.
func (s *Service) Close(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	l, ok := s.live[sessionID]
	delete(s.live, sessionID)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}

	l.teardown()
	if err := s.repo.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	s.logger.Info("session closed", "session_id", sessionID)
	return nil
}

// Shutdown tears down every live session but keeps them stored, then waits
// for background loads to finish.
func (s *Service) Shutdown() {
	s.mu.Lock()
	live := s.live
	s.live = make(map[string]*Live)
	s.mu.Unlock()

	for _, l := range live {
		l.teardown()
	}
	s.cancel()
	s.wg.Wait()
	s.logger.Info("sessions shut down", "count", len(live))
}

// ReloadManifest refetches the source manifest and hands it to every open
// session. A changed total duration is applied to sessions whose duration
// came from the manifest; pinned sessions keep theirs. A shorter duration
// trims ranges as Editor.SetDuration describes.
func (s *Service) ReloadManifest(ctx context.Context) error {
	pl, err := s.cfg.Manifests.FetchManifest(ctx)
	if err != nil {
		return fmt.Errorf("%w: fetch manifest: %w", ErrUpstream, err)
	}

	s.mu.RLock()
	live := make([]*Live, 0, len(s.live))
	for _, l := range s.live {
		live = append(live, l)
	}
	s.mu.RUnlock()

	for _, l := range live {
		l.setPlaylist(ctx, pl)
	}
	s.logger.Info("manifest reloaded", "segments", len(pl.Segments), "duration", pl.Duration(), "sessions", len(live))
	return nil
}

// Merge stitches the session's ranges into a playlist and publishes it.
// The merge is recorded whether publishing succeeds or not.
func (s *Service) Merge(ctx context.Context, sessionID string) (*Merge, error) {
	l, err := s.Get(sessionID)
	if err != nil {
		return nil, err
	}

	rs := l.editor.Set().ListSorted()
	if len(rs) == 0 {
		return nil, stitch.ErrNoRanges
	}

	pl := l.Playlist()
	if pl == nil {
		pl, err = s.cfg.Manifests.FetchManifest(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: fetch manifest: %w", ErrUpstream, err)
		}
		l.setPlaylist(ctx, pl)
	}

	el, err := stitch.Build(rs, pl)
	if err != nil {
		return nil, err
	}
	stats := el.Stats()

	mergeID, err := id.Generate(id.PrefixMerge)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	m := &Merge{
		ID:              mergeID,
		SessionID:       sessionID,
		Status:          MergeStatusRunning,
		SegmentCount:    stats.Segments,
		Discontinuities: stats.Discontinuities,
		Duration:        stats.Duration,
		Playlist:        el.Render(),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.CreateMerge(ctx, m); err != nil {
		return nil, fmt.Errorf("store merge: %w", err)
	}

	url, perr := s.cfg.Manifests.PublishPlaylist(ctx, m.Playlist)
	m.UpdatedAt = time.Now().UTC()
	if perr != nil {
		m.Status = MergeStatusFailed
		m.Error = perr.Error()
	} else {
		m.Status = MergeStatusPublished
		m.PlaylistURL = url
	}
	if err := s.repo.UpdateMerge(ctx, m); err != nil {
		l.logger.Warn("failed to record merge result", "merge_id", m.ID, "error", err)
	}

	if perr != nil {
		l.logger.Error("merge publish failed", "merge_id", m.ID, "error", perr)
		return m, fmt.Errorf("%w: publish playlist: %w", ErrUpstream, perr)
	}
	l.logger.Info("merge published",
		"merge_id", m.ID,
		"segments", stats.Segments,
		"discontinuities", stats.Discontinuities,
		"url", url,
	)
	return m, nil
}

func (s *Service) Merges(ctx context.Context, sessionID string, limit int) ([]*Merge, error) {
	if _, err := s.Get(sessionID); err != nil {
		return nil, err
	}
	return s.repo.ListMerges(ctx, sessionID, limit)
}

// GetMerge returns nil, nil for an unknown id.
func (s *Service) GetMerge(ctx context.Context, mergeID string) (*Merge, error) {
	return s.repo.GetMerge(ctx, mergeID)
}
