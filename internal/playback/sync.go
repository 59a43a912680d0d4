package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cutdesk/cutdesk-agent/internal/logging"
)

const DefaultFrameInterval = 16 * time.Millisecond

var (
	ErrNoDuration   = errors.New("player duration is not known yet")
	ErrNotScrubbing = errors.New("no scrub in progress")
)

// Sync polls the player once per frame and publishes its current time,
// except while the marker is being scrubbed: then the pending scrub value is
// the published position and the player is left alone until the scrub is
// committed.
type Sync struct {
	player   Player
	interval time.Duration
	logger   *slog.Logger

	mu        sync.Mutex
	pos       Position
	scrubbing bool
	pending   float64
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewSync(player Player, interval time.Duration, logger *slog.Logger) *Sync {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &Sync{
		player:   player,
		interval: interval,
		logger:   logging.OrDiscard(logger),
	}
}

// Start launches the frame loop once the player reports a positive duration.
// Calling Start on a running loop is a no-op.
func (s *Sync) Start(ctx context.Context) error {
	d, err := s.player.Duration()
	if err != nil {
		return fmt.Errorf("read duration: %w", err)
	}
	if d <= 0 {
		return ErrNoDuration
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return nil
	}
	s.pos.Duration = d
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	go s.loop(loopCtx, done)
	s.logger.Debug("position sync started", "duration", d, "interval", s.interval)
	return nil
}

func (s *Sync) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Frame()
		}
	}
}

// Stop cancels the loop and waits for it to exit.
func (s *Sync) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Debug("position sync stopped")
}

func (s *Sync) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Frame performs one sync step.
func (s *Sync) Frame() {
	s.mu.Lock()
	scrubbing := s.scrubbing
	s.mu.Unlock()
	if scrubbing {
		return
	}

	t, err := s.player.CurrentTime()
	if err != nil {
		s.logger.Debug("read current time failed", "error", err)
		return
	}

	s.mu.Lock()
	if !s.scrubbing {
		s.pos.CurrentTime = s.pos.Clamp(t)
	}
	s.mu.Unlock()
}

// Position returns the published position. During a scrub the pending time
// is reported.
func (s *Sync) Position() Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.pos
	if s.scrubbing {
		p.CurrentTime = s.pending
	}
	return p
}

func (s *Sync) SetDuration(d float64) {
	s.mu.Lock()
	s.pos.Duration = d
	s.pos.CurrentTime = s.pos.Clamp(s.pos.CurrentTime)
	s.mu.Unlock()
}

// Seek moves the player and publishes the new position without waiting for
// the next frame.
func (s *Sync) Seek(t float64) (float64, error) {
	s.mu.Lock()
	t = s.pos.Clamp(t)
	s.pos.CurrentTime = t
	s.mu.Unlock()

	if err := s.player.Seek(t); err != nil {
		return t, fmt.Errorf("seek player: %w", err)
	}
	return t, nil
}

func (s *Sync) BeginScrub(t float64) {
	s.mu.Lock()
	s.scrubbing = true
	s.pending = s.pos.Clamp(t)
	s.mu.Unlock()
}

func (s *Sync) UpdateScrub(t float64) {
	s.mu.Lock()
	if s.scrubbing {
		s.pending = s.pos.Clamp(t)
	}
	s.mu.Unlock()
}

// CommitScrub ends the scrub and seeks the player to the pending time.
func (s *Sync) CommitScrub() (float64, error) {
	s.mu.Lock()
	if !s.scrubbing {
		s.mu.Unlock()
		return 0, ErrNotScrubbing
	}
	t := s.pending
	s.scrubbing = false
	s.pos.CurrentTime = t
	s.mu.Unlock()

	if err := s.player.Seek(t); err != nil {
		return t, fmt.Errorf("seek player: %w", err)
	}
	return t, nil
}

// CancelScrub drops the pending time; the next frame resyncs from the player.
func (s *Sync) CancelScrub() {
	s.mu.Lock()
	s.scrubbing = false
	s.mu.Unlock()
}

func (s *Sync) Scrubbing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scrubbing
}
