package player

import (
	"errors"
	"sync"
	"time"
)

var ErrClosed = errors.New("player closed")

// Virtual plays an imaginary stream of a fixed duration against the wall
// clock. The agent uses it when no real player is attached, so the editor
// still has a position to sync and pause.
type Virtual struct {
	mu       sync.Mutex
	duration float64
	offset   float64
	anchor   time.Time
	playing  bool
	closed   bool
	now      func() time.Time

	subs listeners
	stop chan struct{}
	wg   sync.WaitGroup
}

type VirtualOption func(*Virtual)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) VirtualOption {
	return func(v *Virtual) { v.now = now }
}

func NewVirtual(duration float64, opts ...VirtualOption) *Virtual {
	v := &Virtual{duration: duration, now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Run emits a time update every interval while playing until Close.
func (v *Virtual) Run(interval time.Duration) {
	v.mu.Lock()
	if v.stop != nil || v.closed {
		v.mu.Unlock()
		return
	}
	v.stop = make(chan struct{})
	stop := v.stop
	v.mu.Unlock()

	v.wg.Add(1)
	go func() {
		defer v.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				v.Tick()
			}
		}
	}()
}

// Tick emits one time update if playing.
func (v *Virtual) Tick() {
	v.mu.Lock()
	if !v.playing || v.closed {
		v.mu.Unlock()
		return
	}
	t := v.currentLocked()
	v.mu.Unlock()
	v.subs.emit(t)
}

func (v *Virtual) currentLocked() float64 {
	t := v.offset
	if v.playing {
		t += v.now().Sub(v.anchor).Seconds()
	}
	if t >= v.duration {
		t = v.duration
		v.offset = t
		v.playing = false
	}
	return t
}

func (v *Virtual) CurrentTime() (float64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return 0, ErrClosed
	}
	return v.currentLocked(), nil
}

func (v *Virtual) Duration() (float64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return 0, ErrClosed
	}
	return v.duration, nil
}

func (v *Virtual) SetDuration(d float64) {
	v.mu.Lock()
	v.duration = d
	v.mu.Unlock()
}

func (v *Virtual) Playing() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.currentLocked()
	return v.playing
}

func (v *Virtual) Seek(t float64) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrClosed
	}
	if t < 0 {
		t = 0
	}
	if t > v.duration {
		t = v.duration
	}
	v.offset = t
	v.anchor = v.now()
	v.mu.Unlock()

	v.subs.emit(t)
	return nil
}

func (v *Virtual) Play() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return ErrClosed
	}
	if !v.playing {
		v.anchor = v.now()
		v.playing = true
	}
	return nil
}

func (v *Virtual) Pause() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return ErrClosed
	}
	v.offset = v.currentLocked()
	v.playing = false
	return nil
}

func (v *Virtual) OnTimeUpdate(fn func(float64)) func() {
	return v.subs.add(fn)
}

func (v *Virtual) Close() error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil
	}
	v.closed = true
	stop := v.stop
	v.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	v.wg.Wait()
	return nil
}
