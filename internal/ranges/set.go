package ranges

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/cutdesk/cutdesk-agent/internal/id"
)

// Options tunes the policy constants of a Set. Zero values take defaults.
type Options struct {
	TouchEpsilon float64
	MinSpan      float64
	// NewID overrides id generation, mostly for tests.
	NewID func() (string, error)
}

func (o Options) withDefaults() Options {
	if o.TouchEpsilon <= 0 {
		o.TouchEpsilon = DefaultTouchEpsilon
	}
	if o.MinSpan <= 0 {
		o.MinSpan = DefaultMinSpan
	}
	if o.NewID == nil {
		o.NewID = func() (string, error) { return id.Generate(id.PrefixRange) }
	}
	return o
}

// Set is safe for concurrent use. Ranges are kept in insertion order;
// ListSorted gives the start-ordered view.
type Set struct {
	mu       sync.RWMutex
	opts     Options
	duration float64
	items    []Range
}

func NewSet(duration float64, opts Options) *Set {
	return &Set{opts: opts.withDefaults(), duration: duration}
}

func (s *Set) Options() Options {
	return s.opts
}

func (s *Set) Duration() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.duration
}

// SetDuration updates the media duration once the player reports it. When
// the media shrinks, ranges ending past d are cut back to d and ranges left
// shorter than MinSpan are removed. The affected ranges are returned as they
// now stand (clamped) or as they were (dropped).
func (s *Set) SetDuration(d float64) (clamped, dropped []Range, err error) {
	if !finite(d) || d < 0 {
		return nil, nil, fmt.Errorf("%w: duration %v", ErrOutOfBounds, d)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.duration = d
	kept := make([]Range, 0, len(s.items))
	for _, r := range s.items {
		if r.End <= d {
			kept = append(kept, r)
			continue
		}
		if d-r.Start < s.opts.MinSpan {
			dropped = append(dropped, r)
			continue
		}
		r.End = d
		clamped = append(clamped, r)
		kept = append(kept, r)
	}
	s.items = kept
	return clamped, dropped, nil
}

func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *Set) Get(rangeID string) (Range, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexOf(rangeID)
	if i < 0 {
		return Range{}, false
	}
	return s.items[i], true
}

// Create appends a new range with a fresh id.
func (s *Set) Create(start, end float64) (Range, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkSpan(start, end); err != nil {
		return Range{}, err
	}
	if s.conflicts(start, end, "") {
		return Range{}, ErrOverlap
	}

	rid, err := s.freshID()
	if err != nil {
		return Range{}, err
	}
	r := Range{ID: rid, Start: start, End: end}
	s.items = append(s.items, r)
	return r, nil
}

// Resize moves one boundary of a range to t, clamped to [0, duration].
func (s *Set) Resize(rangeID string, h Handle, t float64) (Range, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !(s.duration > 0) {
		return Range{}, ErrNoDuration
	}
	if !finite(t) {
		return Range{}, fmt.Errorf("%w: time %v", ErrOutOfBounds, t)
	}
	i := s.indexOf(rangeID)
	if i < 0 {
		return Range{}, ErrNotFound
	}

	r := s.items[i]
	t = clamp(t, 0, s.duration)
	if h == HandleStart {
		if t >= r.End {
			return r, ErrCrossesBoundary
		}
		r.Start = t
	} else {
		if t <= r.Start {
			return r, ErrCrossesBoundary
		}
		r.End = t
	}

	if r.Len() < s.opts.MinSpan {
		return s.items[i], ErrEmptySpan
	}
	if s.conflicts(r.Start, r.End, rangeID) {
		return s.items[i], ErrOverlap
	}
	s.items[i] = r
	return r, nil
}

// Move shifts a range so it starts at newStart, keeping its width. The start
// is clamped so the whole range stays inside [0, duration].
func (s *Set) Move(rangeID string, newStart float64) (Range, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !(s.duration > 0) {
		return Range{}, ErrNoDuration
	}
	if !finite(newStart) {
		return Range{}, fmt.Errorf("%w: start %v", ErrOutOfBounds, newStart)
	}
	i := s.indexOf(rangeID)
	if i < 0 {
		return Range{}, ErrNotFound
	}

	r := s.items[i]
	width := r.Len()
	maxStart := s.duration - width
	if maxStart < 0 {
		maxStart = 0
	}
	start := clamp(newStart, 0, maxStart)

	if s.conflicts(start, start+width, rangeID) {
		return r, ErrOverlap
	}
	r.Start, r.End = start, start+width
	s.items[i] = r
	return r, nil
}

// Remove deletes the range if present and reports whether it existed.
func (s *Set) Remove(rangeID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(rangeID)
	if i < 0 {
		return false
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	return true
}

// Clear empties the set and returns how many ranges were dropped.
func (s *Set) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.items)
	s.items = nil
	return n
}

// ListSorted returns a copy ordered by start. Equal starts keep insertion order.
func (s *Set) ListSorted() []Range {
	s.mu.RLock()
	out := make([]Range, len(s.items))
	copy(out, s.items)
	s.mu.RUnlock()

	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Start < out[b].Start
	})
	return out
}

// Restore replaces the contents with rs. Nothing changes unless every range
// passes the same checks Create applies.
func (s *Set) Restore(rs []Range) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := &Set{opts: s.opts, duration: s.duration}
	seen := make(map[string]bool, len(rs))
	for _, r := range rs {
		if r.ID == "" || seen[r.ID] {
			return fmt.Errorf("%w: %q", ErrDuplicateID, r.ID)
		}
		if err := next.checkSpan(r.Start, r.End); err != nil {
			return fmt.Errorf("range %s: %w", r.ID, err)
		}
		if next.conflicts(r.Start, r.End, "") {
			return fmt.Errorf("range %s: %w", r.ID, ErrOverlap)
		}
		seen[r.ID] = true
		next.items = append(next.items, r)
	}
	s.items = next.items
	return nil
}

// Validate scans every pair and reports the first invariant violation.
func (s *Set) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i, a := range s.items {
		if !(a.Start < a.End) {
			return fmt.Errorf("range %s: %w", a.ID, ErrCrossesBoundary)
		}
		if !(a.Start >= 0 && a.End <= s.duration) {
			return fmt.Errorf("range %s: %w", a.ID, ErrOutOfBounds)
		}
		for _, b := range s.items[i+1:] {
			if a.ID == b.ID {
				return fmt.Errorf("%w: %q", ErrDuplicateID, a.ID)
			}
			if Overlaps(a.Start, a.End, b.Start, b.End, s.opts.TouchEpsilon) {
				return fmt.Errorf("%s and %s: %w", a, b, ErrOverlap)
			}
		}
	}
	return nil
}

// Overlapping reports whether [start, end] would overlap any range other than
// exclude. Used for live previews.
func (s *Set) Overlapping(start, end float64, exclude string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conflicts(start, end, exclude)
}

func (s *Set) checkSpan(start, end float64) error {
	if !(s.duration > 0) {
		return ErrNoDuration
	}
	if !finite(start) || !finite(end) {
		return ErrOutOfBounds
	}
	if end-start <= 0 || end-start < s.opts.MinSpan {
		return ErrEmptySpan
	}
	if start < 0 || end > s.duration {
		return ErrOutOfBounds
	}
	return nil
}

func (s *Set) conflicts(start, end float64, exclude string) bool {
	for _, r := range s.items {
		if r.ID == exclude {
			continue
		}
		if Overlaps(start, end, r.Start, r.End, s.opts.TouchEpsilon) {
			return true
		}
	}
	return false
}

func (s *Set) indexOf(rangeID string) int {
	for i, r := range s.items {
		if r.ID == rangeID {
			return i
		}
	}
	return -1
}

func (s *Set) freshID() (string, error) {
	for {
		rid, err := s.opts.NewID()
		if err != nil {
			return "", err
		}
		if s.indexOf(rid) < 0 {
			return rid, nil
		}
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
