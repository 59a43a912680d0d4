// Package ranges holds the authoritative set of operator-defined time ranges
// over a media timeline and enforces their invariants: every range satisfies
// 0 <= start < end <= duration, ids are unique and no two ranges overlap
// except for endpoints touching within TouchEpsilon.
package ranges

import (
	"errors"
	"fmt"
	"math"
)

// Rejections. They are policy outcomes, not faults: interactive callers are
// expected to try candidates freely and drop the invalid ones.
var (
	ErrNoDuration      = errors.New("media duration is not known yet")
	ErrEmptySpan       = errors.New("range span is below the minimum")
	ErrOutOfBounds     = errors.New("range lies outside the media duration")
	ErrOverlap         = errors.New("range overlaps an existing range")
	ErrCrossesBoundary = errors.New("boundary would cross the opposite boundary")
	ErrNotFound        = errors.New("range not found")
	ErrDuplicateID     = errors.New("duplicate range id")
	ErrUnknownHandle   = errors.New("unknown handle")
)

const (
	DefaultTouchEpsilon = 0.1
	DefaultMinSpan      = 0.1
)

type Range struct {
	ID    string  `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func (r Range) Len() float64 {
	return r.End - r.Start
}

// Contains reports whether t lies in the closed interval [Start, End].
func (r Range) Contains(t float64) bool {
	return t >= r.Start && t <= r.End
}

func (r Range) String() string {
	return fmt.Sprintf("%s[%.3f,%.3f]", r.ID, r.Start, r.End)
}

// Handle names one boundary of a range.
type Handle int

const (
	HandleStart Handle = iota
	HandleEnd
)

func (h Handle) String() string {
	if h == HandleEnd {
		return "end"
	}
	return "start"
}

// ParseHandle accepts "start" and "end".
func ParseHandle(s string) (Handle, error) {
	switch s {
	case "start":
		return HandleStart, nil
	case "end":
		return HandleEnd, nil
	}
	return 0, fmt.Errorf("%w %q", ErrUnknownHandle, s)
}

// Overlaps applies the overlap rule between a candidate [s, e] and an existing
// [rs, re]: they overlap iff s < re && e > rs, unless either pair of facing
// endpoints is closer than eps.
func Overlaps(s, e, rs, re, eps float64) bool {
	if !(s < re && e > rs) {
		return false
	}
	if math.Abs(re-s) < eps || math.Abs(rs-e) < eps {
		return false
	}
	return true
}
