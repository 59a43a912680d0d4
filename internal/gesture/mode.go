// Package gesture turns raw pointer input on the timeline track into range
// edits, marker scrubs and playback commands. One Editor serves one track.
package gesture

import "fmt"

// Mode is the kind of drag in progress. ModeNone is the idle state.
type Mode int

const (
	ModeNone Mode = iota
	ModeCreate
	ModeResizeStart
	ModeResizeEnd
	ModeMove
	ModeScrub
)

var modeNames = map[Mode]string{
	ModeNone:        "none",
	ModeCreate:      "create",
	ModeResizeStart: "resize_start",
	ModeResizeEnd:   "resize_end",
	ModeMove:        "move",
	ModeScrub:       "scrub",
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(b []byte) error {
	for mode, name := range modeNames {
		if name == string(b) {
			*m = mode
			return nil
		}
	}
	return fmt.Errorf("unknown gesture mode %q", b)
}

// modeLock is the single slot every drag must claim before it may touch the
// range set. A claim succeeds only from ModeNone or for the mode already held.
type modeLock struct {
	mode Mode
}

func (l *modeLock) tryAcquire(m Mode) bool {
	if l.mode != ModeNone && l.mode != m {
		return false
	}
	l.mode = m
	return true
}

func (l *modeLock) release() {
	l.mode = ModeNone
}

func (l *modeLock) held() Mode {
	return l.mode
}
