// Package playback mirrors an external player's position onto the range
// editor, pauses playback at the end of a selected range and serves HLS
// playlists and segments to players over HTTP.
package playback

import "math"

// Player is the narrow surface the editor needs from a media player.
// Implementations must invoke time-update callbacks without holding their own
// locks, so a callback may unsubscribe or call Pause.
type Player interface {
	CurrentTime() (float64, error)
	Duration() (float64, error)
	Seek(t float64) error
	Play() error
	Pause() error
	// OnTimeUpdate registers fn and returns a function that removes it.
	OnTimeUpdate(fn func(t float64)) (unsubscribe func())
	Close() error
}

// Position is the last observed playback position.
type Position struct {
	CurrentTime float64 `json:"current_time"`
	Duration    float64 `json:"duration"`
}

// Clamp limits t to [0, Duration]. With an unknown duration only the lower
// bound applies.
func (p Position) Clamp(t float64) float64 {
	if t < 0 || math.IsNaN(t) {
		return 0
	}
	if p.Duration > 0 && t > p.Duration {
		return p.Duration
	}
	return t
}
