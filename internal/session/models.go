package session

import (
	"time"

	"github.com/cutdesk/cutdesk-agent/internal/timeline"
)

// Session is one media under review: its duration, how its track is laid
// out and when it was opened. Ranges are stored alongside it.
type Session struct {
	ID                  string    `json:"id"`
	Source              string    `json:"source"`
	Duration            float64   `json:"duration"`
	// DurationPinned is set when the caller supplied the duration; manifest
	// reloads then leave it alone.
	DurationPinned      bool      `json:"duration_pinned"`
	TrackWidthPx        float64   `json:"track_width_px"`
	TickIntervalMinutes int       `json:"tick_interval_minutes"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func (s Session) TickInterval() timeline.Interval {
	iv, err := timeline.ParseInterval(s.TickIntervalMinutes)
	if err != nil {
		return timeline.DefaultInterval
	}
	return iv
}

const (
	MergeStatusRunning   = "running"
	MergeStatusPublished = "published"
	MergeStatusFailed    = "failed"
)

// Merge records one stitched playlist built from a session's ranges.
type Merge struct {
	ID              string    `json:"id"`
	SessionID       string    `json:"session_id"`
	Status          string    `json:"status"`
	SegmentCount    int       `json:"segment_count"`
	Discontinuities int       `json:"discontinuities"`
	Duration        float64   `json:"duration"`
	Playlist        string    `json:"-"`
	PlaylistURL     string    `json:"playlist_url,omitempty"`
	Error           string    `json:"error,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Stats is a summary across all open sessions.
type Stats struct {
	Sessions int `json:"sessions"`
	Ranges   int `json:"ranges"`
}
