package api

import (
	"github.com/cutdesk/cutdesk-agent/internal/gesture"
	"github.com/cutdesk/cutdesk-agent/internal/ranges"
	"github.com/cutdesk/cutdesk-agent/internal/session"
	"github.com/cutdesk/cutdesk-agent/internal/timeline"
)

type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	UptimeS  int64  `json:"uptime_s"`
	DeviceID string `json:"device_id"`
}

type StatusResponse struct {
	Sessions int `json:"sessions"`
	Ranges   int `json:"ranges"`
}

type ErrorResponse struct {
	Error  string            `json:"error"`
	Code   string            `json:"code,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

type OpenSessionRequest struct {
	Source              string  `json:"source" validate:"required,max=2048"`
	Duration            float64 `json:"duration" validate:"gte=0"`
	TrackWidthPx        float64 `json:"track_width_px" validate:"gte=0"`
	TickIntervalMinutes int     `json:"tick_interval_minutes" validate:"omitempty,oneof=1 3 5 10"`
}

type SessionsResponse struct {
	Sessions []session.Session `json:"sessions"`
}

// SessionResponse is a session together with its editor state.
type SessionResponse struct {
	Session session.Session  `json:"session"`
	Editor  gesture.Snapshot `json:"editor"`
}

type PointerRequest struct {
	Event string  `json:"event" validate:"required,oneof=down move up blur double_click"`
	Px    float64 `json:"px"`
}

type PointerResponse struct {
	Mode    gesture.Mode     `json:"mode"`
	Handled bool             `json:"handled"`
	Editor  gesture.Snapshot `json:"editor"`
}

type TrackRequest struct {
	WidthPx             float64 `json:"width_px" validate:"gte=0"`
	TickIntervalMinutes int     `json:"tick_interval_minutes" validate:"omitempty,oneof=1 3 5 10"`
}

type TicksResponse struct {
	Interval timeline.Interval `json:"interval_minutes"`
	Ticks    []timeline.Tick   `json:"ticks"`
}

type CreateRangeRequest struct {
	Start float64 `json:"start" validate:"gte=0"`
	End   float64 `json:"end" validate:"gtfield=Start"`
}

// UpdateRangeRequest either moves a range (start) or drags one of its
// handles (handle + time).
type UpdateRangeRequest struct {
	Start  *float64 `json:"start,omitempty" validate:"omitempty,gte=0"`
	Handle string   `json:"handle,omitempty" validate:"omitempty,oneof=start end"`
	Time   *float64 `json:"time,omitempty" validate:"omitempty,gte=0"`
}

type RangesResponse struct {
	Ranges     []ranges.Range `json:"ranges"`
	SelectedID string         `json:"selected_range_id,omitempty"`
}

type SelectRequest struct {
	RangeID string `json:"range_id" validate:"required"`
}

type ClearResponse struct {
	Removed int `json:"removed"`
}

type MergesResponse struct {
	Merges []*session.Merge `json:"merges"`
}
