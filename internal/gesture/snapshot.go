package gesture

import (
	"github.com/cutdesk/cutdesk-agent/internal/playback"
	"github.com/cutdesk/cutdesk-agent/internal/ranges"
	"github.com/cutdesk/cutdesk-agent/internal/timeline"
)

// RangeView is a range laid out on the track.
type RangeView struct {
	ranges.Range
	StartPx  float64              `json:"start_px"`
	EndPx    float64              `json:"end_px"`
	Label    string               `json:"label"`
	Layout   timeline.LabelLayout `json:"layout"`
	Selected bool                 `json:"selected"`
}

// Snapshot is a consistent read of the editor for rendering.
type Snapshot struct {
	TrackWidthPx float64           `json:"track_width_px"`
	Position     playback.Position `json:"position"`
	MarkerPx     float64           `json:"marker_px"`
	Ranges       []RangeView       `json:"ranges"`
	SelectedID   string            `json:"selected_range_id,omitempty"`
	Preview      *ranges.Range     `json:"preview,omitempty"`
	Mode         Mode              `json:"mode"`
	Drag         *Session          `json:"drag,omitempty"`
}

func (e *Editor) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	pos := e.sync.Position()
	duration := e.set.Duration()
	selected, _ := e.selectedLocked()

	snap := Snapshot{
		TrackWidthPx: e.cfg.TrackWidthPx,
		Position:     pos,
		MarkerPx:     e.toPixel(pos.CurrentTime),
		SelectedID:   selected,
		Mode:         e.lock.held(),
	}

	rs := e.set.ListSorted()
	snap.Ranges = make([]RangeView, 0, len(rs))
	for _, r := range rs {
		snap.Ranges = append(snap.Ranges, RangeView{
			Range:    r,
			StartPx:  e.toPixel(r.Start),
			EndPx:    e.toPixel(r.End),
			Label:    timeline.RangeLabel(r.Start, r.End),
			Layout:   timeline.LayoutFor(r.Start, r.End, duration),
			Selected: r.ID == selected,
		})
	}

	if e.preview != nil {
		p := *e.preview
		snap.Preview = &p
	}
	if e.drag != nil {
		s := e.drag.Session
		snap.Drag = &s
	}
	return snap
}
