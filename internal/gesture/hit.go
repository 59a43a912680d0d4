package gesture

import (
	"math"

	"github.com/cutdesk/cutdesk-agent/internal/ranges"
	"github.com/cutdesk/cutdesk-agent/internal/timeline"
)

// Target is what lies under the pointer.
type Target int

const (
	TargetTrack Target = iota
	TargetMarker
	TargetHandleStart
	TargetHandleEnd
	TargetRangeBody
)

type Hit struct {
	Target  Target
	RangeID string
}

type trackGeometry struct {
	widthPx  float64
	duration float64
	handlePx float64
	markerPx float64
}

// hitTest checks the marker first, then range handles, then range bodies.
// Handles sit inside the range at each edge; on a range narrower than two
// handles each handle gets half the range.
func hitTest(px float64, g trackGeometry, marker float64, rs []ranges.Range) Hit {
	if g.duration <= 0 || g.widthPx <= 0 {
		return Hit{Target: TargetTrack}
	}

	mpx := timeline.TimeToPixel(marker, g.widthPx, g.duration)
	if math.Abs(px-mpx) <= g.markerPx/2 {
		return Hit{Target: TargetMarker}
	}

	for _, r := range rs {
		spx := timeline.TimeToPixel(r.Start, g.widthPx, g.duration)
		epx := timeline.TimeToPixel(r.End, g.widthPx, g.duration)
		if px < spx || px > epx {
			continue
		}
		hw := math.Min(g.handlePx, (epx-spx)/2)
		if px <= spx+hw {
			return Hit{Target: TargetHandleStart, RangeID: r.ID}
		}
		if px >= epx-hw {
			return Hit{Target: TargetHandleEnd, RangeID: r.ID}
		}
	}

	for _, r := range rs {
		spx := timeline.TimeToPixel(r.Start, g.widthPx, g.duration)
		epx := timeline.TimeToPixel(r.End, g.widthPx, g.duration)
		if px >= spx && px <= epx {
			return Hit{Target: TargetRangeBody, RangeID: r.ID}
		}
	}
	return Hit{Target: TargetTrack}
}
