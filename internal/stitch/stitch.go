// Package stitch turns a set of selected time ranges and a source media
// playlist into the edit list played back as the merged result.
package stitch

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"

	"github.com/cutdesk/cutdesk-agent/internal/manifest"
	"github.com/cutdesk/cutdesk-agent/internal/ranges"
)

const (
	DefaultTargetDuration = 12
	ContinuityTolerance   = 1e-6
)

// ErrNoRanges is returned, with no output, when nothing is selected.
var ErrNoRanges = errors.New("select a range first")

type Entry struct {
	Segment manifest.Segment `json:"segment"`
	// Discontinuity marks a break between this entry and the previous one.
	Discontinuity bool `json:"discontinuity"`
}

type EditList struct {
	TargetDuration int     `json:"target_duration"`
	Entries        []Entry `json:"entries"`
}

type Stats struct {
	Segments        int     `json:"segments"`
	Discontinuities int     `json:"discontinuities"`
	Duration        float64 `json:"duration"`
}

// Build keeps every segment whose cumulative end lies inside [start, end] of
// at least one range, in playlist order, and flags a discontinuity wherever a
// kept segment does not directly follow the previous kept one.
func Build(rs []ranges.Range, pl *manifest.Playlist) (*EditList, error) {
	if len(rs) == 0 {
		return nil, ErrNoRanges
	}

	el := &EditList{TargetDuration: DefaultTargetDuration}
	if pl == nil {
		return el, nil
	}
	if pl.TargetDuration > 0 {
		el.TargetDuration = pl.TargetDuration
	}

	var prev *manifest.Segment
	for i := range pl.Segments {
		seg := pl.Segments[i]
		if !selected(seg.AccumulatedEnd, rs) {
			continue
		}

		entry := Entry{Segment: seg}
		if prev != nil && math.Abs(seg.AccumulatedEnd-(prev.AccumulatedEnd+seg.Duration)) > ContinuityTolerance {
			entry.Discontinuity = true
		}
		el.Entries = append(el.Entries, entry)
		prev = &pl.Segments[i]

		if need := int(math.Ceil(seg.Duration)); need > el.TargetDuration {
			el.TargetDuration = need
		}
	}
	return el, nil
}

func selected(t float64, rs []ranges.Range) bool {
	for _, r := range rs {
		if r.Contains(t) {
			return true
		}
	}
	return false
}

func (e *EditList) Stats() Stats {
	var s Stats
	for _, entry := range e.Entries {
		s.Segments++
		s.Duration += entry.Segment.Duration
		if entry.Discontinuity {
			s.Discontinuities++
		}
	}
	return s
}

// Render writes the edit list as an HLS VOD playlist.
func (e *EditList) Render() string {
	return e.render(nil)
}

// RenderWithBase is Render with relative segment URIs resolved against base.
func (e *EditList) RenderWithBase(base *url.URL) string {
	return e.render(base)
}

func (e *EditList) render(base *url.URL) string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:3\n")
	fmt.Fprintf(&b, "#EXT-X-TARGETDURATION:%d\n", e.TargetDuration)
	b.WriteString("#EXT-X-MEDIA-SEQUENCE:0\n")

	for _, entry := range e.Entries {
		if entry.Discontinuity {
			b.WriteString("#EXT-X-DISCONTINUITY\n")
		}
		fmt.Fprintf(&b, "#EXTINF:%s,\n%s\n", entry.Segment.DurationLabel, resolve(base, entry.Segment.URI))
	}
	b.WriteString("#EXT-X-ENDLIST\n")
	return b.String()
}

func resolve(base *url.URL, uri string) string {
	if base == nil {
		return uri
	}
	ref, err := url.Parse(uri)
	if err != nil || ref.IsAbs() {
		return uri
	}
	return base.ResolveReference(ref).String()
}
