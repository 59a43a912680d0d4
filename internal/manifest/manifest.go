// Package manifest parses HLS media playlists into segments annotated with
// their cumulative end time on the source timeline.
package manifest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

const (
	tagHeader         = "#EXTM3U"
	tagInf            = "#EXTINF:"
	tagVersion        = "#EXT-X-VERSION:"
	tagTargetDuration = "#EXT-X-TARGETDURATION:"
	tagMediaSequence  = "#EXT-X-MEDIA-SEQUENCE:"
	tagDiscontinuity  = "#EXT-X-DISCONTINUITY"
	tagEndList        = "#EXT-X-ENDLIST"
	tagStreamInf      = "#EXT-X-STREAM-INF"
)

var (
	ErrMissingHeader  = errors.New("playlist does not start with #EXTM3U")
	ErrMasterPlaylist = errors.New("master playlists are not supported")
	ErrDanglingInf    = errors.New("#EXTINF without a segment URI")
)

type Segment struct {
	URI string `json:"uri"`
	// DurationLabel is the duration exactly as written after #EXTINF.
	DurationLabel  string  `json:"duration_label"`
	Duration       float64 `json:"duration"`
	AccumulatedEnd float64 `json:"accumulated_end"`
	Discontinuity  bool    `json:"discontinuity,omitempty"`
}

// Start is the nominal start of the segment on the source timeline.
func (s Segment) Start() float64 {
	return s.AccumulatedEnd - s.Duration
}

type Playlist struct {
	Version        int       `json:"version"`
	TargetDuration int       `json:"target_duration"`
	MediaSequence  int       `json:"media_sequence"`
	Ended          bool      `json:"ended"`
	Segments       []Segment `json:"segments"`
}

// Duration is the accumulated end of the last segment.
func (p *Playlist) Duration() float64 {
	if p == nil || len(p.Segments) == 0 {
		return 0
	}
	return p.Segments[len(p.Segments)-1].AccumulatedEnd
}

// Parse reads a media playlist. Unknown tags are ignored.
func Parse(r io.Reader) (*Playlist, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	pl := &Playlist{}
	var (
		sawHeader     bool
		pending       *Segment
		discontinuity bool
		elapsed       float64
		lineNo        int
	)

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !sawHeader {
			if line != tagHeader {
				return nil, ErrMissingHeader
			}
			sawHeader = true
			continue
		}

		switch {
		case strings.HasPrefix(line, tagInf):
			label, _, _ := strings.Cut(strings.TrimPrefix(line, tagInf), ",")
			label = strings.TrimSpace(label)
			d, err := strconv.ParseFloat(label, 64)
			if err != nil || d < 0 || math.IsNaN(d) || math.IsInf(d, 0) {
				return nil, fmt.Errorf("line %d: invalid segment duration %q", lineNo, label)
			}
			pending = &Segment{DurationLabel: label, Duration: d}
		case strings.HasPrefix(line, tagTargetDuration):
			v, err := intValue(line, tagTargetDuration)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			pl.TargetDuration = v
		case strings.HasPrefix(line, tagVersion):
			v, err := intValue(line, tagVersion)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			pl.Version = v
		case strings.HasPrefix(line, tagMediaSequence):
			v, err := intValue(line, tagMediaSequence)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			pl.MediaSequence = v
		case line == tagDiscontinuity:
			discontinuity = true
		case line == tagEndList:
			pl.Ended = true
		case strings.HasPrefix(line, tagStreamInf):
			return nil, ErrMasterPlaylist
		case strings.HasPrefix(line, "#"):
		default:
			if pending == nil {
				continue
			}
			elapsed += pending.Duration
			pending.URI = line
			pending.AccumulatedEnd = elapsed
			pending.Discontinuity = discontinuity
			pl.Segments = append(pl.Segments, *pending)
			pending, discontinuity = nil, false
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read playlist: %w", err)
	}
	if !sawHeader {
		return nil, ErrMissingHeader
	}
	if pending != nil {
		return nil, ErrDanglingInf
	}
	return pl, nil
}

func ParseString(s string) (*Playlist, error) {
	return Parse(strings.NewReader(s))
}

func intValue(line, tag string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, tag)))
	if err != nil {
		return 0, fmt.Errorf("invalid %s value", strings.TrimSuffix(tag, ":"))
	}
	return v, nil
}
