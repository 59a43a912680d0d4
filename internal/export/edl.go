// Package export renders a session's ranges as a CMX3600 edit decision list.
package export

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/cutdesk/cutdesk-agent/internal/ranges"
	"github.com/cutdesk/cutdesk-agent/internal/timeline"
)

const DefaultFrameRate = 30.0

// EventsFromRanges turns ranges, sorted by start, into EDL events that all
// cut from source.
func EventsFromRanges(rs []ranges.Range, source string) []Event {
	events := make([]Event, 0, len(rs))
	for i, r := range rs {
		events = append(events, Event{
			Name:   fmt.Sprintf("Range %d (%s)", i+1, timeline.RangeLabel(r.Start, r.End)),
			Source: source,
			Start:  r.Start,
			End:    r.End,
		})
	}
	return events
}

// GenerateEDL lays events back to back on the record side.
func GenerateEDL(events []Event, title string, frameRate float64) string {
	if frameRate <= 0 {
		frameRate = DefaultFrameRate
	}
	fps := int(math.Round(frameRate))

	dropFrame := math.Abs(frameRate-29.97) < 0.01 || math.Abs(frameRate-59.94) < 0.01

	lines := []string{"TITLE: " + title}
	if dropFrame {
		lines = append(lines, "FCM: DROP FRAME")
	} else {
		lines = append(lines, "FCM: NON-DROP FRAME")
	}
	lines = append(lines, "")

	record := 0
	for i, ev := range events {
		in := secondsToFrames(ev.Start, fps)
		out := secondsToFrames(ev.End, fps)
		length := out - in

		lines = append(lines,
			fmt.Sprintf("%03d  %-8s %-5s C        %s %s %s %s", i+1, "AX", "V",
				framesToTimecode(in, fps), framesToTimecode(out, fps),
				framesToTimecode(record, fps), framesToTimecode(record+length, fps)),
			"* FROM CLIP NAME:  "+ev.Name,
		)
		if ev.Source != "" {
			lines = append(lines, "* SOURCE FILE:  "+ev.Source)
		}
		record += length
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

func secondsToFrames(s float64, fps int) int {
	return int(math.Round(s * float64(fps)))
}

func framesToTimecode(total, fps int) string {
	frames := total % fps
	secs := total / fps
	return fmt.Sprintf("%02d:%02d:%02d:%02d", secs/3600, secs/60%60, secs%60, frames)
}

// WriteFile stores content as <dir>/<name>.edl through a temp file.
func WriteFile(dir, name, content string) (string, error) {
	if err := ValidateOutputDir(dir); err != nil {
		return "", err
	}
	base := SanitizeName(name, 80)
	if base == "" {
		base = "ranges"
	}
	dst := filepath.Join(dir, base+".edl")

	tmp, err := os.CreateTemp(dir, ".edl-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write edl: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close edl: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("rename edl: %w", err)
	}
	return dst, nil
}
