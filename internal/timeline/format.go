package timeline

import (
	"fmt"
	"math"
)

// FormatDuration renders whole seconds as "00:00" for zero, "SS" below a
// minute, "MM:SS" below an hour and "HH:MM:SS" otherwise.
func FormatDuration(seconds float64) string {
	if seconds <= 0 || math.IsNaN(seconds) {
		return "00:00"
	}
	total := int(math.Floor(seconds))
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60

	switch {
	case h > 0:
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	case m > 0:
		return fmt.Sprintf("%02d:%02d", m, s)
	default:
		return fmt.Sprintf("%02d", s)
	}
}

// LabelLayout says how a range's start/end label fits inside the range.
type LabelLayout string

const (
	LabelHidden  LabelLayout = "hidden"
	LabelStacked LabelLayout = "stacked"
	LabelInline  LabelLayout = "inline"
)

const (
	hiddenBelow  = 0.10
	stackedBelow = 0.15
)

// LayoutFor picks a label layout from the share of the track a range covers.
func LayoutFor(start, end, duration float64) LabelLayout {
	if duration <= 0 {
		return LabelHidden
	}
	share := (end - start) / duration
	switch {
	case share < hiddenBelow:
		return LabelHidden
	case share < stackedBelow:
		return LabelStacked
	default:
		return LabelInline
	}
}

// RangeLabel is "start - end" with both ends formatted by FormatDuration.
func RangeLabel(start, end float64) string {
	return FormatDuration(start) + " - " + FormatDuration(end)
}
