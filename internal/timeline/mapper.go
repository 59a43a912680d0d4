// Package timeline maps between track pixels and media time and lays out
// tick marks and labels for the range editor's track.
package timeline

import "math"

// PixelToTime converts a horizontal offset on a track of widthPx pixels to a
// media time in seconds, clamped to [0, duration]. Offsets outside the track
// are allowed; a degenerate track or empty media yields 0.
func PixelToTime(px, widthPx, duration float64) float64 {
	if widthPx <= 0 || duration <= 0 || math.IsNaN(px) {
		return 0
	}
	return clamp(px/widthPx*duration, 0, duration)
}

// TimeToPixel is the inverse of PixelToTime, clamped to [0, widthPx].
func TimeToPixel(t, widthPx, duration float64) float64 {
	if widthPx <= 0 || duration <= 0 || math.IsNaN(t) {
		return 0
	}
	return clamp(t/duration*widthPx, 0, widthPx)
}

// Span returns the pixel width of [start, end] on the track.
func Span(start, end, widthPx, duration float64) float64 {
	return TimeToPixel(end, widthPx, duration) - TimeToPixel(start, widthPx, duration)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
