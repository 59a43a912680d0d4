package timeline

import (
	"errors"
	"fmt"
)

// TickStep is the media time between two adjacent ticks.
const TickStep = 60.0

// Interval is the number of minor ticks between two major ticks, expressed in
// minutes of media time.
type Interval int

const (
	Interval1  Interval = 1
	Interval3  Interval = 3
	Interval5  Interval = 5
	Interval10 Interval = 10

	DefaultInterval = Interval1
)

// Presets lists the selectable intervals from finest to coarsest.
var Presets = []Interval{Interval1, Interval3, Interval5, Interval10}

var ErrUnknownInterval = errors.New("unknown tick interval")

// ParseInterval accepts only the preset minute values.
func ParseInterval(minutes int) (Interval, error) {
	for _, p := range Presets {
		if int(p) == minutes {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: %d", ErrUnknownInterval, minutes)
}

// Next returns the next coarser preset, or i itself at the coarsest.
func (i Interval) Next() Interval {
	for k, p := range Presets {
		if p == i && k+1 < len(Presets) {
			return Presets[k+1]
		}
	}
	return i
}

// Prev returns the next finer preset, or i itself at the finest.
func (i Interval) Prev() Interval {
	for k, p := range Presets {
		if p == i && k > 0 {
			return Presets[k-1]
		}
	}
	return i
}

type Tick struct {
	Time  float64 `json:"time"`
	Px    float64 `json:"px"`
	Major bool    `json:"major"`
	Label string  `json:"label,omitempty"`
}

// Ticks returns one tick per TickStep seconds from 0 through duration. Every
// int(interval)-th tick, counting from the one at 0, is major and labelled.
func Ticks(duration, widthPx float64, interval Interval) []Tick {
	if duration <= 0 {
		return nil
	}
	n := int(interval)
	if n <= 0 {
		n = int(DefaultInterval)
	}

	count := int(duration/TickStep) + 1
	ticks := make([]Tick, 0, count)
	for i := 0; i < count; i++ {
		t := float64(i) * TickStep
		tick := Tick{
			Time:  t,
			Px:    TimeToPixel(t, widthPx, duration),
			Major: i%n == 0,
		}
		if tick.Major {
			tick.Label = FormatDuration(t)
		}
		ticks = append(ticks, tick)
	}
	return ticks
}
