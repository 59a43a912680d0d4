package export

import "errors"

const FormatEDL = "edl"

var ErrNoRanges = errors.New("no ranges to export")

// Request asks for the current range set of a session as an edit decision
// list. With OutputDir set the list is also written there.
type Request struct {
	Title     string  `json:"title" validate:"max=120"`
	FrameRate float64 `json:"frame_rate" validate:"omitempty,gt=0,lte=120"`
	OutputDir string  `json:"output_dir"`
}

// Event is one source span in record order.
type Event struct {
	Name   string
	Source string
	Start  float64
	End    float64
}

func (e Event) Duration() float64 {
	return e.End - e.Start
}

type Result struct {
	Format     string  `json:"format"`
	Title      string  `json:"title"`
	EventCount int     `json:"event_count"`
	Duration   float64 `json:"duration"`
	OutputPath string  `json:"output_path,omitempty"`
	Content    string  `json:"content"`
}
