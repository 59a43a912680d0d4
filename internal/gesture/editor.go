package gesture

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/cutdesk/cutdesk-agent/internal/logging"
	"github.com/cutdesk/cutdesk-agent/internal/playback"
	"github.com/cutdesk/cutdesk-agent/internal/ranges"
	"github.com/cutdesk/cutdesk-agent/internal/timeline"
)

const (
	DefaultHandleWidthPx = 8.0
	DefaultMarkerWidthPx = 6.0
	DefaultCreateDelay   = 250 * time.Millisecond
)

var (
	ErrClosed               = errors.New("editor closed")
	ErrBusy                 = errors.New("another gesture is in progress")
	ErrNoSelection          = errors.New("no range selected")
	ErrNothingToClear       = errors.New("no ranges to clear")
	ErrConfirmationRequired = errors.New("clearing all ranges requires confirmation")
	ErrInvalidTrackWidth    = errors.New("track width must be positive")
)

// ChangeKind names a committed edit.
type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeResized ChangeKind = "resized"
	ChangeMoved   ChangeKind = "moved"
	ChangeRemoved ChangeKind = "removed"
	ChangeCleared ChangeKind = "cleared"
)

// Change is delivered to Config.OnCommit after the editor lock is released.
type Change struct {
	Kind  ChangeKind
	Range ranges.Range
}

type Config struct {
	TrackWidthPx  float64
	HandleWidthPx float64
	MarkerWidthPx float64
	// CreateDelay is how long a press on empty track must be held before a
	// drag starts creating a range. A double click inside it seeks instead.
	CreateDelay time.Duration
	Now         func() time.Time
	Logger      *slog.Logger
	OnCommit    func(Change)
}

func (c Config) withDefaults() Config {
	if c.HandleWidthPx <= 0 {
		c.HandleWidthPx = DefaultHandleWidthPx
	}
	if c.MarkerWidthPx <= 0 {
		c.MarkerWidthPx = DefaultMarkerWidthPx
	}
	if c.CreateDelay < 0 {
		c.CreateDelay = 0
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	c.Logger = logging.OrDiscard(c.Logger)
	return c
}

// DragFn is called for every pointer position of a drag. finished is set on
// release. It reports whether the range set changed.
type DragFn func(px float64, finished bool) bool

// Session describes the live drag.
type Session struct {
	Mode     Mode    `json:"mode"`
	RangeID  string  `json:"range_id,omitempty"`
	AnchorPx float64 `json:"anchor_px"`
	OffsetPx float64 `json:"offset_px,omitempty"`
	Armed    bool    `json:"armed"`
}

type drag struct {
	Session
	fn      DragFn
	armAt   time.Time
	lastPx  float64
	changed bool
}

// Editor is the gesture controller for one track. It owns the selection, the
// create preview and the single drag slot. All methods are safe for
// concurrent use.
type Editor struct {
	cfg      Config
	set      *ranges.Set
	player   playback.Player
	sync     *playback.Sync
	autostop *playback.AutoStop
	logger   *slog.Logger

	mu       sync.Mutex
	lock     modeLock
	drag     *drag
	selected string
	preview  *ranges.Range
	closed   bool
	changes  []Change
}

func NewEditor(set *ranges.Set, player playback.Player, ps *playback.Sync, cfg Config) *Editor {
	cfg = cfg.withDefaults()
	e := &Editor{
		cfg:    cfg,
		set:    set,
		player: player,
		sync:   ps,
		logger: cfg.Logger.With("component", "gesture"),
	}
	e.autostop = playback.NewAutoStop(player, func(rangeID string) (float64, bool) {
		r, ok := set.Get(rangeID)
		return r.End, ok
	}, cfg.Logger)
	return e
}

// Set exposes the underlying range set.
func (e *Editor) Set() *ranges.Set {
	return e.set
}

func (e *Editor) Sync() *playback.Sync {
	return e.sync
}

// do runs fn under the editor lock and hands queued changes to OnCommit
// once the lock is released.
func (e *Editor) do(fn func()) {
	e.mu.Lock()
	fn()
	changes := e.changes
	e.changes = nil
	e.mu.Unlock()

	if e.cfg.OnCommit == nil {
		return
	}
	for _, c := range changes {
		e.cfg.OnCommit(c)
	}
}

func (e *Editor) record(kind ChangeKind, r ranges.Range) {
	e.changes = append(e.changes, Change{Kind: kind, Range: r})
}

func (e *Editor) geometry() trackGeometry {
	return trackGeometry{
		widthPx:  e.cfg.TrackWidthPx,
		duration: e.set.Duration(),
		handlePx: e.cfg.HandleWidthPx,
		markerPx: e.cfg.MarkerWidthPx,
	}
}

func (e *Editor) toTime(px float64) float64 {
	return timeline.PixelToTime(px, e.cfg.TrackWidthPx, e.set.Duration())
}

func (e *Editor) toPixel(t float64) float64 {
	return timeline.TimeToPixel(t, e.cfg.TrackWidthPx, e.set.Duration())
}

// HitTest reports what lies under px.
func (e *Editor) HitTest(px float64) Hit {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hit(px)
}

func (e *Editor) hit(px float64) Hit {
	return hitTest(px, e.geometry(), e.sync.Position().CurrentTime, e.set.ListSorted())
}

// PointerDown starts a drag for whatever lies under px. It returns the mode
// claimed, or ModeNone when the press was ignored.
func (e *Editor) PointerDown(px float64) (Mode, error) {
	var (
		mode Mode
		err  error
	)
	e.do(func() {
		mode, err = e.pointerDown(px)
	})
	return mode, err
}

func (e *Editor) pointerDown(px float64) (Mode, error) {
	if e.closed {
		return ModeNone, ErrClosed
	}
	if e.drag != nil {
		return ModeNone, ErrBusy
	}
	if e.set.Duration() <= 0 || e.cfg.TrackWidthPx <= 0 {
		return ModeNone, nil
	}

	h := e.hit(px)
	var d *drag
	switch h.Target {
	case TargetMarker:
		d = &drag{Session: Session{Mode: ModeScrub, AnchorPx: px, Armed: true}}
		d.fn = e.scrubDrag()
		e.sync.BeginScrub(e.toTime(px))
	case TargetHandleStart, TargetHandleEnd:
		handle, mode := ranges.HandleStart, ModeResizeStart
		if h.Target == TargetHandleEnd {
			handle, mode = ranges.HandleEnd, ModeResizeEnd
		}
		d = &drag{Session: Session{Mode: mode, RangeID: h.RangeID, AnchorPx: px, Armed: true}}
		d.fn = e.resizeDrag(h.RangeID, handle)
	case TargetRangeBody:
		r, _ := e.set.Get(h.RangeID)
		offset := px - e.toPixel(r.Start)
		d = &drag{Session: Session{Mode: ModeMove, RangeID: h.RangeID, AnchorPx: px, OffsetPx: offset, Armed: true}}
		d.fn = e.moveDrag(h.RangeID, offset)
	default:
		d = &drag{
			Session: Session{Mode: ModeCreate, AnchorPx: px},
			armAt:   e.cfg.Now().Add(e.cfg.CreateDelay),
		}
		d.fn = e.createDrag(px)
	}

	if !e.lock.tryAcquire(d.Mode) {
		if d.Mode == ModeScrub {
			e.sync.CancelScrub()
		}
		return ModeNone, ErrBusy
	}
	d.lastPx = px
	e.drag = d
	e.logger.Debug("drag started", "mode", d.Mode.String(), "range_id", d.RangeID, "px", px)
	return d.Mode, nil
}

// PointerMove feeds a pointer position to the live drag. Positions outside
// the track are clamped. It reports whether the range set changed.
func (e *Editor) PointerMove(px float64) bool {
	var changed bool
	e.do(func() {
		if e.closed || e.drag == nil {
			return
		}
		d := e.drag
		if !e.armed(d) {
			return
		}
		d.lastPx = px
		if d.fn(px, false) {
			d.changed = true
			changed = true
		}
	})
	return changed
}

func (e *Editor) armed(d *drag) bool {
	if d.Armed {
		return true
	}
	if e.cfg.Now().Before(d.armAt) {
		return false
	}
	d.Armed = true
	return true
}

// PointerUp ends the live drag at px and commits it. It reports whether
// the range set changed over the whole drag.
func (e *Editor) PointerUp(px float64) bool {
	var changed bool
	e.do(func() {
		if e.closed || e.drag == nil {
			return
		}
		d := e.drag
		if !e.armed(d) {
			e.logger.Debug("press released before create delay", "px", px)
			e.endDrag()
			return
		}
		if d.fn(px, false) {
			d.changed = true
		}
		if d.fn(px, true) {
			d.changed = true
		}
		changed = d.changed
		e.endDrag()
	})
	return changed
}

// Blur releases the live drag when the pointer leaves the window without a
// pointer-up. Resizes and moves already applied are kept and committed; a
// pending create is dropped and a scrub is cancelled.
func (e *Editor) Blur() {
	e.do(func() {
		if e.drag == nil {
			return
		}
		e.releaseDrag(true)
	})
}

// releaseDrag abandons the live drag without its final step.
func (e *Editor) releaseDrag(keepEdits bool) {
	d := e.drag
	switch d.Mode {
	case ModeScrub:
		e.sync.CancelScrub()
	case ModeResizeStart, ModeResizeEnd, ModeMove:
		if keepEdits && d.changed {
			if r, ok := e.set.Get(d.RangeID); ok {
				e.record(changeFor(d.Mode), r)
			}
		}
	}
	e.endDrag()
}

func (e *Editor) endDrag() {
	e.preview = nil
	e.drag = nil
	e.lock.release()
}

// DoubleClick seeks on empty track or selects the range under px. A pending
// create that has not armed yet is dropped.
func (e *Editor) DoubleClick(px float64) error {
	var err error
	e.do(func() {
		if e.closed {
			err = ErrClosed
			return
		}
		if e.drag != nil {
			if e.drag.Mode != ModeCreate {
				err = ErrBusy
				return
			}
			e.logger.Debug("double click cancelled pending create")
			e.endDrag()
		}
		if e.set.Duration() <= 0 || e.cfg.TrackWidthPx <= 0 {
			return
		}

		h := e.hit(px)
		switch h.Target {
		case TargetHandleStart, TargetHandleEnd, TargetRangeBody:
			err = e.selectRange(h.RangeID)
		default:
			e.clearSelection()
			err = e.seekAndPlay(e.toTime(px))
		}
	})
	return err
}

func (e *Editor) seekAndPlay(t float64) error {
	if _, err := e.sync.Seek(t); err != nil {
		return err
	}
	if err := e.player.Play(); err != nil {
		return fmt.Errorf("play: %w", err)
	}
	return nil
}

func (e *Editor) createDrag(anchorPx float64) DragFn {
	return func(px float64, finished bool) bool {
		if finished {
			p := e.preview
			e.preview = nil
			if p == nil {
				return false
			}
			r, err := e.set.Create(p.Start, p.End)
			if err != nil {
				e.logger.Debug("create rejected", "start", p.Start, "end", p.End, "error", err)
				return false
			}
			e.record(ChangeCreated, r)
			return true
		}

		lo, hi := math.Min(anchorPx, px), math.Max(anchorPx, px)
		start, end := e.toTime(lo), e.toTime(hi)
		if end <= start {
			e.preview = nil
			return false
		}
		if e.set.Overlapping(start, end, "") {
			// keep the last valid preview
			return false
		}
		e.preview = &ranges.Range{Start: start, End: end}
		return false
	}
}

func (e *Editor) resizeDrag(rangeID string, h ranges.Handle) DragFn {
	return func(px float64, finished bool) bool {
		if finished {
			d := e.drag
			if d != nil && d.changed {
				if r, ok := e.set.Get(rangeID); ok {
					e.record(ChangeResized, r)
				}
			}
			return false
		}
		before, ok := e.set.Get(rangeID)
		if !ok {
			return false
		}
		r, err := e.set.Resize(rangeID, h, e.toTime(px))
		if err != nil {
			return false
		}
		return r != before
	}
}

func (e *Editor) moveDrag(rangeID string, offsetPx float64) DragFn {
	return func(px float64, finished bool) bool {
		if finished {
			d := e.drag
			if d != nil && d.changed {
				if r, ok := e.set.Get(rangeID); ok {
					e.record(ChangeMoved, r)
				}
			}
			return false
		}
		before, ok := e.set.Get(rangeID)
		if !ok {
			return false
		}
		r, err := e.set.Move(rangeID, e.toTime(px-offsetPx))
		if err != nil {
			return false
		}
		return r != before
	}
}

func (e *Editor) scrubDrag() DragFn {
	return func(px float64, finished bool) bool {
		if finished {
			if _, err := e.sync.CommitScrub(); err != nil {
				e.logger.Warn("scrub commit failed", "error", err)
			}
			return false
		}
		e.sync.UpdateScrub(e.toTime(px))
		return false
	}
}

func changeFor(m Mode) ChangeKind {
	if m == ModeMove {
		return ChangeMoved
	}
	return ChangeResized
}

// Select marks rangeID, seeks to its start, plays and arms auto-stop at its
// end.
func (e *Editor) Select(rangeID string) error {
	var err error
	e.do(func() {
		if e.closed {
			err = ErrClosed
			return
		}
		err = e.selectRange(rangeID)
	})
	return err
}

func (e *Editor) selectRange(rangeID string) error {
	r, ok := e.set.Get(rangeID)
	if !ok {
		return fmt.Errorf("%w: %s", ranges.ErrNotFound, rangeID)
	}
	e.selected = rangeID
	e.autostop.Arm(rangeID)
	if err := e.seekAndPlay(r.Start); err != nil {
		return err
	}
	e.logger.Debug("range selected", "range_id", rangeID, "start", r.Start, "end", r.End)
	return nil
}

func (e *Editor) ClearSelection() {
	e.do(e.clearSelection)
}

func (e *Editor) clearSelection() {
	e.selected = ""
	e.autostop.Disarm()
}

// Selected returns the selected range id. A selection whose range no longer
// exists reads as none.
func (e *Editor) Selected() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selectedLocked()
}

func (e *Editor) selectedLocked() (string, bool) {
	if e.selected == "" {
		return "", false
	}
	if _, ok := e.set.Get(e.selected); !ok {
		return "", false
	}
	return e.selected, true
}

// DeleteSelected removes the selected range. With nothing selected it
// returns ErrNoSelection; callers then offer ClearAll.
func (e *Editor) DeleteSelected() (ranges.Range, error) {
	var (
		removed ranges.Range
		err     error
	)
	e.do(func() {
		if e.closed {
			err = ErrClosed
			return
		}
		if e.drag != nil {
			err = ErrBusy
			return
		}
		rangeID, ok := e.selectedLocked()
		if !ok {
			err = ErrNoSelection
			return
		}
		removed, _ = e.set.Get(rangeID)
		e.set.Remove(rangeID)
		e.clearSelection()
		e.record(ChangeRemoved, removed)
	})
	return removed, err
}

// ClearAll removes every range. confirm must be set; the user is expected
// to have answered a confirmation prompt.
func (e *Editor) ClearAll(confirm bool) (int, error) {
	var (
		n   int
		err error
	)
	e.do(func() {
		if e.closed {
			err = ErrClosed
			return
		}
		if e.drag != nil {
			err = ErrBusy
			return
		}
		if e.set.Len() == 0 {
			err = ErrNothingToClear
			return
		}
		if !confirm {
			err = ErrConfirmationRequired
			return
		}
		n = e.set.Clear()
		e.clearSelection()
		e.record(ChangeCleared, ranges.Range{})
	})
	return n, err
}

// CreateRange adds a range directly, outside any pointer gesture.
func (e *Editor) CreateRange(start, end float64) (ranges.Range, error) {
	var (
		r   ranges.Range
		err error
	)
	e.do(func() {
		if err = e.idle(); err != nil {
			return
		}
		r, err = e.set.Create(start, end)
		if err == nil {
			e.record(ChangeCreated, r)
		}
	})
	return r, err
}

func (e *Editor) ResizeRange(rangeID string, h ranges.Handle, t float64) (ranges.Range, error) {
	var (
		r   ranges.Range
		err error
	)
	e.do(func() {
		if err = e.idle(); err != nil {
			return
		}
		r, err = e.set.Resize(rangeID, h, t)
		if err == nil {
			e.record(ChangeResized, r)
		}
	})
	return r, err
}

func (e *Editor) MoveRange(rangeID string, newStart float64) (ranges.Range, error) {
	var (
		r   ranges.Range
		err error
	)
	e.do(func() {
		if err = e.idle(); err != nil {
			return
		}
		r, err = e.set.Move(rangeID, newStart)
		if err == nil {
			e.record(ChangeMoved, r)
		}
	})
	return r, err
}

// RemoveRange deletes a range. An unknown id is a no-op.
func (e *Editor) RemoveRange(rangeID string) error {
	var err error
	e.do(func() {
		if err = e.idle(); err != nil {
			return
		}
		r, ok := e.set.Get(rangeID)
		if !ok || !e.set.Remove(rangeID) {
			return
		}
		if e.selected == rangeID {
			e.clearSelection()
		}
		e.record(ChangeRemoved, r)
	})
	return err
}

func (e *Editor) idle() error {
	if e.closed {
		return ErrClosed
	}
	if e.drag != nil {
		return ErrBusy
	}
	return nil
}

func (e *Editor) TrackWidth() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg.TrackWidthPx
}

// SetTrackWidth applies a new layout width. It is refused during a drag
// since anchors are in pixels.
func (e *Editor) SetTrackWidth(px float64) error {
	if px <= 0 || math.IsNaN(px) || math.IsInf(px, 0) {
		return ErrInvalidTrackWidth
	}
	var err error
	e.do(func() {
		if err = e.idle(); err != nil {
			return
		}
		e.cfg.TrackWidthPx = px
	})
	return err
}

// SetDuration applies a new media duration to the range set and the
// position sync. Ranges cut back or dropped by a shorter duration are
// reported through OnCommit like any other edit.
func (e *Editor) SetDuration(d float64) error {
	var err error
	e.do(func() {
		if e.closed {
			err = ErrClosed
			return
		}
		var clamped, dropped []ranges.Range
		clamped, dropped, err = e.set.SetDuration(d)
		if err != nil {
			return
		}
		for _, r := range clamped {
			e.record(ChangeResized, r)
		}
		for _, r := range dropped {
			if e.selected == r.ID {
				e.clearSelection()
			}
			e.record(ChangeRemoved, r)
		}
		if len(clamped)+len(dropped) > 0 {
			e.logger.Info("ranges trimmed to new duration", "duration", d, "clamped", len(clamped), "dropped", len(dropped))
		}
	})
	if err != nil {
		return err
	}
	e.sync.SetDuration(d)
	return nil
}

// Close abandons any drag, disarms auto-stop and stops the position sync.
// The player itself is left to its owner.
func (e *Editor) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	if e.drag != nil {
		e.releaseDrag(false)
	}
	e.closed = true
	e.selected = ""
	e.autostop.Disarm()
	e.mu.Unlock()

	e.sync.Stop()
	e.logger.Debug("editor closed")
}
