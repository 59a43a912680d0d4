package gesture

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/cutdesk/cutdesk-agent/internal/playback"
	"github.com/cutdesk/cutdesk-agent/internal/player"
	"github.com/cutdesk/cutdesk-agent/internal/ranges"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	editor  *Editor
	set     *ranges.Set
	player  *player.Virtual
	sync    *playback.Sync
	clock   *manualClock
	mu      sync.Mutex
	commits []Change
}

func (f *fixture) changes() []Change {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Change(nil), f.commits...)
}

// newFixture builds a 100 s track drawn 1000 px wide, so 10 px per second.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{clock: &manualClock{now: time.Unix(1000, 0)}}

	n := 0
	f.set = ranges.NewSet(100, ranges.Options{NewID: func() (string, error) {
		n++
		return fmt.Sprintf("r%d", n), nil
	}})
	f.player = player.NewVirtual(100, player.WithClock(f.clock.Now))
	f.sync = playback.NewSync(f.player, time.Millisecond, nil)
	f.sync.SetDuration(100)
	f.editor = NewEditor(f.set, f.player, f.sync, Config{
		TrackWidthPx: 1000,
		CreateDelay:  250 * time.Millisecond,
		Now:          f.clock.Now,
		OnCommit: func(c Change) {
			f.mu.Lock()
			f.commits = append(f.commits, c)
			f.mu.Unlock()
		},
	})
	t.Cleanup(func() {
		f.editor.Close()
		f.player.Close()
	})
	return f
}

func (f *fixture) mustCreate(t *testing.T, start, end float64) ranges.Range {
	t.Helper()
	r, err := f.set.Create(start, end)
	if err != nil {
		t.Fatalf("Create(%v, %v) error = %v", start, end, err)
	}
	return r
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestModeLock(t *testing.T) {
	var l modeLock

	if !l.tryAcquire(ModeCreate) {
		t.Fatal("acquire from none failed")
	}
	if !l.tryAcquire(ModeCreate) {
		t.Error("re-acquiring the held mode failed")
	}
	if l.tryAcquire(ModeMove) {
		t.Error("acquired a second mode while one is held")
	}
	if l.held() != ModeCreate {
		t.Errorf("held() = %v, want create", l.held())
	}
	l.release()
	if !l.tryAcquire(ModeScrub) {
		t.Error("acquire after release failed")
	}
}

func TestMode_String(t *testing.T) {
	if got := ModeResizeEnd.String(); got != "resize_end" {
		t.Errorf("String() = %q", got)
	}
	if got := Mode(42).String(); got != "mode(42)" {
		t.Errorf("String() = %q", got)
	}

	var m Mode
	if err := m.UnmarshalText([]byte("scrub")); err != nil || m != ModeScrub {
		t.Errorf("UnmarshalText(scrub) = %v, %v", m, err)
	}
	if err := m.UnmarshalText([]byte("drag")); err == nil {
		t.Error("UnmarshalText(drag) succeeded")
	}
}

func TestHitTest_Priority(t *testing.T) {
	g := trackGeometry{widthPx: 1000, duration: 100, handlePx: 8, markerPx: 6}
	rs := []ranges.Range{{ID: "a", Start: 10, End: 20}, {ID: "b", Start: 20, End: 21}}

	tests := []struct {
		name   string
		px     float64
		marker float64
		want   Hit
	}{
		{"empty track", 500, 0, Hit{Target: TargetTrack}},
		{"start handle", 103, 0, Hit{Target: TargetHandleStart, RangeID: "a"}},
		{"end handle", 195, 0, Hit{Target: TargetHandleEnd, RangeID: "a"}},
		{"body", 150, 0, Hit{Target: TargetRangeBody, RangeID: "a"}},
		{"marker over body", 151, 15, Hit{Target: TargetMarker}},
		{"narrow range start half", 202, 0, Hit{Target: TargetHandleStart, RangeID: "b"}},
		{"narrow range end half", 208, 0, Hit{Target: TargetHandleEnd, RangeID: "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hitTest(tt.px, g, tt.marker, rs); got != tt.want {
				t.Errorf("hitTest(%v) = %+v, want %+v", tt.px, got, tt.want)
			}
		})
	}
}

func TestHitTest_NoDuration(t *testing.T) {
	got := hitTest(10, trackGeometry{widthPx: 1000}, 0, []ranges.Range{{ID: "a", Start: 0, End: 1}})
	if got.Target != TargetTrack {
		t.Errorf("hitTest without duration = %+v", got)
	}
}

func TestCreate_WaitsForDelay(t *testing.T) {
	f := newFixture(t)

	mode, err := f.editor.PointerDown(300)
	if err != nil || mode != ModeCreate {
		t.Fatalf("PointerDown = %v, %v", mode, err)
	}

	f.clock.Advance(100 * time.Millisecond)
	f.editor.PointerMove(350)
	if snap := f.editor.Snapshot(); snap.Preview != nil {
		t.Fatalf("preview before delay: %+v", snap.Preview)
	}

	f.clock.Advance(200 * time.Millisecond)
	f.editor.PointerMove(400)
	snap := f.editor.Snapshot()
	if snap.Preview == nil || !approx(snap.Preview.Start, 30) || !approx(snap.Preview.End, 40) {
		t.Fatalf("preview = %+v, want [30,40]", snap.Preview)
	}
	if snap.Mode != ModeCreate || snap.Drag == nil || !snap.Drag.Armed {
		t.Errorf("snapshot mode = %v drag = %+v", snap.Mode, snap.Drag)
	}

	if !f.editor.PointerUp(450) {
		t.Fatal("PointerUp reported no change")
	}
	rs := f.set.ListSorted()
	if len(rs) != 1 || !approx(rs[0].Start, 30) || !approx(rs[0].End, 45) {
		t.Fatalf("ranges = %v, want [30,45]", rs)
	}
	if got := f.changes(); len(got) != 1 || got[0].Kind != ChangeCreated {
		t.Errorf("commits = %+v", got)
	}
	if snap := f.editor.Snapshot(); snap.Preview != nil || snap.Mode != ModeNone {
		t.Errorf("after release: preview = %+v mode = %v", snap.Preview, snap.Mode)
	}
}

func TestCreate_DragLeftOfAnchor(t *testing.T) {
	f := newFixture(t)

	f.editor.PointerDown(600)
	f.clock.Advance(300 * time.Millisecond)
	f.editor.PointerMove(400)
	f.editor.PointerUp(400)

	rs := f.set.ListSorted()
	if len(rs) != 1 || !approx(rs[0].Start, 40) || !approx(rs[0].End, 60) {
		t.Fatalf("ranges = %v, want [40,60]", rs)
	}
}

func TestCreate_PreviewFreezesOnOverlap(t *testing.T) {
	f := newFixture(t)
	f.mustCreate(t, 50, 60)

	f.editor.PointerDown(300)
	f.clock.Advance(300 * time.Millisecond)
	f.editor.PointerMove(450)
	f.editor.PointerMove(550)

	snap := f.editor.Snapshot()
	if snap.Preview == nil || !approx(snap.Preview.End, 45) {
		t.Fatalf("preview = %+v, want frozen at end 45", snap.Preview)
	}

	f.editor.PointerUp(550)
	rs := f.set.ListSorted()
	if len(rs) != 2 || !approx(rs[0].Start, 30) || !approx(rs[0].End, 45) {
		t.Fatalf("ranges = %v", rs)
	}
}

func TestCreate_ReleaseBeforeDelayCreatesNothing(t *testing.T) {
	f := newFixture(t)

	f.editor.PointerDown(300)
	f.clock.Advance(100 * time.Millisecond)
	if f.editor.PointerUp(500) {
		t.Error("PointerUp reported a change")
	}
	if f.set.Len() != 0 {
		t.Errorf("Len() = %d, want 0", f.set.Len())
	}
}

func TestCreate_TooShortIsRejected(t *testing.T) {
	f := newFixture(t)

	f.editor.PointerDown(300)
	f.clock.Advance(300 * time.Millisecond)
	f.editor.PointerUp(300.5)

	if f.set.Len() != 0 {
		t.Errorf("Len() = %d, want 0", f.set.Len())
	}
}

func TestDoubleClick_CancelsPendingCreateAndSeeks(t *testing.T) {
	f := newFixture(t)

	// down, up, down, dblclick within the create delay
	f.editor.PointerDown(300)
	f.editor.PointerUp(300)
	f.editor.PointerDown(300)
	f.clock.Advance(100 * time.Millisecond)
	if err := f.editor.DoubleClick(300); err != nil {
		t.Fatalf("DoubleClick() error = %v", err)
	}

	if f.set.Len() != 0 {
		t.Errorf("Len() = %d, want 0", f.set.Len())
	}
	if got, _ := f.player.CurrentTime(); !approx(got, 30) {
		t.Errorf("player time = %v, want 30", got)
	}
	if !f.player.Playing() {
		t.Error("player not playing after double click")
	}
	if snap := f.editor.Snapshot(); snap.Mode != ModeNone || snap.Drag != nil {
		t.Errorf("drag left behind: %+v", snap.Drag)
	}

	// a late move does not revive the cancelled create
	f.clock.Advance(time.Second)
	f.editor.PointerMove(600)
	f.editor.PointerUp(600)
	if f.set.Len() != 0 {
		t.Errorf("Len() = %d after late move, want 0", f.set.Len())
	}
}

func TestDoubleClick_SelectsRangeAndAutoStops(t *testing.T) {
	f := newFixture(t)
	r := f.mustCreate(t, 10, 20)

	if err := f.editor.DoubleClick(150); err != nil {
		t.Fatalf("DoubleClick() error = %v", err)
	}
	if got, ok := f.editor.Selected(); !ok || got != r.ID {
		t.Fatalf("Selected() = %q, %v", got, ok)
	}
	if got, _ := f.player.CurrentTime(); !approx(got, 10) {
		t.Errorf("player time = %v, want 10", got)
	}
	if !f.player.Playing() {
		t.Fatal("player not playing")
	}

	f.clock.Advance(5 * time.Second)
	f.player.Tick()
	if !f.player.Playing() {
		t.Fatal("paused before the range end")
	}

	f.clock.Advance(6 * time.Second)
	f.player.Tick()
	if f.player.Playing() {
		t.Error("player still playing past the range end")
	}
	if got, ok := f.editor.Selected(); !ok || got != r.ID {
		t.Errorf("selection lost after auto-stop: %q, %v", got, ok)
	}
}

func TestDoubleClick_TrackClearsSelection(t *testing.T) {
	f := newFixture(t)
	r := f.mustCreate(t, 10, 20)
	if err := f.editor.Select(r.ID); err != nil {
		t.Fatal(err)
	}

	if err := f.editor.DoubleClick(700); err != nil {
		t.Fatal(err)
	}
	if _, ok := f.editor.Selected(); ok {
		t.Error("selection kept after seeking on empty track")
	}
	if got, _ := f.player.CurrentTime(); !approx(got, 70) {
		t.Errorf("player time = %v, want 70", got)
	}
}

func TestResize_IgnoresRejectedSteps(t *testing.T) {
	f := newFixture(t)
	r := f.mustCreate(t, 10, 20)
	f.mustCreate(t, 40, 50)

	mode, err := f.editor.PointerDown(195)
	if err != nil || mode != ModeResizeEnd {
		t.Fatalf("PointerDown = %v, %v", mode, err)
	}

	if !f.editor.PointerMove(300) {
		t.Error("move to 300 reported no change")
	}
	if f.editor.PointerMove(450) {
		t.Error("overlapping step reported a change")
	}
	if f.editor.PointerMove(50) {
		t.Error("crossing step reported a change")
	}
	if got, _ := f.set.Get(r.ID); !approx(got.End, 30) {
		t.Fatalf("end = %v after rejected steps, want 30", got.End)
	}

	if !f.editor.PointerUp(300) {
		t.Error("PointerUp reported no change")
	}
	commits := f.changes()
	if len(commits) != 1 || commits[0].Kind != ChangeResized || !approx(commits[0].Range.End, 30) {
		t.Errorf("commits = %+v", commits)
	}
}

func TestResize_StartHandleKeepsSelection(t *testing.T) {
	f := newFixture(t)
	r := f.mustCreate(t, 10, 20)
	f.editor.Select(r.ID)
	// move the marker off the start handle
	f.sync.Seek(50)

	if mode, _ := f.editor.PointerDown(101); mode != ModeResizeStart {
		t.Fatalf("mode = %v, want resize_start", mode)
	}
	f.editor.PointerMove(50)
	f.editor.PointerUp(50)

	got, _ := f.set.Get(r.ID)
	if !approx(got.Start, 5) || !approx(got.End, 20) {
		t.Errorf("range = %v, want [5,20]", got)
	}
	if id, ok := f.editor.Selected(); !ok || id != r.ID {
		t.Errorf("Selected() = %q, %v", id, ok)
	}
}

func TestMove_KeepsGrabOffset(t *testing.T) {
	f := newFixture(t)
	r := f.mustCreate(t, 10, 20)
	f.mustCreate(t, 40, 50)

	mode, _ := f.editor.PointerDown(150)
	if mode != ModeMove {
		t.Fatalf("mode = %v, want move", mode)
	}
	f.editor.PointerMove(650)
	got, _ := f.set.Get(r.ID)
	if !approx(got.Start, 60) || !approx(got.End, 70) {
		t.Fatalf("range = %v, want [60,70]", got)
	}

	// onto the other range: rejected, stays put
	f.editor.PointerMove(450)
	got, _ = f.set.Get(r.ID)
	if !approx(got.Start, 60) {
		t.Fatalf("range = %v after overlapping move", got)
	}

	// past the end: clamped
	f.editor.PointerMove(2000)
	f.editor.PointerUp(2000)
	got, _ = f.set.Get(r.ID)
	if !approx(got.Start, 90) || !approx(got.End, 100) {
		t.Errorf("range = %v, want [90,100]", got)
	}
	if commits := f.changes(); len(commits) != 1 || commits[0].Kind != ChangeMoved {
		t.Errorf("commits = %+v", commits)
	}
}

func TestScrub_SeeksOnlyOnRelease(t *testing.T) {
	f := newFixture(t)
	if _, err := f.sync.Seek(50); err != nil {
		t.Fatal(err)
	}

	mode, _ := f.editor.PointerDown(501)
	if mode != ModeScrub {
		t.Fatalf("mode = %v, want scrub", mode)
	}
	f.editor.PointerMove(700)

	if snap := f.editor.Snapshot(); !approx(snap.Position.CurrentTime, 70) || !approx(snap.MarkerPx, 700) {
		t.Errorf("snapshot position = %+v marker = %v", snap.Position, snap.MarkerPx)
	}
	if got, _ := f.player.CurrentTime(); !approx(got, 50) {
		t.Errorf("player seeked during scrub: %v", got)
	}

	f.editor.PointerUp(720)
	if got, _ := f.player.CurrentTime(); !approx(got, 72) {
		t.Errorf("player time = %v, want 72", got)
	}
	if f.sync.Scrubbing() {
		t.Error("still scrubbing after release")
	}
}

func TestGesture_OneDragAtATime(t *testing.T) {
	f := newFixture(t)
	r := f.mustCreate(t, 10, 20)

	f.editor.PointerDown(150)
	if _, err := f.editor.PointerDown(600); !errors.Is(err, ErrBusy) {
		t.Errorf("second PointerDown error = %v, want ErrBusy", err)
	}
	if _, err := f.editor.CreateRange(60, 70); !errors.Is(err, ErrBusy) {
		t.Errorf("CreateRange during drag error = %v, want ErrBusy", err)
	}
	if err := f.editor.DoubleClick(150); !errors.Is(err, ErrBusy) {
		t.Errorf("DoubleClick during move error = %v, want ErrBusy", err)
	}
	if err := f.editor.SetTrackWidth(500); !errors.Is(err, ErrBusy) {
		t.Errorf("SetTrackWidth during drag error = %v, want ErrBusy", err)
	}

	f.editor.PointerUp(150)
	if _, err := f.editor.MoveRange(r.ID, 30); err != nil {
		t.Errorf("MoveRange after release error = %v", err)
	}
}

func TestBlur(t *testing.T) {
	t.Run("drops pending create", func(t *testing.T) {
		f := newFixture(t)
		f.editor.PointerDown(300)
		f.clock.Advance(time.Second)
		f.editor.PointerMove(500)
		f.editor.Blur()

		if f.set.Len() != 0 {
			t.Errorf("Len() = %d, want 0", f.set.Len())
		}
		if snap := f.editor.Snapshot(); snap.Mode != ModeNone || snap.Preview != nil {
			t.Errorf("snapshot after blur = %+v", snap)
		}
	})

	t.Run("keeps applied resize", func(t *testing.T) {
		f := newFixture(t)
		r := f.mustCreate(t, 10, 20)
		f.editor.PointerDown(195)
		f.editor.PointerMove(300)
		f.editor.Blur()

		if got, _ := f.set.Get(r.ID); !approx(got.End, 30) {
			t.Errorf("end = %v, want 30", got.End)
		}
		if commits := f.changes(); len(commits) != 1 || commits[0].Kind != ChangeResized {
			t.Errorf("commits = %+v", commits)
		}
		if _, err := f.editor.PointerDown(600); err != nil {
			t.Errorf("PointerDown after blur error = %v", err)
		}
	})

	t.Run("cancels scrub", func(t *testing.T) {
		f := newFixture(t)
		f.editor.PointerDown(1)
		f.editor.PointerMove(400)
		f.editor.Blur()

		if f.sync.Scrubbing() {
			t.Error("still scrubbing")
		}
		if got, _ := f.player.CurrentTime(); got != 0 {
			t.Errorf("player time = %v, want 0", got)
		}
	})
}

func TestDeleteSelected(t *testing.T) {
	f := newFixture(t)
	r := f.mustCreate(t, 10, 20)

	if _, err := f.editor.DeleteSelected(); !errors.Is(err, ErrNoSelection) {
		t.Fatalf("DeleteSelected() without selection error = %v", err)
	}

	f.editor.Select(r.ID)
	removed, err := f.editor.DeleteSelected()
	if err != nil {
		t.Fatalf("DeleteSelected() error = %v", err)
	}
	if removed.ID != r.ID || f.set.Len() != 0 {
		t.Errorf("removed = %v, Len() = %d", removed, f.set.Len())
	}
	if _, ok := f.editor.Selected(); ok {
		t.Error("selection survived deletion")
	}
}

func TestClearAll(t *testing.T) {
	f := newFixture(t)

	if _, err := f.editor.ClearAll(true); !errors.Is(err, ErrNothingToClear) {
		t.Errorf("ClearAll on empty set error = %v", err)
	}

	f.mustCreate(t, 10, 20)
	f.mustCreate(t, 30, 40)
	if _, err := f.editor.ClearAll(false); !errors.Is(err, ErrConfirmationRequired) {
		t.Errorf("ClearAll(false) error = %v", err)
	}
	if f.set.Len() != 2 {
		t.Fatal("unconfirmed clear removed ranges")
	}

	n, err := f.editor.ClearAll(true)
	if err != nil || n != 2 {
		t.Fatalf("ClearAll(true) = %d, %v", n, err)
	}
	if commits := f.changes(); len(commits) != 1 || commits[0].Kind != ChangeCleared {
		t.Errorf("commits = %+v", commits)
	}
}

func TestRemoveRange_ClearsSelectionAndStopsWatch(t *testing.T) {
	f := newFixture(t)
	r := f.mustCreate(t, 10, 20)
	f.editor.Select(r.ID)

	if err := f.editor.RemoveRange(r.ID); err != nil {
		t.Fatal(err)
	}
	if _, ok := f.editor.autostop.Armed(); ok {
		t.Error("auto-stop still armed for a removed range")
	}
	if err := f.editor.RemoveRange(r.ID); err != nil {
		t.Errorf("second RemoveRange error = %v, want nil", err)
	}
	if commits := f.changes(); len(commits) != 1 {
		t.Errorf("commits = %+v, want one removal", commits)
	}
}

func TestSetDuration_TrimsRangesAndSelection(t *testing.T) {
	f := newFixture(t)
	keep := f.mustCreate(t, 10, 20)
	cut := f.mustCreate(t, 40, 70)
	gone := f.mustCreate(t, 80, 90)
	if err := f.editor.Select(gone.ID); err != nil {
		t.Fatal(err)
	}

	if err := f.editor.SetDuration(60); err != nil {
		t.Fatalf("SetDuration(60) error = %v", err)
	}

	if _, ok := f.editor.Selected(); ok {
		t.Error("selection survived its range being dropped")
	}
	if _, ok := f.editor.autostop.Armed(); ok {
		t.Error("auto-stop still armed for a dropped range")
	}
	if r, _ := f.set.Get(cut.ID); r.End != 60 {
		t.Errorf("cut range = %+v, want end 60", r)
	}
	if r, _ := f.set.Get(keep.ID); r != keep {
		t.Errorf("kept range = %+v", r)
	}
	if err := f.set.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
	if got := f.sync.Position().Duration; got != 60 {
		t.Errorf("sync duration = %v, want 60", got)
	}

	commits := f.changes()
	if len(commits) != 2 || commits[0].Kind != ChangeResized || commits[1].Kind != ChangeRemoved || commits[1].Range.ID != gone.ID {
		t.Errorf("commits = %+v", commits)
	}

	if err := f.editor.SetDuration(math.NaN()); !errors.Is(err, ranges.ErrOutOfBounds) {
		t.Errorf("SetDuration(NaN) error = %v, want ErrOutOfBounds", err)
	}
}

func TestSelected_IsWeak(t *testing.T) {
	f := newFixture(t)
	r := f.mustCreate(t, 10, 20)
	f.editor.Select(r.ID)

	// removed behind the editor's back
	f.set.Remove(r.ID)
	if _, ok := f.editor.Selected(); ok {
		t.Error("Selected() reports a range that no longer exists")
	}
	if snap := f.editor.Snapshot(); snap.SelectedID != "" {
		t.Errorf("snapshot selection = %q", snap.SelectedID)
	}
}

func TestSnapshot_Layout(t *testing.T) {
	f := newFixture(t)
	f.mustCreate(t, 60, 80)
	f.mustCreate(t, 0, 5)

	snap := f.editor.Snapshot()
	if len(snap.Ranges) != 2 {
		t.Fatalf("ranges = %d", len(snap.Ranges))
	}
	first, second := snap.Ranges[0], snap.Ranges[1]
	if first.Start != 0 || first.Layout != "hidden" {
		t.Errorf("first = %+v", first)
	}
	if !approx(second.StartPx, 600) || !approx(second.EndPx, 800) || second.Layout != "inline" {
		t.Errorf("second = %+v", second)
	}
	if second.Label != "01:00 - 01:20" {
		t.Errorf("label = %q", second.Label)
	}
}

func TestSetTrackWidth(t *testing.T) {
	f := newFixture(t)
	f.mustCreate(t, 10, 20)

	if err := f.editor.SetTrackWidth(0); !errors.Is(err, ErrInvalidTrackWidth) {
		t.Errorf("SetTrackWidth(0) error = %v", err)
	}
	if err := f.editor.SetTrackWidth(500); err != nil {
		t.Fatal(err)
	}
	if h := f.editor.HitTest(75); h.Target != TargetRangeBody {
		t.Errorf("HitTest(75) at 500 px = %+v", h)
	}
}

func TestClose(t *testing.T) {
	f := newFixture(t)
	r := f.mustCreate(t, 10, 20)
	f.player.Pause()
	if err := f.sync.Start(t.Context()); err != nil {
		t.Fatal(err)
	}
	f.editor.Select(r.ID)
	f.editor.PointerDown(600)

	f.editor.Close()
	f.editor.Close()

	if f.sync.Running() {
		t.Error("position sync still running")
	}
	if _, ok := f.editor.autostop.Armed(); ok {
		t.Error("auto-stop still armed")
	}
	if _, err := f.editor.PointerDown(600); !errors.Is(err, ErrClosed) {
		t.Errorf("PointerDown after Close error = %v", err)
	}
	if _, err := f.editor.CreateRange(30, 40); !errors.Is(err, ErrClosed) {
		t.Errorf("CreateRange after Close error = %v", err)
	}
}
