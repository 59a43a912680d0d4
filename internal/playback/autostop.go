package playback

import (
	"log/slog"
	"sync"

	"github.com/cutdesk/cutdesk-agent/internal/logging"
)

// EndLookup returns the current end of a range, or false once it is gone.
type EndLookup func(rangeID string) (end float64, ok bool)

// AutoStop pauses the player when playback reaches the end of the selected
// range. At most one watch is armed; arming again or disarming removes the
// previous one first. The end is looked up on every time update so a range
// resized while playing stops at its new end.
type AutoStop struct {
	player Player
	lookup EndLookup
	logger *slog.Logger

	mu          sync.Mutex
	rangeID     string
	gen         uint64
	unsubscribe func()
}

func NewAutoStop(player Player, lookup EndLookup, logger *slog.Logger) *AutoStop {
	return &AutoStop{player: player, lookup: lookup, logger: logging.OrDiscard(logger)}
}

func (a *AutoStop) Arm(rangeID string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.disarmLocked()
	a.gen++
	gen := a.gen
	a.rangeID = rangeID
	a.unsubscribe = a.player.OnTimeUpdate(func(t float64) {
		a.onTimeUpdate(gen, t)
	})
	a.logger.Debug("auto-stop armed", "range_id", rangeID)
}

func (a *AutoStop) Disarm() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.disarmLocked()
}

// Armed returns the watched range id.
func (a *AutoStop) Armed() (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rangeID, a.unsubscribe != nil
}

func (a *AutoStop) onTimeUpdate(gen uint64, t float64) {
	a.mu.Lock()
	if gen != a.gen || a.unsubscribe == nil {
		a.mu.Unlock()
		return
	}
	end, ok := a.lookup(a.rangeID)
	if !ok {
		a.disarmLocked()
		a.mu.Unlock()
		return
	}
	if t < end {
		a.mu.Unlock()
		return
	}
	rangeID := a.rangeID
	a.disarmLocked()
	a.mu.Unlock()

	if err := a.player.Pause(); err != nil {
		a.logger.Warn("auto-stop pause failed", "range_id", rangeID, "error", err)
		return
	}
	a.logger.Debug("auto-stop reached range end", "range_id", rangeID, "time", t, "end", end)
}

func (a *AutoStop) disarmLocked() {
	if a.unsubscribe != nil {
		a.unsubscribe()
		a.unsubscribe = nil
	}
	a.rangeID = ""
}
