// Package ui is the agent's system tray menu.
package ui

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/getlantern/systray"

	"github.com/cutdesk/cutdesk-agent/internal/session"
)

const DefaultRefreshInterval = 5 * time.Second

type Tray struct {
	stats    func() session.Stats
	logger   *slog.Logger
	interval time.Duration

	statusItem   *systray.MenuItem
	sessionsItem *systray.MenuItem
	rangesItem   *systray.MenuItem

	mu   sync.Mutex
	done chan struct{}

	onReload   func() error
	onPauseAll func()
	onQuit     func()
}

type TrayConfig struct {
	Stats           func() session.Stats
	RefreshInterval time.Duration
	Logger          *slog.Logger
	OnReload        func() error
	OnPauseAll      func()
	OnQuit          func()
}

func NewTray(cfg TrayConfig) *Tray {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = DefaultRefreshInterval
	}
	return &Tray{
		stats:      cfg.Stats,
		logger:     cfg.Logger,
		interval:   cfg.RefreshInterval,
		done:       make(chan struct{}),
		onReload:   cfg.OnReload,
		onPauseAll: cfg.OnPauseAll,
		onQuit:     cfg.OnQuit,
	}
}

// Run blocks until the tray exits.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("Cutdesk")
	systray.SetTooltip("Cutdesk Agent")

	t.statusItem = systray.AddMenuItem("Status: Idle", "Current agent status")
	t.statusItem.Disable()
	t.sessionsItem = systray.AddMenuItem("Sessions: 0", "Open review sessions")
	t.sessionsItem.Disable()
	t.rangesItem = systray.AddMenuItem("Ranges: 0", "Ranges across all sessions")
	t.rangesItem.Disable()

	systray.AddSeparator()

	reloadItem := systray.AddMenuItem("Reload Manifest", "Fetch the source playlist again")
	pauseAllItem := systray.AddMenuItem("Pause All", "Pause playback in every session")

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit Cutdesk Agent")

	t.refresh()

	go func() {
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				t.refresh()
			case <-reloadItem.ClickedCh:
				t.handleReload()
			case <-pauseAllItem.ClickedCh:
				if t.onPauseAll != nil {
					t.onPauseAll()
				}
				t.refresh()
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			case <-t.done:
				return
			}
		}
	}()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	t.mu.Lock()
	defer t.mu.Unlock()
	select {
	case <-t.done:
	default:
		close(t.done)
	}
	t.logger.Info("system tray exiting")
}

func (t *Tray) handleReload() {
	if t.onReload == nil {
		return
	}
	if err := t.onReload(); err != nil {
		t.logger.Error("failed to reload manifest", "error", err)
		t.UpdateStatus("Upstream error")
		return
	}
	t.UpdateStatus("Manifest reloaded")
}

func (t *Tray) refresh() {
	if t.stats == nil {
		return
	}
	st := t.stats()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessionsItem.SetTitle(countTitle("Sessions", st.Sessions))
	t.rangesItem.SetTitle(countTitle("Ranges", st.Ranges))
}

func (t *Tray) UpdateStatus(status string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.statusItem != nil {
		t.statusItem.SetTitle("Status: " + status)
	}
}

func countTitle(label string, n int) string {
	return fmt.Sprintf("%s: %d", label, n)
}

func (t *Tray) Quit() {
	systray.Quit()
}
