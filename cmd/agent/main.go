package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/cutdesk/cutdesk-agent/internal/api"
	"github.com/cutdesk/cutdesk-agent/internal/config"
	"github.com/cutdesk/cutdesk-agent/internal/db"
	"github.com/cutdesk/cutdesk-agent/internal/gesture"
	"github.com/cutdesk/cutdesk-agent/internal/hlsclient"
	"github.com/cutdesk/cutdesk-agent/internal/logging"
	"github.com/cutdesk/cutdesk-agent/internal/playback"
	"github.com/cutdesk/cutdesk-agent/internal/player"
	"github.com/cutdesk/cutdesk-agent/internal/ranges"
	"github.com/cutdesk/cutdesk-agent/internal/session"
	"github.com/cutdesk/cutdesk-agent/internal/timeline"
	"github.com/cutdesk/cutdesk-agent/internal/ui"
	"github.com/cutdesk/cutdesk-agent/internal/validation"
	"github.com/cutdesk/cutdesk-agent/internal/watcher"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting cutdesk agent", "version", config.Version, "data_dir", cfg.DataDir())

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := session.NewRepository(database.Conn())

	deviceID, err := ensureDeviceID(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure device ID: %w", err)
	}
	authToken, err := ensureAuthToken(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	localBase := fmt.Sprintf("http://127.0.0.1:%d", cfg.Port())

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Printf("║  %-56s ║\n", "CUTDESK AGENT v"+config.Version)
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    %-45s ║\n", localBase)
	fmt.Printf("║  Auth Token: %-45s ║\n", authToken)
	fmt.Printf("║  Device ID:  %-45s ║\n", deviceID)
	fmt.Printf("║  Player:     %-45s ║\n", cfg.Player())
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	client := newHLSClient(cfg, localBase, logger)
	var thumbs hlsclient.ThumbnailSource = client
	if cfg.UpstreamURL() == "" && cfg.ThumbnailsDir() == "" {
		thumbs = nil
	}

	interval, err := timeline.ParseInterval(cfg.TickInterval())
	if err != nil {
		return fmt.Errorf("invalid tick interval: %w", err)
	}

	sessions := session.NewService(session.Config{
		Repository: repo,
		Manifests:  client,
		Thumbnails: thumbs,
		NewPlayer:  playerFactory(cfg, localBase, logger),
		Ranges: ranges.Options{
			TouchEpsilon: cfg.TouchEpsilon(),
			MinSpan:      cfg.MinSpan(),
		},
		Gesture: gesture.Config{
			HandleWidthPx: cfg.HandleWidth(),
			CreateDelay:   cfg.CreateDelay(),
		},
		FrameInterval:  cfg.FrameInterval(),
		ThumbnailLimit: cfg.Thumbnails(),
		TrackWidthPx:   cfg.TrackWidth(),
		TickInterval:   interval,
		Logger:         logger,
	})

	loadCtx, loadCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if n, err := sessions.Load(loadCtx); err != nil {
		logger.Warn("failed to restore sessions", "error", err)
	} else if n > 0 {
		logger.Info("restored review sessions", "count", n)
	}
	loadCancel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.UpstreamURL() == "" && cfg.ManifestFile() != "" {
		w, err := watchManifest(ctx, cfg.ManifestFile(), sessions, logger)
		if err != nil {
			logger.Warn("manifest watcher unavailable", "error", err)
		} else {
			defer w.Stop()
		}
	}

	var media *playback.MediaServer
	if cfg.MediaDir() != "" {
		media = playback.NewMediaServer(cfg.MediaDir(), logger)
	}

	apiServer := api.NewServer(api.ServerConfig{
		Port:        cfg.Port(),
		Sessions:    sessions,
		Store:       repo,
		Media:       media,
		Validator:   validation.New(),
		CORSOrigins: cfg.CORSOrigins(),
		Logger:      logger,
		StartTime:   startTime,
		DeviceID:    deviceID,
		Version:     config.Version,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	quitCh := make(chan struct{})
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			close(quitCh)
		case <-quitCh:
		}
	}()

	if cfg.Headless() {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray := ui.NewTray(ui.TrayConfig{
			Stats:  sessions.Stats,
			Logger: logger,
			OnReload: func() error {
				rctx, rcancel := context.WithTimeout(ctx, 15*time.Second)
				defer rcancel()
				return sessions.ReloadManifest(rctx)
			},
			OnPauseAll: func() {
				logger.Info("paused sessions from tray", "count", sessions.PauseAll())
			},
			OnQuit: func() {
				close(quitCh)
			},
		})
		go tray.Run()
	}

	<-quitCh

	logger.Info("initiating graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}
	sessions.Shutdown()

	logger.Info("shutdown complete")
	return nil
}

// newHLSClient talks to the upstream console backend when one is configured
// and otherwise serves the manifest and merged playlists from local files.
func newHLSClient(cfg config.Config, localBase string, logger *slog.Logger) hlsclient.Client {
	if cfg.UpstreamURL() != "" {
		logger.Info("using upstream media service", "url", cfg.UpstreamURL())
		return hlsclient.NewHTTPClient(cfg.UpstreamURL(), cfg.UpstreamToken(), cfg.UpstreamRPS(), cfg.UpstreamBurst(), logger)
	}
	logger.Info("using local media files",
		"manifest", logging.SanitizePath(cfg.ManifestFile()),
		"media_dir", logging.SanitizePath(cfg.MediaDir()),
	)
	return hlsclient.NewLocalClient(hlsclient.LocalConfig{
		ManifestPath:  cfg.ManifestFile(),
		PublishDir:    cfg.MediaDir(),
		PublicURL:     localBase + "/media",
		ThumbnailsDir: cfg.ThumbnailsDir(),
		Logger:        logger,
	})
}

func playerFactory(cfg config.Config, localBase string, logger *slog.Logger) session.PlayerFactory {
	if cfg.Player() == config.PlayerMPV {
		return func(ctx context.Context, s session.Session) (playback.Player, error) {
			m := player.NewMPV(cfg.MPVSocket(), 0, logger)
			if err := m.LoadFile(mediaURL(localBase, s.Source)); err != nil {
				m.Close()
				return nil, err
			}
			return m, nil
		}
	}
	return func(ctx context.Context, s session.Session) (playback.Player, error) {
		v := player.NewVirtual(s.Duration)
		v.Run(cfg.FrameInterval())
		return v, nil
	}
}

// mediaURL leaves absolute URLs alone and maps anything else into /media.
func mediaURL(localBase, source string) string {
	if u, err := url.Parse(source); err == nil && u.Scheme != "" {
		return source
	}
	return localBase + "/media/" + strings.TrimLeft(source, "/")
}

func watchManifest(ctx context.Context, path string, sessions *session.Service, logger *slog.Logger) (*watcher.FSWatcher, error) {
	w, err := watcher.NewFSWatcher(watcher.DefaultDebounce, logger)
	if err != nil {
		return nil, err
	}
	w.OnChange(func(p string, ev watcher.EventType) {
		if ev == watcher.EventDelete {
			logger.Warn("manifest file removed", "path", logging.SanitizePath(p))
			return
		}
		rctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := sessions.ReloadManifest(rctx); err != nil {
			logger.Warn("manifest reload failed", "error", err)
		}
	})
	if err := w.Watch(ctx, path); err != nil {
		w.Stop()
		return nil, err
	}
	return w, nil
}

func ensureDeviceID(repo session.Repository) (string, error) {
	ctx := context.Background()

	if existing, err := repo.GetConfig(ctx, "device_id"); err == nil && existing != "" {
		return existing, nil
	}
	deviceID := uuid.NewString()
	if err := repo.SetConfig(ctx, "device_id", deviceID); err != nil {
		return "", err
	}
	return deviceID, nil
}

func ensureAuthToken(repo session.Repository) (string, error) {
	ctx := context.Background()

	if existing, err := repo.GetConfig(ctx, "auth_token"); err == nil && existing != "" {
		return existing, nil
	}
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)
	if err := repo.SetConfig(ctx, "auth_token", token); err != nil {
		return "", err
	}
	return token, nil
}
