// Package config provides configuration management for the cutdesk agent.
// Configuration is loaded from environment variables with sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	// Default values
	DefaultPort     = 8797
	DefaultLogLevel = "info"
	DefaultDataDir  = ".cutdesk"

	DefaultPlayer        = PlayerVirtual
	DefaultMPVSocket     = "/tmp/cutdesk-mpv.sock"
	DefaultTouchEpsilon  = 0.1
	DefaultMinSpan       = 0.1
	DefaultCreateDelay   = 250 * time.Millisecond
	DefaultFrameInterval = 16 * time.Millisecond
	DefaultHandleWidth   = 8.0
	DefaultTrackWidth    = 1000.0
	DefaultThumbnails    = 10
	DefaultTickInterval  = 5
	DefaultUpstreamRPS   = 5.0
	DefaultUpstreamBurst = 10

	// Environment variable names
	EnvPort          = "CUTDESK_PORT"
	EnvLogLevel      = "CUTDESK_LOG_LEVEL"
	EnvDataDir       = "CUTDESK_DATA_DIR"
	EnvUpstreamURL   = "CUTDESK_UPSTREAM_URL"
	EnvUpstreamToken = "CUTDESK_UPSTREAM_TOKEN"
	EnvUpstreamRPS   = "CUTDESK_UPSTREAM_RPS"
	EnvUpstreamBurst = "CUTDESK_UPSTREAM_BURST"
	EnvManifestFile  = "CUTDESK_MANIFEST_FILE"
	EnvMediaDir      = "CUTDESK_MEDIA_DIR"
	EnvThumbnailsDir = "CUTDESK_THUMBNAILS_DIR"
	EnvPlayer        = "CUTDESK_PLAYER"
	EnvMPVSocket     = "CUTDESK_MPV_SOCKET"
	EnvTouchEpsilon  = "CUTDESK_TOUCH_EPSILON"
	EnvMinSpan       = "CUTDESK_MIN_SPAN"
	EnvCreateDelay   = "CUTDESK_CREATE_DELAY"
	EnvFrameInterval = "CUTDESK_FRAME_INTERVAL"
	EnvHandleWidth   = "CUTDESK_HANDLE_WIDTH"
	EnvTrackWidth    = "CUTDESK_TRACK_WIDTH"
	EnvThumbnails    = "CUTDESK_THUMBNAILS"
	EnvTickInterval  = "CUTDESK_TICK_INTERVAL"
	EnvCORSOrigins   = "CUTDESK_CORS_ORIGINS"
	EnvHeadless      = "CUTDESK_HEADLESS"

	// Database filename
	DBFilename = "cutdesk.db"

	PlayerVirtual = "virtual"
	PlayerMPV     = "mpv"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	UpstreamURL() string
	UpstreamToken() string
	UpstreamRPS() float64
	UpstreamBurst() int
	ManifestFile() string
	MediaDir() string
	ThumbnailsDir() string
	Player() string
	MPVSocket() string
	TouchEpsilon() float64
	MinSpan() float64
	CreateDelay() time.Duration
	FrameInterval() time.Duration
	HandleWidth() float64
	TrackWidth() float64
	Thumbnails() int
	TickInterval() int
	CORSOrigins() []string
	Headless() bool
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port     int
	logLevel string
	dataDir  string

	upstreamURL   string
	upstreamToken string
	upstreamRPS   float64
	upstreamBurst int
	manifestFile  string
	mediaDir      string
	thumbnailsDir string

	player    string
	mpvSocket string

	touchEpsilon  float64
	minSpan       float64
	createDelay   time.Duration
	frameInterval time.Duration
	handleWidth   float64
	trackWidth    float64
	thumbnails    int
	tickInterval  int

	corsOrigins []string
	headless    bool
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:          DefaultPort,
		logLevel:      DefaultLogLevel,
		dataDir:       defaultDataDir(),
		upstreamRPS:   DefaultUpstreamRPS,
		upstreamBurst: DefaultUpstreamBurst,
		player:        DefaultPlayer,
		mpvSocket:     DefaultMPVSocket,
		touchEpsilon:  DefaultTouchEpsilon,
		minSpan:       DefaultMinSpan,
		createDelay:   DefaultCreateDelay,
		frameInterval: DefaultFrameInterval,
		handleWidth:   DefaultHandleWidth,
		trackWidth:    DefaultTrackWidth,
		thumbnails:    DefaultThumbnails,
		tickInterval:  DefaultTickInterval,
	}

	// Override port from environment
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}
	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	cfg.upstreamURL = strings.TrimRight(os.Getenv(EnvUpstreamURL), "/")
	cfg.upstreamToken = os.Getenv(EnvUpstreamToken)
	cfg.manifestFile = os.Getenv(EnvManifestFile)
	cfg.mediaDir = os.Getenv(EnvMediaDir)
	cfg.thumbnailsDir = os.Getenv(EnvThumbnailsDir)
	if cfg.mediaDir == "" && cfg.manifestFile != "" {
		cfg.mediaDir = filepath.Dir(cfg.manifestFile)
	}

	if pk := os.Getenv(EnvPlayer); pk != "" {
		switch pk {
		case PlayerVirtual, PlayerMPV:
			cfg.player = pk
		default:
			return nil, fmt.Errorf("invalid %s: %q is not one of %s, %s", EnvPlayer, pk, PlayerVirtual, PlayerMPV)
		}
	}
	if s := os.Getenv(EnvMPVSocket); s != "" {
		cfg.mpvSocket = s
	}

	var err error
	if cfg.upstreamRPS, err = positiveFloat(EnvUpstreamRPS, cfg.upstreamRPS); err != nil {
		return nil, err
	}
	if cfg.upstreamBurst, err = positiveInt(EnvUpstreamBurst, cfg.upstreamBurst); err != nil {
		return nil, err
	}
	if cfg.touchEpsilon, err = positiveFloat(EnvTouchEpsilon, cfg.touchEpsilon); err != nil {
		return nil, err
	}
	if cfg.minSpan, err = positiveFloat(EnvMinSpan, cfg.minSpan); err != nil {
		return nil, err
	}
	if cfg.handleWidth, err = positiveFloat(EnvHandleWidth, cfg.handleWidth); err != nil {
		return nil, err
	}
	if cfg.trackWidth, err = positiveFloat(EnvTrackWidth, cfg.trackWidth); err != nil {
		return nil, err
	}
	if cfg.thumbnails, err = positiveInt(EnvThumbnails, cfg.thumbnails); err != nil {
		return nil, err
	}
	if cfg.createDelay, err = duration(EnvCreateDelay, cfg.createDelay, 0); err != nil {
		return nil, err
	}
	if cfg.frameInterval, err = duration(EnvFrameInterval, cfg.frameInterval, time.Millisecond); err != nil {
		return nil, err
	}

	if ti := os.Getenv(EnvTickInterval); ti != "" {
		n, err := strconv.Atoi(ti)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvTickInterval, err)
		}
		switch n {
		case 1, 3, 5, 10:
			cfg.tickInterval = n
		default:
			return nil, fmt.Errorf("invalid %s: %d is not one of 1, 3, 5, 10", EnvTickInterval, n)
		}
	}

	if origins := os.Getenv(EnvCORSOrigins); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.corsOrigins = append(cfg.corsOrigins, o)
			}
		}
	}

	if h := os.Getenv(EnvHeadless); h != "" {
		v, err := strconv.ParseBool(h)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvHeadless, err)
		}
		cfg.headless = v
	}

	return cfg, nil
}

func positiveFloat(env string, def float64) (float64, error) {
	s := os.Getenv(env)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", env, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", env)
	}
	return v, nil
}

func positiveInt(env string, def int) (int, error) {
	s := os.Getenv(env)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", env, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", env)
	}
	return v, nil
}

func duration(env string, def, floor time.Duration) (time.Duration, error) {
	s := os.Getenv(env)
	if s == "" {
		return def, nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", env, err)
	}
	if v < floor {
		return 0, fmt.Errorf("invalid %s: must be at least %s", env, floor)
	}
	return v, nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// UpstreamURL is the base URL of the HLS service. Empty means local files.
func (c *EnvConfig) UpstreamURL() string {
	return c.upstreamURL
}

func (c *EnvConfig) UpstreamToken() string {
	return c.upstreamToken
}

func (c *EnvConfig) UpstreamRPS() float64 {
	return c.upstreamRPS
}

func (c *EnvConfig) UpstreamBurst() int {
	return c.upstreamBurst
}

func (c *EnvConfig) ManifestFile() string {
	return c.manifestFile
}

// MediaDir holds local segments; it defaults to the manifest file's directory.
func (c *EnvConfig) MediaDir() string {
	return c.mediaDir
}

func (c *EnvConfig) ThumbnailsDir() string {
	return c.thumbnailsDir
}

// Player is "virtual" or "mpv".
func (c *EnvConfig) Player() string {
	return c.player
}

func (c *EnvConfig) MPVSocket() string {
	return c.mpvSocket
}

func (c *EnvConfig) TouchEpsilon() float64 {
	return c.touchEpsilon
}

func (c *EnvConfig) MinSpan() float64 {
	return c.minSpan
}

func (c *EnvConfig) CreateDelay() time.Duration {
	return c.createDelay
}

func (c *EnvConfig) FrameInterval() time.Duration {
	return c.frameInterval
}

func (c *EnvConfig) HandleWidth() float64 {
	return c.handleWidth
}

func (c *EnvConfig) TrackWidth() float64 {
	return c.trackWidth
}

// Thumbnails is the maximum number of frames in a strip.
func (c *EnvConfig) Thumbnails() int {
	return c.thumbnails
}

// TickInterval is the default major tick interval in minutes.
func (c *EnvConfig) TickInterval() int {
	return c.tickInterval
}

func (c *EnvConfig) CORSOrigins() []string {
	return c.corsOrigins
}

func (c *EnvConfig) Headless() bool {
	return c.headless
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
