package player

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cutdesk/cutdesk-agent/internal/logging"
)

const (
	DefaultMPVPollInterval = 250 * time.Millisecond
	mpvDialTimeout         = 2 * time.Second
)

var ErrPropertyUnavailable = errors.New("mpv: property unavailable")

type mpvRequest struct {
	Command   []any `json:"command"`
	RequestID int64 `json:"request_id"`
}

type mpvResponse struct {
	Data      json.RawMessage `json:"data"`
	Error     string          `json:"error"`
	RequestID *int64          `json:"request_id"`
	Event     string          `json:"event"`
}

// MPV drives an mpv instance started with --input-ipc-server. Each command
// uses a fresh connection. Time updates are produced by polling time-pos.
type MPV struct {
	socketPath   string
	pollInterval time.Duration
	logger       *slog.Logger
	requestID    atomic.Int64

	subs listeners

	mu     sync.Mutex
	stop   chan struct{}
	wg     sync.WaitGroup
	closed bool
}

func NewMPV(socketPath string, pollInterval time.Duration, logger *slog.Logger) *MPV {
	if pollInterval <= 0 {
		pollInterval = DefaultMPVPollInterval
	}
	return &MPV{
		socketPath:   socketPath,
		pollInterval: pollInterval,
		logger:       logging.WithComponent(logging.OrDiscard(logger), "mpv"),
	}
}

// Command sends one IPC command and returns the raw data field of its reply.
func (m *MPV) Command(args ...any) (json.RawMessage, error) {
	conn, err := net.DialTimeout("unix", m.socketPath, mpvDialTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial mpv socket: %w", err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(mpvDialTimeout))

	req := mpvRequest{Command: args, RequestID: m.requestID.Add(1)}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal mpv command: %w", err)
	}
	if _, err := conn.Write(append(payload, '\n')); err != nil {
		return nil, fmt.Errorf("write mpv command: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var resp mpvResponse
		if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
			m.logger.Debug("skipping malformed mpv line", "line", scanner.Text())
			continue
		}
		// Async events share the socket with replies.
		if resp.Event != "" || resp.RequestID == nil || *resp.RequestID != req.RequestID {
			continue
		}
		switch resp.Error {
		case "success":
			return resp.Data, nil
		case "property unavailable":
			return nil, ErrPropertyUnavailable
		default:
			return nil, fmt.Errorf("mpv: %s", resp.Error)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read mpv reply: %w", err)
	}
	return nil, errors.New("mpv closed the connection without a reply")
}

func (m *MPV) floatProperty(name string) (float64, error) {
	data, err := m.Command("get_property", name)
	if err != nil {
		return 0, err
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return 0, fmt.Errorf("decode %s: %w", name, err)
	}
	return v, nil
}

func (m *MPV) CurrentTime() (float64, error) {
	t, err := m.floatProperty("time-pos")
	if errors.Is(err, ErrPropertyUnavailable) {
		return 0, nil
	}
	return t, err
}

func (m *MPV) Duration() (float64, error) {
	d, err := m.floatProperty("duration")
	if errors.Is(err, ErrPropertyUnavailable) {
		return 0, nil
	}
	return d, err
}

func (m *MPV) Seek(t float64) error {
	_, err := m.Command("set_property", "time-pos", t)
	return err
}

func (m *MPV) Play() error {
	_, err := m.Command("set_property", "pause", false)
	return err
}

func (m *MPV) Pause() error {
	_, err := m.Command("set_property", "pause", true)
	return err
}

// LoadFile replaces the current media, used after a merged playlist is published.
func (m *MPV) LoadFile(url string) error {
	_, err := m.Command("loadfile", url, "replace")
	return err
}

// OnTimeUpdate starts the time-pos poller on first use.
func (m *MPV) OnTimeUpdate(fn func(float64)) func() {
	unsubscribe := m.subs.add(fn)
	m.startPoller()
	return unsubscribe
}

func (m *MPV) startPoller() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stop != nil || m.closed {
		return
	}
	m.stop = make(chan struct{})
	stop := m.stop

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.pollInterval)
		defer ticker.Stop()

		last := -1.0
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if m.subs.len() == 0 {
					continue
				}
				t, err := m.CurrentTime()
				if err != nil {
					m.logger.Debug("poll time-pos failed", "error", err)
					continue
				}
				if t != last {
					last = t
					m.subs.emit(t)
				}
			}
		}
	}()
}

// Close stops polling. The mpv process itself is left running.
func (m *MPV) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	stop := m.stop
	m.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	m.wg.Wait()
	return nil
}
