package api

import (
	"net/http"
	"strconv"

	"github.com/cutdesk/cutdesk-agent/internal/gesture"
	"github.com/cutdesk/cutdesk-agent/internal/session"
	"github.com/cutdesk/cutdesk-agent/internal/timeline"
)

const defaultMergeLimit = 20

func listSessionsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, SessionsResponse{Sessions: cfg.Sessions.List()})
	}
}

func openSessionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req OpenSessionRequest
		if !decode(cfg, w, r, &req) {
			return
		}

		l, err := cfg.Sessions.Open(r.Context(), session.OpenRequest{
			Source:              req.Source,
			Duration:            req.Duration,
			TrackWidthPx:        req.TrackWidthPx,
			TickIntervalMinutes: req.TickIntervalMinutes,
		})
		if err != nil {
			writeServiceError(w, r, cfg, err)
			return
		}
		WriteJSON(w, http.StatusCreated, sessionResponse(l))
	}
}

func getSessionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l, ok := liveSession(cfg, w, r)
		if !ok {
			return
		}
		WriteJSON(w, http.StatusOK, sessionResponse(l))
	}
}

func closeSessionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Sessions.Close(r.Context(), sessionID(r)); err != nil {
			writeServiceError(w, r, cfg, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// pointerHandler feeds one pointer event to the session's editor.
func pointerHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l, ok := liveSession(cfg, w, r)
		if !ok {
			return
		}
		var req PointerRequest
		if !decode(cfg, w, r, &req) {
			return
		}

		ed := l.Editor()
		resp := PointerResponse{}
		var err error
		switch req.Event {
		case "down":
			resp.Mode, err = ed.PointerDown(req.Px)
			resp.Handled = err == nil && resp.Mode != gesture.ModeNone
		case "move":
			resp.Handled = ed.PointerMove(req.Px)
		case "up":
			resp.Handled = ed.PointerUp(req.Px)
		case "blur":
			ed.Blur()
			resp.Handled = true
		case "double_click":
			err = ed.DoubleClick(req.Px)
			resp.Handled = err == nil
		}
		if err != nil {
			writeServiceError(w, r, cfg, err)
			return
		}

		resp.Editor = ed.Snapshot()
		if resp.Mode == gesture.ModeNone {
			resp.Mode = resp.Editor.Mode
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func trackHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l, ok := liveSession(cfg, w, r)
		if !ok {
			return
		}
		var req TrackRequest
		if !decode(cfg, w, r, &req) {
			return
		}

		var interval timeline.Interval
		if req.TickIntervalMinutes != 0 {
			iv, err := timeline.ParseInterval(req.TickIntervalMinutes)
			if err != nil {
				writeServiceError(w, r, cfg, err)
				return
			}
			interval = iv
		}

		if _, err := l.SetTrack(r.Context(), req.WidthPx, interval); err != nil {
			writeServiceError(w, r, cfg, err)
			return
		}
		WriteJSON(w, http.StatusOK, sessionResponse(l))
	}
}

func ticksHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l, ok := liveSession(cfg, w, r)
		if !ok {
			return
		}
		ticks := l.Ticks()
		if ticks == nil {
			ticks = []timeline.Tick{}
		}
		WriteJSON(w, http.StatusOK, TicksResponse{Interval: l.Session().TickInterval(), Ticks: ticks})
	}
}

func mergeHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := cfg.Sessions.Merge(r.Context(), sessionID(r))
		if err != nil {
			writeServiceError(w, r, cfg, err)
			return
		}
		WriteJSON(w, http.StatusCreated, m)
	}
}

func listMergesHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultMergeLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 || n > 200 {
				WriteError(w, http.StatusBadRequest, "limit must be between 1 and 200", "BAD_REQUEST")
				return
			}
			limit = n
		}

		merges, err := cfg.Sessions.Merges(r.Context(), sessionID(r), limit)
		if err != nil {
			writeServiceError(w, r, cfg, err)
			return
		}
		if merges == nil {
			merges = []*session.Merge{}
		}
		WriteJSON(w, http.StatusOK, MergesResponse{Merges: merges})
	}
}

func thumbnailsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l, ok := liveSession(cfg, w, r)
		if !ok {
			return
		}
		WriteJSON(w, http.StatusOK, l.Thumbnails())
	}
}

func thumbnailImageHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l, ok := liveSession(cfg, w, r)
		if !ok {
			return
		}
		path := r.URL.Query().Get("path")
		if path == "" {
			WriteError(w, http.StatusBadRequest, "path is required", "BAD_REQUEST")
			return
		}

		data, contentType, found := l.ThumbnailImage(path)
		if !found {
			WriteError(w, http.StatusNotFound, "thumbnail not loaded", "NOT_FOUND")
			return
		}
		if contentType == "" {
			contentType = "image/jpeg"
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Cache-Control", "max-age=3600")
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	}
}

func sessionResponse(l *session.Live) SessionResponse {
	return SessionResponse{Session: l.Session(), Editor: l.Editor().Snapshot()}
}
