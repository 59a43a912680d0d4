package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cutdesk/cutdesk-agent/internal/logging"
	"github.com/cutdesk/cutdesk-agent/internal/playback"
	"github.com/cutdesk/cutdesk-agent/internal/session"
	"github.com/cutdesk/cutdesk-agent/internal/validation"
)

const maxBodyBytes = 1 << 20

func NewRouter(cfg ServerConfig) *chi.Mux {
	if cfg.Validator == nil {
		cfg.Validator = validation.New()
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(CORS(cfg.CORSOrigins))

	r.Get("/health", healthHandler(cfg))
	r.Get("/playlists/{name}", mergedPlaylistHandler(cfg))
	if cfg.Media != nil {
		r.Get("/media/*", mediaHandler(cfg))
	}

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Store, cfg.Logger))

		r.Get("/status", statusHandler(cfg))
		r.Post("/manifest/reload", reloadManifestHandler(cfg))

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", listSessionsHandler(cfg))
			r.Post("/", openSessionHandler(cfg))

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", getSessionHandler(cfg))
				r.Delete("/", closeSessionHandler(cfg))

				r.Post("/pointer", pointerHandler(cfg))
				r.Put("/track", trackHandler(cfg))
				r.Get("/ticks", ticksHandler(cfg))

				r.Get("/ranges", listRangesHandler(cfg))
				r.Post("/ranges", createRangeHandler(cfg))
				r.Delete("/ranges", clearRangesHandler(cfg))
				r.Delete("/ranges/selected", deleteSelectedHandler(cfg))
				r.Patch("/ranges/{rangeID}", updateRangeHandler(cfg))
				r.Delete("/ranges/{rangeID}", deleteRangeHandler(cfg))

				r.Put("/selection", selectHandler(cfg))
				r.Delete("/selection", clearSelectionHandler(cfg))

				r.Post("/merge", mergeHandler(cfg))
				r.Get("/merges", listMergesHandler(cfg))

				r.Get("/thumbnails", thumbnailsHandler(cfg))
				r.Get("/thumbnails/image", thumbnailImageHandler(cfg))

				r.Post("/export", exportHandler(cfg))
			})
		})
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:   "ok",
			Version:  cfg.Version,
			UptimeS:  int64(time.Since(cfg.StartTime).Seconds()),
			DeviceID: cfg.DeviceID,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := cfg.Sessions.Stats()
		WriteJSON(w, http.StatusOK, StatusResponse{Sessions: st.Sessions, Ranges: st.Ranges})
	}
}

func reloadManifestHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Sessions.ReloadManifest(r.Context()); err != nil {
			writeServiceError(w, r, cfg, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// mergedPlaylistHandler serves a recorded merge as /playlists/<merge id>.m3u8.
func mergedPlaylistHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mergeID, ok := strings.CutSuffix(chi.URLParam(r, "name"), ".m3u8")
		if !ok || mergeID == "" {
			WriteError(w, http.StatusNotFound, "playlist not found", "NOT_FOUND")
			return
		}

		m, err := cfg.Sessions.GetMerge(r.Context(), mergeID)
		if err != nil {
			writeServiceError(w, r, cfg, err)
			return
		}
		if m == nil || m.Playlist == "" {
			WriteError(w, http.StatusNotFound, "playlist not found", "NOT_FOUND")
			return
		}

		w.Header().Set("Content-Type", playback.ContentTypePlaylist)
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(m.Playlist))
	}
}

func mediaHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "*")
		if err := cfg.Media.ServeFile(w, r, name); err != nil {
			requestLogger(cfg, r).Error("media serve error", "error", err, "name", logging.SanitizePath(name))
			WriteError(w, http.StatusInternalServerError, "failed to read media", "INTERNAL_ERROR")
		}
	}
}

// decode reads a JSON body into dst and validates it. On failure the
// response has been written.
func decode(cfg ServerConfig, w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
		return false
	}
	if err := cfg.Validator.Validate(dst); err != nil {
		writeServiceError(w, r, cfg, err)
		return false
	}
	return true
}

// liveSession resolves the {id} path parameter.
func liveSession(cfg ServerConfig, w http.ResponseWriter, r *http.Request) (*session.Live, bool) {
	l, err := cfg.Sessions.Get(sessionID(r))
	if err != nil {
		writeServiceError(w, r, cfg, err)
		return nil, false
	}
	return l, true
}

func sessionID(r *http.Request) string {
	return chi.URLParam(r, "id")
}
