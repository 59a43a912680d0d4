package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cutdesk/cutdesk-agent/internal/ranges"
)

func listRangesHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l, ok := liveSession(cfg, w, r)
		if !ok {
			return
		}
		ed := l.Editor()
		selected, _ := ed.Selected()
		WriteJSON(w, http.StatusOK, RangesResponse{Ranges: ed.Set().ListSorted(), SelectedID: selected})
	}
}

func createRangeHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l, ok := liveSession(cfg, w, r)
		if !ok {
			return
		}
		var req CreateRangeRequest
		if !decode(cfg, w, r, &req) {
			return
		}

		rng, err := l.Editor().CreateRange(req.Start, req.End)
		if err != nil {
			writeServiceError(w, r, cfg, err)
			return
		}
		WriteJSON(w, http.StatusCreated, rng)
	}
}

func updateRangeHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l, ok := liveSession(cfg, w, r)
		if !ok {
			return
		}
		var req UpdateRangeRequest
		if !decode(cfg, w, r, &req) {
			return
		}
		rangeID := chi.URLParam(r, "rangeID")

		var (
			rng ranges.Range
			err error
		)
		switch {
		case req.Handle != "" && req.Start != nil:
			WriteError(w, http.StatusBadRequest, "use either start or handle, not both", "BAD_REQUEST")
			return
		case req.Handle != "" && req.Time == nil:
			WriteError(w, http.StatusBadRequest, "time is required with handle", "BAD_REQUEST")
			return
		case req.Handle != "":
			h, perr := ranges.ParseHandle(req.Handle)
			if perr != nil {
				writeServiceError(w, r, cfg, perr)
				return
			}
			rng, err = l.Editor().ResizeRange(rangeID, h, *req.Time)
		case req.Start != nil:
			rng, err = l.Editor().MoveRange(rangeID, *req.Start)
		default:
			WriteError(w, http.StatusBadRequest, "start or handle is required", "BAD_REQUEST")
			return
		}
		if err != nil {
			writeServiceError(w, r, cfg, err)
			return
		}
		WriteJSON(w, http.StatusOK, rng)
	}
}

func deleteRangeHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l, ok := liveSession(cfg, w, r)
		if !ok {
			return
		}
		if err := l.Editor().RemoveRange(chi.URLParam(r, "rangeID")); err != nil {
			writeServiceError(w, r, cfg, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// deleteSelectedHandler is the console's Clear button: with no selection it
// answers 412 so the console can offer clearing everything.
func deleteSelectedHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l, ok := liveSession(cfg, w, r)
		if !ok {
			return
		}
		rng, err := l.Editor().DeleteSelected()
		if err != nil {
			writeServiceError(w, r, cfg, err)
			return
		}
		WriteJSON(w, http.StatusOK, rng)
	}
}

func clearRangesHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l, ok := liveSession(cfg, w, r)
		if !ok {
			return
		}
		confirm, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))

		n, err := l.Editor().ClearAll(confirm)
		if err != nil {
			writeServiceError(w, r, cfg, err)
			return
		}
		WriteJSON(w, http.StatusOK, ClearResponse{Removed: n})
	}
}

func selectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l, ok := liveSession(cfg, w, r)
		if !ok {
			return
		}
		var req SelectRequest
		if !decode(cfg, w, r, &req) {
			return
		}
		if err := l.Editor().Select(req.RangeID); err != nil {
			writeServiceError(w, r, cfg, err)
			return
		}
		WriteJSON(w, http.StatusOK, l.Editor().Snapshot())
	}
}

func clearSelectionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l, ok := liveSession(cfg, w, r)
		if !ok {
			return
		}
		l.Editor().ClearSelection()
		w.WriteHeader(http.StatusNoContent)
	}
}
