package api

import (
	"errors"
	"net/http"

	"github.com/cutdesk/cutdesk-agent/internal/export"
	"github.com/cutdesk/cutdesk-agent/internal/gesture"
	"github.com/cutdesk/cutdesk-agent/internal/ranges"
	"github.com/cutdesk/cutdesk-agent/internal/session"
	"github.com/cutdesk/cutdesk-agent/internal/stitch"
	"github.com/cutdesk/cutdesk-agent/internal/timeline"
	"github.com/cutdesk/cutdesk-agent/internal/validation"
)

// writeServiceError maps domain errors onto HTTP statuses. Rejected edits
// are 409; preconditions the user has to resolve are 412.
func writeServiceError(w http.ResponseWriter, r *http.Request, cfg ServerConfig, err error) {
	logger := requestLogger(cfg, r)

	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		WriteJSON(w, http.StatusBadRequest, ErrorResponse{Error: verr.Error(), Code: "VALIDATION_FAILED", Fields: verr.Fields})

	case errors.Is(err, session.ErrNotFound), errors.Is(err, ranges.ErrNotFound):
		WriteError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")

	case errors.Is(err, ranges.ErrEmptySpan),
		errors.Is(err, ranges.ErrOutOfBounds),
		errors.Is(err, ranges.ErrOverlap),
		errors.Is(err, ranges.ErrCrossesBoundary),
		errors.Is(err, ranges.ErrDuplicateID),
		errors.Is(err, ranges.ErrNoDuration):
		WriteError(w, http.StatusConflict, err.Error(), "REJECTED")

	case errors.Is(err, gesture.ErrBusy):
		WriteError(w, http.StatusConflict, err.Error(), "BUSY")
	case errors.Is(err, gesture.ErrClosed):
		WriteError(w, http.StatusGone, err.Error(), "CLOSED")

	case errors.Is(err, gesture.ErrNoSelection),
		errors.Is(err, gesture.ErrNothingToClear),
		errors.Is(err, gesture.ErrConfirmationRequired),
		errors.Is(err, stitch.ErrNoRanges),
		errors.Is(err, export.ErrNoRanges),
		errors.Is(err, session.ErrNoDuration):
		WriteError(w, http.StatusPreconditionFailed, err.Error(), "PRECONDITION_FAILED")

	case errors.Is(err, timeline.ErrUnknownInterval),
		errors.Is(err, gesture.ErrInvalidTrackWidth),
		errors.Is(err, ranges.ErrUnknownHandle),
		errors.Is(err, export.ErrBadOutputDir):
		WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")

	case errors.Is(err, session.ErrUpstream):
		logger.Warn("upstream request failed", "error", err)
		WriteError(w, http.StatusBadGateway, err.Error(), "UPSTREAM_ERROR")

	default:
		logger.Error("request failed", "error", err)
		WriteError(w, http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}
