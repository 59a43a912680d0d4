package api

import (
	"net/http"
	"path"

	"github.com/cutdesk/cutdesk-agent/internal/export"
)

func exportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l, ok := liveSession(cfg, w, r)
		if !ok {
			return
		}
		var req export.Request
		if !decode(cfg, w, r, &req) {
			return
		}

		rs := l.Editor().Set().ListSorted()
		if len(rs) == 0 {
			writeServiceError(w, r, cfg, export.ErrNoRanges)
			return
		}

		sess := l.Session()
		title := export.SanitizeName(req.Title, 120)
		if title == "" {
			title = export.SanitizeName(path.Base(sess.Source), 120)
		}
		if title == "" {
			title = sess.ID
		}

		events := export.EventsFromRanges(rs, sess.Source)
		res := export.Result{
			Format:     export.FormatEDL,
			Title:      title,
			EventCount: len(events),
			Content:    export.GenerateEDL(events, title, req.FrameRate),
		}
		for _, ev := range events {
			res.Duration += ev.Duration()
		}

		if req.OutputDir != "" {
			p, err := export.WriteFile(req.OutputDir, title, res.Content)
			if err != nil {
				writeServiceError(w, r, cfg, err)
				return
			}
			res.OutputPath = p
		}

		WriteJSON(w, http.StatusOK, res)
	}
}
