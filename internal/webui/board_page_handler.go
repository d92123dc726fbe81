package webui

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"svrlive.org/internal/logging"
	"svrlive.org/internal/store"
	"svrlive.org/internal/tracker"
)

type boardPage struct {
	Snapshot    *tracker.Snapshot
	NoTimetable bool
	Error       string
	Online      bool
	Controls    bool
	Key         string
}

// boardPageHandler renders the current snapshot. Clock controls appear with
// ?debug=true or when the service runs in debug mode.
func (webUI *WebUI) boardPageHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	controls := webUI.Config.Debug
	if v := q.Get("debug"); v != "" {
		controls, _ = strconv.ParseBool(v)
	}
	page := boardPage{
		Online:   webUI.Store != nil && webUI.Store.Ping(r.Context()) == nil,
		Controls: controls,
		Key:      q.Get("key"),
	}

	snap, err := webUI.Session.Snapshot(r.Context())
	switch {
	case err == nil:
		page.Snapshot = &snap
	case errors.Is(err, store.ErrNotFound):
		page.NoTimetable = true
	default:
		logging.LogError(webUI.logger(r), "failed to build board", err)
		page.Error = "Unable to load the timetable data."
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.ExecuteTemplate(w, "board.html", page); err != nil {
		logging.LogError(webUI.logger(r), "failed to execute board template", err)
	}
}

func (webUI *WebUI) logger(r *http.Request) *slog.Logger {
	if l := logging.FromContext(r.Context()); l != slog.Default() {
		return l
	}
	if webUI.Logger != nil {
		return webUI.Logger
	}
	return slog.Default()
}

func formatPercent(p float64) string {
	return strconv.FormatFloat(p, 'f', 1, 64)
}

// segmentAt returns the segment after station i, if any.
func segmentAt(board tracker.Board, i int) *tracker.Segment {
	if i < 0 || i >= len(board.Segments) {
		return nil
	}
	return &board.Segments[i]
}
