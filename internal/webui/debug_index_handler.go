package webui

import (
	"net/http"

	"github.com/davecgh/go-spew/spew"

	"svrlive.org/internal/appconf"
	"svrlive.org/internal/logging"
)

type debugData struct {
	Title string
	Pre   string
}

func (webUI *WebUI) writeDebugData(w http.ResponseWriter, r *http.Request, title string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := templates.ExecuteTemplate(w, "debug_index.html", debugData{
		Title: title,
		Pre:   spew.Sdump(data),
	})
	if err != nil {
		logging.LogError(webUI.logger(r), "failed to execute debug template", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// debugIndexHandler dumps session internals. It does not exist in
// production.
func (webUI *WebUI) debugIndexHandler(w http.ResponseWriter, r *http.Request) {
	if webUI.Config.Env == appconf.Production {
		http.NotFound(w, r)
		return
	}

	var (
		data  any
		title string
	)
	switch r.URL.Query().Get("dataType") {
	case "clock":
		data, title = webUI.Clock.State(), "Evaluation Clock"
	case "session":
		data, title = webUI.Session.Status(), "Session"
	case "timetable", "topology", "palette":
		eng, err := webUI.Session.Engine(r.Context())
		if err != nil {
			data, title = map[string]string{"error": err.Error()}, "No Engine Loaded"
			break
		}
		switch r.URL.Query().Get("dataType") {
		case "timetable":
			data, title = eng.Timetable(), "Timetable"
		case "topology":
			data, title = eng.Topology(), "Station Topology"
		default:
			data, title = eng.Palette(), "Train Colours"
		}
	case "snapshot":
		snap, err := webUI.Session.Snapshot(r.Context())
		if err != nil {
			data, title = map[string]string{"error": err.Error()}, "No Snapshot"
			break
		}
		data, title = snap, "Board Snapshot"
	default:
		data = map[string]string{
			"error": "Please use one of the following: clock, session, timetable, topology, palette, snapshot.",
		}
		title = "Choose a data type"
	}

	webUI.writeDebugData(w, r, title, data)
}
