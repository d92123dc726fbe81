// Package webui serves the HTML board, its static assets, and a debug dump
// of the loaded timetable.
package webui

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"

	"svrlive.org/internal/app"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed assets
var assetFS embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"percent": formatPercent,
	"segment": segmentAt,
}).ParseFS(templateFS, "templates/*.html"))

type WebUI struct {
	*app.Application
	assets fs.FS
}

func New(app *app.Application) *WebUI {
	assets, err := fs.Sub(assetFS, "assets")
	if err != nil {
		panic(err)
	}
	return &WebUI{Application: app, assets: assets}
}

// SetWebUIRoutes registers the HTML routes on mux.
func (webUI *WebUI) SetWebUIRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", webUI.boardPageHandler)
	mux.HandleFunc("GET /debug", webUI.debugIndexHandler)
	mux.HandleFunc("GET /assets/{file}", webUI.staticHandler)
}
