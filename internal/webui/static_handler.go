package webui

import (
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"
)

var allowedExtensions = map[string]bool{
	".css": true, ".js": true, ".png": true, ".svg": true, ".ico": true,
}

// staticHandler serves one embedded asset by file name.
func (webUI *WebUI) staticHandler(w http.ResponseWriter, r *http.Request) {
	fileName := r.PathValue("file")
	if fileName == "" {
		fileName = path.Base(r.URL.Path)
	}

	if !allowedExtensions[strings.ToLower(path.Ext(fileName))] {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}
	if strings.Contains(fileName, "..") || strings.ContainsAny(fileName, "/\\\x00") || !fs.ValidPath(fileName) {
		slog.Warn("potential path traversal attempt blocked", "path", fileName)
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	stat, err := fs.Stat(webUI.assets, fileName)
	if err != nil || stat.IsDir() {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.ServeFileFS(w, r, webUI.assets, fileName)
}
