// Package web serves the embedded browser UI.
package web

import (
	"io/fs"
	"log/slog"
	"net/http"

	webembed "github.com/erazemk/zaloga/web"
)

// NewRouter serves index.html at / and the assets under /static/. The UI
// talks to the JSON API itself, so no route here needs authentication.
func NewRouter() (http.Handler, error) {
	static := webembed.StaticFS()
	index, err := fs.ReadFile(static, "index.html")
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(static))))
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Cache-Control", "no-cache")
		if _, err := w.Write(index); err != nil {
			slog.Error("failed to write index page", "error", err)
		}
	})
	return mux, nil
}
