// Package web embeds the dashboard that charts the recorded logs.
package web

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed index.html static
var assets embed.FS

// Index serves the dashboard page.
func Index() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := assets.ReadFile("index.html")
		if err != nil {
			http.Error(w, "dashboard unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(page)
	}
}

// Static serves the dashboard's scripts under /static/.
func Static() http.Handler {
	sub, err := fs.Sub(assets, "static")
	if err != nil {
		panic(err) // embedded at build time
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}
