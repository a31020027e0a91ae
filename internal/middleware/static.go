package middleware

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// StaticFileServer serves the API description files under dir. YAML files
// get their media type set explicitly since it is missing from most mime
// tables.
func StaticFileServer(dir string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(dir, filepath.Clean("/"+r.URL.Path))

		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			http.NotFound(w, r)
			return
		}

		if ext := strings.ToLower(filepath.Ext(path)); ext == ".yaml" || ext == ".yml" {
			w.Header().Set("Content-Type", "application/yaml")
		}
		w.Header().Set("Cache-Control", "public, max-age=300")
		http.ServeFile(w, r, path)
	})
}
