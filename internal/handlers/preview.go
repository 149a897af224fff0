package handlers

import (
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gi8lino/uiforge/internal/hash"
)

const pageTitle = "Component preview"

// PreviewReader looks up stored component code.
type PreviewReader interface {
	Get(id string) (string, bool)
}

// storageKey is the browser localStorage key shared by the preview and sandbox pages.
func storageKey(id string) string {
	return "preview-" + id
}

// Preview handles GET /api/preview/get/{id}.
// storageTTL is how long the browser keeps the code around for the sandbox frame.
func Preview(tmpl *template.Template, store PreviewReader, storageTTL time.Duration, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")

		code, ok := store.Get(id)
		if !ok {
			http.Error(w, "id: "+id+" Preview not found", http.StatusNotFound)
			return
		}

		if etag, err := hash.Any(code); err == nil {
			etag = `"` + etag + `"`
			w.Header().Set("ETag", etag)
			if r.Header.Get("If-None-Match") == etag {
				w.WriteHeader(http.StatusNotModified)
				return
			}
		}

		data := map[string]any{
			"Title":      pageTitle,
			"ID":         id,
			"StorageKey": storageKey(id),
			// relative to /api/preview/get/{id}, so it survives any route prefix
			"SandboxURL": "../sandbox?id=" + url.QueryEscape(id),
			"Code":       code,
			"StorageTTL": storageTTL,
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.ExecuteTemplate(w, "preview", data); err != nil {
			logger.Error("render preview failed", "id", id, "error", err)
			http.Error(w, "failed to render preview", http.StatusInternalServerError)
		}
	}
}

// Sandbox handles GET /api/preview/sandbox?id=.
func Sandbox(tmpl *template.Template, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("id")
		if id == "" {
			http.Error(w, "missing id", http.StatusBadRequest)
			return
		}

		data := map[string]any{
			"Title":      pageTitle,
			"StorageKey": storageKey(id),
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.ExecuteTemplate(w, "sandbox", data); err != nil {
			logger.Error("render sandbox failed", "id", id, "error", err)
			http.Error(w, "failed to render sandbox", http.StatusInternalServerError)
		}
	}
}
