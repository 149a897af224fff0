package server

import (
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/gi8lino/uiforge/internal/handlers"
	"github.com/gi8lino/uiforge/internal/middleware"

	"github.com/klauspost/compress/gzhttp"
)

// NewRouter creates a new HTTP router mounted under routePrefix.
func NewRouter(
	pages *template.Template,
	runner handlers.Runner,
	previews handlers.PreviewReader,
	dispatcher handlers.Dispatcher,
	storageTTL time.Duration,
	routePrefix string,
	logger *slog.Logger,
	debug bool,
) http.Handler {
	root := http.NewServeMux()

	// Health checks (no logging)
	root.Handle("GET /healthz", handlers.Healthz())
	root.Handle("POST /healthz", handlers.Healthz())

	api := http.NewServeMux()
	api.Handle("POST /mcp/generate", handlers.Generate(runner, logger))

	// HTML pages carry the whole component inline, compress them
	api.Handle("GET /preview/get/{id}", gzhttp.GzipHandler(handlers.Preview(pages, previews, storageTTL, logger)))
	api.Handle("GET /preview/sandbox", gzhttp.GzipHandler(handlers.Sandbox(pages, logger)))

	rpcHandler := handlers.RPC(dispatcher, logger)
	api.Handle("POST /mcp-protocol/mcp", rpcHandler)
	api.Handle("OPTIONS /mcp-protocol/mcp", rpcHandler)

	var apiHandler http.Handler = api
	if debug {
		apiHandler = middleware.Chain(apiHandler, middleware.LoggingMiddleware(logger))
	}
	root.Handle("/api/", http.StripPrefix("/api", apiHandler))

	return mountUnderPrefix(root, NormalizeRoutePrefix(routePrefix))
}
