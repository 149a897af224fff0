package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/gi8lino/uiforge/internal/rpc"
)

// Dispatcher handles a raw JSON-RPC body.
type Dispatcher interface {
	Handle(ctx context.Context, body []byte) any
}

func setCORS(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "*")
	h.Set("Access-Control-Max-Age", "86400")
}

// RPC handles the JSON-RPC endpoint. Protocol errors are still answered with HTTP 200.
func RPC(d Dispatcher, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setCORS(w.Header())

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			logger.Debug("rpc body read failed", "error", err)
			writeJSON(w, http.StatusOK, &rpc.Response{
				JSONRPC: rpc.Version,
				Error:   &rpc.Error{Code: rpc.CodeParseError, Message: "Parse error", Data: err.Error()},
			})
			return
		}

		writeJSON(w, http.StatusOK, d.Handle(r.Context(), body))
	}
}
