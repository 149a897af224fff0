package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gi8lino/uiforge/internal/generate"
	"github.com/gi8lino/uiforge/internal/llm"
	"github.com/gi8lino/uiforge/internal/pipeline"
)

// Runner generates, repairs and registers a component.
type Runner interface {
	Run(ctx context.Context, userPrompt string, cfg *llm.Config) (pipeline.Output, error)
}

type generateRequest struct {
	UserPrompt string      `json:"userPrompt"`
	LLMConfig  *llm.Config `json:"llmConfig,omitempty"`
}

type generateResponse struct {
	Component  string `json:"component"`
	Reason     string `json:"reason"`
	FixedCode  string `json:"fixedCode"`
	PreviewURL string `json:"previewUrl"`
}

// Generate handles POST /api/mcp/generate.
func Generate(runner Runner, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body", err)
			return
		}
		if strings.TrimSpace(req.UserPrompt) == "" {
			writeError(w, http.StatusBadRequest, "invalid request body", errors.New("userPrompt is required"))
			return
		}

		out, err := runner.Run(r.Context(), req.UserPrompt, req.LLMConfig)
		if err != nil {
			logger.Error("generation failed",
				"upstream", generate.IsUpstream(err),
				"parse", generate.IsParse(err),
				"error", err,
			)
			writeError(w, http.StatusInternalServerError, "MCP generation failed", err)
			return
		}

		logger.Debug("component generated", "component", out.Component, "preview", out.PreviewID)
		writeJSON(w, http.StatusOK, generateResponse{
			Component:  out.Component,
			Reason:     out.Reason,
			FixedCode:  out.FixedCode,
			PreviewURL: out.PreviewURL,
		})
	}
}
