package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gi8lino/uiforge/internal/generate"
	"github.com/gi8lino/uiforge/internal/llm"
	"github.com/gi8lino/uiforge/internal/pipeline"
	"github.com/gi8lino/uiforge/internal/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRunner struct {
	fn func(ctx context.Context, prompt string, cfg *llm.Config) (pipeline.Output, error)
}

func (m mockRunner) Run(ctx context.Context, prompt string, cfg *llm.Config) (pipeline.Output, error) {
	return m.fn(ctx, prompt, cfg)
}

type mapStore map[string]string

func (m mapStore) Get(id string) (string, bool) {
	code, ok := m[id]
	return code, ok
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func pageTemplates(t *testing.T) *template.Template {
	t.Helper()
	tmpl := template.New("pages")
	template.Must(tmpl.New("preview").Parse(`{{.Title}}|{{.ID}}|{{.StorageKey}}|{{.SandboxURL}}|{{.StorageTTL.Milliseconds}}|{{.Code}}`))
	template.Must(tmpl.New("sandbox").Parse(`sandbox|{{.StorageKey}}`))
	return tmpl
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	Healthz().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestGenerate(t *testing.T) {
	t.Parallel()

	t.Run("returns the generated component", func(t *testing.T) {
		t.Parallel()
		var gotPrompt string
		var gotCfg *llm.Config
		runner := mockRunner{fn: func(_ context.Context, prompt string, cfg *llm.Config) (pipeline.Output, error) {
			gotPrompt, gotCfg = prompt, cfg
			return pipeline.Output{
				Component:  "ElUpload",
				Reason:     "upload",
				FixedCode:  "<template><el-upload /></template>",
				PreviewID:  "0",
				PreviewURL: "/api/preview/get/0",
			}, nil
		}}

		body := `{"userPrompt":"file upload","llmConfig":{"modelType":"gemini","temperature":0.2}}`
		req := httptest.NewRequest(http.MethodPost, "/api/mcp/generate", strings.NewReader(body))
		rec := httptest.NewRecorder()
		Generate(runner, discardLogger()).ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

		var resp map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, map[string]string{
			"component":  "ElUpload",
			"reason":     "upload",
			"fixedCode":  "<template><el-upload /></template>",
			"previewUrl": "/api/preview/get/0",
		}, resp)

		assert.Equal(t, "file upload", gotPrompt)
		require.NotNil(t, gotCfg)
		assert.Equal(t, llm.ModelGemini, gotCfg.ModelType)
		assert.InDelta(t, 0.2, gotCfg.Temperature, 1e-9)
	})

	t.Run("invalid JSON is a bad request", func(t *testing.T) {
		t.Parallel()
		runner := mockRunner{fn: func(context.Context, string, *llm.Config) (pipeline.Output, error) {
			t.Fatal("runner must not be called")
			return pipeline.Output{}, nil
		}}

		req := httptest.NewRequest(http.MethodPost, "/api/mcp/generate", strings.NewReader(`{`))
		rec := httptest.NewRecorder()
		Generate(runner, discardLogger()).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), `"message":"invalid request body"`)
	})

	t.Run("empty prompt is a bad request", func(t *testing.T) {
		t.Parallel()
		runner := mockRunner{fn: func(context.Context, string, *llm.Config) (pipeline.Output, error) {
			t.Fatal("runner must not be called")
			return pipeline.Output{}, nil
		}}

		req := httptest.NewRequest(http.MethodPost, "/api/mcp/generate", strings.NewReader(`{"userPrompt":"  "}`))
		rec := httptest.NewRecorder()
		Generate(runner, discardLogger()).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "userPrompt is required")
	})

	t.Run("oversized body is rejected", func(t *testing.T) {
		t.Parallel()
		runner := mockRunner{fn: func(context.Context, string, *llm.Config) (pipeline.Output, error) {
			return pipeline.Output{}, nil
		}}

		big := `{"userPrompt":"` + strings.Repeat("a", maxBodyBytes) + `"}`
		req := httptest.NewRequest(http.MethodPost, "/api/mcp/generate", strings.NewReader(big))
		rec := httptest.NewRecorder()
		Generate(runner, discardLogger()).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("upstream and parse errors map to 500", func(t *testing.T) {
		t.Parallel()
		for _, genErr := range []error{
			&generate.UpstreamError{Err: errors.New("timeout")},
			&generate.ParseError{Raw: "not json"},
		} {
			runner := mockRunner{fn: func(context.Context, string, *llm.Config) (pipeline.Output, error) {
				return pipeline.Output{}, genErr
			}}

			var logs bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&logs, nil))
			req := httptest.NewRequest(http.MethodPost, "/api/mcp/generate", strings.NewReader(`{"userPrompt":"x"}`))
			rec := httptest.NewRecorder()
			Generate(runner, logger).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			var resp map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, "MCP generation failed", resp["message"])
			assert.Equal(t, genErr.Error(), resp["error"])
			assert.Contains(t, logs.String(), "generation failed")
		}
	})
}

func TestPreview(t *testing.T) {
	t.Parallel()

	store := mapStore{"3": "<template><div>hi</div></template>"}

	t.Run("renders stored code", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodGet, "/api/preview/get/3", nil)
		req.SetPathValue("id", "3")
		rec := httptest.NewRecorder()
		Preview(pageTemplates(t), store, 2*time.Second, discardLogger()).ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.NotEmpty(t, rec.Header().Get("ETag"))
		body := rec.Body.String()
		assert.True(t, strings.HasPrefix(body, "Component preview|3|preview-3|../sandbox?id=3|2000|"), body)
		assert.Contains(t, body, "&lt;template&gt;")
	})

	t.Run("matching If-None-Match returns 304", func(t *testing.T) {
		t.Parallel()
		h := Preview(pageTemplates(t), store, time.Second, discardLogger())

		req := httptest.NewRequest(http.MethodGet, "/api/preview/get/3", nil)
		req.SetPathValue("id", "3")
		first := httptest.NewRecorder()
		h.ServeHTTP(first, req)
		etag := first.Header().Get("ETag")
		require.NotEmpty(t, etag)

		req = httptest.NewRequest(http.MethodGet, "/api/preview/get/3", nil)
		req.SetPathValue("id", "3")
		req.Header.Set("If-None-Match", etag)
		second := httptest.NewRecorder()
		h.ServeHTTP(second, req)

		assert.Equal(t, http.StatusNotModified, second.Code)
		assert.Empty(t, second.Body.String())
	})

	t.Run("unknown id is a plain-text 404", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodGet, "/api/preview/get/42", nil)
		req.SetPathValue("id", "42")
		rec := httptest.NewRecorder()
		Preview(pageTemplates(t), store, time.Second, discardLogger()).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.Equal(t, "id: 42 Preview not found\n", rec.Body.String())
	})
}

func TestSandbox(t *testing.T) {
	t.Parallel()

	t.Run("renders with storage key", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		Sandbox(pageTemplates(t), discardLogger()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/preview/sandbox?id=5", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "sandbox|preview-5", rec.Body.String())
	})

	t.Run("missing id", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		Sandbox(pageTemplates(t), discardLogger()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/preview/sandbox", nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRPC(t *testing.T) {
	t.Parallel()

	newDispatcher := func() *rpc.Dispatcher {
		d := rpc.NewDispatcher(0, discardLogger())
		d.Register("echo", func(_ context.Context, params json.RawMessage) (any, error) {
			return params, nil
		})
		return d
	}

	t.Run("preflight", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		RPC(newDispatcher(), discardLogger()).ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/mcp-protocol/mcp", nil))

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "GET, POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Headers"))
		assert.Equal(t, "86400", rec.Header().Get("Access-Control-Max-Age"))
		assert.Empty(t, rec.Body.String())
	})

	t.Run("single request", func(t *testing.T) {
		t.Parallel()
		body := `{"jsonrpc":"2.0","method":"echo","params":{"a":1},"id":1}`
		rec := httptest.NewRecorder()
		RPC(newDispatcher(), discardLogger()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/mcp-protocol/mcp", strings.NewReader(body)))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.JSONEq(t, `{"jsonrpc":"2.0","result":{"a":1},"id":1}`, rec.Body.String())
	})

	t.Run("malformed JSON still returns 200", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		RPC(newDispatcher(), discardLogger()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/mcp-protocol/mcp", strings.NewReader(`{"jsonrpc":`)))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"jsonrpc":"2.0","error":{"code":-32700,"message":"Parse error"},"id":null}`, rec.Body.String())
	})

	t.Run("batch keeps order", func(t *testing.T) {
		t.Parallel()
		body := `[{"jsonrpc":"2.0","method":"echo","params":"a","id":"a"},
			{"jsonrpc":"2.0","method":"nope","id":"b"},
			{"jsonrpc":"2.0","method":"echo","params":"c","id":"c"}]`
		rec := httptest.NewRecorder()
		RPC(newDispatcher(), discardLogger()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/mcp-protocol/mcp", strings.NewReader(body)))

		require.Equal(t, http.StatusOK, rec.Code)
		var resp []map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp, 3)
		assert.Equal(t, "a", resp[0]["id"])
		assert.Equal(t, "b", resp[1]["id"])
		assert.Equal(t, float64(rpc.CodeMethodNotFound), resp[1]["error"].(map[string]any)["code"])
		assert.Equal(t, "c", resp[2]["result"])
	})
}
