package testutils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
)

// MustWriteFile writes data to a file or fails the test, creating parent directories if needed.
func MustWriteFile(t *testing.T, path, content string) {
	t.Helper()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("failed to create directory %q: %v", dir, err)
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write test file %q: %v", path, err)
	}
}

// ChatServer is an OpenAI-compatible chat completion endpoint for tests.
type ChatServer struct {
	*httptest.Server
	calls atomic.Int64
}

// Calls reports how many completion requests were served.
func (s *ChatServer) Calls() int64 { return s.calls.Load() }

// ChatURL returns the chat completion endpoint.
func (s *ChatServer) ChatURL() string { return s.Server.URL + "/v1/chat/completions" }

// NewChatServer starts a ChatServer answering every prompt with reply.
// A non-2xx status is sent as an error body. The server is closed on test cleanup.
func NewChatServer(t *testing.T, reply func(prompt string) (status int, content string)) *ChatServer {
	t.Helper()

	s := &ChatServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.calls.Add(1)

		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) == 0 {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		status, content := reply(req.Messages[len(req.Messages)-1].Content)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status < 200 || status >= 300 {
			json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"message": content}}) // nolint:errcheck
			return
		}
		json.NewEncoder(w).Encode(map[string]any{ // nolint:errcheck
			"choices": []any{map[string]any{"message": map[string]string{"role": "assistant", "content": content}}},
		})
	}))
	t.Cleanup(s.Close)
	return s
}
