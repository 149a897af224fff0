package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/containeroo/tinyflags"
	"gopkg.in/yaml.v3"
)

// Config is the mock upstream configuration root.
type Config struct {
	Port        int     `yaml:"port"`
	RandomDelay bool    `yaml:"randomDelay"`
	APIKey      string  `yaml:"apiKey,omitempty"` // when set, requests must carry it
	Replies     []Reply `yaml:"replies"`          // first match wins
}

// Reply is a canned completion returned when the prompt matches.
type Reply struct {
	Match     string `yaml:"match"`            // regex applied to the prompt; empty matches everything
	Status    int    `yaml:"status,omitempty"` // non-2xx simulates an upstream failure
	Component string `yaml:"component,omitempty"`
	Reason    string `yaml:"reason,omitempty"`
	Code      string `yaml:"code,omitempty"`
	Fenced    bool   `yaml:"fenced,omitempty"` // wrap the JSON in a ```json fence
	Raw       string `yaml:"raw,omitempty"`    // literal completion text, overrides component/reason/code

	re *regexp.Regexp
}

// main starts the mock LLM upstream. It speaks the OpenAI, Anthropic and Gemini dialects.
func main() {
	var (
		flagConfigPath string
		flagLogBody    bool
	)

	tf := tinyflags.NewFlagSet("mock-llm", tinyflags.ExitOnError)
	tf.StringVar(&flagConfigPath, "config", "", "Path to mock-llm config.yaml (required)").Value()
	tf.BoolVar(&flagLogBody, "log-body", false, "Log JSON request bodies (may contain secrets)")

	if err := tf.Parse(os.Args[1:]); err != nil {
		log.Fatal("flag parse error:", err)
	}

	if strings.TrimSpace(flagConfigPath) == "" {
		log.Fatal("missing required --config=<path to yaml>")
	}

	cfg, err := loadConfig(flagConfigPath)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", handle(cfg, flagLogBody, openAIPrompt, openAIReply))
	mux.HandleFunc("POST /chat/completions", handle(cfg, flagLogBody, openAIPrompt, openAIReply))
	mux.HandleFunc("POST /v1/messages", handle(cfg, flagLogBody, openAIPrompt, anthropicReply))
	mux.HandleFunc("POST /v1beta/models/{model}", handle(cfg, flagLogBody, geminiPrompt, geminiReply))

	addr := ":" + strconv.Itoa(cfg.Port)
	log.Printf("Mock LLM listening on %s (%d replies)", addr, len(cfg.Replies))
	log.Fatal(http.ListenAndServe(addr, mux))
}

// loadConfig reads and validates the YAML configuration file.
func loadConfig(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	dec := yaml.NewDecoder(strings.NewReader(string(raw)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, err
	}

	if cfg.Port == 0 {
		cfg.Port = 8081
	}
	for i := range cfg.Replies {
		r := &cfg.Replies[i]
		re, err := regexp.Compile(r.Match)
		if err != nil {
			return Config{}, fmt.Errorf("reply[%d]: invalid match: %w", i, err)
		}
		r.re = re
		if r.Status == 0 {
			r.Status = http.StatusOK
		}
	}
	return cfg, nil
}

type promptFunc func(body map[string]any) string

type replyFunc func(text string) any

// handle decodes the request, picks a reply and encodes it in the dialect's shape.
func handle(cfg Config, logBody bool, prompt promptFunc, reply replyFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.RandomDelay {
			applyRandomDelay(200, 1000)
		}
		logRequest(r, logBody)

		if cfg.APIKey != "" && !authorized(r, cfg.APIKey) {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": map[string]string{"message": "invalid api key"}})
			return
		}

		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": map[string]string{"message": err.Error()}})
			return
		}

		text := prompt(body)
		for _, rp := range cfg.Replies {
			if !rp.re.MatchString(text) {
				continue
			}
			if rp.Status < 200 || rp.Status >= 300 {
				writeJSON(w, rp.Status, map[string]any{"error": map[string]string{"message": "simulated failure"}})
				return
			}
			writeJSON(w, http.StatusOK, reply(rp.completion()))
			return
		}
		writeJSON(w, http.StatusOK, reply("I cannot help with that."))
	}
}

// completion renders the reply text the model would produce.
func (r Reply) completion() string {
	if r.Raw != "" {
		return r.Raw
	}
	b, _ := json.Marshal(map[string]string{"component": r.Component, "reason": r.Reason, "code": r.Code})
	if r.Fenced {
		return "Here you go:\n```json\n" + string(b) + "\n```"
	}
	return string(b)
}

// authorized accepts a bearer token, an x-api-key header or a key query parameter.
func authorized(r *http.Request, key string) bool {
	return r.Header.Get("Authorization") == "Bearer "+key ||
		r.Header.Get("x-api-key") == key ||
		r.URL.Query().Get("key") == key
}

// openAIPrompt returns the content of the last message.
func openAIPrompt(body map[string]any) string {
	msgs, _ := body["messages"].([]any)
	if len(msgs) == 0 {
		prompt, _ := body["prompt"].(string)
		return prompt
	}
	last, _ := msgs[len(msgs)-1].(map[string]any)
	content, _ := last["content"].(string)
	return content
}

// geminiPrompt returns the text of the first content part.
func geminiPrompt(body map[string]any) string {
	contents, _ := body["contents"].([]any)
	if len(contents) == 0 {
		return ""
	}
	first, _ := contents[0].(map[string]any)
	parts, _ := first["parts"].([]any)
	if len(parts) == 0 {
		return ""
	}
	part, _ := parts[0].(map[string]any)
	text, _ := part["text"].(string)
	return text
}

func openAIReply(text string) any {
	return map[string]any{
		"object":  "chat.completion",
		"choices": []any{map[string]any{"index": 0, "message": map[string]string{"role": "assistant", "content": text}}},
	}
}

func anthropicReply(text string) any {
	return map[string]any{
		"type":    "message",
		"content": []any{map[string]string{"type": "text", "text": text}},
	}
}

func geminiReply(text string) any {
	return map[string]any{
		"candidates": []any{map[string]any{"content": map[string]any{"parts": []any{map[string]string{"text": text}}}}},
	}
}

// writeJSON writes v as a JSON response with status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// applyRandomDelay sleeps for a random duration between minMs and maxMs.
func applyRandomDelay(minMs, maxMs int) {
	if maxMs <= minMs {
		maxMs = minMs + 1
	}
	delta := rand.Intn(maxMs-minMs) + minMs
	time.Sleep(time.Duration(delta) * time.Millisecond)
}

// logRequest logs method, path, headers and optionally the JSON body.
func logRequest(r *http.Request, logBody bool) {
	redacted := http.Header{}
	for k, vv := range r.Header {
		if strings.EqualFold(k, "Authorization") || strings.EqualFold(k, "x-api-key") {
			redacted[k] = []string{"<redacted>"}
		} else {
			redacted[k] = vv
		}
	}

	var bodyPreview string
	if logBody && r.Body != nil {
		b, _ := io.ReadAll(r.Body)
		bodyPreview = string(b)
		r.Body = io.NopCloser(strings.NewReader(bodyPreview))
	}

	log.Printf("REQ %s %s headers=%v body=%s", r.Method, r.URL.Path, redacted, truncate(bodyPreview, 2048))
}

// truncate returns at most n bytes of s.
func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
