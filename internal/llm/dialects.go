package llm

import (
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"net/url"
)

const (
	defaultTemperature        = 0.7
	defaultAnthropicMaxTokens = 4096
	anthropicVersion          = "2023-06-01"
)

// dialect describes how to talk to one kind of upstream.
type dialect struct {
	defaultURL   string
	defaultModel string
	// build returns the target URL, JSON body and extra headers for a call.
	build func(prompt string, cfg Config) (string, any, http.Header, error)
	// extract pulls the completion text out of a decoded response.
	extract func(page any) string
}

var dialects = map[ModelType]dialect{
	ModelDeepseek: {
		defaultURL:   "https://api.deepseek.com/chat/completions",
		defaultModel: "deepseek-chat",
		build:        buildChat,
		extract:      extractChat,
	},
	ModelOpenAI: {
		defaultURL:   "https://api.openai.com/v1/chat/completions",
		defaultModel: "gpt-3.5-turbo",
		build:        buildChat,
		extract:      extractChat,
	},
	ModelAnthropic: {
		defaultURL:   "https://api.anthropic.com/v1/messages",
		defaultModel: "claude-3-opus-20240229",
		build:        buildAnthropic,
		extract:      extractAnthropic,
	},
	ModelGemini: {
		defaultURL: "https://generativelanguage.googleapis.com/v1beta/models/gemini-pro:generateContent",
		build:      buildGemini,
		extract:    extractGemini,
	},
	ModelCustom: {
		build:   buildCustom,
		extract: extractCustom,
	},
}

// buildChat builds an OpenAI-compatible chat completion request.
func buildChat(prompt string, cfg Config) (string, any, http.Header, error) {
	body := map[string]any{
		"model":       cfg.ModelName,
		"messages":    []map[string]string{{"role": "user", "content": prompt}},
		"temperature": temperature(cfg),
	}
	if cfg.MaxTokens > 0 {
		body["max_tokens"] = cfg.MaxTokens
	}
	maps.Copy(body, cfg.OtherParams)

	hdr := http.Header{}
	if cfg.APIKey != "" {
		hdr.Set("Authorization", "Bearer "+cfg.APIKey)
	}
	return cfg.APIURL, body, hdr, nil
}

// buildAnthropic builds an Anthropic messages request.
func buildAnthropic(prompt string, cfg Config) (string, any, http.Header, error) {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	body := map[string]any{
		"model":       cfg.ModelName,
		"messages":    []map[string]string{{"role": "user", "content": prompt}},
		"temperature": temperature(cfg),
		"max_tokens":  maxTokens,
	}
	maps.Copy(body, cfg.OtherParams)

	hdr := http.Header{}
	if cfg.APIKey != "" {
		hdr.Set("x-api-key", cfg.APIKey)
	}
	hdr.Set("anthropic-version", anthropicVersion)
	return cfg.APIURL, body, hdr, nil
}

// buildGemini builds a Gemini generateContent request; the key travels in the query.
func buildGemini(prompt string, cfg Config) (string, any, http.Header, error) {
	u, err := url.Parse(cfg.APIURL)
	if err != nil {
		return "", nil, nil, fmt.Errorf("invalid api url: %w", err)
	}
	if cfg.APIKey != "" {
		q := u.Query()
		q.Set("key", cfg.APIKey)
		u.RawQuery = q.Encode()
	}

	gen := map[string]any{"temperature": temperature(cfg)}
	if cfg.MaxTokens > 0 {
		gen["maxOutputTokens"] = cfg.MaxTokens
	}
	maps.Copy(gen, cfg.OtherParams)

	body := map[string]any{
		"contents": []map[string]any{{
			"role":  "user",
			"parts": []map[string]string{{"text": prompt}},
		}},
		"generationConfig": gen,
	}
	return u.String(), body, http.Header{}, nil
}

// buildCustom posts {prompt, ...otherParams} or otherParams.requestBody verbatim.
// otherParams.headers adds request headers.
func buildCustom(prompt string, cfg Config) (string, any, http.Header, error) {
	if cfg.APIURL == "" {
		return "", nil, nil, fmt.Errorf("custom model requires apiUrl")
	}

	hdr := http.Header{}
	if cfg.APIKey != "" {
		hdr.Set("Authorization", "Bearer "+cfg.APIKey)
	}
	if extra, ok := cfg.OtherParams["headers"].(map[string]any); ok {
		for k, v := range extra {
			hdr.Set(k, stringify(v))
		}
	}

	if rb, ok := cfg.OtherParams["requestBody"]; ok {
		return cfg.APIURL, rb, hdr, nil
	}

	body := map[string]any{"prompt": prompt}
	for k, v := range cfg.OtherParams {
		if k == "headers" {
			continue
		}
		body[k] = v
	}
	return cfg.APIURL, body, hdr, nil
}

// extractChat reads choices[0].message.content.
func extractChat(page any) string {
	return asString(dig(page, "choices", 0, "message", "content"))
}

// extractAnthropic reads content[0].text.
func extractAnthropic(page any) string {
	return asString(dig(page, "content", 0, "text"))
}

// extractGemini reads candidates[0].content.parts[0].text.
func extractGemini(page any) string {
	return asString(dig(page, "candidates", 0, "content", "parts", 0, "text"))
}

// extractCustom tries the common completion shapes and falls back to the raw JSON.
func extractCustom(page any) string {
	candidates := [][]any{
		{"content"},
		{"text"},
		{"message"},
		{"choices", 0, "message", "content"},
		{"choices", 0, "text"},
		{"response"},
		{"result"},
		{"output"},
	}
	for _, path := range candidates {
		if s := asString(dig(page, path...)); s != "" {
			return s
		}
	}
	raw, _ := json.Marshal(page)
	return string(raw)
}

// temperature returns the configured temperature or the default.
func temperature(cfg Config) float64 {
	if cfg.Temperature == 0 {
		return defaultTemperature
	}
	return cfg.Temperature
}
