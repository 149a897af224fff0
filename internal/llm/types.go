package llm

import (
	"fmt"
	"strings"
)

// ModelType names an upstream API dialect.
type ModelType string

const (
	ModelDeepseek  ModelType = "deepseek"
	ModelOpenAI    ModelType = "openai"
	ModelAnthropic ModelType = "anthropic"
	ModelGemini    ModelType = "gemini"
	ModelCustom    ModelType = "custom"
)

// ParseModelType normalizes s into a known ModelType.
func ParseModelType(s string) (ModelType, error) {
	switch mt := ModelType(strings.ToLower(strings.TrimSpace(s))); mt {
	case ModelDeepseek, ModelOpenAI, ModelAnthropic, ModelGemini, ModelCustom:
		return mt, nil
	default:
		return "", fmt.Errorf("unsupported model type %q", s)
	}
}

// Config selects and tunes the model for a single call.
// Zero fields fall back to the provider defaults.
type Config struct {
	ModelType   ModelType      `json:"modelType,omitempty"`
	ModelName   string         `json:"modelName,omitempty"`
	APIURL      string         `json:"apiUrl,omitempty"`
	APIKey      string         `json:"apiKey,omitempty"`
	Temperature float64        `json:"temperature,omitempty"`
	MaxTokens   int            `json:"maxTokens,omitempty"`
	OtherParams map[string]any `json:"otherParams,omitempty"`
}

// WithoutSecrets returns a copy of c with the API key cleared.
func (c *Config) WithoutSecrets() *Config {
	if c == nil {
		return nil
	}
	cp := *c
	cp.APIKey = ""
	return &cp
}

// Provider holds the server-side defaults for one model type.
type Provider struct {
	APIURL    string
	APIKey    string
	ModelName string
}
