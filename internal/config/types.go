package config

import "time"

// Config is the service configuration file.
type Config struct {
	LLM       LLMConfig     `yaml:"llm"`
	Cache     CacheConfig   `yaml:"cache"`
	Preview   PreviewConfig `yaml:"preview"`
	Shortcuts []Shortcut    `yaml:"shortcuts"`
	Catalog   string        `yaml:"catalog"` // optional path to a component catalog; the embedded one is used when empty
}

// LLMConfig configures the upstream model providers.
type LLMConfig struct {
	DefaultProvider string              `yaml:"defaultProvider"`
	Timeout         time.Duration       `yaml:"timeout"`   // cap for one generation call
	RateLimit       float64             `yaml:"rateLimit"` // upstream requests per second, 0 = unlimited
	Burst           int                 `yaml:"burst"`
	SkipTLSVerify   bool                `yaml:"skipTLSVerify"`
	Providers       map[string]Provider `yaml:"providers"` // keyed by model type
}

// Provider holds server-side defaults for one model type.
// APIURL and APIKey accept resolver references such as "env:OPENAI_API_KEY" or "file:/run/secrets/key".
type Provider struct {
	APIURL    string `yaml:"apiURL"`
	APIKey    string `yaml:"apiKey"`
	ModelName string `yaml:"modelName"`
}

// CacheConfig bounds the generation result cache.
type CacheConfig struct {
	MaxSize         int           `yaml:"maxSize"`
	TTL             time.Duration `yaml:"ttl"`
	CleanupInterval time.Duration `yaml:"cleanupInterval"`
}

// PreviewConfig tunes the preview pages.
type PreviewConfig struct {
	StorageTTL time.Duration `yaml:"storageTTL"` // how long the browser keeps the component in localStorage
}

// Shortcut returns a fixed component when a prompt contains any keyword.
type Shortcut struct {
	Keywords  []string `yaml:"keywords"`
	Component string   `yaml:"component"`
	Reason    string   `yaml:"reason"`
	Code      string   `yaml:"code"`
}
