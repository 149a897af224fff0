package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/gi8lino/uiforge/internal/generate"
	"github.com/gi8lino/uiforge/internal/llm"

	"github.com/containeroo/resolver"
	"gopkg.in/yaml.v3"
)

// Default values
const (
	defaultProvider        = llm.ModelDeepseek
	defaultTimeout         = 2 * time.Minute
	defaultCacheMaxSize    = 100
	defaultCacheTTL        = time.Hour
	defaultCleanupInterval = 10 * time.Minute
	defaultStorageTTL      = 10 * time.Minute
)

// LoadConfig loads the configuration from the given path. Unknown keys are rejected.
func LoadConfig(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// ValidateConfig checks cfg, resolves provider secrets and fills in defaults.
// All problems are reported together.
func ValidateConfig(cfg *Config) error {
	var errs []string

	if cfg.LLM.DefaultProvider != "" {
		if _, err := llm.ParseModelType(cfg.LLM.DefaultProvider); err != nil {
			errs = append(errs, fmt.Sprintf("llm.defaultProvider: %v", err))
		}
	}
	if cfg.LLM.Timeout < 0 {
		errs = append(errs, "llm.timeout must be >= 0")
	}
	if cfg.LLM.RateLimit < 0 {
		errs = append(errs, "llm.rateLimit must be >= 0")
	}
	if cfg.LLM.Burst < 0 {
		errs = append(errs, "llm.burst must be >= 0")
	}

	for _, name := range slices.Sorted(maps.Keys(cfg.LLM.Providers)) {
		p := cfg.LLM.Providers[name]
		label := fmt.Sprintf("llm.providers[%s]", name)

		if _, err := llm.ParseModelType(name); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", label, err))
		}

		apiURL, err := resolve(p.APIURL)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: apiURL: %v", label, err))
		} else if apiURL != "" {
			if u, err := url.ParseRequestURI(apiURL); err != nil || u.Host == "" {
				errs = append(errs, fmt.Sprintf("%s: apiURL %q is not an absolute URL", label, apiURL))
			}
		}
		apiKey, err := resolve(p.APIKey)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: apiKey: %v", label, err))
		}

		p.APIURL = apiURL
		p.APIKey = apiKey
		cfg.LLM.Providers[name] = p
	}

	if cfg.Cache.MaxSize < 0 {
		errs = append(errs, "cache.maxSize must be >= 0")
	}
	if cfg.Cache.TTL < 0 {
		errs = append(errs, "cache.ttl must be >= 0")
	}
	if cfg.Cache.CleanupInterval < 0 {
		errs = append(errs, "cache.cleanupInterval must be >= 0")
	}
	if cfg.Preview.StorageTTL < 0 {
		errs = append(errs, "preview.storageTTL must be >= 0")
	}

	for i, s := range cfg.Shortcuts {
		label := fmt.Sprintf("shortcuts[%d]", i)
		if s.Component != "" {
			label += fmt.Sprintf(" (%s)", s.Component)
		}
		if len(s.Keywords) == 0 || slices.Contains(s.Keywords, "") {
			errs = append(errs, fmt.Sprintf("%s: keywords must be non-empty", label))
		}
		if s.Component == "" {
			errs = append(errs, fmt.Sprintf("%s: component is required", label))
		}
		if s.Code == "" {
			errs = append(errs, fmt.Sprintf("%s: code is required", label))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	setDefaults(cfg)

	return nil
}

// resolve expands resolver references like "env:NAME" or "file:/path"; plain values pass through.
func resolve(v string) (string, error) {
	if v == "" {
		return "", nil
	}
	out, err := resolver.ResolveVariable(v)
	return strings.TrimSpace(out), err
}

// setDefault assigns dst to val only if *dst is the zero value.
func setDefault[T comparable](dst *T, val T) {
	var zero T
	if *dst == zero {
		*dst = val
	}
}

// setDefaults fills in missing fields with default values.
func setDefaults(cfg *Config) {
	setDefault(&cfg.LLM.DefaultProvider, string(defaultProvider))
	setDefault(&cfg.LLM.Timeout, defaultTimeout)

	setDefault(&cfg.Cache.MaxSize, defaultCacheMaxSize)
	setDefault(&cfg.Cache.TTL, defaultCacheTTL)
	setDefault(&cfg.Cache.CleanupInterval, defaultCleanupInterval)

	setDefault(&cfg.Preview.StorageTTL, defaultStorageTTL)
}

// LLMOptions converts the llm section into client options. Call after ValidateConfig.
func (c *Config) LLMOptions() llm.Options {
	providers := make(map[llm.ModelType]llm.Provider, len(c.LLM.Providers))
	for name, p := range c.LLM.Providers {
		mt, _ := llm.ParseModelType(name) // validated
		providers[mt] = llm.Provider{APIURL: p.APIURL, APIKey: p.APIKey, ModelName: p.ModelName}
	}
	mt, _ := llm.ParseModelType(c.LLM.DefaultProvider)
	return llm.Options{
		DefaultModel:  mt,
		Providers:     providers,
		Timeout:       c.LLM.Timeout,
		RateLimit:     c.LLM.RateLimit,
		Burst:         c.LLM.Burst,
		SkipTLSVerify: c.LLM.SkipTLSVerify,
	}
}

// GenerateShortcuts converts the shortcut rules for the generation coordinator.
func (c *Config) GenerateShortcuts() []generate.Shortcut {
	out := make([]generate.Shortcut, 0, len(c.Shortcuts))
	for _, s := range c.Shortcuts {
		out = append(out, generate.Shortcut{
			Keywords: s.Keywords,
			Result: generate.Result{
				ComponentName: s.Component,
				Reason:        s.Reason,
				RawCode:       s.Code,
			},
		})
	}
	return out
}
