package generate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gi8lino/uiforge/internal/cache"
	"github.com/gi8lino/uiforge/internal/hash"
	"github.com/gi8lino/uiforge/internal/llm"

	"golang.org/x/sync/singleflight"
)

const defaultTimeout = 2 * time.Minute

// Generator sends a rendered prompt to a model.
type Generator interface {
	Generate(ctx context.Context, prompt string, cfg *llm.Config) (string, error)
}

// PromptBuilder renders the generation prompt for a user request.
type PromptBuilder interface {
	Generation(userPrompt string) (string, error)
}

// Shortcut answers prompts containing any of Keywords with a fixed Result.
type Shortcut struct {
	Keywords []string
	Result   Result
}

// Options tunes a Coordinator.
type Options struct {
	Timeout    time.Duration // cap for one upstream call
	Shortcuts  []Shortcut
	Strategies []Strategy // parse chain; DefaultStrategies when empty
}

// Coordinator turns user prompts into parsed results, caching by prompt and model config.
type Coordinator struct {
	llm        Generator
	prompts    PromptBuilder
	cache      *cache.Cache[Result]
	group      singleflight.Group
	shortcuts  []Shortcut
	strategies []Strategy
	timeout    time.Duration
	logger     *slog.Logger
}

// NewCoordinator wires a Coordinator around its collaborators.
func NewCoordinator(gen Generator, prompts PromptBuilder, results *cache.Cache[Result], opts Options, logger *slog.Logger) *Coordinator {
	c := &Coordinator{
		llm:        gen,
		prompts:    prompts,
		cache:      results,
		shortcuts:  opts.Shortcuts,
		strategies: opts.Strategies,
		timeout:    opts.Timeout,
		logger:     logger,
	}
	if len(c.strategies) == 0 {
		c.strategies = DefaultStrategies
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	return c
}

// CacheKey returns the cache key for a prompt and model config. API keys are not part of it.
func CacheKey(userPrompt string, cfg *llm.Config) (string, error) {
	return hash.Encode(map[string]any{
		"userPrompt": userPrompt,
		"config":     cfg.WithoutSecrets(),
	})
}

// Generate returns the component suggestion for userPrompt.
// Identical prompt and config pairs hit the cache; concurrent misses share one upstream call.
func (c *Coordinator) Generate(ctx context.Context, userPrompt string, cfg *llm.Config) (Result, error) {
	if res, ok := c.matchShortcut(userPrompt); ok {
		c.logger.Debug("shortcut matched", "component", res.ComponentName)
		return res, nil
	}

	key, err := CacheKey(userPrompt, cfg)
	if err != nil {
		return Result{}, fmt.Errorf("build cache key: %w", err)
	}

	if res, ok := c.cache.Get(key); ok {
		c.logger.Debug("cache hit", "component", res.ComponentName)
		return res, nil
	}

	ch := c.group.DoChan(key, func() (any, error) {
		return c.miss(ctx, key, userPrompt, cfg)
	})

	select {
	case <-ctx.Done():
		return Result{}, &UpstreamError{Provider: provider(cfg), Err: ctx.Err()}
	case r := <-ch:
		if r.Err != nil {
			return Result{}, r.Err
		}
		if r.Shared {
			c.logger.Debug("shared in-flight generation")
		}
		return r.Val.(Result), nil
	}
}

// CacheStats exposes the result cache counters.
func (c *Coordinator) CacheStats() cache.Stats {
	return c.cache.Stats()
}

// miss calls the model, parses the answer and stores it.
// The call outlives a cancelled caller so that other waiters still get the result.
func (c *Coordinator) miss(ctx context.Context, key, userPrompt string, cfg *llm.Config) (Result, error) {
	if res, ok := c.cache.Get(key); ok {
		return res, nil
	}

	prompt, err := c.prompts.Generation(userPrompt)
	if err != nil {
		return Result{}, err
	}

	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	start := time.Now()
	raw, err := c.llm.Generate(callCtx, prompt, cfg)
	if err != nil {
		return Result{}, &UpstreamError{Provider: provider(cfg), Err: err}
	}

	res, err := Parse(raw, c.strategies...)
	if err != nil {
		c.logger.Debug("unparseable llm response", "raw", raw)
		return Result{}, err
	}

	c.cache.Set(key, res)
	c.logger.Debug("generated component",
		"component", res.ComponentName,
		"duration", time.Since(start),
	)
	return res, nil
}

// matchShortcut returns the fixed result of the first shortcut whose keyword occurs in prompt.
func (c *Coordinator) matchShortcut(prompt string) (Result, bool) {
	p := strings.ToLower(prompt)
	for _, s := range c.shortcuts {
		for _, kw := range s.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" && strings.Contains(p, kw) {
				return s.Result, true
			}
		}
	}
	return Result{}, false
}

func provider(cfg *llm.Config) string {
	if cfg == nil {
		return ""
	}
	return string(cfg.ModelType)
}
