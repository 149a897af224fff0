package generate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gi8lino/uiforge/internal/cache"
	"github.com/gi8lino/uiforge/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validReply = `{"component":"ElUpload","reason":"uploads files","code":"<template><el-upload /></template>"}`

// fakeLLM counts calls and optionally blocks until gate is closed.
type fakeLLM struct {
	calls   atomic.Int32
	reply   string
	err     error
	gate    chan struct{}
	prompts chan string
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string, _ *llm.Config) (string, error) {
	f.calls.Add(1)
	if f.prompts != nil {
		f.prompts <- prompt
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.reply, f.err
}

type fakePrompts struct{ err error }

func (f fakePrompts) Generation(p string) (string, error) { return "PROMPT:" + p, f.err }

func newTestCoordinator(gen Generator, opts Options) (*Coordinator, *cache.Cache[Result]) {
	results := cache.New[Result](10, time.Minute)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewCoordinator(gen, fakePrompts{}, results, opts, logger), results
}

func TestCoordinatorGenerate(t *testing.T) {
	t.Parallel()

	t.Run("miss calls the model and caches the result", func(t *testing.T) {
		t.Parallel()
		gen := &fakeLLM{reply: validReply, prompts: make(chan string, 1)}
		c, results := newTestCoordinator(gen, Options{})

		res, err := c.Generate(t.Context(), "upload avatar", nil)
		require.NoError(t, err)
		assert.Equal(t, "ElUpload", res.ComponentName)
		assert.Equal(t, "PROMPT:upload avatar", <-gen.prompts)
		assert.Equal(t, 1, results.Size())
	})

	t.Run("identical requests hit the cache", func(t *testing.T) {
		t.Parallel()
		gen := &fakeLLM{reply: validReply}
		c, _ := newTestCoordinator(gen, Options{})
		cfg := &llm.Config{ModelType: llm.ModelOpenAI, Temperature: 0.3}

		first, err := c.Generate(t.Context(), "upload", cfg)
		require.NoError(t, err)
		second, err := c.Generate(t.Context(), "upload", &llm.Config{Temperature: 0.3, ModelType: llm.ModelOpenAI})
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, int32(1), gen.calls.Load())
		assert.Equal(t, uint64(1), c.CacheStats().Hits)
	})

	t.Run("config is part of the key but the api key is not", func(t *testing.T) {
		t.Parallel()
		gen := &fakeLLM{reply: validReply}
		c, _ := newTestCoordinator(gen, Options{})

		_, err := c.Generate(t.Context(), "upload", &llm.Config{ModelType: llm.ModelOpenAI, APIKey: "a"})
		require.NoError(t, err)
		_, err = c.Generate(t.Context(), "upload", &llm.Config{ModelType: llm.ModelOpenAI, APIKey: "b"})
		require.NoError(t, err)
		assert.Equal(t, int32(1), gen.calls.Load())

		_, err = c.Generate(t.Context(), "upload", &llm.Config{ModelType: llm.ModelGemini})
		require.NoError(t, err)
		assert.Equal(t, int32(2), gen.calls.Load())
	})

	t.Run("keyword shortcut skips model and cache", func(t *testing.T) {
		t.Parallel()
		gen := &fakeLLM{reply: validReply}
		fixed := Result{ComponentName: "ElButton", Reason: "demo", RawCode: "<el-button>Hi</el-button>"}
		c, results := newTestCoordinator(gen, Options{
			Shortcuts: []Shortcut{{Keywords: []string{"", "Hello Button"}, Result: fixed}},
		})

		res, err := c.Generate(t.Context(), "please show a hello button demo", nil)
		require.NoError(t, err)
		assert.Equal(t, fixed, res)

		again, err := c.Generate(t.Context(), "HELLO BUTTON", nil)
		require.NoError(t, err)
		assert.Equal(t, fixed, again)

		assert.Equal(t, int32(0), gen.calls.Load())
		assert.Equal(t, 0, results.Size())
		assert.Equal(t, cache.Stats{}, results.Stats(), "shortcut must not touch the cache")
	})

	t.Run("upstream failure is an UpstreamError and not cached", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("connection refused")
		gen := &fakeLLM{err: boom}
		c, results := newTestCoordinator(gen, Options{})

		_, err := c.Generate(t.Context(), "x", &llm.Config{ModelType: llm.ModelAnthropic})
		require.Error(t, err)
		assert.True(t, IsUpstream(err))
		assert.ErrorIs(t, err, boom)
		assert.EqualError(t, err, "llm request failed (anthropic): connection refused")
		assert.Equal(t, 0, results.Size())
	})

	t.Run("unparseable answer is a ParseError and not cached", func(t *testing.T) {
		t.Parallel()
		gen := &fakeLLM{reply: "no json here"}
		c, results := newTestCoordinator(gen, Options{})

		_, err := c.Generate(t.Context(), "x", nil)
		var pe *ParseError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "no json here", pe.Raw)
		assert.Equal(t, 0, results.Size())

		_, _ = c.Generate(t.Context(), "x", nil)
		assert.Equal(t, int32(2), gen.calls.Load(), "failures are retried on the next request")
	})

	t.Run("prompt rendering failure is returned", func(t *testing.T) {
		t.Parallel()
		gen := &fakeLLM{reply: validReply}
		results := cache.New[Result](10, time.Minute)
		c := NewCoordinator(gen, fakePrompts{err: errors.New("bad template")}, results, Options{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

		_, err := c.Generate(t.Context(), "x", nil)
		require.EqualError(t, err, "bad template")
		assert.Equal(t, int32(0), gen.calls.Load())
	})

	t.Run("upstream timeout surfaces as UpstreamError", func(t *testing.T) {
		t.Parallel()
		gen := &fakeLLM{reply: validReply, gate: make(chan struct{})}
		c, _ := newTestCoordinator(gen, Options{Timeout: 20 * time.Millisecond})

		_, err := c.Generate(t.Context(), "slow", nil)
		require.Error(t, err)
		assert.True(t, IsUpstream(err))
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("cancelled caller gets an UpstreamError without hanging", func(t *testing.T) {
		t.Parallel()
		gen := &fakeLLM{reply: validReply, gate: make(chan struct{})}
		defer close(gen.gate)
		c, _ := newTestCoordinator(gen, Options{})

		ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
		defer cancel()

		_, err := c.Generate(ctx, "slow", nil)
		require.Error(t, err)
		assert.True(t, IsUpstream(err))
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("concurrent identical misses share one upstream call", func(t *testing.T) {
		t.Parallel()
		gen := &fakeLLM{reply: validReply, gate: make(chan struct{})}
		c, _ := newTestCoordinator(gen, Options{})

		const callers = 5
		var wg sync.WaitGroup
		results := make([]Result, callers)
		errs := make([]error, callers)
		for i := range callers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results[i], errs[i] = c.Generate(t.Context(), "same", nil)
			}()
		}

		require.Eventually(t, func() bool { return gen.calls.Load() == 1 }, time.Second, time.Millisecond)
		time.Sleep(50 * time.Millisecond) // let the other callers join the flight
		close(gen.gate)
		wg.Wait()

		for i := range callers {
			require.NoError(t, errs[i])
			assert.Equal(t, "ElUpload", results[i].ComponentName)
		}
		assert.Equal(t, int32(1), gen.calls.Load())
	})
}

func TestCacheKey(t *testing.T) {
	t.Parallel()

	k1, err := CacheKey("p", &llm.Config{ModelType: llm.ModelOpenAI, OtherParams: map[string]any{"a": 1, "b": 2}})
	require.NoError(t, err)
	k2, err := CacheKey("p", &llm.Config{OtherParams: map[string]any{"b": 2, "a": 1}, ModelType: llm.ModelOpenAI})
	require.NoError(t, err)
	assert.Equal(t, k1, k2)

	k3, err := CacheKey("p", nil)
	require.NoError(t, err)
	assert.Equal(t, `{"config":null,"userPrompt":"p"}`, k3)
}
