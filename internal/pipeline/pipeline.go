package pipeline

import (
	"context"
	"net/url"
	"strings"

	"github.com/gi8lino/uiforge/internal/generate"
	"github.com/gi8lino/uiforge/internal/llm"
	"github.com/gi8lino/uiforge/internal/repair"
)

// Generator produces a parsed component for a prompt.
type Generator interface {
	Generate(ctx context.Context, userPrompt string, cfg *llm.Config) (generate.Result, error)
}

// PreviewStore keeps generated code for the preview page.
type PreviewStore interface {
	Store(code string) string
}

// Output is a generated, repaired and stored component.
type Output struct {
	Component  string
	Reason     string
	FixedCode  string
	PreviewID  string
	PreviewURL string
}

// Pipeline runs generation, markup repair and preview registration.
type Pipeline struct {
	gen         Generator
	previews    PreviewStore
	repair      func(string) string
	previewBase string
}

// New returns a Pipeline whose preview URLs start with previewBase (e.g. "/api/preview/get").
func New(gen Generator, previews PreviewStore, previewBase string) *Pipeline {
	return &Pipeline{
		gen:         gen,
		previews:    previews,
		repair:      repair.FixVueCode,
		previewBase: strings.TrimRight(previewBase, "/"),
	}
}

// Run generates a component for userPrompt and registers a preview for it.
func (p *Pipeline) Run(ctx context.Context, userPrompt string, cfg *llm.Config) (Output, error) {
	res, err := p.gen.Generate(ctx, userPrompt, cfg)
	if err != nil {
		return Output{}, err
	}

	fixed := p.repair(res.RawCode)
	id := p.previews.Store(fixed)

	return Output{
		Component:  res.ComponentName,
		Reason:     res.Reason,
		FixedCode:  fixed,
		PreviewID:  id,
		PreviewURL: p.PreviewURL(id),
	}, nil
}

// PreviewURL returns the preview page path for id.
func (p *Pipeline) PreviewURL(id string) string {
	return p.previewBase + "/" + url.PathEscape(id)
}
