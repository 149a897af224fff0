package templates

import (
	"bytes"
	"fmt"
	texttemplate "text/template"
)

// ComponentRequest describes a component in structured form.
type ComponentRequest struct {
	Description     string
	ComponentType   string
	StylePreference string
	Features        []string
}

// Prompter renders prompts sent to the LLM.
type Prompter struct {
	tmpl       *texttemplate.Template
	components []string
}

// NewPrompter returns a Prompter listing the given component names in generation prompts.
func NewPrompter(tmpl *texttemplate.Template, components []string) *Prompter {
	return &Prompter{tmpl: tmpl, components: components}
}

// Generation renders the prompt for a free-text component request.
func (p *Prompter) Generation(userPrompt string) (string, error) {
	return p.render("generate", map[string]any{
		"UserPrompt": userPrompt,
		"Components": p.components,
	})
}

// Component renders the prompt for a structured component request.
func (p *Prompter) Component(req ComponentRequest) (string, error) {
	return p.render("component", req)
}

// SplitFeatures turns a comma separated feature list into trimmed, non-empty items.
func SplitFeatures(s string) []string {
	return splitTrim(",", s)
}

func (p *Prompter) render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := p.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render prompt %q: %w", name, err)
	}
	return buf.String(), nil
}
