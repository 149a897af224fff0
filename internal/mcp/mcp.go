package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/gi8lino/uiforge/internal/catalog"
	"github.com/gi8lino/uiforge/internal/llm"
	"github.com/gi8lino/uiforge/internal/pipeline"
	"github.com/gi8lino/uiforge/internal/rpc"
	"github.com/gi8lino/uiforge/internal/templates"
)

// Method names served on the protocol endpoint.
const (
	MethodListResources = "mcp/listResources"
	MethodReadResource  = "mcp/readResource"
	MethodCallTool      = "mcp/callTool"
	MethodGetPrompt     = "mcp/getPrompt"
)

const (
	ToolGenerateComponent = "generate-component"
	ToolTestConnection    = "test-llm-connection"
	PromptComponent       = "element-plus-component-generation"

	componentsURI = "/element-plus/components"
	defaultModel  = "gpt-4"
)

// Runner generates, repairs and registers a component.
type Runner interface {
	Run(ctx context.Context, userPrompt string, cfg *llm.Config) (pipeline.Output, error)
}

// Pinger checks that a model is reachable.
type Pinger interface {
	Ping(ctx context.Context, cfg *llm.Config) error
}

// ComponentPrompter renders the structured component prompt.
type ComponentPrompter interface {
	Component(req templates.ComponentRequest) (string, error)
}

// Service implements the resource, tool and prompt methods.
type Service struct {
	runner  Runner
	pinger  Pinger
	catalog *catalog.Catalog
	prompts ComponentPrompter
}

// NewService wires a Service.
func NewService(runner Runner, pinger Pinger, cat *catalog.Catalog, prompts ComponentPrompter) *Service {
	return &Service{runner: runner, pinger: pinger, catalog: cat, prompts: prompts}
}

// Register binds all methods on d, both with and without the "mcp/" prefix.
func (s *Service) Register(d *rpc.Dispatcher) {
	table := map[string]rpc.HandlerFunc{
		MethodListResources: s.listResources,
		MethodReadResource:  s.readResource,
		MethodCallTool:      s.callTool,
		MethodGetPrompt:     s.getPrompt,
	}
	for name, h := range table {
		d.Register(name, h)
		d.Register(strings.TrimPrefix(name, "mcp/"), h)
	}
}

type resource struct {
	Name        string `json:"name"`
	URI         string `json:"uri"`
	Description string `json:"description"`
}

type resourceContent struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType"`
	Text     string `json:"text"`
}

func (s *Service) listResources(context.Context, json.RawMessage) (any, error) {
	resources := []resource{{
		Name:        "element-plus-components",
		URI:         componentsURI,
		Description: "Components of the Element Plus UI library",
	}}
	for _, c := range s.catalog.List() {
		resources = append(resources, resource{
			Name:        c.Name,
			URI:         componentsURI + "/" + c.Name,
			Description: c.Description,
		})
	}
	return map[string]any{"resources": resources}, nil
}

func (s *Service) readResource(_ context.Context, params json.RawMessage) (any, error) {
	var p struct {
		URI string `json:"uri"`
	}
	if err := rpc.DecodeParams(params, &p); err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.URI) == "" {
		return nil, errors.New("missing required parameter: uri")
	}

	u, err := url.Parse(p.URI)
	if err != nil {
		return nil, fmt.Errorf("invalid uri %q: %w", p.URI, err)
	}
	path := strings.TrimRight(u.Path, "/")

	var payload any
	switch {
	case path == componentsURI:
		payload = s.catalog.List()
	case strings.HasPrefix(path, componentsURI+"/"):
		name := strings.TrimPrefix(path, componentsURI+"/")
		comp, ok := s.catalog.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("component not found: %s", name)
		}
		payload = comp
	default:
		return nil, fmt.Errorf("resource not found: %s", p.URI)
	}

	text, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode resource: %w", err)
	}
	return map[string]any{
		"contents": []resourceContent{{URI: p.URI, MimeType: "application/json", Text: string(text)}},
	}, nil
}

type toolCall struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

func (s *Service) callTool(ctx context.Context, params json.RawMessage) (any, error) {
	var call toolCall
	if err := rpc.DecodeParams(params, &call); err != nil {
		return nil, err
	}
	switch call.Name {
	case "":
		return nil, errors.New("missing required parameter: name")
	case ToolGenerateComponent:
		return s.generateComponent(ctx, call.Args)
	case ToolTestConnection:
		return s.testConnection(ctx, call.Args)
	default:
		return nil, fmt.Errorf("tool not found: %s", call.Name)
	}
}

type generateArgs struct {
	Description      string      `json:"description"`
	ComponentType    string      `json:"componentType"`
	StylePreference  string      `json:"stylePreference"`
	FeaturesRequired []string    `json:"featuresRequired"`
	LLMConfig        *llm.Config `json:"llmConfig"`
}

// describe merges the structured arguments into one free-text request.
func (a generateArgs) describe() string {
	var b strings.Builder
	b.WriteString(a.Description)
	if a.ComponentType != "" {
		b.WriteString("\nComponent type: " + a.ComponentType)
	}
	if a.StylePreference != "" {
		b.WriteString("\nStyle requirements: " + a.StylePreference)
	}
	if len(a.FeaturesRequired) > 0 {
		b.WriteString("\nRequired features: " + strings.Join(a.FeaturesRequired, ", "))
	}
	return b.String()
}

func (s *Service) generateComponent(ctx context.Context, rawArgs json.RawMessage) (any, error) {
	var args generateArgs
	if err := rpc.DecodeParams(rawArgs, &args); err != nil {
		return nil, err
	}
	if strings.TrimSpace(args.Description) == "" {
		return nil, errors.New("missing required argument: description")
	}

	out, err := s.runner.Run(ctx, args.describe(), args.LLMConfig)
	if err != nil {
		return nil, fmt.Errorf("component generation failed: %w", err)
	}

	text, err := json.MarshalIndent(map[string]string{
		"componentName": out.Component,
		"code":          out.FixedCode,
		"previewUrl":    out.PreviewURL,
		"explanation":   out.Reason,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return textContent(string(text)), nil
}

func (s *Service) testConnection(ctx context.Context, rawArgs json.RawMessage) (any, error) {
	var args struct {
		LLMConfig *llm.Config `json:"llmConfig"`
	}
	if err := rpc.DecodeParams(rawArgs, &args); err != nil {
		return nil, err
	}
	if err := s.pinger.Ping(ctx, args.LLMConfig); err != nil {
		return map[string]any{"success": false, "error": err.Error()}, nil
	}
	return map[string]any{"success": true, "response": map[string]string{"message": "LLM connection test succeeded"}}, nil
}

func (s *Service) getPrompt(_ context.Context, params json.RawMessage) (any, error) {
	var p struct {
		Name string `json:"name"`
		Args struct {
			Description     string `json:"description"`
			ComponentType   string `json:"componentType"`
			StylePreference string `json:"stylePreference"`
			FeaturesStr     string `json:"featuresStr"`
		} `json:"args"`
	}
	if err := rpc.DecodeParams(params, &p); err != nil {
		return nil, err
	}
	switch p.Name {
	case "":
		return nil, errors.New("missing required parameter: name")
	case PromptComponent:
	default:
		return nil, fmt.Errorf("prompt not found: %s", p.Name)
	}

	text, err := s.prompts.Component(templates.ComponentRequest{
		Description:     p.Args.Description,
		ComponentType:   p.Args.ComponentType,
		StylePreference: p.Args.StylePreference,
		Features:        templates.SplitFeatures(p.Args.FeaturesStr),
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"messages": []map[string]any{{
			"role":    "user",
			"content": map[string]string{"type": "text", "text": text},
		}},
		"defaultModel": defaultModel,
	}, nil
}

// textContent wraps text in a tool result content list.
func textContent(text string) map[string]any {
	return map[string]any{
		"content": []map[string]string{{"type": "text", "text": text}},
	}
}
