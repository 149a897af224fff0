package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gi8lino/uiforge/internal/utils"

	"github.com/dustin/go-humanize"
	"golang.org/x/time/rate"
)

// maxResponseBytes caps how much of an upstream response is read.
const maxResponseBytes = 8 << 20

// Options configures a Client.
type Options struct {
	DefaultModel  ModelType
	Providers     map[ModelType]Provider
	Timeout       time.Duration // per-request cap on the HTTP client
	RateLimit     float64       // requests per second; 0 disables limiting
	Burst         int
	SkipTLSVerify bool
}

// Client sends prompts to the configured LLM providers.
type Client struct {
	HTTP         *http.Client
	defaultModel ModelType
	providers    map[ModelType]Provider
	limiter      *rate.Limiter
	logger       *slog.Logger
}

// NewClient constructs a Client from opts.
func NewClient(opts Options, logger *slog.Logger) *Client {
	c := &Client{
		HTTP:         newHTTPClient(opts.Timeout, opts.SkipTLSVerify),
		defaultModel: opts.DefaultModel,
		providers:    opts.Providers,
		logger:       logger,
	}
	if c.defaultModel == "" {
		c.defaultModel = ModelDeepseek
	}
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return c
}

// Resolve merges cfg over the provider and built-in defaults.
func (c *Client) Resolve(cfg *Config) (Config, error) {
	var out Config
	if cfg != nil {
		out = *cfg
	}
	if out.ModelType == "" {
		out.ModelType = c.defaultModel
	}
	mt, err := ParseModelType(string(out.ModelType))
	if err != nil {
		return Config{}, err
	}
	out.ModelType = mt

	d := dialects[mt]
	p := c.providers[mt]
	requested := strings.TrimSpace(out.APIURL)
	out.APIURL = firstNonEmpty(out.APIURL, p.APIURL, d.defaultURL)
	// the configured key only travels to the configured or built-in endpoint
	if requested == "" || requested == strings.TrimSpace(p.APIURL) || requested == d.defaultURL {
		out.APIKey = firstNonEmpty(out.APIKey, p.APIKey)
	}
	out.ModelName = firstNonEmpty(out.ModelName, p.ModelName, d.defaultModel)

	if out.APIURL == "" {
		return Config{}, fmt.Errorf("model type %q: missing api url", mt)
	}
	return out, nil
}

// Generate sends prompt to the selected model and returns the completion text.
func (c *Client) Generate(ctx context.Context, prompt string, cfg *Config) (string, error) {
	resolved, err := c.Resolve(cfg)
	if err != nil {
		return "", err
	}
	d := dialects[resolved.ModelType]

	target, payload, hdr, err := d.build(prompt, resolved)
	if err != nil {
		return "", err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header = hdr
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("llm request",
		"model", resolved.ModelType,
		"host", req.URL.Host,
		"auth", utils.ObfuscateHeader(req.Header.Get("Authorization")),
		"apiKey", utils.ObfuscateSecret(req.Header.Get("x-api-key")),
		"size", humanize.Bytes(uint64(len(body))),
	)

	start := time.Now()
	res, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer res.Body.Close() // nolint:errcheck

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes+1))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if len(raw) > maxResponseBytes {
		return "", fmt.Errorf("response body exceeds %s", humanize.Bytes(maxResponseBytes))
	}

	c.logger.Debug("llm response",
		"model", resolved.ModelType,
		"name", resolved.ModelName,
		"status", res.StatusCode,
		"size", humanize.Bytes(uint64(len(raw))),
		"duration", time.Since(start),
	)

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", fmt.Errorf("upstream %d: %s", res.StatusCode, string(trim(raw, 2048)))
	}

	page, err := decodeJSONUseNumber(raw)
	if err != nil {
		return "", fmt.Errorf("invalid JSON: %w", err)
	}
	text := d.extract(page)
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("empty completion in response: %s", string(trim(raw, 512)))
	}
	return text, nil
}

// Ping sends a tiny prompt to verify that the model is reachable.
func (c *Client) Ping(ctx context.Context, cfg *Config) error {
	_, err := c.Generate(ctx, "Reply with the single word: ok", cfg)
	return err
}

// decodeJSONUseNumber decodes JSON using UseNumber to preserve integer precision.
func decodeJSONUseNumber(raw []byte) (any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return map[string]any{}, nil
	}
	var out any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// firstNonEmpty returns the first non-blank value.
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
