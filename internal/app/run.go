package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"syscall"
	"time"

	"github.com/gi8lino/uiforge/internal/cache"
	"github.com/gi8lino/uiforge/internal/catalog"
	"github.com/gi8lino/uiforge/internal/config"
	"github.com/gi8lino/uiforge/internal/flag"
	"github.com/gi8lino/uiforge/internal/generate"
	"github.com/gi8lino/uiforge/internal/llm"
	"github.com/gi8lino/uiforge/internal/logging"
	"github.com/gi8lino/uiforge/internal/mcp"
	"github.com/gi8lino/uiforge/internal/pipeline"
	"github.com/gi8lino/uiforge/internal/preview"
	"github.com/gi8lino/uiforge/internal/rpc"
	"github.com/gi8lino/uiforge/internal/server"
	"github.com/gi8lino/uiforge/internal/templates"
	"github.com/gi8lino/uiforge/internal/utils"

	"github.com/containeroo/tinyflags"
)

const embeddedCatalog = "web/data/components.yaml"

// Run starts the uiforge application.
func Run(ctx context.Context, webFS fs.FS, version, commit string, args []string, w io.Writer, getEnv func(string) string) error {
	// Create a new context that listens for interrupt signals
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Parse command-line flags
	flags, err := flag.ParseArgs(version, args, w, getEnv)
	if err != nil {
		if tinyflags.IsHelpRequested(err) || tinyflags.IsVersionRequested(err) {
			fmt.Fprint(w, err.Error()) // nolint:errcheck
			return nil
		}
		return fmt.Errorf("parsing error: %w", err)
	}

	// Setup logger
	logger := logging.SetupLogger(flags.LogFormat, flags.Debug, w)

	logger.Info("Starting uiforge",
		"version", version,
		"commit", commit,
	)

	// Load and validate config
	cfg, err := config.LoadConfig(flags.Config)
	if err != nil {
		return fmt.Errorf("loading config error: %w", err)
	}
	if err := config.ValidateConfig(&cfg); err != nil {
		return fmt.Errorf("validating config error: %w", err)
	}

	// Templates and component catalog
	pages := templates.ParsePageTemplates(webFS, templates.TemplateFuncMap())
	prompts := templates.ParsePromptTemplates(webFS, templates.TextFuncMap())

	cat, err := loadCatalog(webFS, cfg.Catalog)
	if err != nil {
		return fmt.Errorf("loading catalog error: %w", err)
	}

	// LLM client
	llmOpts := cfg.LLMOptions()
	client := llm.NewClient(llmOpts, logger)
	for _, mt := range slices.Sorted(maps.Keys(llmOpts.Providers)) {
		p := llmOpts.Providers[mt]
		logger.Debug("llm provider",
			"type", mt,
			"apiURL", p.APIURL,
			"apiKey", utils.ObfuscateSecret(p.APIKey),
			"model", p.ModelName,
		)
	}

	// Generation: result cache, coordinator and preview pipeline
	results := cache.New[generate.Result](cfg.Cache.MaxSize, cfg.Cache.TTL)
	go results.Run(ctx, cfg.Cache.CleanupInterval)

	prompter := templates.NewPrompter(prompts, cat.Names())
	coordinator := generate.NewCoordinator(client, prompter, results, generate.Options{
		Timeout:   cfg.LLM.Timeout,
		Shortcuts: cfg.GenerateShortcuts(),
	}, logger)

	previews := preview.NewRegistry()
	pipe := pipeline.New(coordinator, previews, flags.RoutePrefix+"/api/preview/get")

	dispatcher := rpc.NewDispatcher(0, logger)
	mcp.NewService(pipe, client, cat, prompter).Register(dispatcher)

	logger.Debug("configuration",
		"defaultProvider", llmOpts.DefaultModel,
		"components", len(cat.List()),
		"shortcuts", len(cfg.Shortcuts),
		"cacheMaxSize", cfg.Cache.MaxSize,
		"cacheTTL", cfg.Cache.TTL,
		"methods", dispatcher.Methods(),
	)

	// Setup Server and run forever
	router := server.NewRouter(
		pages,
		pipe,
		previews,
		dispatcher,
		cfg.Preview.StorageTTL,
		flags.RoutePrefix,
		logger,
		flags.Debug,
	)
	// generation requests wait on the LLM, so writes must outlive its timeout
	writeTimeout := cfg.LLM.Timeout + 15*time.Second

	err = server.RunHTTPServer(ctx, router, flags.ListenAddr, writeTimeout, logger)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("HTTP server exited with error", "error", err)
	}

	stats := coordinator.CacheStats()
	logger.Info("Stopped uiforge",
		"cacheHits", stats.Hits,
		"cacheMisses", stats.Misses,
		"cacheEvictions", stats.Evictions,
		"previews", previews.Len(),
	)

	return err
}

// loadCatalog reads the catalog at path, or the embedded one when path is empty.
func loadCatalog(webFS fs.FS, path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Load(webFS, embeddedCatalog)
	}
	return catalog.Load(os.DirFS(filepath.Dir(path)), filepath.Base(path))
}
