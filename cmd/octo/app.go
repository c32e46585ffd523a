package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/shankslo8/octo-code-agent/internal/agentloop"
	"github.com/shankslo8/octo-code-agent/internal/config"
	"github.com/shankslo8/octo-code-agent/internal/model"
	"github.com/shankslo8/octo-code-agent/internal/observability"
	"github.com/shankslo8/octo-code-agent/internal/permission"
	"github.com/shankslo8/octo-code-agent/internal/provider"
	"github.com/shankslo8/octo-code-agent/internal/storage"
	"github.com/shankslo8/octo-code-agent/internal/team"
	"github.com/shankslo8/octo-code-agent/internal/tool"
	"github.com/shankslo8/octo-code-agent/internal/tools/bash"
	"github.com/shankslo8/octo-code-agent/internal/tools/codeintel"
	"github.com/shankslo8/octo-code-agent/internal/tools/fs"
	teamtools "github.com/shankslo8/octo-code-agent/internal/tools/team"

	"github.com/spf13/cobra"
)

// app bundles every collaborator cmd/octo constructs around the agent
// loop. internal/agentloop, internal/provider, and internal/tool
// never import config, observability, or storage directly; this is the
// one place that wires them together.
type app struct {
	logger  zerolog.Logger
	metrics *observability.Metrics
	tracer  *observability.Tracer

	stores storage.StoreSet
	team   *team.Handle
	loop   *agentloop.Loop
}

func runRoot(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(os.Stderr, parseLogLevel(logLevelFlag))
	metrics := observability.NewMetrics()
	tracer, shutdownTracer := observability.NewTracer(observability.TraceConfig{
		ServiceName: "octo",
		Endpoint:    os.Getenv("OCTO_OTLP_ENDPOINT"),
	})
	defer func() { _ = shutdownTracer(context.Background()) }()

	if metricsAddr != "" {
		go serveMetrics(metricsAddr, logger)
	}

	workingDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getwd: %w", err)
	}

	stores, err := openStores()
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() { _ = stores.Close() }()

	baseDir := cfg.TeamBaseDir
	if baseDir == "" {
		baseDir = team.DefaultBaseDir()
	}
	teamHandle := team.NewHandle()
	if teamNameFlag != "" && agentFlag != "" {
		teamHandle.Join(team.NewState(teamNameFlag, agentFlag, false, baseDir))
	}

	mdl := model.Default.Lookup(model.ID(cfg.Model))

	var prov provider.Provider
	if cfg.BaseURL == "" {
		prov = provider.NewCompatClient(provider.CompatConfig{APIKey: cfg.APIKey, Model: mdl})
	} else {
		prov = provider.NewClient(provider.Config{
			BaseURL:   cfg.BaseURL,
			APIKey:    cfg.APIKey,
			Model:     mdl,
			MaxTokens: cfg.MaxTokens,
		})
	}

	registry := buildRegistry(cfg, workingDir, baseDir, teamHandle)

	prompter := permission.NewLinePrompter(bufio.NewReader(os.Stdin), func(s string) { fmt.Fprint(os.Stdout, s) })
	gate := permission.NewGate(prompter)
	dispatcher := agentloop.NewDispatcher(registry, gate)

	systemPrompt := buildSystemPrompt(cfg, workingDir)
	loop := agentloop.NewLoop(prov, dispatcher, systemPrompt)

	a := &app{logger: logger, metrics: metrics, tracer: tracer, stores: stores, team: teamHandle, loop: loop}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if promptFlag != "" {
		return a.runOnce(ctx, promptFlag)
	}
	return a.runInteractive(ctx)
}

func openStores() (storage.StoreSet, error) {
	path := strings.TrimSpace(os.Getenv("OCTO_DB_PATH"))
	if path == "" {
		path = "octo.db"
	}
	if strings.TrimSpace(os.Getenv("OCTO_DB_PURE_GO")) != "" {
		return storage.NewPureGoSQLiteStores(path)
	}
	return storage.NewSQLiteStores(path)
}

func buildRegistry(cfg *config.Config, workingDir, teamBaseDir string, handle *team.Handle) *tool.Registry {
	registry := tool.NewRegistry()

	registry.Register(bash.NewTool(workingDir))

	fsCfg := fs.Config{Workspace: workingDir}
	registry.Register(fs.NewViewTool(fsCfg))
	registry.Register(fs.NewWriteTool(fsCfg))
	registry.Register(fs.NewEditTool(fsCfg))
	registry.Register(fs.NewLsTool(fsCfg))
	registry.Register(fs.NewGlobTool(fsCfg))
	registry.Register(fs.NewGrepTool(fsCfg))

	if cfg.CodeIntelURL != "" {
		ci := codeintel.NewTool(cfg.CodeIntelURL, workingDir)
		if err := ci.Probe(context.Background()); err == nil {
			registry.Register(ci)
		}
	}

	teamCfg := teamtools.Config{BaseDir: teamBaseDir, WorkingDir: workingDir}
	registry.Register(teamtools.NewCreateTool(teamCfg, handle))
	registry.Register(teamtools.NewDeleteTool(handle))
	registry.Register(teamtools.NewSpawnTool(teamCfg, handle))
	registry.Register(teamtools.NewSendMessageTool(handle))
	registry.Register(teamtools.NewCheckInboxTool(handle))
	registry.Register(teamtools.NewCreateTaskTool(handle))
	registry.Register(teamtools.NewGetTaskTool(handle))
	registry.Register(teamtools.NewUpdateTaskTool(handle))
	registry.Register(teamtools.NewListTasksTool(handle))

	return registry
}

func buildSystemPrompt(cfg *config.Config, workingDir string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are Octo, a terminal coding agent working in %s.\n", workingDir)
	for _, p := range cfg.ContextPaths {
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "\n--- %s ---\n%s\n", p, string(data))
	}
	return b.String()
}

func serveMetrics(addr string, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error().Err(err).Msg("metrics server exited")
	}
}
