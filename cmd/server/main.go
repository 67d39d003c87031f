package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sheetforge/sheetforge/internal/registry"
	"github.com/sheetforge/sheetforge/internal/runtime"
	"github.com/sheetforge/sheetforge/internal/security"
	"github.com/sheetforge/sheetforge/internal/store"
	"github.com/sheetforge/sheetforge/internal/telemetry"
	"github.com/sheetforge/sheetforge/pkg/version"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	var (
		useStdio        bool
		shutdownTimeout time.Duration
	)

	root := &cobra.Command{
		Use:           "sheetforge-server",
		Short:         "Headless spreadsheet engine behind an MCP tool surface",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(useStdio, shutdownTimeout)
		},
	}
	root.Flags().BoolVar(&useStdio, "stdio", false, "Run server over stdio transport")
	root.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 5*time.Second, "Graceful shutdown timeout")

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}

func run(useStdio bool, shutdownTimeout time.Duration) error {
	logger := zlog.With().Str("service", "sheetforge-server").Logger()
	ctx := logger.WithContext(context.Background())
	_ = shutdownTimeout // stdio transport tears down with the pipe

	// Security: validate allow-list directories on startup (fail-safe on error)
	policy, err := security.NewPolicyFromEnv()
	if err != nil {
		logger.Error().Err(err).Msg("security: failed to initialize policy from env")
		return fmt.Errorf("invalid security configuration; set %s", security.EnvAllowedDirs)
	}
	if err := policy.ValidateConfig(); err != nil {
		logger.Error().Err(err).Msg("security: invalid allow-list configuration")
		return fmt.Errorf("no allowed directories configured; set %s", security.EnvAllowedDirs)
	}
	logger.Info().Strs("allowed_dirs", policy.AllowedDirectories()).Msg("security allow-list configured")

	limits := runtime.NewLimits(0, 0)
	runtimeController := runtime.NewController(limits)
	runtimeMW := runtime.NewMiddleware(runtimeController)

	workbooks := store.New(runtimeController)
	toolRegistry := registry.New()
	writeFilter := registry.NewWriteToolFilterFromEnv()

	srv := server.NewMCPServer(
		"Sheetforge Spreadsheet Server",
		version.Version(),
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithHooks(telemetry.NewHooks(logger).ServerHooks()),
		server.WithToolHandlerMiddleware(runtimeMW.ToolMiddleware),
		server.WithToolFilter(func(ctx context.Context, tools []mcp.Tool) []mcp.Tool {
			return writeFilter.FilterTools(ctx, tools)
		}),
	)

	deps := registry.Deps{
		Store:  workbooks,
		Policy: policy,
		Limits: runtimeController.LimitsSnapshot(),
		Logger: logger,
	}
	registry.RegisterWorkbookTools(srv, toolRegistry, deps)
	registry.RegisterDataTools(srv, toolRegistry, deps)
	registry.RegisterObjectTools(srv, toolRegistry, deps)

	toolContextSize := toolRegistry.ModelContextSize("gpt-4o")

	logger.Info().
		Ctx(ctx).
		Str("version", version.Version()).
		Int("max_concurrent_requests", limits.MaxConcurrentRequests).
		Int("max_open_sessions", limits.MaxOpenSessions).
		Int("model_context_size", toolContextSize).
		Bool("stdio", useStdio).
		Msg("server bootstrap configured")

	if useStdio {
		if err := server.ServeStdio(srv); err != nil {
			return err
		}
		return nil
	}

	return fmt.Errorf("no transport selected; use --stdio to run over stdio")
}
