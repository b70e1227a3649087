package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jandubois/usagebar/internal/batch"
	"github.com/jandubois/usagebar/internal/config"
	"github.com/jandubois/usagebar/internal/hostapi"
	"github.com/jandubois/usagebar/internal/metrics"
	"github.com/jandubois/usagebar/internal/notify"
	"github.com/jandubois/usagebar/internal/panel"
	"github.com/jandubois/usagebar/internal/probe"
	"github.com/jandubois/usagebar/internal/probes"
	"github.com/jandubois/usagebar/internal/version"
	"github.com/jandubois/usagebar/internal/web"
)

var panelCmd = &cobra.Command{
	Use:   "panel",
	Short: "Run the usage panel service",
	Long: `The panel service refreshes all enabled probes on an interval,
keeps the latest usage snapshot in memory, and serves it over a
token-protected HTTP API with a live event stream.`,
	RunE: runPanel,
}

func init() {
	rootCmd.AddCommand(panelCmd)
}

func runPanel(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath(cmd))
	if err != nil {
		return err
	}
	if err := setupLogging(cmd, cfg.Logging.Level, cfg.Logging.Format); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("shutdown signal received")
		cancel()
	}()

	metrics.RegisterProbeMetrics()

	registry, err := probes.NewRegistry(cfg.Probes.Debug)
	if err != nil {
		return fmt.Errorf("probe registration failed: %w", err)
	}

	host := hostapi.New(hostapi.Options{
		HTTPTimeout:  cfg.HTTPTimeout(),
		EnvAllowlist: cfg.Env.Allowlist,
	})
	meta := probe.AppMeta{
		Version: version.Version,
		DataDir: cfg.DataDir,
	}

	orch := batch.New(registry, host, meta,
		batch.WithInvokeTimeout(cfg.InvokeTimeout()),
		batch.WithDefaultProbes(cfg.EnabledProbes(registry.IDs())),
	)

	dispatcher := notify.NewDispatcher(cfg.Notify.Channels()...)
	pnl := panel.New(orch, registry,
		panel.WithInterval(cfg.RefreshInterval()),
		panel.WithDispatcher(dispatcher),
		panel.WithPaceMinElapsed(cfg.MinElapsedFraction()),
	)

	token, err := web.LoadOrCreateToken(config.TokenPath())
	if err != nil {
		return fmt.Errorf("api token setup failed: %w", err)
	}

	server := web.NewServer(web.Options{
		Addr:     cfg.Listen,
		Token:    token,
		Version:  version.Version,
		Panel:    pnl,
		Registry: registry,
	})

	go pnl.Run(ctx)

	slog.Info("starting panel",
		"listen", cfg.Listen,
		"probes", cfg.EnabledProbes(registry.IDs()),
		"refresh_interval", cfg.RefreshInterval(),
		"notifications", dispatcher.Enabled(),
	)
	return server.Run(ctx)
}
