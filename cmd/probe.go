package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jandubois/usagebar/internal/batch"
	"github.com/jandubois/usagebar/internal/config"
	"github.com/jandubois/usagebar/internal/hostapi"
	"github.com/jandubois/usagebar/internal/probe"
	"github.com/jandubois/usagebar/internal/probes"
	"github.com/jandubois/usagebar/internal/version"
)

var probeCmd = &cobra.Command{
	Use:   "probe <id>",
	Short: "Run a single probe once and print its result as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
}

func runProbe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath(cmd))
	if err != nil {
		return err
	}
	if err := setupLogging(cmd, cfg.Logging.Level, cfg.Logging.Format); err != nil {
		return err
	}

	// The debug probe is always runnable one-shot, config or not.
	registry, err := probes.NewRegistry(true)
	if err != nil {
		return fmt.Errorf("probe registration failed: %w", err)
	}

	id := args[0]
	if _, ok := registry.Get(id); !ok {
		if hint := registry.Suggest(id); hint != "" {
			return fmt.Errorf("unknown probe %q (did you mean %q?)", id, hint)
		}
		return fmt.Errorf("unknown probe %q", id)
	}

	host := hostapi.New(hostapi.Options{
		HTTPTimeout:  cfg.HTTPTimeout(),
		EnvAllowlist: cfg.Env.Allowlist,
	})
	meta := probe.AppMeta{
		Version: version.Version,
		DataDir: cfg.DataDir,
	}
	orch := batch.New(registry, host, meta, batch.WithInvokeTimeout(cfg.InvokeTimeout()))

	// A one-probe batch gives the run the same timeout and fault
	// handling the panel applies.
	_, events := orch.Start(context.Background(), []string{id})
	for ev := range events {
		if ev.Kind != batch.EventResult {
			continue
		}
		if ev.Failure != "" {
			return fmt.Errorf("%s: %s", id, ev.Failure)
		}
		return json.NewEncoder(os.Stdout).Encode(ev.Output)
	}
	return fmt.Errorf("%s: no result", id)
}
