// Package debug provides a synthetic probe that simulates provider
// behaviors on demand. It is registered only when the configuration
// enables it.
package debug

import (
	"context"
	"strconv"
	"time"

	"github.com/jandubois/usagebar/internal/probe"
)

// ID is the probe's registry identifier.
const ID = "debug"

// defaultSleep applies in slow mode when USAGEBAR_DEBUG_SLEEP_MS is
// unset, long enough to outlast the default invocation timeout.
const defaultSleep = 90 * time.Second

// Probe simulates provider behaviors selected via USAGEBAR_DEBUG_MODE:
// ok (default), fail, fault, slow, and overage.
type Probe struct{}

// New creates the debug probe.
func New() *Probe { return &Probe{} }

// Info returns the registry metadata.
func (p *Probe) Info() probe.Info {
	return probe.Info{
		ID:      ID,
		Name:    "Debug",
		Version: "1.0.0",
	}
}

// Run executes the mode selected through the environment capability.
func (p *Probe) Run(ctx context.Context, pctx *probe.Context) (*probe.Result, error) {
	mode, _ := pctx.Env().Get("USAGEBAR_DEBUG_MODE")
	switch mode {
	case "", "ok":
		return p.ok(pctx), nil
	case "fail":
		return nil, probe.Errorf("debug probe failed on request")
	case "fault":
		panic("debug probe intentional crash")
	case "slow":
		select {
		case <-time.After(p.sleep(pctx)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return p.ok(pctx), nil
	case "overage":
		return &probe.Result{
			Plan: "Debug",
			Lines: []probe.MetricLine{
				probe.ProgressLine("Extra usage", 15.75, 10, probe.Dollars,
					probe.WithSubtitle("overage billing active")),
			},
		}, nil
	default:
		return nil, probe.Errorf("unknown debug mode %q", mode)
	}
}

func (p *Probe) ok(pctx *probe.Context) *probe.Result {
	now := pctx.Now()
	return &probe.Result{
		Plan: "Debug",
		Lines: []probe.MetricLine{
			probe.ProgressLine("Session", 42, 100, probe.Percent,
				probe.WithResetsAt(now.Add(2*time.Hour).Format(time.RFC3339)),
				probe.WithPeriod(5*time.Hour)),
			probe.ProgressLine("Weekly", 12, 100, probe.Percent,
				probe.WithResetsAt(now.Add(3*24*time.Hour).Format(time.RFC3339)),
				probe.WithPeriod(7*24*time.Hour)),
			probe.ProgressLine("Requests", 312, 500, probe.Count("requests")),
		},
	}
}

func (p *Probe) sleep(pctx *probe.Context) time.Duration {
	if raw, ok := pctx.Env().Get("USAGEBAR_DEBUG_SLEEP_MS"); ok {
		if ms, err := strconv.Atoi(raw); err == nil && ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultSleep
}
