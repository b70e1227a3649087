// Package batch runs refresh batches: a set of probes invoked
// concurrently under one batch id, their results streamed back
// incrementally and terminated by a single completion marker.
package batch

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jandubois/usagebar/internal/hostapi"
	"github.com/jandubois/usagebar/internal/metrics"
	"github.com/jandubois/usagebar/internal/probe"
)

// FaultMessage is the uniform user-visible text for invocation faults.
// Panics, runtime errors, and timeouts all collapse into it so internal
// details never reach the panel.
const FaultMessage = "probe execution failed"

// DefaultInvokeTimeout bounds a single probe invocation.
const DefaultInvokeTimeout = 60 * time.Second

// DefaultGuardGrace is how much past the invocation timeout the
// orchestrator waits for a probe that ignores its context before
// recording the fault and moving on.
const DefaultGuardGrace = 5 * time.Second

// EventKind discriminates batch notifications.
type EventKind string

const (
	// EventResult carries the terminal outcome for one probe.
	EventResult EventKind = "result"
	// EventComplete marks the end of the batch. Nothing follows it.
	EventComplete EventKind = "complete"
)

// Event is one batch notification. Every event names the batch that
// produced it so consumers can discard events from superseded batches.
type Event struct {
	BatchID string        `json:"batchId"`
	Kind    EventKind     `json:"kind"`
	ProbeID string        `json:"probeId,omitempty"`
	Output  *probe.Result `json:"output,omitempty"`
	Failure string        `json:"failure,omitempty"`
	Fault   bool          `json:"fault,omitempty"`
}

// Batch describes a started batch: its id and the probes that will
// each produce exactly one result event.
type Batch struct {
	ID       string   `json:"batchId"`
	ProbeIDs []string `json:"probeIds"`
}

// Orchestrator starts batches against a probe registry. Batches are
// independent; starting a new one never cancels an older one.
type Orchestrator struct {
	registry      *probe.Registry
	host          *hostapi.Host
	meta          probe.AppMeta
	invokeTimeout time.Duration
	guardGrace    time.Duration
	defaults      []string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithInvokeTimeout overrides the per-probe invocation timeout.
func WithInvokeTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.invokeTimeout = d
		}
	}
}

// WithGuardGrace overrides how long past the timeout an unresponsive
// probe is waited on before its fault result is recorded.
func WithGuardGrace(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.guardGrace = d
		}
	}
}

// WithDefaultProbes sets the probe set used when a batch request does
// not name any probes. Without it the whole registry is the default.
func WithDefaultProbes(ids []string) Option {
	return func(o *Orchestrator) { o.defaults = ids }
}

// New creates an Orchestrator.
func New(registry *probe.Registry, host *hostapi.Host, meta probe.AppMeta, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry:      registry,
		host:          host,
		meta:          meta,
		invokeTimeout: DefaultInvokeTimeout,
		guardGrace:    DefaultGuardGrace,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// StartOption configures a single batch.
type StartOption func(*startConfig)

type startConfig struct {
	batchID string
}

// WithBatchID supplies a caller-chosen batch id instead of a generated
// one. Whitespace-only ids fall back to generation.
func WithBatchID(id string) StartOption {
	return func(c *startConfig) { c.batchID = id }
}

// Start launches a batch and returns its identity plus the event
// stream. A nil ids slice selects the default probe set; an empty
// non-nil slice is an explicit zero-probe batch that completes
// immediately. Unknown, duplicate, and blank ids are dropped.
//
// The returned channel is buffered for the batch's full event count,
// so producers never block on a consumer that stopped reading, and it
// is closed right after the completion event.
func (o *Orchestrator) Start(ctx context.Context, ids []string, opts ...StartOption) (Batch, <-chan Event) {
	var cfg startConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	batchID := strings.TrimSpace(cfg.batchID)
	if batchID == "" {
		batchID = uuid.NewString()
	}

	resolved := o.resolve(ids)
	events := make(chan Event, len(resolved)+1)

	metrics.BatchesStartedTotal.Inc()
	slog.Info("batch started", "batch_id", batchID, "probes", resolved)

	go o.run(ctx, batchID, resolved, events)

	return Batch{ID: batchID, ProbeIDs: resolved}, events
}

// resolve trims, deduplicates (keeping first occurrence order), and
// drops ids with no registered probe.
func (o *Orchestrator) resolve(ids []string) []string {
	if ids == nil {
		if o.defaults != nil {
			ids = o.defaults
		} else {
			ids = o.registry.IDs()
		}
	}

	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		if _, ok := o.registry.Get(id); !ok {
			if suggestion := o.registry.Suggest(id); suggestion != "" {
				slog.Warn("skipping unknown probe", "probe", id, "closest", suggestion)
			} else {
				slog.Warn("skipping unknown probe", "probe", id)
			}
			continue
		}
		out = append(out, id)
	}
	return out
}

func (o *Orchestrator) run(ctx context.Context, batchID string, ids []string, events chan<- Event) {
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			events <- o.invoke(ctx, batchID, id)
		}(id)
	}
	wg.Wait()

	events <- Event{BatchID: batchID, Kind: EventComplete}
	close(events)
	metrics.BatchesCompletedTotal.Inc()
	slog.Debug("batch complete", "batch_id", batchID, "probes", len(ids))
}

// invoke produces exactly one event for the probe, even when the
// invocation outlives its deadline. A probe that ignores its expired
// context keeps running detached; its eventual result is discarded,
// but its side effects (a persisted credential refresh, say) stand.
func (o *Orchestrator) invoke(ctx context.Context, batchID, id string) Event {
	p, ok := o.registry.Get(id)
	if !ok {
		return o.fault(batchID, id)
	}

	runCtx, cancel := context.WithTimeout(ctx, o.invokeTimeout)
	defer cancel()

	done := make(chan Event, 1)
	go func() {
		done <- o.runProbe(runCtx, batchID, id, p)
	}()

	guard := time.NewTimer(o.invokeTimeout + o.guardGrace)
	defer guard.Stop()

	select {
	case ev := <-done:
		return ev
	case <-guard.C:
		slog.Warn("probe unresponsive, recording fault", "probe", id, "timeout", o.invokeTimeout)
		metrics.ObserveProbeRun(id, metrics.OutcomeFault, o.invokeTimeout+o.guardGrace)
		return o.fault(batchID, id)
	}
}

func (o *Orchestrator) runProbe(ctx context.Context, batchID, id string, p probe.Probe) (ev Event) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("probe panicked", "probe", id, "panic", r)
			metrics.ObserveProbeRun(id, metrics.OutcomeFault, time.Since(start))
			ev = o.fault(batchID, id)
		}
	}()

	pctx := probe.NewContext(o.host, o.meta, id, start)
	result, err := p.Run(ctx, pctx)
	duration := time.Since(start)

	switch {
	case err == nil && result != nil:
		result.Sanitize()
		metrics.ObserveProbeRun(id, metrics.OutcomeOK, duration)
		slog.Info("probe executed",
			"probe", id,
			"duration_ms", duration.Milliseconds(),
			"lines", len(result.Lines),
		)
		return Event{BatchID: batchID, Kind: EventResult, ProbeID: id, Output: result}
	case err == nil:
		slog.Error("probe returned no result", "probe", id)
		metrics.ObserveProbeRun(id, metrics.OutcomeFault, duration)
		return o.fault(batchID, id)
	case probe.IsUserError(err):
		metrics.ObserveProbeRun(id, metrics.OutcomeFailure, duration)
		slog.Info("probe reported failure",
			"probe", id,
			"duration_ms", duration.Milliseconds(),
			"message", err.Error(),
		)
		return o.failure(batchID, id, err.Error(), false)
	default:
		metrics.ObserveProbeRun(id, metrics.OutcomeFault, duration)
		slog.Error("probe execution failed",
			"probe", id,
			"duration_ms", duration.Milliseconds(),
			"error", err,
		)
		return o.fault(batchID, id)
	}
}

// failure renders a failed probe as a result whose output is a single
// error badge, so every terminal state displays through the same shape.
func (o *Orchestrator) failure(batchID, id, msg string, fault bool) Event {
	return Event{
		BatchID: batchID,
		Kind:    EventResult,
		ProbeID: id,
		Output:  &probe.Result{Lines: []probe.MetricLine{probe.ErrorLine(msg)}},
		Failure: msg,
		Fault:   fault,
	}
}

func (o *Orchestrator) fault(batchID, id string) Event {
	return o.failure(batchID, id, FaultMessage, true)
}
