// Package panel coordinates recurring refresh batches and holds the
// latest result per probe for display. Only events from the most
// recently started batch are applied; anything older is dropped on
// arrival.
package panel

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jandubois/usagebar/internal/batch"
	"github.com/jandubois/usagebar/internal/metrics"
	"github.com/jandubois/usagebar/internal/notify"
	"github.com/jandubois/usagebar/internal/pace"
	"github.com/jandubois/usagebar/internal/probe"
)

// DefaultInterval is how often the panel refreshes on its own.
const DefaultInterval = 5 * time.Minute

// subscriberBuffer bounds how far a subscriber may lag before it
// starts losing events.
const subscriberBuffer = 64

// Starter launches refresh batches.
type Starter interface {
	Start(ctx context.Context, ids []string, opts ...batch.StartOption) (batch.Batch, <-chan batch.Event)
}

// Panel is the refresh coordinator.
type Panel struct {
	starter    Starter
	registry   *probe.Registry
	interval   time.Duration
	now        func() time.Time
	dispatcher *notify.Dispatcher
	minElapsed float64

	mu          sync.Mutex
	activeBatch string
	states      map[string]probeState
	lastPace    map[string]paceState
	refreshedAt time.Time

	subMu   sync.Mutex
	subs    map[int]chan batch.Event
	nextSub int
}

type probeState struct {
	output    *probe.Result
	failure   string
	fault     bool
	batchID   string
	updatedAt time.Time
}

type paceState struct {
	status       pace.Status
	limitReached bool
}

// Option configures a Panel.
type Option func(*Panel)

// WithInterval overrides the automatic refresh interval.
func WithInterval(d time.Duration) Option {
	return func(p *Panel) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithClock overrides the clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Panel) { p.now = now }
}

// WithDispatcher enables pace transition notifications.
func WithDispatcher(d *notify.Dispatcher) Option {
	return func(p *Panel) { p.dispatcher = d }
}

// WithPaceMinElapsed overrides the minimum elapsed fraction below
// which pace is not projected.
func WithPaceMinElapsed(f float64) Option {
	return func(p *Panel) {
		if f >= 0 {
			p.minElapsed = f
		}
	}
}

// New creates a Panel over the given batch starter and registry.
func New(starter Starter, registry *probe.Registry, opts ...Option) *Panel {
	p := &Panel{
		starter:    starter,
		registry:   registry,
		interval:   DefaultInterval,
		now:        time.Now,
		minElapsed: pace.DefaultMinElapsedFraction,
		states:     make(map[string]probeState),
		lastPace:   make(map[string]paceState),
		subs:       make(map[int]chan batch.Event),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run refreshes immediately, then on the configured interval, until
// ctx is canceled. Refreshes started here share ctx, so probes in
// flight at shutdown get to finish or time out on their own terms.
func (p *Panel) Run(ctx context.Context) {
	p.Refresh(ctx, nil)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Refresh(ctx, nil)
		}
	}
}

// Refresh starts a new batch and makes it the active one: from now on
// events from earlier batches are stale. ctx governs probe execution;
// callers triggering background refreshes from a request should pass a
// context that outlives the request.
func (p *Panel) Refresh(ctx context.Context, ids []string) batch.Batch {
	b, events := p.starter.Start(ctx, ids)

	p.mu.Lock()
	p.activeBatch = b.ID
	p.mu.Unlock()

	go p.consume(events)
	return b
}

// ActiveBatch returns the id of the most recently started batch.
func (p *Panel) ActiveBatch() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.activeBatch
}

func (p *Panel) consume(events <-chan batch.Event) {
	for ev := range events {
		p.apply(ev)
	}
}

func (p *Panel) apply(ev batch.Event) {
	p.mu.Lock()
	if ev.BatchID != p.activeBatch {
		p.mu.Unlock()
		metrics.StaleEventsTotal.Inc()
		slog.Debug("dropping stale batch event", "batch_id", ev.BatchID, "probe", ev.ProbeID)
		return
	}

	now := p.now()
	switch ev.Kind {
	case batch.EventResult:
		p.states[ev.ProbeID] = probeState{
			output:    ev.Output,
			failure:   ev.Failure,
			fault:     ev.Fault,
			batchID:   ev.BatchID,
			updatedAt: now,
		}
	case batch.EventComplete:
		p.refreshedAt = now
	}
	p.mu.Unlock()

	p.broadcast(ev)
	if ev.Kind == batch.EventResult && ev.Failure == "" {
		p.observePace(ev.ProbeID, ev.Output, now)
	}
}

// observePace classifies every paceable line of a fresh result and
// raises a notification when a line crosses into behind, reaches its
// limit, or recovers. Each transition notifies once.
func (p *Panel) observePace(probeID string, output *probe.Result, now time.Time) {
	for _, line := range output.Lines {
		if line.Type != probe.LineProgress || line.ResetsAt == "" || line.PeriodDurationMs <= 0 {
			continue
		}
		resetsAt, err := time.Parse(time.RFC3339, line.ResetsAt)
		if err != nil {
			continue
		}
		r := pace.ClassifyAt(line.Used, line.Limit,
			resetsAt.UnixMilli(), line.PeriodDurationMs, now.UnixMilli(), p.minElapsed)
		p.recordPace(probeID, line.Label, r)
	}
}

func (p *Panel) recordPace(probeID, label string, r pace.Result) {
	key := probeID + "\x00" + label
	next := paceState{status: r.Status, limitReached: r.LimitReached}

	p.mu.Lock()
	prev, seen := p.lastPace[key]
	p.lastPace[key] = next
	p.mu.Unlock()

	if seen && prev == next {
		return
	}
	metrics.PaceTransitionsTotal.WithLabelValues(probeID, string(r.Status)).Inc()

	if p.dispatcher == nil || !p.dispatcher.Enabled() {
		return
	}
	hitLimit := next.limitReached && !prev.limitReached
	fellBehind := seen && next.status == pace.StatusBehind && prev.status != pace.StatusBehind
	recovered := seen && prev.status == pace.StatusBehind &&
		(next.status == pace.StatusAhead || next.status == pace.StatusOnTrack)
	if !hitLimit && !fellBehind && !recovered {
		return
	}

	name := probeID
	if info, ok := p.registry.Info(probeID); ok {
		name = info.Name
	}
	p.dispatcher.NotifyPaceChange(context.Background(), &notify.PaceChange{
		ProbeName:    name,
		Label:        label,
		Old:          prev.status,
		New:          next.status,
		LimitReached: next.limitReached,
		Detail:       r.Detail,
	})
}

// Subscribe returns a stream of applied batch events plus a cancel
// function that releases the subscription. A subscriber that stops
// reading loses events rather than stalling refreshes.
func (p *Panel) Subscribe() (<-chan batch.Event, func()) {
	p.subMu.Lock()
	defer p.subMu.Unlock()

	id := p.nextSub
	p.nextSub++
	ch := make(chan batch.Event, subscriberBuffer)
	p.subs[id] = ch

	return ch, func() {
		p.subMu.Lock()
		defer p.subMu.Unlock()
		if _, ok := p.subs[id]; ok {
			delete(p.subs, id)
			close(ch)
		}
	}
}

func (p *Panel) broadcast(ev batch.Event) {
	p.subMu.Lock()
	defer p.subMu.Unlock()
	for id, ch := range p.subs {
		select {
		case ch <- ev:
		default:
			slog.Warn("dropping event for slow subscriber", "subscriber", id)
		}
	}
}
