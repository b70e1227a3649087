package panel

import (
	"encoding/json"
	"time"

	"github.com/jandubois/usagebar/internal/pace"
	"github.com/jandubois/usagebar/internal/probe"
)

// LineView is one metric line plus its pace classification, computed
// at snapshot time and never stored.
type LineView struct {
	Line probe.MetricLine
	Pace *pace.Result
}

// MarshalJSON merges the pace classification into the line's own wire
// shape under a "pace" key.
func (v LineView) MarshalJSON() ([]byte, error) {
	raw, err := v.Line.MarshalJSON()
	if err != nil {
		return nil, err
	}
	if v.Pace == nil {
		return raw, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	m["pace"] = v.Pace
	return json.Marshal(m)
}

// ProbeSnapshot is the displayable state of one probe.
type ProbeSnapshot struct {
	Info      probe.Info `json:"info"`
	Plan      string     `json:"plan,omitempty"`
	Lines     []LineView `json:"lines,omitempty"`
	Failure   string     `json:"failure,omitempty"`
	Fault     bool       `json:"fault,omitempty"`
	Pending   bool       `json:"pending,omitempty"`
	UpdatedAt string     `json:"updatedAt,omitempty"`
}

// Snapshot is the full panel state at one instant.
type Snapshot struct {
	GeneratedAt string          `json:"generatedAt"`
	RefreshedAt string          `json:"refreshedAt,omitempty"`
	ActiveBatch string          `json:"activeBatchId,omitempty"`
	Probes      []ProbeSnapshot `json:"probes"`
}

// Snapshot renders the current state of every registered probe, with
// pace recomputed against the clock at call time.
func (p *Panel) Snapshot() Snapshot {
	now := p.now()

	p.mu.Lock()
	defer p.mu.Unlock()

	infos := p.registry.Infos()
	probes := make([]ProbeSnapshot, 0, len(infos))
	for _, info := range infos {
		ps := ProbeSnapshot{Info: info}
		st, ok := p.states[info.ID]
		if !ok {
			ps.Pending = true
		} else {
			ps.Plan = st.output.Plan
			ps.Failure = st.failure
			ps.Fault = st.fault
			ps.UpdatedAt = st.updatedAt.UTC().Format(time.RFC3339)
			ps.Lines = viewLines(st.output.Lines, now, p.minElapsed)
		}
		probes = append(probes, ps)
	}

	s := Snapshot{
		GeneratedAt: now.UTC().Format(time.RFC3339),
		ActiveBatch: p.activeBatch,
		Probes:      probes,
	}
	if !p.refreshedAt.IsZero() {
		s.RefreshedAt = p.refreshedAt.UTC().Format(time.RFC3339)
	}
	return s
}

// viewLines attaches a pace classification to every progress line that
// carries both a reset instant and a period length.
func viewLines(lines []probe.MetricLine, now time.Time, minElapsed float64) []LineView {
	out := make([]LineView, len(lines))
	for i, line := range lines {
		v := LineView{Line: line}
		if line.Type == probe.LineProgress && line.ResetsAt != "" && line.PeriodDurationMs > 0 {
			if resetsAt, err := time.Parse(time.RFC3339, line.ResetsAt); err == nil {
				r := pace.ClassifyAt(line.Used, line.Limit,
					resetsAt.UnixMilli(), line.PeriodDurationMs, now.UnixMilli(), minElapsed)
				if r.Status != pace.StatusNone || r.LimitReached {
					v.Pace = &r
				}
			}
		}
		out[i] = v
	}
	return out
}
