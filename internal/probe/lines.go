package probe

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
)

// Line types.
const (
	LineText     = "text"
	LineBadge    = "badge"
	LineProgress = "progress"
)

// ErrorColor marks error badge lines.
const ErrorColor = "#ef4444"

// Format describes how a progress line's numbers are rendered.
type Format struct {
	Kind   string `json:"kind"`
	Suffix string `json:"suffix,omitempty"`
}

// Percent renders used/limit as a percentage; requires Limit == 100.
var Percent = Format{Kind: "percent"}

// Dollars renders used/limit as currency amounts.
var Dollars = Format{Kind: "dollars"}

// Count renders used/limit as plain counts with a unit suffix.
func Count(suffix string) Format {
	return Format{Kind: "count", Suffix: suffix}
}

// MetricLine is one display line of a probe result: a text line, a
// badge, or a progress bar. Used may exceed Limit on progress lines;
// overage is a valid, displayable state, not an error.
type MetricLine struct {
	Type             string
	Label            string
	Value            string // text
	Text             string // badge
	Used             float64
	Limit            float64
	Format           Format
	ResetsAt         string // RFC 3339, empty when unknown
	PeriodDurationMs int64  // 0 when unknown
	Color            string
	Subtitle         string
}

// MarshalJSON emits only the fields belonging to the line's type, so
// the wire shape matches what panel consumers expect.
func (l MetricLine) MarshalJSON() ([]byte, error) {
	m := map[string]any{
		"type":  l.Type,
		"label": l.Label,
	}
	switch l.Type {
	case LineText:
		m["value"] = l.Value
	case LineBadge:
		m["text"] = l.Text
	case LineProgress:
		m["used"] = l.Used
		m["limit"] = l.Limit
		m["format"] = l.Format
		if l.ResetsAt != "" {
			m["resetsAt"] = l.ResetsAt
		}
		if l.PeriodDurationMs > 0 {
			m["periodDurationMs"] = l.PeriodDurationMs
		}
	}
	if l.Color != "" {
		m["color"] = l.Color
	}
	if l.Subtitle != "" {
		m["subtitle"] = l.Subtitle
	}
	return json.Marshal(m)
}

// LineOption sets an optional line field.
type LineOption func(*MetricLine)

// WithColor sets the line's accent color ("#rrggbb").
func WithColor(color string) LineOption {
	return func(l *MetricLine) { l.Color = color }
}

// WithSubtitle sets the secondary text under the line.
func WithSubtitle(subtitle string) LineOption {
	return func(l *MetricLine) { l.Subtitle = subtitle }
}

// WithResetsAt marks when the progress line's quota period resets.
func WithResetsAt(iso string) LineOption {
	return func(l *MetricLine) { l.ResetsAt = iso }
}

// WithPeriod records the quota period length, enabling pace projection.
func WithPeriod(d time.Duration) LineOption {
	return func(l *MetricLine) { l.PeriodDurationMs = d.Milliseconds() }
}

// TextLine builds a text line.
func TextLine(label, value string, opts ...LineOption) MetricLine {
	l := MetricLine{Type: LineText, Label: label, Value: value}
	for _, opt := range opts {
		opt(&l)
	}
	return l
}

// BadgeLine builds a badge line.
func BadgeLine(label, text string, opts ...LineOption) MetricLine {
	l := MetricLine{Type: LineBadge, Label: label, Text: text}
	for _, opt := range opts {
		opt(&l)
	}
	return l
}

// ProgressLine builds a progress line.
func ProgressLine(label string, used, limit float64, format Format, opts ...LineOption) MetricLine {
	l := MetricLine{Type: LineProgress, Label: label, Used: used, Limit: limit, Format: format}
	for _, opt := range opts {
		opt(&l)
	}
	return l
}

// ErrorLine is the uniform error presentation for failed lines and
// failed probes.
func ErrorLine(message string) MetricLine {
	return MetricLine{Type: LineBadge, Label: "Error", Text: message, Color: ErrorColor}
}

// Sanitize validates every line in place, replacing each invalid line
// with an Error badge describing the violation. A result with no lines
// at all gains a single "no lines returned" badge.
func (r *Result) Sanitize() {
	if len(r.Lines) == 0 {
		r.Lines = []MetricLine{ErrorLine("no lines returned")}
		return
	}
	out := make([]MetricLine, 0, len(r.Lines))
	for i, line := range r.Lines {
		out = append(out, sanitizeLine(i, line))
	}
	r.Lines = out
}

func sanitizeLine(idx int, l MetricLine) MetricLine {
	switch l.Type {
	case LineText:
		if l.Label == "" || l.Value == "" {
			return ErrorLine(fmt.Sprintf("text line at index %d missing label or value", idx))
		}
	case LineBadge:
		if l.Label == "" || l.Text == "" {
			return ErrorLine(fmt.Sprintf("badge line at index %d missing label or text", idx))
		}
	case LineProgress:
		if l.Label == "" {
			return ErrorLine(fmt.Sprintf("progress line at index %d missing label", idx))
		}
		if math.IsNaN(l.Used) || math.IsInf(l.Used, 0) || l.Used < 0 {
			return ErrorLine(fmt.Sprintf("progress line at index %d invalid used: %v", idx, l.Used))
		}
		if math.IsNaN(l.Limit) || math.IsInf(l.Limit, 0) || l.Limit <= 0 {
			return ErrorLine(fmt.Sprintf("progress line at index %d invalid limit: %v", idx, l.Limit))
		}
		switch l.Format.Kind {
		case "percent":
			if l.Limit != 100 {
				return ErrorLine(fmt.Sprintf(
					"progress line at index %d: percent format requires limit=100 (got %v)", idx, l.Limit))
			}
		case "dollars":
		case "count":
			if strings.TrimSpace(l.Format.Suffix) == "" {
				return ErrorLine(fmt.Sprintf("progress line at index %d: count format missing suffix", idx))
			}
		default:
			return ErrorLine(fmt.Sprintf("progress line at index %d invalid format kind: %q", idx, l.Format.Kind))
		}
		if l.ResetsAt != "" {
			normalized, ok := normalizeResetsAt(l.ResetsAt)
			if !ok {
				slog.Warn("invalid resetsAt, omitting", "index", idx, "value", l.ResetsAt)
				l.ResetsAt = ""
			} else {
				l.ResetsAt = normalized
			}
		}
		if l.PeriodDurationMs < 0 {
			slog.Warn("periodDurationMs must be positive, omitting", "index", idx)
			l.PeriodDurationMs = 0
		}
	default:
		return ErrorLine(fmt.Sprintf("unknown line type at index %d: %q", idx, l.Type))
	}
	return l
}

// normalizeResetsAt accepts an RFC 3339 instant, tolerating ISO-like
// values missing a timezone by assuming UTC.
func normalizeResetsAt(value string) (string, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	if _, err := time.Parse(time.RFC3339, value); err == nil {
		return value, true
	}
	if isMissingTimezone(value) {
		withZ := value + "Z"
		if _, err := time.Parse(time.RFC3339, withZ); err == nil {
			return withZ, true
		}
	}
	return "", false
}

func isMissingTimezone(value string) bool {
	if !strings.Contains(value, "T") || strings.HasSuffix(value, "Z") {
		return false
	}
	_, tail, _ := strings.Cut(value, "T")
	return !strings.Contains(tail, "+") && !strings.Contains(tail, "-")
}
