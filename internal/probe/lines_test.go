package probe

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestSanitizeValidLinesPassThrough(t *testing.T) {
	r := &Result{
		Plan: "pro",
		Lines: []MetricLine{
			TextLine("Account", "user@example.com"),
			BadgeLine("Status", "Active", WithColor("#22c55e")),
			ProgressLine("Session", 42, 100, Percent,
				WithResetsAt("2026-08-25T17:00:00Z"),
				WithPeriod(5*time.Hour)),
			ProgressLine("Spend", 12.5, 50, Dollars),
			ProgressLine("Tokens", 1200, 100000, Count("tokens")),
		},
	}

	r.Sanitize()

	if len(r.Lines) != 5 {
		t.Fatalf("expected 5 lines, got %d", len(r.Lines))
	}
	for i, line := range r.Lines {
		if line.Label == "Error" {
			t.Errorf("line %d unexpectedly sanitized: %s", i, line.Text)
		}
	}
	if r.Lines[2].PeriodDurationMs != (5 * time.Hour).Milliseconds() {
		t.Errorf("expected period 5h in ms, got %d", r.Lines[2].PeriodDurationMs)
	}
}

func TestSanitizeInvalidLines(t *testing.T) {
	tests := []struct {
		name    string
		line    MetricLine
		wantMsg string
	}{
		{
			name:    "percent limit not 100",
			line:    ProgressLine("Session", 42, 500, Percent),
			wantMsg: "percent format requires limit=100",
		},
		{
			name:    "negative used",
			line:    ProgressLine("Session", -1, 100, Percent),
			wantMsg: "invalid used",
		},
		{
			name:    "zero limit",
			line:    ProgressLine("Session", 10, 0, Dollars),
			wantMsg: "invalid limit",
		},
		{
			name:    "count without suffix",
			line:    ProgressLine("Tokens", 10, 100, Count("  ")),
			wantMsg: "count format missing suffix",
		},
		{
			name:    "unknown format kind",
			line:    ProgressLine("Session", 10, 100, Format{Kind: "gauge"}),
			wantMsg: "invalid format kind",
		},
		{
			name:    "unknown line type",
			line:    MetricLine{Type: "sparkline", Label: "x"},
			wantMsg: "unknown line type",
		},
		{
			name:    "text missing value",
			line:    TextLine("Account", ""),
			wantMsg: "missing label or value",
		},
		{
			name:    "badge missing text",
			line:    BadgeLine("", "Active"),
			wantMsg: "missing label or text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Result{Lines: []MetricLine{tt.line}}
			r.Sanitize()

			got := r.Lines[0]
			if got.Type != LineBadge || got.Label != "Error" {
				t.Fatalf("expected error badge, got %+v", got)
			}
			if got.Color != ErrorColor {
				t.Errorf("expected error color %q, got %q", ErrorColor, got.Color)
			}
			if !strings.Contains(got.Text, tt.wantMsg) {
				t.Errorf("expected message containing %q, got %q", tt.wantMsg, got.Text)
			}
		})
	}
}

func TestSanitizeOverageIsValid(t *testing.T) {
	r := &Result{Lines: []MetricLine{ProgressLine("Spend", 72.40, 50, Dollars)}}
	r.Sanitize()

	if r.Lines[0].Label != "Spend" {
		t.Fatalf("overage must pass through untouched, got %+v", r.Lines[0])
	}
}

func TestSanitizeEmptyResult(t *testing.T) {
	r := &Result{}
	r.Sanitize()

	if len(r.Lines) != 1 {
		t.Fatalf("expected one synthesized line, got %d", len(r.Lines))
	}
	if r.Lines[0].Text != "no lines returned" {
		t.Errorf("expected no-lines badge, got %q", r.Lines[0].Text)
	}
}

func TestSanitizeResetsAt(t *testing.T) {
	tests := []struct {
		name     string
		resetsAt string
		expected string
	}{
		{name: "valid rfc3339 kept", resetsAt: "2026-08-25T17:00:00Z", expected: "2026-08-25T17:00:00Z"},
		{name: "offset kept", resetsAt: "2026-08-25T17:00:00+02:00", expected: "2026-08-25T17:00:00+02:00"},
		{name: "missing timezone assumes utc", resetsAt: "2026-08-25T17:00:00", expected: "2026-08-25T17:00:00Z"},
		{name: "garbage dropped", resetsAt: "next tuesday", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Result{Lines: []MetricLine{
				ProgressLine("Session", 1, 100, Percent, WithResetsAt(tt.resetsAt)),
			}}
			r.Sanitize()

			got := r.Lines[0]
			if got.Label == "Error" {
				t.Fatalf("resetsAt problems must not invalidate the line: %s", got.Text)
			}
			if got.ResetsAt != tt.expected {
				t.Errorf("expected resetsAt %q, got %q", tt.expected, got.ResetsAt)
			}
		})
	}
}

func TestMetricLineJSONShape(t *testing.T) {
	line := ProgressLine("Session", 42, 100, Percent, WithResetsAt("2026-08-25T17:00:00Z"))
	data, err := json.Marshal(line)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if m["type"] != "progress" {
		t.Errorf("expected type progress, got %v", m["type"])
	}
	if _, present := m["value"]; present {
		t.Error("progress line must not carry a text value field")
	}
	if _, present := m["text"]; present {
		t.Error("progress line must not carry a badge text field")
	}

	data, err = json.Marshal(TextLine("Account", "user@example.com"))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	m = map[string]any{}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if _, present := m["used"]; present {
		t.Error("text line must not carry progress fields")
	}
}
