package pace

import (
	"math"
	"testing"
)

const (
	hourMs = int64(3_600_000)
	nowMs  = int64(1_787_677_200_000) // 2026-08-25T17:00:00Z
)

func TestClassifyBandsAtHalfPeriod(t *testing.T) {
	period := 10 * hourMs
	resetsAt := nowMs + 5*hourMs // half the period elapsed

	tests := []struct {
		name      string
		used      float64
		status    Status
		projected float64
	}{
		{"well under pace", 30, StatusAhead, 60},
		{"at the 90% boundary", 45, StatusOnTrack, 90},
		{"just under the limit", 49.5, StatusOnTrack, 99},
		{"projected exactly at limit", 50, StatusBehind, 100},
		{"over pace", 60, StatusBehind, 120},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.used, 100, resetsAt, period, nowMs)
			if got.Status != tt.status {
				t.Errorf("status = %q, want %q", got.Status, tt.status)
			}
			if got.ProjectedUsage != tt.projected {
				t.Errorf("projected = %v, want %v", got.ProjectedUsage, tt.projected)
			}
			if got.LimitReached {
				t.Error("limitReached = true, want false")
			}
		})
	}
}

func TestClassifyEarlyPeriodSuppressed(t *testing.T) {
	period := 100 * hourMs
	resetsAt := nowMs + 97*hourMs // 3% elapsed

	got := Classify(90, 100, resetsAt, period, nowMs)
	if got.Status != StatusNone {
		t.Errorf("status = %q, want %q", got.Status, StatusNone)
	}
	if got.ProjectedUsage != 0 {
		t.Errorf("projected = %v, want 0", got.ProjectedUsage)
	}
	if got.Detail != "" {
		t.Errorf("detail = %q, want empty", got.Detail)
	}
}

func TestClassifyAtThresholdBoundary(t *testing.T) {
	period := 100 * hourMs
	resetsAt := nowMs + 95*hourMs // exactly 5% elapsed

	got := Classify(1, 100, resetsAt, period, nowMs)
	if got.Status == StatusNone {
		t.Fatalf("status = none at exactly the threshold, want a band")
	}
	if got.ProjectedUsage != 20 {
		t.Errorf("projected = %v, want 20", got.ProjectedUsage)
	}
}

func TestClassifyLimitReached(t *testing.T) {
	t.Run("below threshold still reported", func(t *testing.T) {
		period := 100 * hourMs
		resetsAt := nowMs + 99*hourMs // 1% elapsed

		got := Classify(100, 100, resetsAt, period, nowMs)
		if got.Status != StatusNone {
			t.Errorf("status = %q, want %q", got.Status, StatusNone)
		}
		if !got.LimitReached {
			t.Error("limitReached = false, want true")
		}
		if got.Detail != "limit reached" {
			t.Errorf("detail = %q, want %q", got.Detail, "limit reached")
		}
	})

	t.Run("above threshold keeps the band", func(t *testing.T) {
		period := 10 * hourMs
		resetsAt := nowMs + 5*hourMs

		got := Classify(120, 100, resetsAt, period, nowMs)
		if got.Status != StatusBehind {
			t.Errorf("status = %q, want %q", got.Status, StatusBehind)
		}
		if !got.LimitReached {
			t.Error("limitReached = false, want true")
		}
		if got.Detail != "limit reached" {
			t.Errorf("detail = %q, want %q", got.Detail, "limit reached")
		}
	})
}

func TestClassifyInvalidInputs(t *testing.T) {
	period := 10 * hourMs
	resetsAt := nowMs + 5*hourMs

	tests := []struct {
		name   string
		used   float64
		limit  float64
		period int64
	}{
		{"zero limit", 10, 0, period},
		{"negative limit", 10, -5, period},
		{"zero period", 10, 100, 0},
		{"negative period", 10, 100, -period},
		{"negative used", -1, 100, period},
		{"NaN used", math.NaN(), 100, period},
		{"NaN limit", 10, math.NaN(), period},
		{"infinite used", math.Inf(1), 100, period},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.used, tt.limit, resetsAt, tt.period, nowMs)
			if got.Status != StatusNone {
				t.Errorf("status = %q, want %q", got.Status, StatusNone)
			}
			if got.ProjectedUsage != 0 || got.Detail != "" || got.LimitReached {
				t.Errorf("got %+v, want empty result", got)
			}
		})
	}
}

func TestClassifyElapsedClamped(t *testing.T) {
	period := 10 * hourMs
	resetsAt := nowMs - hourMs // reset already passed, reading is stale

	got := Classify(70, 100, resetsAt, period, nowMs)
	if got.Status != StatusAhead {
		t.Errorf("status = %q, want %q", got.Status, StatusAhead)
	}
	if got.ProjectedUsage != 70 {
		t.Errorf("projected = %v, want 70 (elapsed clamps to 1)", got.ProjectedUsage)
	}
}

func TestClassifyDetailText(t *testing.T) {
	t.Run("percent used at reset", func(t *testing.T) {
		period := 10 * hourMs
		resetsAt := nowMs + 5*hourMs

		got := Classify(30, 100, resetsAt, period, nowMs)
		if got.Detail != "60% used at reset" {
			t.Errorf("detail = %q, want %q", got.Detail, "60% used at reset")
		}
	})

	t.Run("time until limit", func(t *testing.T) {
		period := 10 * hourMs
		resetsAt := nowMs + 5*hourMs

		// 60 used in 5h leaves 40 at 12/h, so 3h20m to the limit.
		got := Classify(60, 100, resetsAt, period, nowMs)
		if got.Detail != "limit in 3h 20m" {
			t.Errorf("detail = %q, want %q", got.Detail, "limit in 3h 20m")
		}
	})

	t.Run("time until limit in whole hours", func(t *testing.T) {
		period := 10 * hourMs
		resetsAt := nowMs + 8*hourMs // 2h elapsed

		got := Classify(50, 100, resetsAt, period, nowMs)
		if got.Detail != "limit in 2h" {
			t.Errorf("detail = %q, want %q", got.Detail, "limit in 2h")
		}
	})

	t.Run("time until limit in minutes", func(t *testing.T) {
		period := 6 * hourMs
		resetsAt := nowMs + 3*hourMs

		got := Classify(80, 100, resetsAt, period, nowMs)
		if got.Detail != "limit in 45m" {
			t.Errorf("detail = %q, want %q", got.Detail, "limit in 45m")
		}
	})
}

func TestClassifyPure(t *testing.T) {
	period := 7 * hourMs
	resetsAt := nowMs + 3*hourMs

	a := Classify(42.5, 90, resetsAt, period, nowMs)
	b := Classify(42.5, 90, resetsAt, period, nowMs)
	if a != b {
		t.Errorf("repeated call differed: %+v vs %+v", a, b)
	}
}

func TestClassifyBandsPartition(t *testing.T) {
	period := 10 * hourMs
	resetsAt := nowMs + 5*hourMs

	for used := 0.0; used <= 150; used += 2.5 {
		got := Classify(used, 100, resetsAt, period, nowMs)
		switch got.Status {
		case StatusAhead, StatusOnTrack, StatusBehind:
		default:
			t.Fatalf("used=%v: status %q outside the three bands", used, got.Status)
		}
		if want := used / 0.5; got.ProjectedUsage != want {
			t.Errorf("used=%v: projected = %v, want %v", used, got.ProjectedUsage, want)
		}
		frac := got.ProjectedUsage / 100
		switch {
		case frac < 0.9 && got.Status != StatusAhead:
			t.Errorf("used=%v: frac %v should be ahead, got %q", used, frac, got.Status)
		case frac >= 0.9 && frac < 1.0 && got.Status != StatusOnTrack:
			t.Errorf("used=%v: frac %v should be on-track, got %q", used, frac, got.Status)
		case frac >= 1.0 && got.Status != StatusBehind:
			t.Errorf("used=%v: frac %v should be behind, got %q", used, frac, got.Status)
		}
	}
}

func TestFormatDurationMs(t *testing.T) {
	tests := []struct {
		ms   int64
		want string
	}{
		{0, "less than a minute"},
		{59_999, "less than a minute"},
		{60_000, "1m"},
		{59 * 60_000, "59m"},
		{60 * 60_000, "1h"},
		{61 * 60_000, "1h 1m"},
		{150 * 60_000, "2h 30m"},
		{47 * hourMs, "47h"},
		{48 * hourMs, "2d"},
		{50 * hourMs, "2d 2h"},
		{75 * hourMs, "3d 3h"},
	}
	for _, tt := range tests {
		if got := formatDurationMs(tt.ms); got != tt.want {
			t.Errorf("formatDurationMs(%d) = %q, want %q", tt.ms, got, tt.want)
		}
	}
}
