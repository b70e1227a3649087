// Package pace turns a point-in-time usage reading into a
// forward-looking consumption status by linear extrapolation to the
// end of the quota period. Everything here is pure: identical inputs
// yield identical outputs, and results are recomputed on every
// evaluation rather than persisted.
package pace

import (
	"fmt"
	"math"
)

// Status classifies the projected end-of-period consumption.
type Status string

const (
	// StatusAhead projects under 90% of the limit used at reset.
	StatusAhead Status = "ahead"
	// StatusOnTrack projects between 90% and 100% used at reset.
	StatusOnTrack Status = "on-track"
	// StatusBehind projects the limit exceeded before reset.
	StatusBehind Status = "behind"
	// StatusNone means no reliable projection is available.
	StatusNone Status = "none"
)

// Band boundaries on projected usage / limit.
const (
	aheadBelow   = 0.9
	onTrackBelow = 1.0
)

// DefaultMinElapsedFraction is how much of the period must have
// elapsed before extrapolating. Below it a near-zero sample of elapsed
// time would make the projection noise, so all pace output is
// suppressed.
const DefaultMinElapsedFraction = 0.05

// Result is a derived trajectory classification.
type Result struct {
	Status         Status  `json:"status"`
	ProjectedUsage float64 `json:"projectedUsage"`
	LimitReached   bool    `json:"limitReached,omitempty"`
	Detail         string  `json:"detail,omitempty"`
}

// Classify computes the trajectory for a usage reading using the
// default minimum-signal threshold. Times are unix milliseconds.
func Classify(used, limit float64, resetsAtMs, periodDurationMs, nowMs int64) Result {
	return ClassifyAt(used, limit, resetsAtMs, periodDurationMs, nowMs, DefaultMinElapsedFraction)
}

// ClassifyAt is Classify with an explicit minimum elapsed fraction.
//
// The limit-reached state is factual, not extrapolated, so it is
// reported even below the threshold; projection and banding are not.
func ClassifyAt(used, limit float64, resetsAtMs, periodDurationMs, nowMs int64, minElapsedFraction float64) Result {
	if limit <= 0 || periodDurationMs <= 0 || used < 0 ||
		math.IsNaN(used) || math.IsNaN(limit) || math.IsInf(used, 0) || math.IsInf(limit, 0) {
		return Result{Status: StatusNone}
	}

	limitReached := used >= limit

	elapsed := clamp01(1 - float64(resetsAtMs-nowMs)/float64(periodDurationMs))
	if elapsed <= 0 || elapsed < minElapsedFraction {
		r := Result{Status: StatusNone, LimitReached: limitReached}
		if limitReached {
			r.Detail = "limit reached"
		}
		return r
	}

	projected := used / elapsed
	frac := projected / limit

	var status Status
	switch {
	case frac < aheadBelow:
		status = StatusAhead
	case frac < onTrackBelow:
		status = StatusOnTrack
	default:
		status = StatusBehind
	}

	r := Result{Status: status, ProjectedUsage: projected, LimitReached: limitReached}
	switch {
	case limitReached:
		r.Detail = "limit reached"
	case frac <= 1.0:
		r.Detail = fmt.Sprintf("%d%% used at reset", int(math.Round(frac*100)))
	default:
		periodStartMs := resetsAtMs - periodDurationMs
		elapsedMs := nowMs - periodStartMs
		ratePerMs := used / float64(elapsedMs)
		timeToLimitMs := (limit - used) / ratePerMs
		r.Detail = "limit in " + formatDurationMs(int64(timeToLimitMs))
	}
	return r
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// formatDurationMs renders a time-to-exhaustion estimate as
// "Xd Yh", "Xh Ym", or "Xm".
func formatDurationMs(ms int64) string {
	totalMin := ms / 60_000
	if totalMin < 1 {
		return "less than a minute"
	}
	h := totalMin / 60
	m := totalMin % 60
	if h >= 48 {
		d := h / 24
		rem := h % 24
		if rem == 0 {
			return fmt.Sprintf("%dd", d)
		}
		return fmt.Sprintf("%dd %dh", d, rem)
	}
	if h > 0 {
		if m == 0 {
			return fmt.Sprintf("%dh", h)
		}
		return fmt.Sprintf("%dh %dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
