package probe

import (
	"fmt"
	"strings"
	"time"

	units "github.com/docker/go-units"
	"github.com/dustin/go-humanize"
)

// FormatPlan turns a provider plan identifier like "claude_max" or
// "pro" into a display label ("Claude Max", "Pro").
func FormatPlan(plan string) string {
	plan = strings.TrimSpace(plan)
	if plan == "" {
		return ""
	}
	words := strings.FieldsFunc(plan, func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	})
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// TimeUntilReset phrases the interval until a quota reset, e.g.
// "resets in 2 hours".
func TimeUntilReset(resetsAt, now time.Time) string {
	d := resetsAt.Sub(now)
	if d <= 0 {
		return "resets soon"
	}
	return "resets in " + units.HumanDuration(d)
}

// CentsToDollars renders an integer cent amount as dollars.
func CentsToDollars(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}

// FormatShortDate renders a short month-day date, e.g. "Aug 25".
func FormatShortDate(t time.Time) string {
	return t.Format("Jan 2")
}

// FormatCount renders a count with comma grouping and an optional unit
// suffix, e.g. "1,234,567 tokens".
func FormatCount(n int64, suffix string) string {
	s := humanize.Comma(n)
	if suffix == "" {
		return s
	}
	return s + " " + suffix
}
