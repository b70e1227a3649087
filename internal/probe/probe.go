// Package probe defines the invocation contract between the runtime
// and provider probes: the capability context handed to each
// invocation, the result and metric line shapes, the probe registry,
// and the shared retry-on-auth helper.
package probe

import (
	"context"
	"errors"
	"fmt"
)

// Probe is one provider integration. Implementations are stateless:
// everything an invocation needs arrives through the two contexts, and
// any credential refresh happens inside Run.
type Probe interface {
	Info() Info
	Run(ctx context.Context, pctx *Context) (*Result, error)
}

// Info is the display metadata a probe registers under.
type Info struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Version    string `json:"version"`
	BrandColor string `json:"brandColor,omitempty"`
	Links      []Link `json:"links,omitempty"`
}

// Link points at a provider page (usage dashboard, billing, docs).
type Link struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// Result is what a successful invocation returns.
type Result struct {
	Plan  string       `json:"plan,omitempty"`
	Lines []MetricLine `json:"lines"`
}

// UserError is a probe-level failure whose message is presented to the
// user verbatim ("provider told us something is wrong"). Any other
// error escaping Run is an invocation fault and gets the generic
// failure presentation instead.
type UserError struct {
	msg string
}

func (e *UserError) Error() string { return e.msg }

// Errorf creates a user-facing probe failure.
func Errorf(format string, args ...any) error {
	return &UserError{msg: fmt.Sprintf(format, args...)}
}

// IsUserError reports whether err is a probe-level user-facing failure.
func IsUserError(err error) bool {
	var ue *UserError
	return errors.As(err, &ue)
}
