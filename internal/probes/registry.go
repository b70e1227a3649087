// Package probes assembles the built-in provider probes.
package probes

import (
	"github.com/jandubois/usagebar/internal/probe"
	"github.com/jandubois/usagebar/internal/probes/claudecode"
	"github.com/jandubois/usagebar/internal/probes/codex"
	"github.com/jandubois/usagebar/internal/probes/cursor"
	"github.com/jandubois/usagebar/internal/probes/debug"
)

// All returns every built-in probe. The debug probe is synthetic and
// only included on request.
func All(includeDebug bool) []probe.Probe {
	out := []probe.Probe{
		claudecode.New(),
		codex.New(),
		cursor.New(),
	}
	if includeDebug {
		out = append(out, debug.New())
	}
	return out
}

// NewRegistry builds a registry holding the built-in probes.
func NewRegistry(includeDebug bool) (*probe.Registry, error) {
	reg := probe.NewRegistry()
	for _, p := range All(includeDebug) {
		if err := reg.Register(p); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
