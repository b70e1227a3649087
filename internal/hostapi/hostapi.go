// Package hostapi is the capability gateway: the only way probe logic
// touches the outside world. It exposes scoped primitives for the
// filesystem, outbound HTTP, the platform secret store, an embedded
// relational store, and a whitelisted environment lookup.
//
// No capability retries internally; retry policy belongs to the
// invoking probe.
package hostapi

import "time"

// DefaultHTTPTimeout applies when a request does not carry its own.
const DefaultHTTPTimeout = 15 * time.Second

// Options configures a Host.
type Options struct {
	HTTPTimeout  time.Duration // default per-request timeout, DefaultHTTPTimeout if zero
	EnvAllowlist []string      // extra names resolvable via Env, on top of the base list
}

// Host bundles the capabilities handed to probe invocations.
type Host struct {
	FS      *FS
	HTTP    *HTTPClient
	Secrets *SecretStore
	DB      *SQLStore
	Env     *Env
}

// New creates a Host with the given options.
func New(opts Options) *Host {
	timeout := opts.HTTPTimeout
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	return &Host{
		FS:      &FS{},
		HTTP:    newHTTPClient(timeout),
		Secrets: &SecretStore{},
		DB:      &SQLStore{},
		Env:     newEnv(opts.EnvAllowlist),
	}
}
