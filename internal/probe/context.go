package probe

import (
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/jandubois/usagebar/internal/hostapi"
)

// isoMillis is the canonical timestamp layout handed to probes.
const isoMillis = "2006-01-02T15:04:05.000Z"

// AppMeta describes the hosting application to probes.
type AppMeta struct {
	Version  string
	Platform string // defaults to runtime.GOOS
	DataDir  string // application data directory
}

// Context is the capability handle passed into a probe invocation.
// It is created fresh per invocation, owned exclusively by that
// invocation, and discarded on return. The clock reading is fixed at
// creation so one invocation sees one consistent "now".
type Context struct {
	probeID string
	now     time.Time
	meta    AppMeta
	host    *hostapi.Host
}

// NewContext creates the capability handle for one invocation of the
// identified probe.
func NewContext(host *hostapi.Host, meta AppMeta, probeID string, now time.Time) *Context {
	if meta.Platform == "" {
		meta.Platform = runtime.GOOS
	}
	return &Context{
		probeID: probeID,
		now:     now.UTC(),
		meta:    meta,
		host:    host,
	}
}

// ProbeID returns the invoked probe's registry id.
func (c *Context) ProbeID() string { return c.probeID }

// Now returns the invocation's fixed clock reading.
func (c *Context) Now() time.Time { return c.now }

// NowISO returns the clock reading as an ISO 8601 UTC string.
func (c *Context) NowISO() string { return c.now.Format(isoMillis) }

// AppVersion returns the hosting application version.
func (c *Context) AppVersion() string { return c.meta.Version }

// Platform returns the platform identifier.
func (c *Context) Platform() string { return c.meta.Platform }

// AppDataDir returns the application data directory.
func (c *Context) AppDataDir() string { return c.meta.DataDir }

// DataDir returns the per-probe data directory, creating it on first
// use. Probes persist whatever provider-specific state they need here.
func (c *Context) DataDir() (string, error) {
	dir := filepath.Join(c.meta.DataDir, "probes", c.probeID)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	return dir, nil
}

// FS is the filesystem capability.
func (c *Context) FS() *hostapi.FS { return c.host.FS }

// HTTP is the network capability.
func (c *Context) HTTP() *hostapi.HTTPClient { return c.host.HTTP }

// Secrets is the platform secret store capability.
func (c *Context) Secrets() *hostapi.SecretStore { return c.host.Secrets }

// DB is the embedded relational store capability.
func (c *Context) DB() *hostapi.SQLStore { return c.host.DB }

// Env is the whitelisted environment lookup capability.
func (c *Context) Env() *hostapi.Env { return c.host.Env }
