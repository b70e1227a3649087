// Package cursor reads local editor activity out of Cursor's state
// database. Everything comes from disk; the probe never goes on the
// network.
package cursor

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/jandubois/usagebar/internal/probe"
)

// ID is the probe's registry identifier.
const ID = "cursor"

// ItemTable holds editor settings, cursorDiskKV the chat history.
const (
	planQuery     = `SELECT value FROM ItemTable WHERE key = 'cursorAuth/stripeMembershipType'`
	chatsQuery    = `SELECT COUNT(*) AS n FROM cursorDiskKV WHERE key LIKE 'composerData:%'`
	messagesQuery = `SELECT COUNT(*) AS n FROM cursorDiskKV WHERE key LIKE 'bubbleId:%'`
)

// Probe reads Cursor's local state database.
type Probe struct {
	path string // test override
}

// New creates the cursor probe.
func New() *Probe { return &Probe{} }

// Info returns the registry metadata.
func (p *Probe) Info() probe.Info {
	return probe.Info{
		ID:      ID,
		Name:    "Cursor",
		Version: "1.0.0",
		Links: []probe.Link{
			{Label: "Dashboard", URL: "https://cursor.com/dashboard"},
		},
	}
}

// Run reports the subscription tier and chat activity recorded in the
// editor's state database.
func (p *Probe) Run(ctx context.Context, pctx *probe.Context) (*probe.Result, error) {
	path := p.path
	if path == "" {
		path = statePath(pctx.Platform())
	}
	if !pctx.FS().Exists(path) {
		return nil, probe.Errorf("Cursor state database not found, is Cursor installed?")
	}

	var lines []probe.MetricLine
	if n, ok := p.count(ctx, pctx, path, chatsQuery); ok {
		lines = append(lines, probe.TextLine("Chats", humanize.Comma(n)))
	}
	if n, ok := p.count(ctx, pctx, path, messagesQuery); ok {
		lines = append(lines, probe.TextLine("Messages", humanize.Comma(n)))
	}
	if len(lines) == 0 {
		return nil, probe.Errorf("could not read activity from the Cursor state database")
	}

	return &probe.Result{Plan: p.plan(ctx, pctx, path), Lines: lines}, nil
}

// statePath returns the platform location of state.vscdb.
func statePath(platform string) string {
	if platform == "darwin" {
		return "~/Library/Application Support/Cursor/User/globalStorage/state.vscdb"
	}
	return "~/.config/Cursor/User/globalStorage/state.vscdb"
}

// count runs one COUNT query, tolerating schema differences between
// editor versions by skipping the line on failure.
func (p *Probe) count(ctx context.Context, pctx *probe.Context, path, query string) (int64, bool) {
	rows, err := pctx.DB().Query(ctx, path, query)
	if err != nil {
		slog.Debug("cursor state query failed", "error", err)
		return 0, false
	}
	if len(rows) == 0 {
		return 0, false
	}
	return scanCount(rows[0]["n"])
}

func scanCount(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case float64:
		return int64(n), true
	case string:
		parsed, err := strconv.ParseInt(n, 10, 64)
		return parsed, err == nil
	default:
		return 0, false
	}
}

func (p *Probe) plan(ctx context.Context, pctx *probe.Context, path string) string {
	rows, err := pctx.DB().Query(ctx, path, planQuery)
	if err != nil || len(rows) == 0 {
		return ""
	}
	raw, _ := rows[0]["value"].(string)
	tier := strings.Trim(strings.TrimSpace(raw), `"`)
	switch strings.ToLower(tier) {
	case "":
		return ""
	case "free_trial":
		return "Trial"
	case "free":
		return "Free"
	case "pro":
		return "Pro"
	case "business":
		return "Business"
	default:
		return tier
	}
}
