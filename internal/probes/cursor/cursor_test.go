package cursor

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jandubois/usagebar/internal/hostapi"
	"github.com/jandubois/usagebar/internal/probe"
)

func newContext(t *testing.T) *probe.Context {
	t.Helper()
	host := hostapi.New(hostapi.Options{})
	meta := probe.AppMeta{Version: "test", Platform: "linux", DataDir: t.TempDir()}
	return probe.NewContext(host, meta, ID, time.Date(2026, 8, 25, 17, 0, 0, 0, time.UTC))
}

func seedStateDB(t *testing.T, statements ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.vscdb")
	store := &hostapi.SQLStore{}
	for _, stmt := range statements {
		if _, err := store.Exec(context.Background(), path, stmt); err != nil {
			t.Fatalf("seed %q: %v", stmt, err)
		}
	}
	return path
}

func TestRunReadsActivity(t *testing.T) {
	path := seedStateDB(t,
		`CREATE TABLE ItemTable (key TEXT PRIMARY KEY, value BLOB)`,
		`CREATE TABLE cursorDiskKV (key TEXT PRIMARY KEY, value BLOB)`,
		`INSERT INTO ItemTable (key, value) VALUES ('cursorAuth/stripeMembershipType', 'pro')`,
		`INSERT INTO cursorDiskKV (key, value) VALUES
			('composerData:a', '{}'),
			('composerData:b', '{}'),
			('bubbleId:a:1', '{}'),
			('bubbleId:a:2', '{}'),
			('bubbleId:b:1', '{}')`,
	)

	p := &Probe{path: path}
	result, err := p.Run(context.Background(), newContext(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Plan != "Pro" {
		t.Errorf("plan = %q", result.Plan)
	}
	if len(result.Lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(result.Lines))
	}
	if result.Lines[0].Label != "Chats" || result.Lines[0].Value != "2" {
		t.Errorf("chats line = %+v", result.Lines[0])
	}
	if result.Lines[1].Label != "Messages" || result.Lines[1].Value != "3" {
		t.Errorf("messages line = %+v", result.Lines[1])
	}
}

func TestRunWithoutDatabase(t *testing.T) {
	p := &Probe{path: filepath.Join(t.TempDir(), "state.vscdb")}
	_, err := p.Run(context.Background(), newContext(t))
	if !probe.IsUserError(err) {
		t.Fatalf("expected user error, got %v", err)
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("message = %q", err.Error())
	}
}

func TestRunWithUnknownSchema(t *testing.T) {
	path := seedStateDB(t, `CREATE TABLE something_else (id INTEGER)`)

	p := &Probe{path: path}
	_, err := p.Run(context.Background(), newContext(t))
	if !probe.IsUserError(err) {
		t.Fatalf("expected user error, got %v", err)
	}
}

func TestRunToleratesMissingPlan(t *testing.T) {
	path := seedStateDB(t,
		`CREATE TABLE ItemTable (key TEXT PRIMARY KEY, value BLOB)`,
		`CREATE TABLE cursorDiskKV (key TEXT PRIMARY KEY, value BLOB)`,
		`INSERT INTO cursorDiskKV (key, value) VALUES ('composerData:a', '{}')`,
	)

	p := &Probe{path: path}
	result, err := p.Run(context.Background(), newContext(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Plan != "" {
		t.Errorf("plan = %q, want empty", result.Plan)
	}
	if len(result.Lines) != 2 {
		t.Fatalf("lines = %d, want 2 (zero-count messages still reported)", len(result.Lines))
	}
	if result.Lines[1].Value != "0" {
		t.Errorf("messages = %q", result.Lines[1].Value)
	}
}

func TestStatePath(t *testing.T) {
	if got := statePath("darwin"); !strings.Contains(got, "Library/Application Support") {
		t.Errorf("darwin path = %q", got)
	}
	if got := statePath("linux"); !strings.Contains(got, ".config/Cursor") {
		t.Errorf("linux path = %q", got)
	}
}
