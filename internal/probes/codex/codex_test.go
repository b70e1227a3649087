package codex

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jandubois/usagebar/internal/hostapi"
	"github.com/jandubois/usagebar/internal/probe"
)

const usageBody = `{
	"rate_limits": {
		"primary": {"used_percent": 12.5, "window_minutes": 300, "resets_at": 1756150000},
		"secondary": {"used_percent": 40, "window_minutes": 10080, "resets_at": 1756700000}
	}
}`

func newContext(t *testing.T) *probe.Context {
	t.Helper()
	host := hostapi.New(hostapi.Options{})
	meta := probe.AppMeta{Version: "test", DataDir: t.TempDir()}
	return probe.NewContext(host, meta, ID, time.Date(2026, 8, 25, 17, 0, 0, 0, time.UTC))
}

func makeIDToken(t *testing.T, plan string) string {
	t.Helper()
	claims, err := json.Marshal(map[string]any{
		authClaim: map[string]any{"chatgpt_plan_type": plan},
		"email":   "dev@example.com",
	})
	if err != nil {
		t.Fatalf("marshal claims: %v", err)
	}
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"RS256","typ":"JWT"}`))
	payload := base64.RawURLEncoding.EncodeToString(claims)
	return header + "." + payload + ".sig"
}

func writeAuth(t *testing.T, auth authFile) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("CODEX_HOME", dir)

	data, err := json.Marshal(auth)
	if err != nil {
		t.Fatalf("marshal auth: %v", err)
	}
	path := filepath.Join(dir, "auth.json")
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("write auth: %v", err)
	}
	return path
}

func TestRunFetchesUsage(t *testing.T) {
	writeAuth(t, authFile{Tokens: authTokens{
		IDToken:      makeIDToken(t, "plus"),
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		AccountID:    "acct-1",
	}})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer access-1" {
			t.Errorf("authorization = %q", got)
		}
		if got := r.Header.Get("chatgpt-account-id"); got != "acct-1" {
			t.Errorf("account header = %q", got)
		}
		w.Write([]byte(usageBody))
	}))
	defer srv.Close()

	p := &Probe{usageURL: srv.URL, refreshURL: srv.URL + "/token"}
	result, err := p.Run(context.Background(), newContext(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Plan != "Plus" {
		t.Errorf("plan = %q", result.Plan)
	}
	if len(result.Lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(result.Lines))
	}
	session := result.Lines[0]
	if session.Label != "Session" || session.Used != 12.5 {
		t.Errorf("session line = %+v", session)
	}
	if session.PeriodDurationMs != (300 * time.Minute).Milliseconds() {
		t.Errorf("session period = %d", session.PeriodDurationMs)
	}
	if want := time.Unix(1756150000, 0).UTC().Format(time.RFC3339); session.ResetsAt != want {
		t.Errorf("session resetsAt = %q, want %q", session.ResetsAt, want)
	}
	weekly := result.Lines[1]
	if weekly.Label != "Weekly" || weekly.Used != 40 {
		t.Errorf("weekly line = %+v", weekly)
	}
}

func TestRunPrefersPlanFromResponse(t *testing.T) {
	writeAuth(t, authFile{Tokens: authTokens{
		IDToken:      makeIDToken(t, "plus"),
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
	}})

	body := `{"plan_type": "pro", "rate_limits": {"primary": {"used_percent": 5, "window_minutes": 300, "resets_at": 1756150000}}}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	p := &Probe{usageURL: srv.URL, refreshURL: srv.URL + "/token"}
	result, err := p.Run(context.Background(), newContext(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Plan != "Pro" {
		t.Errorf("plan = %q", result.Plan)
	}
}

func TestRunRefreshesOn401(t *testing.T) {
	path := writeAuth(t, authFile{Tokens: authTokens{
		IDToken:      makeIDToken(t, "plus"),
		AccessToken:  "stale-access",
		RefreshToken: "refresh-1",
	}})

	var refreshes atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/usage", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh-access" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(usageBody))
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		refreshes.Add(1)
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode refresh request: %v", err)
		}
		if req["client_id"] != clientID || req["refresh_token"] != "refresh-1" {
			t.Errorf("refresh request = %v", req)
		}
		json.NewEncoder(w).Encode(map[string]string{
			"id_token":      makeIDToken(t, "plus"),
			"access_token":  "fresh-access",
			"refresh_token": "refresh-2",
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := &Probe{usageURL: srv.URL + "/usage", refreshURL: srv.URL + "/token"}
	if _, err := p.Run(context.Background(), newContext(t)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := refreshes.Load(); got != 1 {
		t.Errorf("refreshes = %d, want 1", got)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read auth: %v", err)
	}
	var persisted authFile
	if err := json.Unmarshal(data, &persisted); err != nil {
		t.Fatalf("parse auth: %v", err)
	}
	if persisted.Tokens.AccessToken != "fresh-access" || persisted.Tokens.RefreshToken != "refresh-2" {
		t.Errorf("persisted tokens = %+v", persisted.Tokens)
	}
	if persisted.LastRefresh != "2026-08-25T17:00:00Z" {
		t.Errorf("last_refresh = %q", persisted.LastRefresh)
	}
}

func TestRunWithoutAuthFile(t *testing.T) {
	t.Setenv("CODEX_HOME", t.TempDir())

	_, err := New().Run(context.Background(), newContext(t))
	if !probe.IsUserError(err) {
		t.Fatalf("expected user error, got %v", err)
	}
	if !strings.Contains(err.Error(), "sign in") {
		t.Errorf("message = %q", err.Error())
	}
}

func TestAuthPathResolution(t *testing.T) {
	if runtime.GOOS == "darwin" {
		t.Skip("login shell fallback may resolve CODEX_HOME on darwin")
	}
	t.Setenv("CODEX_HOME", "/custom/codex/")
	pctx := newContext(t)
	if got := authPath(pctx); got != "/custom/codex/auth.json" {
		t.Errorf("authPath = %q", got)
	}

	t.Setenv("CODEX_HOME", "")
	home := t.TempDir()
	t.Setenv("HOME", home)
	if got := authPath(pctx); got != "~/.codex/auth.json" {
		t.Errorf("authPath without CODEX_HOME = %q", got)
	}

	legacy := filepath.Join(home, ".config", "codex")
	if err := os.MkdirAll(legacy, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(legacy, "auth.json"), []byte("{}"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := authPath(pctx); got != "~/.config/codex/auth.json" {
		t.Errorf("authPath with legacy file = %q", got)
	}
}

func TestPlanFromIDToken(t *testing.T) {
	if got := planFromIDToken(makeIDToken(t, "pro")); got != "pro" {
		t.Errorf("plan = %q", got)
	}
	if got := planFromIDToken("not-a-jwt"); got != "" {
		t.Errorf("garbage token plan = %q", got)
	}
	if got := planFromIDToken(""); got != "" {
		t.Errorf("empty token plan = %q", got)
	}
}
