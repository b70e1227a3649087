// Package codex reads ChatGPT subscription usage through the auth file
// managed by the Codex CLI.
package codex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jandubois/usagebar/internal/hostapi"
	"github.com/jandubois/usagebar/internal/probe"
)

// ID is the probe's registry identifier.
const ID = "codex"

const (
	defaultUsageURL   = "https://chatgpt.com/backend-api/wham/usage"
	defaultRefreshURL = "https://auth.openai.com/oauth/token"

	// Public OAuth client id of the Codex CLI.
	clientID = "app_EMoamEEZ73f0CkXaXp7hrann"

	// id_token claim namespace carrying the subscription details.
	authClaim = "https://api.openai.com/auth"
)

// authFile mirrors the CLI's auth.json.
type authFile struct {
	Tokens      authTokens `json:"tokens"`
	LastRefresh string     `json:"last_refresh,omitempty"`
}

type authTokens struct {
	IDToken      string `json:"id_token,omitempty"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	AccountID    string `json:"account_id,omitempty"`
}

type usageResponse struct {
	PlanType   string      `json:"plan_type"`
	RateLimits *rateLimits `json:"rate_limits"`
}

type rateLimits struct {
	Primary   *rateWindow `json:"primary"`
	Secondary *rateWindow `json:"secondary"`
}

type rateWindow struct {
	UsedPercent   float64 `json:"used_percent"`
	WindowMinutes int64   `json:"window_minutes"`
	ResetsAt      int64   `json:"resets_at"` // unix seconds
}

type refreshResponse struct {
	IDToken      string `json:"id_token"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Probe reads ChatGPT subscription usage for Codex.
type Probe struct {
	usageURL   string
	refreshURL string
}

// New creates the codex probe.
func New() *Probe {
	return &Probe{usageURL: defaultUsageURL, refreshURL: defaultRefreshURL}
}

// Info returns the registry metadata.
func (p *Probe) Info() probe.Info {
	return probe.Info{
		ID:         ID,
		Name:       "Codex",
		Version:    "1.0.0",
		BrandColor: "#10A37F",
		Links: []probe.Link{
			{Label: "Usage", URL: "https://chatgpt.com/codex/settings/usage"},
		},
	}
}

// Run fetches the rate-limit windows for the signed-in subscription,
// refreshing the OAuth tokens once if the provider rejects them.
func (p *Probe) Run(ctx context.Context, pctx *probe.Context) (*probe.Result, error) {
	auth, path, err := loadAuth(pctx)
	if err != nil {
		return nil, err
	}

	resp, err := probe.DoWithAuthRetry(ctx, "Codex", auth.Tokens.AccessToken,
		func(ctx context.Context, token string) (*hostapi.Response, error) {
			headers := map[string]string{"Authorization": "Bearer " + token}
			if auth.Tokens.AccountID != "" {
				headers["chatgpt-account-id"] = auth.Tokens.AccountID
			}
			return pctx.HTTP().Do(ctx, hostapi.Request{URL: p.usageURL, Headers: headers})
		},
		func(ctx context.Context) (string, error) {
			return p.refresh(ctx, pctx, auth, path)
		})
	if err != nil {
		return nil, err
	}
	if resp.Status != http.StatusOK {
		return nil, probe.Errorf("usage endpoint returned HTTP %d", resp.Status)
	}

	return buildResult(auth.Tokens.IDToken, resp.Body)
}

// loadAuth locates and parses auth.json. CODEX_HOME wins; otherwise the
// legacy config path is tried before the default home path.
func loadAuth(pctx *probe.Context) (*authFile, string, error) {
	path := authPath(pctx)
	raw, err := pctx.FS().ReadText(path)
	if err != nil {
		if errors.Is(err, hostapi.ErrNotFound) {
			return nil, "", probe.Errorf("no Codex credentials found, sign in with the Codex CLI")
		}
		return nil, "", err
	}

	var auth authFile
	if err := json.Unmarshal([]byte(raw), &auth); err != nil {
		return nil, "", probe.Errorf("invalid Codex auth file: %v", err)
	}
	if auth.Tokens.AccessToken == "" || auth.Tokens.RefreshToken == "" {
		return nil, "", probe.Errorf("Codex credentials are incomplete, sign in again")
	}
	return &auth, path, nil
}

func authPath(pctx *probe.Context) string {
	if home, ok := pctx.Env().Get("CODEX_HOME"); ok {
		return strings.TrimRight(home, "/") + "/auth.json"
	}
	if legacy := "~/.config/codex/auth.json"; pctx.FS().Exists(legacy) {
		return legacy
	}
	return "~/.codex/auth.json"
}

// refresh exchanges the refresh token for fresh tokens and persists
// them back to auth.json.
func (p *Probe) refresh(ctx context.Context, pctx *probe.Context, auth *authFile, path string) (string, error) {
	body, err := json.Marshal(map[string]string{
		"client_id":     clientID,
		"grant_type":    "refresh_token",
		"refresh_token": auth.Tokens.RefreshToken,
		"scope":         "openid profile email",
	})
	if err != nil {
		return "", err
	}

	resp, err := pctx.HTTP().Do(ctx, hostapi.Request{
		Method:  http.MethodPost,
		URL:     p.refreshURL,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    string(body),
	})
	if err != nil {
		return "", err
	}
	if resp.Status != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned HTTP %d", resp.Status)
	}

	var fresh refreshResponse
	if err := json.Unmarshal([]byte(resp.Body), &fresh); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if fresh.AccessToken == "" {
		return "", fmt.Errorf("token response carried no access token")
	}

	auth.Tokens.AccessToken = fresh.AccessToken
	if fresh.RefreshToken != "" {
		auth.Tokens.RefreshToken = fresh.RefreshToken
	}
	if fresh.IDToken != "" {
		auth.Tokens.IDToken = fresh.IDToken
	}
	auth.LastRefresh = pctx.Now().Format(time.RFC3339)

	data, err := json.Marshal(auth)
	if err != nil {
		return "", err
	}
	if err := pctx.FS().WriteText(path, string(data)); err != nil {
		return "", fmt.Errorf("persist refreshed credentials: %w", err)
	}
	return auth.Tokens.AccessToken, nil
}

func buildResult(idToken, body string) (*probe.Result, error) {
	var usage usageResponse
	if err := json.Unmarshal([]byte(body), &usage); err != nil {
		return nil, probe.Errorf("invalid usage response: %v", err)
	}

	var lines []probe.MetricLine
	if usage.RateLimits != nil {
		if w := usage.RateLimits.Primary; w != nil {
			lines = append(lines, windowLine(w))
		}
		if w := usage.RateLimits.Secondary; w != nil {
			lines = append(lines, windowLine(w))
		}
	}
	if len(lines) == 0 {
		return nil, probe.Errorf("usage response contained no rate limits")
	}

	plan := usage.PlanType
	if plan == "" {
		plan = planFromIDToken(idToken)
	}
	return &probe.Result{Plan: displayPlan(plan), Lines: lines}, nil
}

func windowLine(w *rateWindow) probe.MetricLine {
	label := "Session"
	if w.WindowMinutes > 12*60 {
		label = "Weekly"
	}
	opts := []probe.LineOption{}
	if w.WindowMinutes > 0 {
		opts = append(opts, probe.WithPeriod(time.Duration(w.WindowMinutes)*time.Minute))
	}
	if w.ResetsAt > 0 {
		opts = append(opts, probe.WithResetsAt(time.Unix(w.ResetsAt, 0).UTC().Format(time.RFC3339)))
	}
	return probe.ProgressLine(label, w.UsedPercent, 100, probe.Percent, opts...)
}

// planFromIDToken decodes the subscription plan out of the id_token
// claims. The token is not verified; it only feeds a display field.
func planFromIDToken(idToken string) string {
	if idToken == "" {
		return ""
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err != nil {
		return ""
	}
	auth, ok := claims[authClaim].(map[string]any)
	if !ok {
		return ""
	}
	plan, _ := auth["chatgpt_plan_type"].(string)
	return plan
}

func displayPlan(plan string) string {
	switch strings.ToLower(plan) {
	case "":
		return ""
	case "plus":
		return "Plus"
	case "pro":
		return "Pro"
	case "team":
		return "Team"
	case "business":
		return "Business"
	case "enterprise":
		return "Enterprise"
	default:
		return plan
	}
}
