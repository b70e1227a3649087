// Package claudecode reads Claude subscription usage through the OAuth
// credentials managed by the Claude Code CLI.
package claudecode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jandubois/usagebar/internal/hostapi"
	"github.com/jandubois/usagebar/internal/probe"
)

// ID is the probe's registry identifier.
const ID = "claudecode"

const (
	defaultCredentialsPath = "~/.claude/.credentials.json"
	keychainService        = "Claude Code-credentials"

	defaultUsageURL   = "https://api.anthropic.com/api/oauth/usage"
	defaultRefreshURL = "https://console.anthropic.com/v1/oauth/token"

	// Public OAuth client id of the Claude Code CLI.
	clientID = "9d1c250a-e61b-44d9-88ed-5944d1962f5e"

	oauthBeta = "oauth-2025-04-20"
)

// credentials mirrors the CLI's credentials file. The keychain entry on
// macOS holds the same JSON document.
type credentials struct {
	OAuth oauthCredential `json:"claudeAiOauth"`
}

type oauthCredential struct {
	AccessToken      string   `json:"accessToken"`
	RefreshToken     string   `json:"refreshToken"`
	ExpiresAt        int64    `json:"expiresAt"`
	Scopes           []string `json:"scopes,omitempty"`
	SubscriptionType string   `json:"subscriptionType,omitempty"`
}

// source records where credentials were read from so a refresh writes
// the new tokens back to the same place.
type source struct {
	path     string
	keychain bool
}

type usageResponse struct {
	FiveHour     *usageWindow `json:"five_hour"`
	SevenDay     *usageWindow `json:"seven_day"`
	SevenDayOpus *usageWindow `json:"seven_day_opus"`
}

type usageWindow struct {
	Utilization float64 `json:"utilization"`
	ResetsAt    string  `json:"resets_at"`
}

type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Probe reads Claude subscription usage.
type Probe struct {
	usageURL   string
	refreshURL string
}

// New creates the claudecode probe.
func New() *Probe {
	return &Probe{usageURL: defaultUsageURL, refreshURL: defaultRefreshURL}
}

// Info returns the registry metadata.
func (p *Probe) Info() probe.Info {
	return probe.Info{
		ID:         ID,
		Name:       "Claude Code",
		Version:    "1.0.0",
		BrandColor: "#D97757",
		Links: []probe.Link{
			{Label: "Usage", URL: "https://claude.ai/settings/usage"},
		},
	}
}

// Run fetches the usage windows for the signed-in subscription,
// refreshing the OAuth tokens once if the provider rejects them.
func (p *Probe) Run(ctx context.Context, pctx *probe.Context) (*probe.Result, error) {
	creds, src, err := loadCredentials(pctx)
	if err != nil {
		return nil, err
	}

	resp, err := probe.DoWithAuthRetry(ctx, "Claude Code", creds.OAuth.AccessToken,
		func(ctx context.Context, token string) (*hostapi.Response, error) {
			return pctx.HTTP().Do(ctx, hostapi.Request{
				URL: p.usageURL,
				Headers: map[string]string{
					"Authorization":  "Bearer " + token,
					"anthropic-beta": oauthBeta,
				},
			})
		},
		func(ctx context.Context) (string, error) {
			return p.refresh(ctx, pctx, creds, src)
		})
	if err != nil {
		return nil, err
	}
	if resp.Status != http.StatusOK {
		return nil, probe.Errorf("usage endpoint returned HTTP %d", resp.Status)
	}

	return buildResult(creds.OAuth.SubscriptionType, resp.Body)
}

// loadCredentials reads the credentials file, falling back to the macOS
// keychain entry when no file exists.
func loadCredentials(pctx *probe.Context) (*credentials, source, error) {
	path := defaultCredentialsPath
	if dir, ok := pctx.Env().Get("CLAUDE_CONFIG_DIR"); ok {
		path = strings.TrimRight(dir, "/") + "/.credentials.json"
	}

	raw, err := pctx.FS().ReadText(path)
	if err == nil {
		creds, perr := parseCredentials(raw)
		return creds, source{path: path}, perr
	}
	if !errors.Is(err, hostapi.ErrNotFound) {
		return nil, source{}, err
	}

	raw, err = pctx.Secrets().Read(keychainService)
	if err != nil {
		if errors.Is(err, hostapi.ErrNotFound) || errors.Is(err, hostapi.ErrUnsupported) {
			return nil, source{}, probe.Errorf("no Claude Code credentials found, sign in with the Claude Code CLI")
		}
		return nil, source{}, err
	}
	creds, perr := parseCredentials(raw)
	return creds, source{keychain: true}, perr
}

func parseCredentials(raw string) (*credentials, error) {
	var creds credentials
	if err := json.Unmarshal([]byte(raw), &creds); err != nil {
		return nil, probe.Errorf("invalid Claude Code credentials: %v", err)
	}
	if creds.OAuth.AccessToken == "" || creds.OAuth.RefreshToken == "" {
		return nil, probe.Errorf("Claude Code credentials are incomplete, sign in again")
	}
	return &creds, nil
}

// refresh exchanges the refresh token for fresh tokens and persists
// them back to where the credentials were read from.
func (p *Probe) refresh(ctx context.Context, pctx *probe.Context, creds *credentials, src source) (string, error) {
	body, err := json.Marshal(map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": creds.OAuth.RefreshToken,
		"client_id":     clientID,
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

	creds.OAuth.AccessToken = fresh.AccessToken
	if fresh.RefreshToken != "" {
		creds.OAuth.RefreshToken = fresh.RefreshToken
	}
	if fresh.ExpiresIn > 0 {
		creds.OAuth.ExpiresAt = pctx.Now().Add(time.Duration(fresh.ExpiresIn) * time.Second).UnixMilli()
	}

	if err := persistCredentials(pctx, creds, src); err != nil {
		return "", fmt.Errorf("persist refreshed credentials: %w", err)
	}
	return creds.OAuth.AccessToken, nil
}

func persistCredentials(pctx *probe.Context, creds *credentials, src source) error {
	data, err := json.Marshal(creds)
	if err != nil {
		return err
	}
	if src.keychain {
		return pctx.Secrets().Write(keychainService, string(data))
	}
	return pctx.FS().WriteText(src.path, string(data))
}

func buildResult(subscription, body string) (*probe.Result, error) {
	var usage usageResponse
	if err := json.Unmarshal([]byte(body), &usage); err != nil {
		return nil, probe.Errorf("invalid usage response: %v", err)
	}

	var lines []probe.MetricLine
	if w := usage.FiveHour; w != nil {
		lines = append(lines, windowLine("Session", w, 5*time.Hour))
	}
	if w := usage.SevenDay; w != nil {
		lines = append(lines, windowLine("Weekly", w, 7*24*time.Hour))
	}
	if w := usage.SevenDayOpus; w != nil && w.Utilization > 0 {
		lines = append(lines, windowLine("Weekly (Opus)", w, 7*24*time.Hour))
	}
	if len(lines) == 0 {
		return nil, probe.Errorf("usage response contained no usage windows")
	}

	return &probe.Result{Plan: displayPlan(subscription), Lines: lines}, nil
}

func windowLine(label string, w *usageWindow, period time.Duration) probe.MetricLine {
	opts := []probe.LineOption{probe.WithPeriod(period)}
	if w.ResetsAt != "" {
		opts = append(opts, probe.WithResetsAt(w.ResetsAt))
	}
	return probe.ProgressLine(label, w.Utilization, 100, probe.Percent, opts...)
}

func displayPlan(subscription string) string {
	switch strings.ToLower(subscription) {
	case "":
		return ""
	case "max":
		return "Max"
	case "pro":
		return "Pro"
	case "team":
		return "Team"
	case "enterprise":
		return "Enterprise"
	default:
		return subscription
	}
}
