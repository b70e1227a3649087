package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const pushoverAPI = "https://api.pushover.net/1/messages.json"

// PushoverConfig configures a Pushover channel.
type PushoverConfig struct {
	APIToken string `yaml:"api_token"`
	UserKey  string `yaml:"user_key"`
}

// PushoverChannel sends notifications via Pushover.
type PushoverChannel struct {
	apiToken string
	userKey  string
	endpoint string
	client   *http.Client
}

// NewPushoverChannel creates a Pushover notification channel.
func NewPushoverChannel(cfg PushoverConfig) *PushoverChannel {
	return &PushoverChannel{
		apiToken: cfg.APIToken,
		userKey:  cfg.UserKey,
		endpoint: pushoverAPI,
		client:   &http.Client{Timeout: sendTimeout},
	}
}

// Type returns the channel type.
func (p *PushoverChannel) Type() string {
	return "pushover"
}

// Send delivers the message through the Pushover API.
func (p *PushoverChannel) Send(ctx context.Context, msg *Message) error {
	data := url.Values{
		"token":   {p.apiToken},
		"user":    {p.userKey},
		"title":   {msg.Title},
		"message": {msg.Body},
	}

	switch msg.Priority {
	case PriorityLow:
		data.Set("priority", "-1")
	case PriorityNormal:
		data.Set("priority", "0")
	case PriorityHigh:
		data.Set("priority", "1")
	case PriorityUrgent:
		// Emergency priority requires retry/expire parameters.
		data.Set("priority", "2")
		data.Set("retry", "60")
		data.Set("expire", "3600")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint,
		strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("pushover returned status %d", resp.StatusCode)
	}
	return nil
}
