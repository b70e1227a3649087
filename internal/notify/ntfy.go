package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const sendTimeout = 10 * time.Second

// NtfyConfig configures an ntfy channel (ntfy.sh or self-hosted).
type NtfyConfig struct {
	ServerURL string `yaml:"server_url"`
	Topic     string `yaml:"topic"`
	Token     string `yaml:"token,omitempty"`
}

// NtfyChannel sends notifications via ntfy.
type NtfyChannel struct {
	serverURL string
	topic     string
	token     string
	client    *http.Client
}

// NewNtfyChannel creates an ntfy notification channel.
func NewNtfyChannel(cfg NtfyConfig) *NtfyChannel {
	serverURL := strings.TrimSuffix(cfg.ServerURL, "/")
	if serverURL == "" {
		serverURL = "https://ntfy.sh"
	}
	return &NtfyChannel{
		serverURL: serverURL,
		topic:     strings.TrimSpace(cfg.Topic),
		token:     cfg.Token,
		client:    &http.Client{Timeout: sendTimeout},
	}
}

// Type returns the channel type.
func (n *NtfyChannel) Type() string {
	return "ntfy"
}

// Send publishes the message to the configured topic.
func (n *NtfyChannel) Send(ctx context.Context, msg *Message) error {
	payload := map[string]any{
		"topic":   n.topic,
		"title":   msg.Title,
		"message": msg.Body,
	}
	if len(msg.Tags) > 0 {
		payload["tags"] = msg.Tags
	}

	// ntfy priorities run 1 (min) to 5 (max).
	switch msg.Priority {
	case PriorityLow:
		payload["priority"] = 2
	case PriorityNormal:
		payload["priority"] = 3
	case PriorityHigh:
		payload["priority"] = 4
	case PriorityUrgent:
		payload["priority"] = 5
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.serverURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.token != "" {
		req.Header.Set("Authorization", "Bearer "+n.token)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("ntfy returned status %d", resp.StatusCode)
	}
	return nil
}
