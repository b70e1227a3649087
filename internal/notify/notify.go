// Package notify pushes pace alerts to external notification
// services. Channels are built from configuration; a refresh never
// blocks on a notification service.
package notify

import (
	"context"
	"fmt"

	"github.com/jandubois/usagebar/internal/pace"
)

// Channel is one notification transport.
type Channel interface {
	Send(ctx context.Context, msg *Message) error
	Type() string
}

// Message contains notification details.
type Message struct {
	Title    string
	Body     string
	Priority Priority
	Tags     []string
}

// Priority levels for notifications.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityUrgent
)

// PaceChange describes a pace transition on one metric line.
type PaceChange struct {
	ProbeName    string
	Label        string
	Old          pace.Status
	New          pace.Status
	LimitReached bool
	Detail       string
}

// FormatPaceChange renders a pace transition as a notification.
func FormatPaceChange(change *PaceChange) *Message {
	priority := PriorityNormal
	tags := []string{string(change.New)}
	switch {
	case change.LimitReached:
		priority = PriorityUrgent
		tags = []string{"limit-reached"}
	case change.New == pace.StatusBehind:
		priority = PriorityHigh
	case change.Old == pace.StatusBehind:
		tags = append(tags, "recovery")
	}

	title := fmt.Sprintf("[%s] %s", change.New, change.ProbeName)
	if change.LimitReached {
		title = fmt.Sprintf("[limit reached] %s", change.ProbeName)
	}

	body := change.Detail
	if body == "" {
		body = fmt.Sprintf("pace is %s", change.New)
	}
	if change.Label != "" {
		body = fmt.Sprintf("%s: %s", change.Label, body)
	}
	if change.Old != "" && change.Old != change.New {
		body = fmt.Sprintf("%s → %s: %s", change.Old, change.New, body)
	}

	return &Message{
		Title:    title,
		Body:     body,
		Priority: priority,
		Tags:     tags,
	}
}
