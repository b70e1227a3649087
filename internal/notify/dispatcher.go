package notify

import (
	"context"
	"log/slog"
)

// Dispatcher fans a message out to every configured channel.
type Dispatcher struct {
	channels []Channel
}

// NewDispatcher creates a dispatcher over the given channels.
func NewDispatcher(channels ...Channel) *Dispatcher {
	return &Dispatcher{channels: channels}
}

// Enabled reports whether any channel is configured.
func (d *Dispatcher) Enabled() bool {
	return len(d.channels) > 0
}

// Dispatch sends msg on every channel. Sends run concurrently and
// failures are logged rather than returned; a dead notification
// service must not stall a refresh.
func (d *Dispatcher) Dispatch(ctx context.Context, msg *Message) {
	for _, ch := range d.channels {
		go func(ch Channel) {
			if err := ch.Send(ctx, msg); err != nil {
				slog.Error("notification send failed",
					"channel", ch.Type(),
					"title", msg.Title,
					"error", err,
				)
			} else {
				slog.Debug("notification sent", "channel", ch.Type(), "title", msg.Title)
			}
		}(ch)
	}
}

// NotifyPaceChange formats and dispatches a pace transition.
func (d *Dispatcher) NotifyPaceChange(ctx context.Context, change *PaceChange) {
	if !d.Enabled() {
		return
	}
	d.Dispatch(ctx, FormatPaceChange(change))
}
