package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jandubois/usagebar/internal/pace"
)

func TestFormatPaceChange(t *testing.T) {
	tests := []struct {
		name         string
		change       PaceChange
		wantTitle    string
		wantBody     string
		wantPriority Priority
		wantTags     []string
	}{
		{
			name: "falling behind",
			change: PaceChange{
				ProbeName: "Claude Code",
				Label:     "5-hour limit",
				Old:       pace.StatusAhead,
				New:       pace.StatusBehind,
				Detail:    "limit in 2h 10m",
			},
			wantTitle:    "[behind] Claude Code",
			wantBody:     "ahead → behind: 5-hour limit: limit in 2h 10m",
			wantPriority: PriorityHigh,
			wantTags:     []string{"behind"},
		},
		{
			name: "limit reached",
			change: PaceChange{
				ProbeName:    "Codex",
				Label:        "Weekly limit",
				Old:          pace.StatusBehind,
				New:          pace.StatusBehind,
				LimitReached: true,
				Detail:       "limit reached",
			},
			wantTitle:    "[limit reached] Codex",
			wantBody:     "Weekly limit: limit reached",
			wantPriority: PriorityUrgent,
			wantTags:     []string{"limit-reached"},
		},
		{
			name: "recovery",
			change: PaceChange{
				ProbeName: "Cursor",
				Label:     "Requests",
				Old:       pace.StatusBehind,
				New:       pace.StatusAhead,
				Detail:    "42% used at reset",
			},
			wantTitle:    "[ahead] Cursor",
			wantBody:     "behind → ahead: Requests: 42% used at reset",
			wantPriority: PriorityNormal,
			wantTags:     []string{"ahead", "recovery"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := FormatPaceChange(&tt.change)
			if msg.Title != tt.wantTitle {
				t.Errorf("title = %q, want %q", msg.Title, tt.wantTitle)
			}
			if msg.Body != tt.wantBody {
				t.Errorf("body = %q, want %q", msg.Body, tt.wantBody)
			}
			if msg.Priority != tt.wantPriority {
				t.Errorf("priority = %d, want %d", msg.Priority, tt.wantPriority)
			}
			if len(msg.Tags) != len(tt.wantTags) {
				t.Fatalf("tags = %v, want %v", msg.Tags, tt.wantTags)
			}
			for i := range tt.wantTags {
				if msg.Tags[i] != tt.wantTags[i] {
					t.Errorf("tags[%d] = %q, want %q", i, msg.Tags[i], tt.wantTags[i])
				}
			}
		})
	}
}

func TestNtfySend(t *testing.T) {
	var gotAuth string
	var gotPayload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &gotPayload); err != nil {
			t.Errorf("payload is not JSON: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ch := NewNtfyChannel(NtfyConfig{ServerURL: srv.URL, Topic: "usage", Token: "tok123"})
	msg := &Message{Title: "[behind] Codex", Body: "limit in 1h", Priority: PriorityUrgent, Tags: []string{"behind"}}

	if err := ch.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotAuth != "Bearer tok123" {
		t.Errorf("auth header = %q, want bearer token", gotAuth)
	}
	if gotPayload["topic"] != "usage" {
		t.Errorf("topic = %v, want usage", gotPayload["topic"])
	}
	if gotPayload["title"] != "[behind] Codex" {
		t.Errorf("title = %v", gotPayload["title"])
	}
	if gotPayload["priority"] != float64(5) {
		t.Errorf("priority = %v, want 5", gotPayload["priority"])
	}
}

func TestNtfySendServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	ch := NewNtfyChannel(NtfyConfig{ServerURL: srv.URL, Topic: "usage"})
	err := ch.Send(context.Background(), &Message{Title: "t", Body: "b"})
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Errorf("err = %v, want ntfy status error", err)
	}
}

func TestPushoverSend(t *testing.T) {
	var gotForm map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotForm = r.PostForm
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ch := NewPushoverChannel(PushoverConfig{APIToken: "app", UserKey: "user"})
	ch.endpoint = srv.URL

	msg := &Message{Title: "[limit reached] Codex", Body: "Weekly limit: limit reached", Priority: PriorityUrgent}
	if err := ch.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send: %v", err)
	}

	for key, want := range map[string]string{
		"token":    "app",
		"user":     "user",
		"priority": "2",
		"retry":    "60",
	} {
		if got := gotForm[key]; len(got) != 1 || got[0] != want {
			t.Errorf("form[%s] = %v, want %q", key, got, want)
		}
	}
}

type fakeChannel struct {
	name string
	got  chan *Message
	err  error
}

func (f *fakeChannel) Send(_ context.Context, msg *Message) error {
	f.got <- msg
	return f.err
}

func (f *fakeChannel) Type() string { return f.name }

func TestDispatcherFansOutToAllChannels(t *testing.T) {
	a := &fakeChannel{name: "a", got: make(chan *Message, 1)}
	b := &fakeChannel{name: "b", got: make(chan *Message, 1), err: errors.New("down")}
	d := NewDispatcher(a, b)

	d.NotifyPaceChange(context.Background(), &PaceChange{
		ProbeName: "Codex",
		New:       pace.StatusBehind,
		Detail:    "limit in 30m",
	})

	for _, ch := range []*fakeChannel{a, b} {
		select {
		case msg := <-ch.got:
			if !strings.Contains(msg.Title, "behind") {
				t.Errorf("channel %s title = %q", ch.name, msg.Title)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("channel %s never received the message", ch.name)
		}
	}
}

func TestDispatcherWithoutChannels(t *testing.T) {
	d := NewDispatcher()
	if d.Enabled() {
		t.Error("Enabled = true with no channels")
	}
	// Must be a no-op, not a panic.
	d.NotifyPaceChange(context.Background(), &PaceChange{ProbeName: "x", New: pace.StatusBehind})
}
