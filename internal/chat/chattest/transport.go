// Package chattest provides an in-memory chat.Transport for tests.
package chattest

import (
	"context"
	"strings"
	"sync"

	"github.com/IonicaBizauKitchen/Pivotal-Tracker-IRC-bot/internal/chat"
)

// Sent is one recorded outbound message.
type Sent struct {
	Target  string
	Text    string
	Private bool
}

// Transport records everything the bot sends and lets tests inject events.
type Transport struct {
	mu     sync.Mutex
	sent   []Sent
	joined []string
	events chan *chat.Event
	closed bool
}

var _ chat.Transport = (*Transport)(nil)

// New creates an empty fake transport.
func New() *Transport {
	return &Transport{events: make(chan *chat.Event, 64)}
}

func (t *Transport) Connect(context.Context) error { return nil }

func (t *Transport) Join(name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.joined = append(t.joined, chat.ChannelName(name))
	return nil
}

func (t *Transport) Events() <-chan *chat.Event { return t.events }

// Inject delivers an inbound event.
func (t *Transport) Inject(ev *chat.Event) { t.events <- ev }

// Finish closes the event stream.
func (t *Transport) Finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.closed = true
		close(t.events)
	}
}

func (t *Transport) Send(target, text string) error {
	t.record(Sent{Target: target, Text: text})
	return nil
}

func (t *Transport) SendPrivate(identity, text string) error {
	t.record(Sent{Target: identity, Text: text, Private: true})
	return nil
}

func (t *Transport) Err() error { return nil }

func (t *Transport) Close() error {
	t.Finish()
	return nil
}

func (t *Transport) record(s Sent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = append(t.sent, s)
}

// Sent returns a copy of everything sent so far.
func (t *Transport) Sent() []Sent {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Sent(nil), t.sent...)
}

// Texts returns the text of every sent message.
func (t *Transport) Texts() []string {
	var out []string
	for _, s := range t.Sent() {
		out = append(out, s.Text)
	}
	return out
}

// Joined returns the channels joined so far.
func (t *Transport) Joined() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.joined...)
}

// Contains reports whether any sent message contains substr.
func (t *Transport) Contains(substr string) bool {
	for _, s := range t.Texts() {
		if strings.Contains(s, substr) {
			return true
		}
	}
	return false
}

// Reset forgets recorded messages.
func (t *Transport) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = nil
}
