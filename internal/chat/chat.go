// Package chat defines the chat transport the bot talks through and the
// IRC implementations of it.
package chat

import (
	"context"
	"strings"
)

// Event is one inbound chat message.
type Event struct {
	Sender string // nick of the author
	Target string // channel name, or the bot's own nick for private messages
	Text   string
}

// Private reports whether the event was sent directly to the bot rather than
// to a shared channel.
func (e *Event) Private() bool {
	return !IsChannel(e.Target)
}

// ReplyTo returns where a reply to e should go: the channel for channel
// messages and the sender for private ones.
func (e *Event) ReplyTo() string {
	if e.Private() {
		return e.Sender
	}
	return e.Target
}

// IsChannel reports whether target names an IRC channel.
func IsChannel(target string) bool {
	return strings.HasPrefix(target, "#") || strings.HasPrefix(target, "&")
}

// Transport is the bot's connection to a chat network. Implementations keep
// Send and SendPrivate FIFO so numbered lists stay readable.
type Transport interface {
	// Connect dials the server and registers the bot's nick.
	Connect(ctx context.Context) error
	// Join joins name, which may omit the leading '#'.
	Join(name string) error
	// Events yields inbound messages until the connection ends.
	Events() <-chan *Event
	// Send sends text to a channel or nick.
	Send(target, text string) error
	// SendPrivate sends text directly to identity.
	SendPrivate(identity, text string) error
	// Err returns the error that ended the connection, if any.
	Err() error
	Close() error
}

// ChannelName normalizes a configured channel name to carry its '#'.
func ChannelName(name string) string {
	if IsChannel(name) {
		return name
	}
	return "#" + name
}

// SplitLines breaks text into IRC-sized lines. Newlines always split, and
// lines longer than maxLen are broken at the last space before the limit.
func SplitLines(text string, maxLen int) []string {
	var out []string
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r", ""), "\n") {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			continue
		}
		for len(line) > maxLen {
			cut := strings.LastIndex(line[:maxLen], " ")
			if cut <= maxLen/2 {
				cut = maxLen
			}
			out = append(out, strings.TrimSpace(line[:cut]))
			line = strings.TrimSpace(line[cut:])
		}
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
