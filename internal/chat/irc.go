package chat

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"gopkg.in/irc.v4"

	"github.com/IonicaBizauKitchen/Pivotal-Tracker-IRC-bot/internal/logging"
)

// IRCConfig holds connection settings for an IRC transport.
type IRCConfig struct {
	Server   string // host name, or ws:// / wss:// URL
	Port     int
	TLS      bool
	Password string
	Nick     string
	FullName string

	MessagesPerSecond float64
	Burst             int
}

// IRC is a Transport speaking the IRC protocol over TCP or WebSocket.
type IRC struct {
	cfg    IRCConfig
	dial   func(ctx context.Context) (io.ReadWriteCloser, error)
	events chan *Event
	sender *Sender
	log    *slog.Logger

	mu       sync.Mutex
	client   *irc.Client
	rwc      io.Closer
	welcomed bool
	channels []string
	err      error
	cancel   context.CancelFunc
}

// NewIRC creates an IRC transport. Servers given as ws:// or wss:// URLs are
// reached through the IRCv3 WebSocket binding.
func NewIRC(cfg IRCConfig) *IRC {
	t := &IRC{
		cfg:    cfg,
		events: make(chan *Event, 128),
		log:    logging.WithComponent("chat.irc"),
	}
	if isWebSocketURL(cfg.Server) {
		t.dial = func(ctx context.Context) (io.ReadWriteCloser, error) {
			return DialWebSocket(ctx, cfg.Server)
		}
	} else {
		t.dial = t.dialTCP
	}
	t.sender = NewSender(t.writePrivmsg, cfg.MessagesPerSecond, cfg.Burst)
	return t
}

// newIRCWithConn builds a transport over an existing stream.
func newIRCWithConn(cfg IRCConfig, rwc io.ReadWriteCloser) *IRC {
	t := NewIRC(cfg)
	t.dial = func(context.Context) (io.ReadWriteCloser, error) { return rwc, nil }
	return t
}

func (t *IRC) dialTCP(ctx context.Context) (io.ReadWriteCloser, error) {
	addr := net.JoinHostPort(t.cfg.Server, strconv.Itoa(t.cfg.Port))
	d := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: time.Minute}
	if t.cfg.TLS {
		td := &tls.Dialer{NetDialer: d, Config: &tls.Config{ServerName: t.cfg.Server}}
		return td.DialContext(ctx, "tcp", addr)
	}
	return d.DialContext(ctx, "tcp", addr)
}

// Connect dials the server, registers and starts reading in the background.
func (t *IRC) Connect(ctx context.Context) error {
	rwc, err := t.dial(ctx)
	if err != nil {
		return fmt.Errorf("dial %s: %w", t.cfg.Server, err)
	}

	client := irc.NewClient(rwc, irc.ClientConfig{
		Nick:          t.cfg.Nick,
		Pass:          t.cfg.Password,
		User:          t.cfg.Nick,
		Name:          t.cfg.FullName,
		PingFrequency: time.Minute,
		PingTimeout:   2 * time.Minute,
		Handler:       irc.HandlerFunc(t.handle),
	})

	runCtx, cancel := context.WithCancel(ctx)
	t.mu.Lock()
	t.client = client
	t.rwc = rwc
	t.cancel = cancel
	t.mu.Unlock()

	go t.sender.Run(runCtx)
	go func() {
		err := client.RunContext(runCtx)
		t.mu.Lock()
		if runCtx.Err() == nil {
			t.err = err
		}
		t.mu.Unlock()
		t.sender.Stop()
		_ = rwc.Close()
		close(t.events)
		t.log.Info("IRC connection closed", slog.Any("error", err))
	}()

	t.log.Info("Connecting to IRC",
		slog.String("server", t.cfg.Server),
		slog.String("nick", t.cfg.Nick))
	return nil
}

// handle is invoked by the irc client for every inbound line.
func (t *IRC) handle(c *irc.Client, m *irc.Message) {
	switch m.Command {
	case "001":
		t.mu.Lock()
		t.welcomed = true
		channels := append([]string(nil), t.channels...)
		t.mu.Unlock()
		for _, ch := range channels {
			if err := c.Write("JOIN " + ch); err != nil {
				t.log.Warn("Failed to join channel", slog.String("channel", ch), slog.Any("error", err))
			}
		}
		t.log.Info("Registered with server", slog.String("nick", c.CurrentNick()))

	case "PRIVMSG":
		if m.Prefix == nil || len(m.Params) < 2 {
			return
		}
		ev := &Event{Sender: m.Prefix.Name, Target: m.Params[0], Text: m.Trailing()}
		select {
		case t.events <- ev:
		default:
			t.log.Warn("Dropping inbound message, dispatch is backed up",
				slog.String("sender", ev.Sender), slog.String("target", ev.Target))
		}
	}
}

// Join joins a channel now if registered, otherwise once the server welcomes us.
func (t *IRC) Join(name string) error {
	ch := ChannelName(name)

	t.mu.Lock()
	t.channels = append(t.channels, ch)
	welcomed, client := t.welcomed, t.client
	t.mu.Unlock()

	if welcomed && client != nil {
		return client.Write("JOIN " + ch)
	}
	return nil
}

// Events yields inbound PRIVMSGs. The channel is closed when the connection ends.
func (t *IRC) Events() <-chan *Event {
	return t.events
}

// Send queues text for a channel or nick.
func (t *IRC) Send(target, text string) error {
	return t.sender.Enqueue(target, text)
}

// SendPrivate queues text for one nick.
func (t *IRC) SendPrivate(identity, text string) error {
	return t.sender.Enqueue(identity, text)
}

// Err returns the error that terminated the connection.
func (t *IRC) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Close sends QUIT and tears the connection down.
func (t *IRC) Close() error {
	t.mu.Lock()
	client, rwc, cancel := t.client, t.rwc, t.cancel
	t.mu.Unlock()

	if client != nil {
		_ = client.Write("QUIT :bye")
	}
	if cancel != nil {
		cancel()
	}
	if rwc != nil {
		return rwc.Close()
	}
	return nil
}

func (t *IRC) writePrivmsg(target, line string) error {
	t.mu.Lock()
	client := t.client
	t.mu.Unlock()
	if client == nil {
		return fmt.Errorf("not connected")
	}
	return client.WriteMessage(&irc.Message{
		Command: "PRIVMSG",
		Params:  []string{target, line},
	})
}
