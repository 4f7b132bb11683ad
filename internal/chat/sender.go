package chat

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/IonicaBizauKitchen/Pivotal-Tracker-IRC-bot/internal/logging"
)

// maxLineLen keeps PRIVMSG lines well inside the 512 byte IRC limit once the
// server prepends our prefix.
const maxLineLen = 400

// ErrSenderClosed is returned when a message is queued after shutdown.
var ErrSenderClosed = errors.New("chat: sender closed")

type outbound struct {
	target string
	line   string
}

// WriteFunc delivers one line to target.
type WriteFunc func(target, line string) error

// Sender serializes outbound lines through one queue, throttled so the bot is
// not disconnected for flooding. A single queue keeps delivery FIFO across
// all targets.
type Sender struct {
	write   WriteFunc
	limiter *rate.Limiter
	queue   chan outbound
	done    chan struct{}
	log     *slog.Logger
}

// NewSender creates a sender. perSecond <= 0 disables throttling.
func NewSender(write WriteFunc, perSecond float64, burst int) *Sender {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if burst < 1 {
		burst = 1
	}
	return &Sender{
		write:   write,
		limiter: rate.NewLimiter(limit, burst),
		queue:   make(chan outbound, 256),
		done:    make(chan struct{}),
		log:     logging.WithComponent("chat.sender"),
	}
}

// Enqueue splits text into lines and queues them for target.
func (s *Sender) Enqueue(target, text string) error {
	for _, line := range SplitLines(text, maxLineLen) {
		select {
		case <-s.done:
			return ErrSenderClosed
		case s.queue <- outbound{target: target, line: line}:
		}
	}
	return nil
}

// Run drains the queue until ctx is cancelled or Stop is called.
func (s *Sender) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case msg := <-s.queue:
			if err := s.limiter.Wait(ctx); err != nil {
				return
			}
			if err := s.write(msg.target, msg.line); err != nil {
				s.log.Warn("Failed to send line",
					slog.String("target", msg.target),
					slog.Any("error", err))
			}
		}
	}
}

// Stop ends Run and rejects further messages.
func (s *Sender) Stop() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}
