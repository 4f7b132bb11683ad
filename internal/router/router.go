// Package router matches inbound chat messages against an ordered command
// table and runs the first matching handler inside an error boundary.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/IonicaBizauKitchen/Pivotal-Tracker-IRC-bot/internal/chat"
	"github.com/IonicaBizauKitchen/Pivotal-Tracker-IRC-bot/internal/logging"
	"github.com/IonicaBizauKitchen/Pivotal-Tracker-IRC-bot/internal/metrics"
	"github.com/IonicaBizauKitchen/Pivotal-Tracker-IRC-bot/internal/pattern"
)

// Handler runs one command. captures are the matcher's positional groups.
type Handler func(ctx context.Context, invoker string, ev *chat.Event, captures []string) error

// Route is one entry of the command table.
type Route struct {
	Name    string
	Matcher *pattern.Matcher
	Handler Handler
}

// Replier sends the apology for a failed command.
type Replier interface {
	Send(target, text string) error
}

// Options tune dispatch.
type Options struct {
	// Timeout bounds each message's handling. Zero means no limit.
	Timeout time.Duration
	// Workers is the number of messages handled at once. Values below 2
	// handle strictly one message at a time.
	Workers int
}

// Router holds the command table. Register routes before calling Serve;
// the table is read-only afterwards.
type Router struct {
	routes  []Route
	replier Replier
	opts    Options
	queue   serializer
}

// New creates an empty router that apologizes through replier.
func New(replier Replier, opts Options) *Router {
	return &Router{
		replier: replier,
		opts:    opts,
		queue:   serializer{tails: make(map[string]chan struct{})},
	}
}

// Handle appends a route. Earlier routes win over later ones.
func (r *Router) Handle(name string, m *pattern.Matcher, h Handler) {
	r.routes = append(r.routes, Route{Name: name, Matcher: m, Handler: h})
}

// Match returns the first route matching text.
func (r *Router) Match(text string) (Route, []string, bool) {
	for _, rt := range r.routes {
		if captures, ok := rt.Matcher.Match(text); ok {
			return rt, captures, true
		}
	}
	return Route{}, nil, false
}

// Dispatch runs the first route matching ev. Messages that match nothing
// are ignored. A handler error or panic is logged and answered with one
// apology. It reports whether a route matched.
func (r *Router) Dispatch(ctx context.Context, invoker string, ev *chat.Event) bool {
	rt, captures, ok := r.Match(ev.Text)
	if !ok {
		metrics.Unmatched()
		return false
	}
	metrics.CommandDispatched(rt.Name)

	correlationID := uuid.New().String()
	ctx = logging.ContextWithCorrelationID(ctx, correlationID)
	ctx = logging.ContextWithIdentity(ctx, invoker)
	ctx = logging.ContextWithChannel(ctx, ev.Target)
	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	err := r.run(ctx, rt, invoker, ev, captures)
	log := logging.WithContext(ctx).With(
		slog.String("component", "router"),
		slog.String("command", rt.Name),
		slog.Duration("elapsed", time.Since(start)),
	)
	if err == nil {
		log.Debug("Command handled")
		return true
	}

	metrics.CommandFailed(rt.Name)
	log.Error("Command failed", slog.String("text", ev.Text), slog.Any("error", err))
	msg := fmt.Sprintf("Sorry %s, something went wrong with that. (ref %s)", invoker, correlationID[:8])
	if sendErr := r.replier.Send(ev.ReplyTo(), msg); sendErr != nil {
		log.Warn("Failed to send apology", slog.Any("error", sendErr))
	}
	return true
}

func (r *Router) run(ctx context.Context, rt Route, invoker string, ev *chat.Event, captures []string) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic in %s: %v\n%s", rt.Name, p, debug.Stack())
		}
	}()
	return rt.Handler(ctx, invoker, ev, captures)
}

// Serve dispatches events until the channel closes or ctx is cancelled.
// With more than one worker, messages from different senders run in
// parallel while each sender's messages still run in arrival order.
func (r *Router) Serve(ctx context.Context, events <-chan *chat.Event) error {
	if r.opts.Workers <= 1 {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case ev, ok := <-events:
				if !ok {
					return nil
				}
				r.Dispatch(ctx, ev.Sender, ev)
			}
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)
	for {
		select {
		case <-gctx.Done():
			_ = g.Wait()
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return g.Wait()
			}
			prev, done := r.queue.enter(ev.Sender)
			g.Go(func() error {
				defer r.queue.leave(ev.Sender, done)
				if prev != nil {
					select {
					case <-prev:
					case <-gctx.Done():
						return nil
					}
				}
				r.Dispatch(gctx, ev.Sender, ev)
				return nil
			})
		}
	}
}

// serializer chains work per key so each key's jobs run one at a time in
// the order they were entered.
type serializer struct {
	mu    sync.Mutex
	tails map[string]chan struct{}
}

// enter registers a job for key. The job must wait for prev (nil when
// nothing is ahead of it) and call leave with done when finished.
func (s *serializer) enter(key string) (prev <-chan struct{}, done chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tail, ok := s.tails[key]; ok {
		prev = tail
	}
	done = make(chan struct{})
	s.tails[key] = done
	return prev, done
}

func (s *serializer) leave(key string, done chan struct{}) {
	close(done)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tails[key] == done {
		delete(s.tails, key)
	}
}
