// Package bot wires the chat transport, session store and tracker cache
// into the command table users talk to.
package bot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/IonicaBizauKitchen/Pivotal-Tracker-IRC-bot/internal/chat"
	"github.com/IonicaBizauKitchen/Pivotal-Tracker-IRC-bot/internal/logging"
	"github.com/IonicaBizauKitchen/Pivotal-Tracker-IRC-bot/internal/pattern"
	"github.com/IonicaBizauKitchen/Pivotal-Tracker-IRC-bot/internal/router"
	"github.com/IonicaBizauKitchen/Pivotal-Tracker-IRC-bot/internal/session"
	"github.com/IonicaBizauKitchen/Pivotal-Tracker-IRC-bot/internal/tracker"
)

// Shortcuts recognized without the trigger.
const (
	DefaultListAlias = ".."
	HelpAlias        = ".?"
)

// listThreshold is the largest result shown in a channel without asking.
const listThreshold = 4

// Config names the bot and where it lives.
type Config struct {
	// Trigger is the word commands must start with, normally the nick.
	Trigger string
	// Channel is joined on Run. Empty means no channel.
	Channel string
	// ListAlias re-lists the last search in full. Empty means DefaultListAlias.
	ListAlias string
	// Dispatch tunes the router.
	Dispatch router.Options
}

// Bot answers chat commands.
type Bot struct {
	cfg       Config
	transport chat.Transport
	store     *session.Store
	cache     *tracker.Cache
	router    *router.Router
	log       *slog.Logger
}

// New builds the bot and compiles its command table. A pattern that fails
// to compile is returned as an error so the process stops before serving.
func New(cfg Config, transport chat.Transport, store *session.Store, cache *tracker.Cache) (*Bot, error) {
	if cfg.ListAlias == "" {
		cfg.ListAlias = DefaultListAlias
	}
	b := &Bot{
		cfg:       cfg,
		transport: transport,
		store:     store,
		cache:     cache,
		router:    router.New(transport, cfg.Dispatch),
		log:       logging.WithComponent("bot"),
	}
	if err := b.register(); err != nil {
		return nil, err
	}
	return b, nil
}

// command is one row of the table. Exactly one of fragments or alias is set.
type command struct {
	name      string
	fragments []string
	alias     string
	handler   router.Handler
}

// commands lists the table in match order. More specific patterns come
// before the general ones they overlap with.
func (b *Bot) commands() []command {
	return []command{
		{name: "token", fragments: []string{"token", `(\S+)`}, handler: b.cmdToken},
		{name: "initials_for", fragments: []string{"initials", `(\S+)`, `(\S+)`}, handler: b.cmdInitialsFor},
		{name: "initials", fragments: []string{"initials", `(\S+)`}, handler: b.cmdInitials},
		{name: "new_project", fragments: []string{"new", "project", `(\d+)`}, handler: b.cmdNewProject},
		{name: "new_story", fragments: []string{"(?:new|add)", "(feature|chore|bug|release)", "(.+)"}, handler: b.cmdNewStory},
		{name: "project_id", fragments: []string{"project", `(\d+)`}, handler: b.cmdProjectByID},
		{name: "project_name", fragments: []string{"project", "(.+)"}, handler: b.cmdProjectByName},
		{name: "story_index", fragments: []string{"story", `(\d{1,3})`}, handler: b.cmdStoryByIndex},
		{name: "story_id", fragments: []string{"story", `(\d{4,})`}, handler: b.cmdStoryByID},
		{name: "story_update", fragments: []string{"story", "(story_type|estimate|current_state|name)", "(.+)"}, handler: b.cmdStoryUpdate},
		{name: "comment", fragments: []string{"(?:comment|note)", "(.+)"}, handler: b.cmdComment},
		{name: "find", fragments: []string{"find", "(.+)"}, handler: b.cmdFind},
		{name: "finished", fragments: []string{"finished"}, handler: b.cmdFinished},
		{name: "work_for", fragments: []string{"work", `(\S+)`}, handler: b.cmdWorkFor},
		{name: "work", fragments: []string{"work"}, handler: b.cmdWork},
		{name: "list_found", fragments: []string{"list", "found"}, handler: b.cmdListFound},
		{name: "list_found", alias: b.cfg.ListAlias, handler: b.cmdListFound},
		{name: "deliver_finished", fragments: []string{"deliver", "finished"}, handler: b.cmdDeliverFinished},
		{name: "projects", fragments: []string{"projects"}, handler: b.cmdProjects},
		{name: "help", fragments: []string{"help"}, handler: b.cmdHelp},
		{name: "help", alias: HelpAlias, handler: b.cmdHelp},
	}
}

func (b *Bot) register() error {
	for _, c := range b.commands() {
		var m *pattern.Matcher
		var err error
		if c.alias != "" {
			m, err = pattern.Alias(c.alias)
		} else {
			m, err = pattern.Compile(b.cfg.Trigger, c.fragments...)
		}
		if err != nil {
			return fmt.Errorf("command %s: %w", c.name, err)
		}
		b.router.Handle(c.name, m, c.handler)
	}
	return nil
}

// Router exposes the compiled command table.
func (b *Bot) Router() *router.Router {
	return b.router
}

// Run connects, joins the channel and serves until the connection ends or
// ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.transport.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	if b.cfg.Channel != "" {
		if err := b.transport.Join(b.cfg.Channel); err != nil {
			return fmt.Errorf("join %s: %w", b.cfg.Channel, err)
		}
	}
	b.log.Info("Serving commands",
		slog.String("trigger", b.cfg.Trigger),
		slog.String("channel", chat.ChannelName(b.cfg.Channel)),
		slog.Int("workers", b.cfg.Dispatch.Workers))

	err := b.router.Serve(ctx, b.transport.Events())
	if tErr := b.transport.Err(); tErr != nil {
		return tErr
	}
	return err
}

// reply answers ev where it came from, one chat line per text line.
func (b *Bot) reply(ev *chat.Event, text string) {
	if err := b.transport.Send(ev.ReplyTo(), text); err != nil {
		b.log.Warn("Failed to send reply", slog.String("target", ev.ReplyTo()), slog.Any("error", err))
	}
}

func (b *Bot) replyPrivate(identity, text string) {
	if err := b.transport.SendPrivate(identity, text); err != nil {
		b.log.Warn("Failed to send private reply", slog.String("identity", identity), slog.Any("error", err))
	}
}
