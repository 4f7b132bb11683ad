package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/IonicaBizauKitchen/Pivotal-Tracker-IRC-bot/internal/chat"
	"github.com/IonicaBizauKitchen/Pivotal-Tracker-IRC-bot/internal/session"
	"github.com/IonicaBizauKitchen/Pivotal-Tracker-IRC-bot/internal/tracker"
)

// listStories replies with a numbered story list. Long lists in a channel
// are replaced by a count and a hint unless forceShow is set.
func (b *Bot) listStories(ctx context.Context, ev *chat.Event, sess *session.Session, stories []session.StorySummary, forceShow bool) {
	if len(stories) == 0 {
		b.reply(ev, "No stories found.")
		return
	}
	if len(stories) > listThreshold && !ev.Private() && !forceShow {
		b.reply(ev, fmt.Sprintf("Found %d stories. That's a lot for the channel; say `%s list found` (or %s) to see them all.",
			len(stories), b.cfg.Trigger, b.cfg.ListAlias))
		return
	}

	b.reply(ev, fmt.Sprintf("%d stories in %s:", len(stories), b.projectName(ctx, sess)))
	for i, s := range stories {
		b.reply(ev, storyLine(i+1, s))
	}
}

// projectName names the current project, asking the tracker the first
// time and remembering the answer.
func (b *Bot) projectName(ctx context.Context, sess *session.Session) string {
	if name := sess.ProjectName(sess.ProjectID); name != "" {
		return name
	}
	if !sess.HasToken() || !sess.HasProject() {
		return fmt.Sprintf("project %d", sess.ProjectID)
	}
	p, err := b.handle(sess).Project(ctx)
	if err != nil {
		b.log.Debug("Project name lookup failed", slog.Int64("project", sess.ProjectID), slog.Any("error", err))
		return fmt.Sprintf("project %d", sess.ProjectID)
	}
	if err := b.remember(ctx, sess.Identity, session.ProjectRef{ID: p.ID, Name: p.Name}); err != nil {
		b.log.Warn("Failed to save project name", slog.Any("error", err))
	}
	return p.Name
}

func (b *Bot) listProjects(ev *chat.Event, projects []session.ProjectRef) {
	for i, p := range projects {
		b.reply(ev, fmt.Sprintf("%d) %s (%d)", i+1, p.Name, p.ID))
	}
}

func storyLine(i int, s session.StorySummary) string {
	return fmt.Sprintf("%d) %s %d: %s", i, storyType(s.StoryType), s.ID, s.Name)
}

// storyType capitalizes a Tracker story type for display.
func storyType(t string) string {
	if t == "" {
		return "Story"
	}
	return strings.ToUpper(t[:1]) + t[1:]
}

func summarize(stories []tracker.Story) []session.StorySummary {
	out := make([]session.StorySummary, 0, len(stories))
	for _, s := range stories {
		out = append(out, session.StorySummary{ID: s.ID, Name: s.Name, StoryType: s.StoryType})
	}
	return out
}
