package bot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/IonicaBizauKitchen/Pivotal-Tracker-IRC-bot/internal/chat"
	"github.com/IonicaBizauKitchen/Pivotal-Tracker-IRC-bot/internal/session"
	"github.com/IonicaBizauKitchen/Pivotal-Tracker-IRC-bot/internal/tracker"
)

// Preconditions a handler may require before touching the tracker.
type need int

const (
	needToken need = 1 << iota
	needProject
	needStory
)

// prepare loads the invoker's session and checks preconditions, prompting
// the user for whatever is missing. ok is false when the handler should
// stop without an error.
func (b *Bot) prepare(ctx context.Context, invoker string, ev *chat.Event, n need) (sess *session.Session, ok bool, err error) {
	sess, err = b.store.GetOrCreate(ctx, invoker)
	if err != nil {
		return nil, false, err
	}
	switch {
	case n&needToken != 0 && !sess.HasToken():
		b.reply(ev, fmt.Sprintf("Teach me your Pivotal Tracker API token first: `%s token <token>`", b.cfg.Trigger))
		return sess, false, nil
	case n&needProject != 0 && !sess.HasProject():
		b.reply(ev, fmt.Sprintf("Pick a project first: `%s project <id or name>`", b.cfg.Trigger))
		return sess, false, nil
	case n&needStory != 0 && !sess.HasStory():
		b.reply(ev, fmt.Sprintf("Pick a story first: `%s story <number or id>`", b.cfg.Trigger))
		return sess, false, nil
	}
	return sess, true, nil
}

func (b *Bot) handle(sess *session.Session) tracker.Handle {
	return b.cache.HandleFor(sess.Identity, sess.Token, sess.ProjectID)
}

// notFound answers tracker.ErrNotFound with a hint about the current
// project. Other errors are returned for the router to handle.
func (b *Bot) notFound(ev *chat.Event, sess *session.Session, err error) error {
	if !errors.Is(err, tracker.ErrNotFound) {
		return err
	}
	if !sess.HasProject() {
		b.reply(ev, "Tracker couldn't find that. Do you have access to it?")
		return nil
	}
	b.reply(ev, fmt.Sprintf("Tracker couldn't find that in %s. Is that the right project?", projectLabel(sess, sess.ProjectID)))
	return nil
}

func projectLabel(sess *session.Session, id int64) string {
	if name := sess.ProjectName(id); name != "" {
		return fmt.Sprintf("%s (%d)", name, id)
	}
	return fmt.Sprintf("project %d", id)
}

func parseID(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

func (b *Bot) cmdToken(ctx context.Context, invoker string, ev *chat.Event, c []string) error {
	var changed bool
	_, err := b.store.Update(ctx, invoker, func(sess *session.Session) error {
		changed = sess.Token != c[0]
		sess.Token = c[0]
		return nil
	})
	if err != nil {
		return err
	}
	if changed {
		b.cache.Forget(invoker)
	}
	b.reply(ev, fmt.Sprintf("Got it, %s.", invoker))
	return nil
}

func (b *Bot) cmdInitials(ctx context.Context, invoker string, ev *chat.Event, c []string) error {
	return b.setInitials(ctx, invoker, invoker, c[0], ev)
}

func (b *Bot) cmdInitialsFor(ctx context.Context, invoker string, ev *chat.Event, c []string) error {
	return b.setInitials(ctx, invoker, c[0], c[1], ev)
}

func (b *Bot) setInitials(ctx context.Context, invoker, target, initials string, ev *chat.Event) error {
	_, err := b.store.Update(ctx, target, func(sess *session.Session) error {
		sess.Initials = initials
		return nil
	})
	if err != nil {
		return err
	}
	if target == invoker {
		b.reply(ev, fmt.Sprintf("Got it, %s, your initials are %s.", invoker, initials))
	} else {
		b.reply(ev, fmt.Sprintf("Got it, %s, %s's initials are %s.", invoker, target, initials))
	}
	return nil
}

func (b *Bot) cmdNewProject(ctx context.Context, invoker string, ev *chat.Event, c []string) error {
	sess, ok, err := b.prepare(ctx, invoker, ev, needToken)
	if !ok {
		return err
	}
	id, err := parseID(c[0])
	if err != nil {
		return err
	}
	p, err := b.cache.HandleFor(invoker, sess.Token, id).Project(ctx)
	if err != nil {
		return b.notFound(ev, sess, err)
	}
	if err := b.remember(ctx, invoker, session.ProjectRef{ID: p.ID, Name: p.Name}); err != nil {
		return err
	}
	b.reply(ev, "Added project: "+p.Name)
	return nil
}

func (b *Bot) cmdNewStory(ctx context.Context, invoker string, ev *chat.Event, c []string) error {
	sess, ok, err := b.prepare(ctx, invoker, ev, needToken|needProject)
	if !ok {
		return err
	}
	s, err := b.handle(sess).CreateStory(ctx, c[1], c[0])
	if err != nil {
		return err
	}
	b.reply(ev, fmt.Sprintf("Added story %d", s.ID))
	return nil
}

func (b *Bot) cmdProjectByID(ctx context.Context, invoker string, ev *chat.Event, c []string) error {
	sess, ok, err := b.prepare(ctx, invoker, ev, needToken)
	if !ok {
		return err
	}
	id, err := parseID(c[0])
	if err != nil {
		return err
	}
	p, err := b.cache.HandleFor(invoker, sess.Token, id).Project(ctx)
	if err != nil {
		if errors.Is(err, tracker.ErrNotFound) {
			b.reply(ev, fmt.Sprintf("Tracker couldn't find project %d. Does your token have access to it?", id))
			return nil
		}
		return err
	}
	return b.switchProject(ctx, invoker, ev, session.ProjectRef{ID: p.ID, Name: p.Name})
}

// remember adds projects to the invoker's known list.
func (b *Bot) remember(ctx context.Context, invoker string, projects ...session.ProjectRef) error {
	_, err := b.store.Update(ctx, invoker, func(sess *session.Session) error {
		for _, p := range projects {
			sess.RememberProject(p)
		}
		return nil
	})
	return err
}

func (b *Bot) switchProject(ctx context.Context, invoker string, ev *chat.Event, p session.ProjectRef) error {
	_, err := b.store.Update(ctx, invoker, func(sess *session.Session) error {
		sess.RememberProject(p)
		sess.SetProject(p.ID)
		return nil
	})
	if err != nil {
		return err
	}
	b.reply(ev, fmt.Sprintf("%s, you're on %s", invoker, p.Name))
	return nil
}

func (b *Bot) cmdProjectByName(ctx context.Context, invoker string, ev *chat.Event, c []string) error {
	sess, ok, err := b.prepare(ctx, invoker, ev, needToken)
	if !ok {
		return err
	}
	query := strings.TrimSpace(c[0])

	// Ask the tracker when the known list can't answer: nothing matches
	// yet, or some projects were imported without their names.
	matches := sess.MatchProjects(query)
	if len(matches) == 0 || sess.HasUnnamedProjects() {
		if sess, err = b.learnProjects(ctx, sess); err != nil {
			return err
		}
		matches = sess.MatchProjects(query)
	}

	switch len(matches) {
	case 0:
		b.reply(ev, fmt.Sprintf("Sorry %s, I couldn't find a project matching %q.", invoker, query))
		return nil
	case 1:
		return b.switchProject(ctx, invoker, ev, matches[0])
	}

	b.reply(ev, fmt.Sprintf("Be more specific, %s. %q matches %d projects:", invoker, query, len(matches)))
	b.listProjects(ev, matches)
	return nil
}

// learnProjects refreshes the known projects from the tracker and returns
// the updated session.
func (b *Bot) learnProjects(ctx context.Context, sess *session.Session) (*session.Session, error) {
	projects, err := b.handle(sess).Projects(ctx)
	if err != nil {
		return nil, err
	}
	return b.store.Update(ctx, sess.Identity, func(s *session.Session) error {
		for _, p := range projects {
			s.RememberProject(session.ProjectRef{ID: p.ID, Name: p.Name})
		}
		return nil
	})
}

func (b *Bot) cmdStoryByIndex(ctx context.Context, invoker string, ev *chat.Event, c []string) error {
	sess, err := b.store.GetOrCreate(ctx, invoker)
	if err != nil {
		return err
	}
	if !sess.Searched {
		b.reply(ev, fmt.Sprintf("You haven't searched for anything yet, %s. Try `%s find <text>`.", invoker, b.cfg.Trigger))
		return nil
	}
	n, err := strconv.Atoi(c[0])
	if err != nil {
		return err
	}
	if n < 1 {
		b.reply(ev, fmt.Sprintf("Story numbers start at 1, %s.", invoker))
		return nil
	}
	if n > len(sess.FoundStories) {
		b.reply(ev, fmt.Sprintf("That index is too big, your last search had %d stories.", len(sess.FoundStories)))
		return nil
	}
	return b.selectStory(ctx, invoker, ev, sess.FoundStories[n-1].ID)
}

func (b *Bot) cmdStoryByID(ctx context.Context, invoker string, ev *chat.Event, c []string) error {
	id, err := parseID(c[0])
	if err != nil {
		return err
	}
	return b.selectStory(ctx, invoker, ev, id)
}

func (b *Bot) selectStory(ctx context.Context, invoker string, ev *chat.Event, id int64) error {
	sess, ok, err := b.prepare(ctx, invoker, ev, needToken|needProject)
	if !ok {
		return err
	}
	s, err := b.handle(sess).Story(ctx, id)
	if err != nil {
		return b.notFound(ev, sess, err)
	}
	_, err = b.store.Update(ctx, invoker, func(sess *session.Session) error {
		sess.StoryID = s.ID
		return nil
	})
	if err != nil {
		return err
	}
	b.reply(ev, fmt.Sprintf("%s, you're on %s %d: %s", invoker, storyType(s.StoryType), s.ID, s.Name))
	return nil
}

func (b *Bot) cmdStoryUpdate(ctx context.Context, invoker string, ev *chat.Event, c []string) error {
	sess, ok, err := b.prepare(ctx, invoker, ev, needToken|needProject|needStory)
	if !ok {
		return err
	}
	field, value := c[0], strings.TrimSpace(c[1])
	h := b.handle(sess)

	if field == tracker.FieldCurrentState && value == tracker.StateFinished {
		s, err := h.Story(ctx, sess.StoryID)
		if err != nil {
			return b.notFound(ev, sess, err)
		}
		if s.StoryType == tracker.TypeChore {
			b.reply(ev, fmt.Sprintf("Chores can't be finished, %s. Set it to accepted instead: `%s story current_state accepted`", invoker, b.cfg.Trigger))
			return nil
		}
	}

	if _, err := h.UpdateStory(ctx, sess.StoryID, field, value); err != nil {
		switch {
		case errors.Is(err, tracker.ErrInvalidValue):
			b.reply(ev, fmt.Sprintf("%s must be a whole number, %s.", field, invoker))
			return nil
		case errors.Is(err, tracker.ErrInvalidTransition):
			b.reply(ev, fmt.Sprintf("Tracker won't set %s to %s on story %d: %s", field, value, sess.StoryID, reason(err)))
			return nil
		}
		return b.notFound(ev, sess, err)
	}
	b.reply(ev, fmt.Sprintf("Story %d %s is now %s", sess.StoryID, field, value))
	return nil
}

func reason(err error) string {
	var apiErr *tracker.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return "the change isn't allowed"
}

func (b *Bot) cmdComment(ctx context.Context, invoker string, ev *chat.Event, c []string) error {
	sess, ok, err := b.prepare(ctx, invoker, ev, needToken|needProject|needStory)
	if !ok {
		return err
	}
	if _, err := b.handle(sess).CreateComment(ctx, sess.StoryID, c[0]); err != nil {
		return b.notFound(ev, sess, err)
	}
	b.reply(ev, fmt.Sprintf("Noted on story %d, %s.", sess.StoryID, invoker))
	return nil
}

// search runs filter in the invoker's project, remembers the result and
// lists it.
func (b *Bot) search(ctx context.Context, ev *chat.Event, sess *session.Session, filter tracker.Filter) error {
	stories, err := b.handle(sess).Stories(ctx, filter)
	if err != nil {
		return b.notFound(ev, sess, err)
	}
	sess, err = b.store.Update(ctx, sess.Identity, func(s *session.Session) error {
		s.SetFound(summarize(stories))
		return nil
	})
	if err != nil {
		return err
	}
	b.listStories(ctx, ev, sess, sess.FoundStories, false)
	return nil
}

func (b *Bot) cmdFind(ctx context.Context, invoker string, ev *chat.Event, c []string) error {
	sess, ok, err := b.prepare(ctx, invoker, ev, needToken|needProject)
	if !ok {
		return err
	}
	return b.search(ctx, ev, sess, tracker.Filter{Text: c[0]})
}

func (b *Bot) cmdFinished(ctx context.Context, invoker string, ev *chat.Event, _ []string) error {
	sess, ok, err := b.prepare(ctx, invoker, ev, needToken|needProject)
	if !ok {
		return err
	}
	return b.search(ctx, ev, sess, tracker.Filter{State: tracker.StateFinished})
}

func (b *Bot) cmdWork(ctx context.Context, invoker string, ev *chat.Event, _ []string) error {
	sess, ok, err := b.prepare(ctx, invoker, ev, needToken|needProject)
	if !ok {
		return err
	}
	if !sess.HasInitials() {
		b.reply(ev, fmt.Sprintf("I don't know your initials, %s. Teach me: `%s initials <initials>`", invoker, b.cfg.Trigger))
		return nil
	}
	return b.search(ctx, ev, sess, tracker.Filter{Owner: sess.Initials, State: tracker.StateStarted})
}

func (b *Bot) cmdWorkFor(ctx context.Context, invoker string, ev *chat.Event, c []string) error {
	sess, ok, err := b.prepare(ctx, invoker, ev, needToken|needProject)
	if !ok {
		return err
	}
	target := c[0]
	other, err := b.store.GetOrCreate(ctx, target)
	if err != nil {
		return err
	}
	if !other.HasInitials() {
		b.reply(ev, fmt.Sprintf("I don't know %s's initials, %s. Teach me: `%s initials %s <initials>`", target, invoker, b.cfg.Trigger, target))
		return nil
	}
	return b.search(ctx, ev, sess, tracker.Filter{Owner: other.Initials, State: tracker.StateStarted})
}

func (b *Bot) cmdListFound(ctx context.Context, invoker string, ev *chat.Event, _ []string) error {
	sess, err := b.store.GetOrCreate(ctx, invoker)
	if err != nil {
		return err
	}
	if !sess.Searched {
		b.reply(ev, fmt.Sprintf("You haven't searched for anything yet, %s. Try `%s find <text>`.", invoker, b.cfg.Trigger))
		return nil
	}
	b.listStories(ctx, ev, sess, sess.FoundStories, true)
	return nil
}

func (b *Bot) cmdDeliverFinished(ctx context.Context, invoker string, ev *chat.Event, _ []string) error {
	sess, ok, err := b.prepare(ctx, invoker, ev, needToken|needProject)
	if !ok {
		return err
	}
	delivered, err := b.handle(sess).DeliverAllFinished(ctx)
	if err != nil {
		return b.notFound(ev, sess, err)
	}
	if len(delivered) == 0 {
		b.reply(ev, "No finished stories in project :(")
		return nil
	}
	b.reply(ev, fmt.Sprintf("Delivered %d stories:", len(delivered)))
	for i, s := range summarize(delivered) {
		b.reply(ev, storyLine(i+1, s))
	}
	return nil
}

func (b *Bot) cmdProjects(ctx context.Context, invoker string, ev *chat.Event, _ []string) error {
	sess, ok, err := b.prepare(ctx, invoker, ev, needToken)
	if !ok {
		return err
	}
	projects, err := b.handle(sess).Projects(ctx)
	if err != nil {
		return err
	}
	if len(projects) == 0 {
		b.reply(ev, fmt.Sprintf("Your token can't see any projects, %s.", invoker))
		return nil
	}
	refs := make([]session.ProjectRef, 0, len(projects))
	for _, p := range projects {
		refs = append(refs, session.ProjectRef{ID: p.ID, Name: p.Name})
	}
	if err := b.remember(ctx, invoker, refs...); err != nil {
		return err
	}
	sort.SliceStable(refs, func(i, j int) bool {
		return strings.ToLower(refs[i].Name) < strings.ToLower(refs[j].Name)
	})
	b.listProjects(ev, refs)
	return nil
}

func (b *Bot) cmdHelp(_ context.Context, invoker string, ev *chat.Event, _ []string) error {
	if !ev.Private() {
		b.reply(ev, fmt.Sprintf("%s: sending you the command list privately.", invoker))
	}
	for _, line := range b.helpLines() {
		b.replyPrivate(invoker, line)
	}
	return nil
}
