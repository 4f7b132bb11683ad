package bot

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/IonicaBizauKitchen/Pivotal-Tracker-IRC-bot/internal/chat"
	"github.com/IonicaBizauKitchen/Pivotal-Tracker-IRC-bot/internal/chat/chattest"
	"github.com/IonicaBizauKitchen/Pivotal-Tracker-IRC-bot/internal/session"
	"github.com/IonicaBizauKitchen/Pivotal-Tracker-IRC-bot/internal/testutil"
	"github.com/IonicaBizauKitchen/Pivotal-Tracker-IRC-bot/internal/tracker"
)

type storyUpdate struct {
	storyID int64
	field   string
	value   string
}

// fakeTracker is an in-memory Tracker backing every handle it builds.
type fakeTracker struct {
	mu       sync.Mutex
	projects []tracker.Project
	stories  map[int64][]tracker.Story // by project id
	nextID   int64

	tokens   []string
	searches []tracker.Filter
	updates  []storyUpdate
	comments []string
	created  []tracker.Story
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{stories: make(map[int64][]tracker.Story), nextID: 9000}
}

func (f *fakeTracker) factory(token string, projectID int64) tracker.Handle {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, token)
	return &fakeHandle{f: f, projectID: projectID}
}

func (f *fakeTracker) addProject(id int64, name string, stories ...tracker.Story) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.projects = append(f.projects, tracker.Project{ID: id, Name: name})
	for i := range stories {
		stories[i].ProjectID = id
	}
	f.stories[id] = stories
}

type fakeHandle struct {
	f         *fakeTracker
	projectID int64
}

func (h *fakeHandle) ProjectID() int64 { return h.projectID }

func (h *fakeHandle) Projects(context.Context) ([]tracker.Project, error) {
	h.f.mu.Lock()
	defer h.f.mu.Unlock()
	return append([]tracker.Project(nil), h.f.projects...), nil
}

func (h *fakeHandle) project() (*tracker.Project, error) {
	for _, p := range h.f.projects {
		if p.ID == h.projectID {
			p := p
			return &p, nil
		}
	}
	return nil, tracker.ErrNotFound
}

func (h *fakeHandle) Project(context.Context) (*tracker.Project, error) {
	h.f.mu.Lock()
	defer h.f.mu.Unlock()
	return h.project()
}

func (h *fakeHandle) Stories(_ context.Context, filter tracker.Filter) ([]tracker.Story, error) {
	h.f.mu.Lock()
	defer h.f.mu.Unlock()
	if _, err := h.project(); err != nil {
		return nil, err
	}
	h.f.searches = append(h.f.searches, filter)
	var out []tracker.Story
	for _, s := range h.f.stories[h.projectID] {
		if filter.State == "" || s.CurrentState == filter.State {
			out = append(out, s)
		}
	}
	return out, nil
}

func (h *fakeHandle) find(id int64) (*tracker.Story, error) {
	for i, s := range h.f.stories[h.projectID] {
		if s.ID == id {
			return &h.f.stories[h.projectID][i], nil
		}
	}
	return nil, tracker.ErrNotFound
}

func (h *fakeHandle) Story(_ context.Context, id int64) (*tracker.Story, error) {
	h.f.mu.Lock()
	defer h.f.mu.Unlock()
	s, err := h.find(id)
	if err != nil {
		return nil, err
	}
	cp := *s
	return &cp, nil
}

func (h *fakeHandle) CreateStory(_ context.Context, name, storyType string) (*tracker.Story, error) {
	h.f.mu.Lock()
	defer h.f.mu.Unlock()
	if _, err := h.project(); err != nil {
		return nil, err
	}
	h.f.nextID++
	s := tracker.Story{ID: h.f.nextID, ProjectID: h.projectID, Name: name, StoryType: storyType, CurrentState: tracker.StateUnstarted}
	h.f.stories[h.projectID] = append(h.f.stories[h.projectID], s)
	h.f.created = append(h.f.created, s)
	return &s, nil
}

func (h *fakeHandle) UpdateStory(_ context.Context, id int64, field, value string) (*tracker.Story, error) {
	h.f.mu.Lock()
	defer h.f.mu.Unlock()
	s, err := h.find(id)
	if err != nil {
		return nil, err
	}
	h.f.updates = append(h.f.updates, storyUpdate{storyID: id, field: field, value: value})
	switch field {
	case tracker.FieldCurrentState:
		s.CurrentState = value
	case tracker.FieldName:
		s.Name = value
	case tracker.FieldStoryType:
		s.StoryType = value
	case tracker.FieldEstimate:
		return nil, tracker.ErrInvalidValue
	}
	cp := *s
	return &cp, nil
}

func (h *fakeHandle) CreateComment(_ context.Context, id int64, text string) (*tracker.Comment, error) {
	h.f.mu.Lock()
	defer h.f.mu.Unlock()
	if _, err := h.find(id); err != nil {
		return nil, err
	}
	h.f.comments = append(h.f.comments, text)
	return &tracker.Comment{ID: 1, StoryID: id, Text: text}, nil
}

func (h *fakeHandle) DeliverAllFinished(context.Context) ([]tracker.Story, error) {
	h.f.mu.Lock()
	defer h.f.mu.Unlock()
	if _, err := h.project(); err != nil {
		return nil, err
	}
	var out []tracker.Story
	for i := range h.f.stories[h.projectID] {
		s := &h.f.stories[h.projectID][i]
		if s.CurrentState == tracker.StateFinished {
			s.CurrentState = tracker.StateDelivered
			out = append(out, *s)
		}
	}
	return out, nil
}

// harness bundles a bot with its fakes.
type harness struct {
	t     *testing.T
	bot   *Bot
	chat  *chattest.Transport
	fake  *fakeTracker
	store *session.Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store, err := session.Open(session.DriverModernc, ":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	fake := newFakeTracker()
	tr := chattest.New()
	b, err := New(Config{Trigger: "trakbot", Channel: "traktest"}, tr, store, tracker.NewCache(fake.factory))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &harness{t: t, bot: b, chat: tr, fake: fake, store: store}
}

// say sends text from sender in the channel.
func (h *harness) say(sender, text string) {
	h.t.Helper()
	h.bot.Router().Dispatch(context.Background(), sender, &chat.Event{Sender: sender, Target: "#traktest", Text: text})
}

// whisper sends text from sender in a private message.
func (h *harness) whisper(sender, text string) {
	h.t.Helper()
	h.bot.Router().Dispatch(context.Background(), sender, &chat.Event{Sender: sender, Target: "trakbot", Text: text})
}

func (h *harness) session(identity string) *session.Session {
	h.t.Helper()
	sess, err := h.store.GetOrCreate(context.Background(), identity)
	if err != nil {
		h.t.Fatalf("GetOrCreate: %v", err)
	}
	return sess
}

// update changes identity's stored session.
func (h *harness) update(identity string, fn func(*session.Session)) *session.Session {
	h.t.Helper()
	sess, err := h.store.Update(context.Background(), identity, func(s *session.Session) error {
		fn(s)
		return nil
	})
	if err != nil {
		h.t.Fatalf("Update: %v", err)
	}
	return sess
}

// onProject gives identity a token and a current project.
func (h *harness) onProject(identity string, id int64, name string) *session.Session {
	h.t.Helper()
	return h.update(identity, func(s *session.Session) {
		s.Token = testutil.FakeTrackerToken
		s.RememberProject(session.ProjectRef{ID: id, Name: name})
		s.SetProject(id)
	})
}

// onStory puts identity on a story in project id.
func (h *harness) onStory(identity string, id int64, name string, storyID int64) {
	h.t.Helper()
	h.onProject(identity, id, name)
	h.update(identity, func(s *session.Session) { s.StoryID = storyID })
}

func (h *harness) texts() []string {
	return h.chat.Texts()
}

func (h *harness) last() string {
	h.t.Helper()
	texts := h.chat.Texts()
	if len(texts) == 0 {
		h.t.Fatal("nothing was sent")
	}
	return texts[len(texts)-1]
}

func stories(n int) []tracker.Story {
	types := []string{tracker.TypeFeature, tracker.TypeBug, tracker.TypeChore}
	out := make([]tracker.Story, n)
	for i := range out {
		out[i] = tracker.Story{
			ID:           int64(1001 + i),
			Name:         "Story " + string(rune('A'+i)),
			StoryType:    types[i%len(types)],
			CurrentState: tracker.StateStarted,
		}
	}
	return out
}

func sortedNames(ps []session.ProjectRef) []string {
	names := make([]string, 0, len(ps))
	for _, p := range ps {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names
}
