package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/IonicaBizauKitchen/Pivotal-Tracker-IRC-bot/internal/logging"
	"github.com/IonicaBizauKitchen/Pivotal-Tracker-IRC-bot/internal/metrics"
)

// Supported database/sql driver names.
const (
	DriverModernc = "sqlite"  // modernc.org/sqlite, pure Go
	DriverCgo     = "sqlite3" // github.com/mattn/go-sqlite3
)

// Store persists sessions to SQLite, one row per identity, and keeps every
// loaded session in memory. Callers always receive copies; the cached
// session only changes after a successful commit.
type Store struct {
	db  *sql.DB
	log *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	locks    map[string]*sync.Mutex
}

// NewStore creates a Store using an existing *sql.DB connection.
// It runs migrations to create the required tables if they don't exist.
func NewStore(db *sql.DB) (*Store, error) {
	s := &Store{
		db:       db,
		log:      logging.WithComponent("session"),
		sessions: make(map[string]*Session),
		locks:    make(map[string]*sync.Mutex),
	}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("session store migration failed: %w", err)
	}
	return s, nil
}

// Open opens the database at path with driver ("" means DriverModernc).
// Use ":memory:" for a throwaway store.
func Open(driver, path string) (*Store, error) {
	if driver == "" {
		driver = DriverModernc
	}
	if driver != DriverModernc && driver != DriverCgo {
		return nil, fmt.Errorf("unsupported storage driver %q", driver)
	}
	db, err := sql.Open(driver, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// Each new connection would get its own empty database.
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set database pragmas: %w", err)
	}
	s, err := NewStore(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			identity TEXT PRIMARY KEY,
			token TEXT NOT NULL DEFAULT '',
			initials TEXT NOT NULL DEFAULT '',
			project_id INTEGER NOT NULL DEFAULT 0,
			story_id INTEGER NOT NULL DEFAULT 0,
			searched INTEGER NOT NULL DEFAULT 0,
			found_stories TEXT NOT NULL DEFAULT '[]',
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`ALTER TABLE sessions ADD COLUMN projects TEXT NOT NULL DEFAULT '[]'`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			// Ignore "duplicate column" errors from ALTER TABLE migrations
			if strings.Contains(err.Error(), "duplicate column") {
				continue
			}
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// GetOrCreate returns a copy of the session for identity, loading it from
// the database on first use. An identity never seen before gets an empty
// session; only storage failures return an error. Changes to the copy are
// not kept until it is passed to Save, or made through Update.
func (s *Store) GetOrCreate(ctx context.Context, identity string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[identity]; ok {
		return sess.Clone(), nil
	}

	sess, err := s.load(ctx, identity)
	if err != nil {
		return nil, err
	}
	s.sessions[identity] = sess
	metrics.SetSessionsLoaded(len(s.sessions))
	return sess.Clone(), nil
}

// Update applies fn to the current session for identity and saves the
// result. Updates to one identity run one at a time, so fn always sees the
// latest committed state. When fn or the save fails nothing changes.
func (s *Store) Update(ctx context.Context, identity string, fn func(*Session) error) (*Session, error) {
	if identity == "" {
		return nil, errors.New("update session: empty identity")
	}
	lock := s.identityLock(identity)
	lock.Lock()
	defer lock.Unlock()

	sess, err := s.GetOrCreate(ctx, identity)
	if err != nil {
		return nil, err
	}
	if err := fn(sess); err != nil {
		return nil, err
	}
	if err := s.write(ctx, sess); err != nil {
		return nil, err
	}
	s.publish(sess)
	return sess, nil
}

func (s *Store) identityLock(identity string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[identity]
	if !ok {
		l = &sync.Mutex{}
		s.locks[identity] = l
	}
	return l
}

// publish makes a committed session the cached one.
func (s *Store) publish(sess *Session) {
	s.mu.Lock()
	s.sessions[sess.Identity] = sess.Clone()
	metrics.SetSessionsLoaded(len(s.sessions))
	s.mu.Unlock()
}

func (s *Store) load(ctx context.Context, identity string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT token, initials, project_id, story_id, searched, found_stories, projects
		FROM sessions WHERE identity = ?`, identity)

	sess := &Session{Identity: identity}
	var searched int
	var found, projects string
	err := row.Scan(&sess.Token, &sess.Initials, &sess.ProjectID, &sess.StoryID, &searched, &found, &projects)
	if errors.Is(err, sql.ErrNoRows) {
		return sess, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session %q: %w", identity, err)
	}
	sess.Searched = searched != 0
	if err := json.Unmarshal([]byte(found), &sess.FoundStories); err != nil {
		return nil, fmt.Errorf("decode found stories for %q: %w", identity, err)
	}
	if err := json.Unmarshal([]byte(projects), &sess.Projects); err != nil {
		return nil, fmt.Errorf("decode projects for %q: %w", identity, err)
	}
	s.log.Debug("Loaded session", slog.String("identity", identity))
	return sess, nil
}

// Save writes the whole session in one transaction, replacing whatever is
// stored for its identity.
func (s *Store) Save(ctx context.Context, sess *Session) error {
	if sess.Identity == "" {
		return errors.New("save session: empty identity")
	}
	lock := s.identityLock(sess.Identity)
	lock.Lock()
	defer lock.Unlock()

	if err := s.write(ctx, sess); err != nil {
		return err
	}
	s.publish(sess)
	return nil
}

func (s *Store) write(ctx context.Context, sess *Session) error {
	found, err := json.Marshal(nonNilStories(sess.FoundStories))
	if err != nil {
		return fmt.Errorf("encode found stories: %w", err)
	}
	projects, err := json.Marshal(nonNilProjects(sess.Projects))
	if err != nil {
		return fmt.Errorf("encode projects: %w", err)
	}
	searched := 0
	if sess.Searched {
		searched = 1
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (identity, token, initials, project_id, story_id, searched, found_stories, projects, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(identity) DO UPDATE SET
			token = excluded.token,
			initials = excluded.initials,
			project_id = excluded.project_id,
			story_id = excluded.story_id,
			searched = excluded.searched,
			found_stories = excluded.found_stories,
			projects = excluded.projects,
			updated_at = CURRENT_TIMESTAMP`,
		sess.Identity, sess.Token, sess.Initials, sess.ProjectID, sess.StoryID, searched, string(found), string(projects))
	if err != nil {
		return fmt.Errorf("save session %q: %w", sess.Identity, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit session %q: %w", sess.Identity, err)
	}
	return nil
}

// Identities lists every identity with a stored session.
func (s *Store) Identities(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT identity FROM sessions ORDER BY identity`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func nonNilStories(v []StorySummary) []StorySummary {
	if v == nil {
		return []StorySummary{}
	}
	return v
}

func nonNilProjects(v []ProjectRef) []ProjectRef {
	if v == nil {
		return []ProjectRef{}
	}
	return v
}
