package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// legacyUser is one entry of the old YAML state file. Keys may carry the
// leading colon of a serialized Ruby symbol (":token").
type legacyUser struct {
	Token          string
	Initials       string
	CurrentProject int64
	Projects       []int64
}

var errSkipLegacy = errors.New("session already has a token")

// ImportLegacy reads a YAML state file of the form
//
//	users:
//	  alice:
//	    token: abc
//	    current_project: 123
//	    projects: {123: {}, 456: {}}
//
// and merges it into the store. Identities that already have a token are
// skipped. Project names are not part of the old format; the bot looks
// them up the first time a user selects a project by name. It returns the number of sessions written.
func (s *Store) ImportLegacy(ctx context.Context, r io.Reader) (int, error) {
	users, err := parseLegacy(r)
	if err != nil {
		return 0, err
	}

	names := make([]string, 0, len(users))
	for name := range users {
		names = append(names, name)
	}
	sort.Strings(names)

	imported := 0
	for _, name := range names {
		u := users[name]
		_, err := s.Update(ctx, name, func(sess *Session) error {
			if sess.HasToken() {
				return errSkipLegacy
			}
			sess.Token = u.Token
			if u.Initials != "" {
				sess.Initials = u.Initials
			}
			for _, id := range u.Projects {
				if sess.ProjectName(id) == "" {
					sess.RememberProject(ProjectRef{ID: id})
				}
			}
			if u.CurrentProject != 0 {
				sess.SetProject(u.CurrentProject)
			}
			return nil
		})
		if errors.Is(err, errSkipLegacy) {
			s.log.Info("Skipping legacy user with existing session", "identity", name)
			continue
		}
		if err != nil {
			return imported, err
		}
		imported++
	}
	return imported, nil
}

func parseLegacy(r io.Reader) (map[string]legacyUser, error) {
	var doc map[string]interface{}
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return map[string]legacyUser{}, nil
		}
		return nil, fmt.Errorf("failed to parse legacy state: %w", err)
	}

	rawUsers, ok := asMap(lookup(doc, "users"))
	if !ok {
		return nil, fmt.Errorf("legacy state has no users map")
	}

	users := make(map[string]legacyUser, len(rawUsers))
	for name, raw := range rawUsers {
		fields, _ := asMap(raw)
		u := legacyUser{
			Token:    scalar(lookup(fields, "token")),
			Initials: scalar(lookup(fields, "initials")),
		}
		if id, err := parseID(scalar(lookup(fields, "current_project"))); err == nil {
			u.CurrentProject = id
		}
		if projects, ok := asMap(lookup(fields, "projects")); ok {
			for key := range projects {
				id, err := parseID(key)
				if err != nil {
					return nil, fmt.Errorf("user %q: bad project id %q", name, key)
				}
				u.Projects = append(u.Projects, id)
			}
			sort.Slice(u.Projects, func(i, j int) bool { return u.Projects[i] < u.Projects[j] })
		}
		users[name] = u
	}
	return users, nil
}

// lookup finds key with or without a leading colon.
func lookup(m map[string]interface{}, key string) interface{} {
	if m == nil {
		return nil
	}
	if v, ok := m[key]; ok {
		return v
	}
	return m[":"+key]
}

// asMap normalizes a decoded YAML mapping. Mappings with non-string keys
// (bare project ids) decode as map[interface{}]interface{}.
func asMap(v interface{}) (map[string]interface{}, bool) {
	switch t := v.(type) {
	case map[string]interface{}:
		return t, true
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[scalar(k)] = val
		}
		return out, true
	}
	return nil, false
}

func scalar(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

func parseID(s string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
}
