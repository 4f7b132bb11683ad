// Package session keeps the per-user record the bot remembers between
// messages: credential, initials, current project and story, and the
// results of the latest search.
package session

import (
	"sort"
	"strings"
)

// StorySummary is the part of a story kept from a search.
type StorySummary struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	StoryType string `json:"story_type"`
}

// ProjectRef is a project the user has seen.
type ProjectRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Session is one chat identity's state. Zero values mean unset.
type Session struct {
	Identity  string
	Token     string
	Initials  string
	ProjectID int64
	StoryID   int64

	// FoundStories is the latest search result. Searched distinguishes an
	// empty result from no search at all.
	FoundStories []StorySummary
	Searched     bool

	Projects []ProjectRef
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	c := *s
	c.FoundStories = append([]StorySummary(nil), s.FoundStories...)
	c.Projects = append([]ProjectRef(nil), s.Projects...)
	return &c
}

func (s *Session) HasToken() bool    { return s.Token != "" }
func (s *Session) HasInitials() bool { return s.Initials != "" }
func (s *Session) HasProject() bool  { return s.ProjectID != 0 }
func (s *Session) HasStory() bool    { return s.StoryID != 0 }

// SetProject switches the current project. The current story belongs to
// the old project and is cleared.
func (s *Session) SetProject(id int64) {
	if s.ProjectID != id {
		s.StoryID = 0
	}
	s.ProjectID = id
}

// SetFound replaces the latest search result.
func (s *Session) SetFound(stories []StorySummary) {
	s.FoundStories = append([]StorySummary(nil), stories...)
	s.Searched = true
}

// RememberProject adds or renames a known project, keeping the list
// sorted by name.
func (s *Session) RememberProject(p ProjectRef) {
	for i := range s.Projects {
		if s.Projects[i].ID == p.ID {
			if p.Name != "" {
				s.Projects[i].Name = p.Name
			}
			s.sortProjects()
			return
		}
	}
	s.Projects = append(s.Projects, p)
	s.sortProjects()
}

func (s *Session) sortProjects() {
	sort.SliceStable(s.Projects, func(i, j int) bool {
		return strings.ToLower(s.Projects[i].Name) < strings.ToLower(s.Projects[j].Name)
	})
}

// ProjectName returns the remembered name of a project, or "" if unknown.
func (s *Session) ProjectName(id int64) string {
	for _, p := range s.Projects {
		if p.ID == id {
			return p.Name
		}
	}
	return ""
}

// HasUnnamedProjects reports whether any known project lacks a name.
func (s *Session) HasUnnamedProjects() bool {
	for _, p := range s.Projects {
		if p.Name == "" {
			return true
		}
	}
	return false
}

// MatchProjects returns the known projects whose name contains query,
// ignoring case.
func (s *Session) MatchProjects(query string) []ProjectRef {
	q := strings.ToLower(strings.TrimSpace(query))
	var out []ProjectRef
	for _, p := range s.Projects {
		if strings.Contains(strings.ToLower(p.Name), q) {
			out = append(out, p)
		}
	}
	return out
}
