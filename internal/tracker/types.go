// Package tracker is a Pivotal Tracker API v5 client plus the per-user
// handle cache the bot uses to reach it.
package tracker

import (
	"strings"
)

// DefaultBaseURL is the public Pivotal Tracker API root.
const DefaultBaseURL = "https://www.pivotaltracker.com/services/v5"

// Story types.
const (
	TypeFeature = "feature"
	TypeChore   = "chore"
	TypeBug     = "bug"
	TypeRelease = "release"
)

// Story states.
const (
	StateUnscheduled = "unscheduled"
	StateUnstarted   = "unstarted"
	StateStarted     = "started"
	StateFinished    = "finished"
	StateDelivered   = "delivered"
	StateAccepted    = "accepted"
	StateRejected    = "rejected"
)

// Updatable story fields.
const (
	FieldStoryType    = "story_type"
	FieldEstimate     = "estimate"
	FieldCurrentState = "current_state"
	FieldName         = "name"
)

// Project is a Tracker project.
type Project struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Story is a Tracker story.
type Story struct {
	ID           int64    `json:"id"`
	ProjectID    int64    `json:"project_id"`
	Name         string   `json:"name"`
	StoryType    string   `json:"story_type"`
	CurrentState string   `json:"current_state"`
	Estimate     *float64 `json:"estimate,omitempty"`
	URL          string   `json:"url,omitempty"`
}

// Comment is a note attached to a story.
type Comment struct {
	ID      int64  `json:"id"`
	StoryID int64  `json:"story_id"`
	Text    string `json:"text"`
}

// Filter narrows a story search. Empty fields are omitted.
type Filter struct {
	Text  string
	State string
	Owner string // owner initials
}

// String renders the filter in Tracker's search syntax.
func (f Filter) String() string {
	var parts []string
	if f.Owner != "" {
		parts = append(parts, "owner:"+f.Owner)
	}
	if f.State != "" {
		parts = append(parts, "state:"+f.State)
	}
	if t := strings.TrimSpace(f.Text); t != "" {
		parts = append(parts, t)
	}
	return strings.Join(parts, " ")
}

// ValidField reports whether field may be changed with UpdateStory.
func ValidField(field string) bool {
	switch field {
	case FieldStoryType, FieldEstimate, FieldCurrentState, FieldName:
		return true
	}
	return false
}
