package tracker

import (
	"context"
)

// Handle is an authenticated Tracker connection scoped to one project.
// Project-level calls on a Handle with project 0 fail with ErrNotFound.
type Handle interface {
	ProjectID() int64
	Projects(ctx context.Context) ([]Project, error)
	Project(ctx context.Context) (*Project, error)
	Stories(ctx context.Context, filter Filter) ([]Story, error)
	Story(ctx context.Context, storyID int64) (*Story, error)
	CreateStory(ctx context.Context, name, storyType string) (*Story, error)
	UpdateStory(ctx context.Context, storyID int64, field, value string) (*Story, error)
	CreateComment(ctx context.Context, storyID int64, text string) (*Comment, error)
	DeliverAllFinished(ctx context.Context) ([]Story, error)
}

// ProjectHandle is the Client-backed Handle.
type ProjectHandle struct {
	client    *Client
	projectID int64
}

var _ Handle = (*ProjectHandle)(nil)

func (h *ProjectHandle) ProjectID() int64 { return h.projectID }

func (h *ProjectHandle) Projects(ctx context.Context) ([]Project, error) {
	return h.client.Projects(ctx)
}

func (h *ProjectHandle) Project(ctx context.Context) (*Project, error) {
	if h.projectID == 0 {
		return nil, ErrNotFound
	}
	return h.client.Project(ctx, h.projectID)
}

func (h *ProjectHandle) Stories(ctx context.Context, filter Filter) ([]Story, error) {
	if h.projectID == 0 {
		return nil, ErrNotFound
	}
	return h.client.Stories(ctx, h.projectID, filter)
}

func (h *ProjectHandle) Story(ctx context.Context, storyID int64) (*Story, error) {
	if h.projectID == 0 {
		return nil, ErrNotFound
	}
	return h.client.Story(ctx, h.projectID, storyID)
}

func (h *ProjectHandle) CreateStory(ctx context.Context, name, storyType string) (*Story, error) {
	if h.projectID == 0 {
		return nil, ErrNotFound
	}
	return h.client.CreateStory(ctx, h.projectID, name, storyType)
}

func (h *ProjectHandle) UpdateStory(ctx context.Context, storyID int64, field, value string) (*Story, error) {
	if h.projectID == 0 {
		return nil, ErrNotFound
	}
	return h.client.UpdateStory(ctx, h.projectID, storyID, field, value)
}

func (h *ProjectHandle) CreateComment(ctx context.Context, storyID int64, text string) (*Comment, error) {
	if h.projectID == 0 {
		return nil, ErrNotFound
	}
	return h.client.CreateComment(ctx, h.projectID, storyID, text)
}

func (h *ProjectHandle) DeliverAllFinished(ctx context.Context) ([]Story, error) {
	if h.projectID == 0 {
		return nil, ErrNotFound
	}
	return h.client.DeliverAllFinished(ctx, h.projectID)
}
