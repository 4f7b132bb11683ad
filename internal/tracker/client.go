package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/IonicaBizauKitchen/Pivotal-Tracker-IRC-bot/internal/metrics"
)

// Client is a Pivotal Tracker API client authenticated with one token.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a new Tracker client. An empty baseURL means
// DefaultBaseURL.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return NewClientWithHTTP(baseURL, token, &http.Client{Timeout: timeout})
}

// NewClientWithHTTP creates a new Tracker client with a custom HTTP client (for testing)
func NewClientWithHTTP(baseURL, token string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		httpClient: httpClient,
	}
}

// doRequest performs an HTTP request to the Tracker API. op names the
// call in errors and metrics.
func (c *Client) doRequest(ctx context.Context, op, method, path string, body, result interface{}) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveTrackerRequest(op, time.Since(start), err) }()

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("X-TrackerToken", c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("tracker %s: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Op: op, StatusCode: resp.StatusCode}
		var eb errorBody
		if json.Unmarshal(respBody, &eb) == nil {
			apiErr.Code = eb.Code
			apiErr.Message = eb.Error
			if eb.GeneralProblem != "" {
				apiErr.Message = eb.GeneralProblem
			}
		} else {
			apiErr.Message = strings.TrimSpace(string(respBody))
		}
		return apiErr
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

func projectPath(projectID int64) string {
	return "/projects/" + strconv.FormatInt(projectID, 10)
}

func storyPath(projectID, storyID int64) string {
	return projectPath(projectID) + "/stories/" + strconv.FormatInt(storyID, 10)
}

// Projects lists every project the token can see.
func (c *Client) Projects(ctx context.Context) ([]Project, error) {
	var projects []Project
	if err := c.doRequest(ctx, "projects", http.MethodGet, "/projects", nil, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// Project fetches one project.
func (c *Client) Project(ctx context.Context, projectID int64) (*Project, error) {
	var p Project
	if err := c.doRequest(ctx, "project", http.MethodGet, projectPath(projectID), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Stories searches a project's stories.
func (c *Client) Stories(ctx context.Context, projectID int64, filter Filter) ([]Story, error) {
	path := projectPath(projectID) + "/stories"
	if f := filter.String(); f != "" {
		path += "?" + url.Values{"filter": {f}}.Encode()
	}
	var stories []Story
	if err := c.doRequest(ctx, "stories", http.MethodGet, path, nil, &stories); err != nil {
		return nil, err
	}
	return stories, nil
}

// Story fetches one story.
func (c *Client) Story(ctx context.Context, projectID, storyID int64) (*Story, error) {
	var s Story
	if err := c.doRequest(ctx, "story", http.MethodGet, storyPath(projectID, storyID), nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

type createStoryRequest struct {
	Name         string `json:"name"`
	StoryType    string `json:"story_type"`
	CurrentState string `json:"current_state"`
}

// CreateStory adds an unstarted story to a project.
func (c *Client) CreateStory(ctx context.Context, projectID int64, name, storyType string) (*Story, error) {
	req := createStoryRequest{Name: name, StoryType: storyType, CurrentState: StateUnstarted}
	var s Story
	if err := c.doRequest(ctx, "create_story", http.MethodPost, projectPath(projectID)+"/stories", req, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateStory sets one field of a story. Estimates must be whole numbers.
func (c *Client) UpdateStory(ctx context.Context, projectID, storyID int64, field, value string) (*Story, error) {
	if !ValidField(field) {
		return nil, fmt.Errorf("%w: unknown field %q", ErrInvalidValue, field)
	}
	body := map[string]interface{}{field: value}
	if field == FieldEstimate {
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("%w: estimate %q is not a number", ErrInvalidValue, value)
		}
		body[field] = n
	}
	var s Story
	if err := c.doRequest(ctx, "update_story", http.MethodPut, storyPath(projectID, storyID), body, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateComment attaches a comment to a story.
func (c *Client) CreateComment(ctx context.Context, projectID, storyID int64, text string) (*Comment, error) {
	var cm Comment
	body := map[string]string{"text": text}
	if err := c.doRequest(ctx, "create_comment", http.MethodPost, storyPath(projectID, storyID)+"/comments", body, &cm); err != nil {
		return nil, err
	}
	return &cm, nil
}

// DeliverAllFinished moves every finished story in the project to
// delivered and returns the stories it changed.
func (c *Client) DeliverAllFinished(ctx context.Context, projectID int64) ([]Story, error) {
	finished, err := c.Stories(ctx, projectID, Filter{State: StateFinished})
	if err != nil {
		return nil, err
	}
	delivered := make([]Story, 0, len(finished))
	for _, s := range finished {
		updated, err := c.UpdateStory(ctx, projectID, s.ID, FieldCurrentState, StateDelivered)
		if err != nil {
			return delivered, fmt.Errorf("deliver story %d: %w", s.ID, err)
		}
		delivered = append(delivered, *updated)
	}
	return delivered, nil
}

// ForProject returns a Handle scoped to projectID.
func (c *Client) ForProject(projectID int64) *ProjectHandle {
	return &ProjectHandle{client: c, projectID: projectID}
}
