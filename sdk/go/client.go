// Package tracklinesdk is a minimal Go client for the Trackline HTTP API.
// It mirrors the wire types and speaks only JSON; it has no dependency on
// the server packages so it can be vendored into other tools.
package tracklinesdk

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
)

// Client talks to one Trackline server.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults. BaseURL includes the API base
// path, e.g. "http://localhost:8080/v1".
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Container is the API container model.
type Container struct {
	ID            string        `json:"id"`
	Number        string        `json:"number"`
	Kind          string        `json:"kind"`
	Title         string        `json:"title"`
	Description   string        `json:"description,omitempty"`
	Department    string        `json:"department"`
	Status        string        `json:"status"`
	Health        string        `json:"health"`
	Members       []Member      `json:"members"`
	WorkItems     []WorkItem    `json:"work_items"`
	Chat          []ChatMessage `json:"chat"`
	StartDate     string        `json:"start_date"`
	TargetEndDate *string       `json:"target_end_date,omitempty"`
	EndDate       *string       `json:"end_date,omitempty"`
	CreatedBy     string        `json:"created_by"`
	CreatedAt     string        `json:"created_at"`
	UpdatedAt     string        `json:"updated_at"`
	Version       int64         `json:"version"`
}

// ContainerSummary is the list-view projection.
type ContainerSummary struct {
	ID           string `json:"id"`
	Number       string `json:"number"`
	Kind         string `json:"kind"`
	Title        string `json:"title"`
	Department   string `json:"department"`
	Status       string `json:"status"`
	Health       string `json:"health"`
	PendingItems int    `json:"pending_items"`
	Members      int    `json:"members"`
	UpdatedAt    string `json:"updated_at"`
}

// Member is a membership record.
type Member struct {
	UserID   string  `json:"user_id"`
	Name     string  `json:"name"`
	Role     string  `json:"role"`
	JoinedAt string  `json:"joined_at"`
	LeftAt   *string `json:"left_at,omitempty"`
}

// WorkItem is a deliverable or action inside a container.
type WorkItem struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	AssignedTo     []string  `json:"assigned_to"`
	Status         string    `json:"status"`
	DueDate        *string   `json:"due_date,omitempty"`
	Blockers       []Blocker `json:"blockers"`
	Comments       []Comment `json:"comments"`
	Attachments    []string  `json:"attachments"`
	SubmissionNote string    `json:"submission_note,omitempty"`
	SubmittedBy    *string   `json:"submitted_by,omitempty"`
	SubmittedAt    *string   `json:"submitted_at,omitempty"`
	CreatedAt      string    `json:"created_at"`
	UpdatedAt      string    `json:"updated_at"`
}

// Blocker is an impediment reported on a work item.
type Blocker struct {
	Description string   `json:"description"`
	ReportedBy  string   `json:"reported_by"`
	ReportedAt  string   `json:"reported_at"`
	IsResolved  bool     `json:"is_resolved"`
	ResolvedAt  *string  `json:"resolved_at,omitempty"`
	Attachments []string `json:"attachments"`
}

// Comment is a work-item discussion entry.
type Comment struct {
	UserID    string `json:"user_id"`
	UserName  string `json:"user_name"`
	Message   string `json:"message"`
	CreatedAt string `json:"created_at"`
}

// ChatMessage is a container-level chat entry.
type ChatMessage struct {
	UserID      string   `json:"user_id"`
	UserName    string   `json:"user_name"`
	Message     string   `json:"message"`
	Timestamp   string   `json:"timestamp"`
	Attachments []string `json:"attachments"`
}

// Event is a log entry.
type Event struct {
	ID          int64          `json:"id"`
	TS          string         `json:"ts"`
	Type        string         `json:"type"`
	ContainerID string         `json:"container_id"`
	WorkItemID  string         `json:"work_item_id,omitempty"`
	ActorID     string         `json:"actor_id"`
	Payload     map[string]any `json:"payload,omitempty"`
}

// Upload carries an attachment payload inline.
type Upload struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
	Data []byte `json:"data"`
}

// MemberInput names a person and role for membership operations.
type MemberInput struct {
	UserID string `json:"user_id"`
	Name   string `json:"name,omitempty"`
	Role   string `json:"role,omitempty"`
}

// Action is the request body for the action endpoint. Leave fields the
// action does not read at their zero values.
type Action struct {
	Action          string       `json:"action"`
	WorkItemID      string       `json:"work_item_id,omitempty"`
	ExpectedVersion int64        `json:"expected_version,omitempty"`
	Note            string       `json:"note,omitempty"`
	Description     string       `json:"description,omitempty"`
	Message         string       `json:"message,omitempty"`
	NewStatus       string       `json:"new_status,omitempty"`
	NewDueDate      string       `json:"new_due_date,omitempty"`
	BlockerIndex    *int         `json:"blocker_index,omitempty"`
	MemberID        string       `json:"member_id,omitempty"`
	Member          *MemberInput `json:"member,omitempty"`
	Files           []Upload     `json:"files,omitempty"`
}

// CreateContainerRequest creates a project or sprint.
type CreateContainerRequest struct {
	Kind          string        `json:"kind"`
	Title         string        `json:"title"`
	Description   string        `json:"description,omitempty"`
	Department    string        `json:"department"`
	StartDate     string        `json:"start_date,omitempty"`
	TargetEndDate string        `json:"target_end_date,omitempty"`
	EndDate       string        `json:"end_date,omitempty"`
	Members       []MemberInput `json:"members"`
}

// CreateWorkItemRequest adds a work item.
type CreateWorkItemRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	AssignedTo  []string `json:"assigned_to"`
	DueDate     string   `json:"due_date,omitempty"`
	Attachments []Upload `json:"attachments,omitempty"`
}

// PaginatedEvents wraps an event page with its continuation cursor.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor int64   `json:"next_cursor"`
}

// APIError wraps non-2xx responses. Code carries the machine-readable
// error code from the response envelope when present.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// DevToken exchanges an identity for a signed JWT and stores it on the
// client. Only works against servers with dev tokens enabled.
func (c *Client) DevToken(ctx context.Context, userID, name, department string, departmentHead bool) (string, error) {
	body := map[string]any{
		"user_id":         userID,
		"name":            name,
		"department":      department,
		"department_head": departmentHead,
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "auth/dev/token", body, &resp); err != nil {
		return "", err
	}
	c.BearerToken = resp.Token
	return resp.Token, nil
}

// CreateContainer creates a project or sprint.
func (c *Client) CreateContainer(ctx context.Context, req CreateContainerRequest) (Container, error) {
	var resp Container
	err := c.do(ctx, http.MethodPost, "containers", req, &resp)
	return resp, err
}

// GetContainer fetches the full container document.
func (c *Client) GetContainer(ctx context.Context, id string) (Container, error) {
	var resp Container
	err := c.do(ctx, http.MethodGet, "containers/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// ListContainers returns summaries filtered by the non-empty parameters.
func (c *Client) ListContainers(ctx context.Context, kind, department, status, health string, limit int) ([]ContainerSummary, error) {
	q := url.Values{}
	if kind != "" {
		q.Set("kind", kind)
	}
	if department != "" {
		q.Set("department", department)
	}
	if status != "" {
		q.Set("status", status)
	}
	if health != "" {
		q.Set("health", health)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	endpoint := "containers"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp []ContainerSummary
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// CreateWorkItem adds a work item to a container.
func (c *Client) CreateWorkItem(ctx context.Context, containerID string, req CreateWorkItemRequest) (Container, error) {
	var resp Container
	endpoint := fmt.Sprintf("containers/%s/work-items", url.PathEscape(containerID))
	err := c.do(ctx, http.MethodPost, endpoint, req, &resp)
	return resp, err
}

// Apply sends a workflow action and returns the updated container.
func (c *Client) Apply(ctx context.Context, containerID string, action Action) (Container, error) {
	var resp Container
	endpoint := fmt.Sprintf("containers/%s/actions", url.PathEscape(containerID))
	err := c.do(ctx, http.MethodPost, endpoint, action, &resp)
	return resp, err
}

// SetContainerStatus toggles the container lifecycle.
func (c *Client) SetContainerStatus(ctx context.Context, containerID, status string, expectedVersion int64) (Container, error) {
	body := map[string]any{
		"status":           status,
		"expected_version": expectedVersion,
	}
	var resp Container
	endpoint := fmt.Sprintf("containers/%s/status", url.PathEscape(containerID))
	err := c.do(ctx, http.MethodPatch, endpoint, body, &resp)
	return resp, err
}

// ReassignLead moves the lead role to another active member.
func (c *Client) ReassignLead(ctx context.Context, containerID, userID string, expectedVersion int64) (Container, error) {
	body := map[string]any{
		"user_id":          userID,
		"expected_version": expectedVersion,
	}
	var resp Container
	endpoint := fmt.Sprintf("containers/%s/lead", url.PathEscape(containerID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// Events returns the most convenient page of a container's event log.
func (c *Client) Events(ctx context.Context, containerID string, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, containerID, limit, 0)
	return page.Items, err
}

// EventsPage returns one page of events after the cursor.
func (c *Client) EventsPage(ctx context.Context, containerID string, limit int, cursor int64) (PaginatedEvents, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if cursor > 0 {
		q.Set("cursor", strconv.FormatInt(cursor, 10))
	}
	endpoint := fmt.Sprintf("containers/%s/events", url.PathEscape(containerID))
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Attachment downloads a stored blob by its blob:// reference.
func (c *Client) Attachment(ctx context.Context, ref string) ([]byte, error) {
	endpoint := "attachments?ref=" + url.QueryEscape(ref)
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base()+"/"+endpoint, nil)
	if err != nil {
		return nil, err
	}
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, apiErrorFromBody(resp.StatusCode, b)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base()+"/"+strings.TrimLeft(endpoint, "/"), &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return apiErrorFromBody(resp.StatusCode, b)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func apiErrorFromBody(status int, body []byte) *APIError {
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	apiErr := &APIError{StatusCode: status, Body: string(body)}
	if json.Unmarshal(body, &envelope) == nil {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	}
	return apiErr
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
