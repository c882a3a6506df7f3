package server

import (
	"trackline/internal/blobstore"
	"trackline/internal/domain"
	"trackline/internal/engine"
)

// Request payloads

type MemberRequest struct {
	UserID string `json:"user_id"`
	Name   string `json:"name,omitempty"`
	Role   string `json:"role,omitempty" enum:"lead,member" default:"member"`
}

type CreateContainerRequest struct {
	Kind          string          `json:"kind" enum:"project,sprint"`
	Title         string          `json:"title"`
	Description   string          `json:"description,omitempty"`
	Department    string          `json:"department"`
	StartDate     string          `json:"start_date,omitempty" format:"date-time"`
	TargetEndDate string          `json:"target_end_date,omitempty" format:"date-time"`
	EndDate       string          `json:"end_date,omitempty" format:"date-time"`
	Members       []MemberRequest `json:"members"`
}

type UploadRequest struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
	Data []byte `json:"data"`
}

type CreateWorkItemRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	AssignedTo  []string        `json:"assigned_to"`
	DueDate     string          `json:"due_date,omitempty" format:"date-time"`
	Attachments []UploadRequest `json:"attachments,omitempty"`
}

// ActionBody is the wire shape of the single mutation endpoint. Action
// selects a handler; the remaining fields are per-action parameters.
type ActionBody struct {
	Action          string          `json:"action" enum:"start-work,submit-for-review,report-blocker,resolve-blocker,change-status,reopen,update-deadline,add-comment,add-member,remove-member,add-chat-message"`
	WorkItemID      string          `json:"work_item_id,omitempty"`
	ExpectedVersion int64           `json:"expected_version,omitempty"`
	Note            string          `json:"note,omitempty"`
	Description     string          `json:"description,omitempty"`
	Message         string          `json:"message,omitempty"`
	NewStatus       string          `json:"new_status,omitempty" enum:",pending,in-progress,in-review,done"`
	NewDueDate      string          `json:"new_due_date,omitempty"`
	BlockerIndex    *int            `json:"blocker_index,omitempty"`
	MemberID        string          `json:"member_id,omitempty"`
	Member          *MemberRequest  `json:"member,omitempty"`
	Files           []UploadRequest `json:"files,omitempty"`
}

type SetContainerStatusRequest struct {
	Status          string `json:"status" enum:"active,completed,archived,closed"`
	ExpectedVersion int64  `json:"expected_version,omitempty"`
}

type ReassignLeadRequest struct {
	UserID          string `json:"user_id"`
	ExpectedVersion int64  `json:"expected_version,omitempty"`
}

type UpsertPersonRequest struct {
	UserID     string `json:"user_id"`
	Name       string `json:"name"`
	Department string `json:"department"`
	Title      string `json:"title,omitempty"`
	Active     *bool  `json:"active,omitempty"`
}

type DevTokenRequest struct {
	UserID         string `json:"user_id"`
	Name           string `json:"name,omitempty"`
	Department     string `json:"department,omitempty"`
	DepartmentHead bool   `json:"department_head,omitempty"`
}

type DevTokenResponse struct {
	Token string `json:"token"`
}

// Response payloads

type ContainerResponse struct {
	domain.Container
}

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
	UpdatedAt    string `json:"updated_at" format:"date-time"`
}

type EventListResponse struct {
	Items      []domain.Event `json:"items"`
	NextCursor int64          `json:"next_cursor,omitempty"`
}

type MeResponse struct {
	UserID         string `json:"user_id"`
	Name           string `json:"name,omitempty"`
	Department     string `json:"department,omitempty"`
	DepartmentHead bool   `json:"department_head"`
}

func containerResponse(c domain.Container) ContainerResponse {
	return ContainerResponse{Container: c}
}

func containerSummary(c domain.Container) ContainerSummary {
	active := 0
	for _, m := range c.Members {
		if m.Active() {
			active++
		}
	}
	return ContainerSummary{
		ID:           c.ID,
		Number:       c.Number,
		Kind:         c.Kind,
		Title:        c.Title,
		Department:   c.Department,
		Status:       c.Status,
		Health:       c.Health,
		PendingItems: c.PendingCount(),
		Members:      active,
		UpdatedAt:    c.UpdatedAt,
	}
}

func mapSummaries(items []domain.Container) []ContainerSummary {
	out := make([]ContainerSummary, 0, len(items))
	for _, c := range items {
		out = append(out, containerSummary(c))
	}
	return out
}

func memberInputs(reqs []MemberRequest) []engine.MemberInput {
	out := make([]engine.MemberInput, 0, len(reqs))
	for _, m := range reqs {
		role := m.Role
		if role == "" {
			role = domain.RoleMember
		}
		out = append(out, engine.MemberInput{UserID: m.UserID, Name: m.Name, Role: role})
	}
	return out
}

func uploads(reqs []UploadRequest) []blobstore.Upload {
	out := make([]blobstore.Upload, 0, len(reqs))
	for _, f := range reqs {
		out = append(out, blobstore.Upload{Name: f.Name, Type: f.Type, Data: f.Data})
	}
	return out
}
