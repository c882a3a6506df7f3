package engine

import (
	"context"
	"fmt"

	"trackline/internal/blobstore"
	"trackline/internal/domain"
	"trackline/internal/events"
)

// Action codes accepted by Apply.
const (
	ActionStartWork       = "start-work"
	ActionSubmitForReview = "submit-for-review"
	ActionReportBlocker   = "report-blocker"
	ActionResolveBlocker  = "resolve-blocker"
	ActionChangeStatus    = "change-status"
	ActionReopen          = "reopen"
	ActionUpdateDeadline  = "update-deadline"
	ActionAddComment      = "add-comment"
	ActionAddMember       = "add-member"
	ActionRemoveMember    = "remove-member"
	ActionAddChatMessage  = "add-chat-message"
)

// ActionRequest carries one mutation. Action selects the handler; the other
// fields are read or ignored per action. A non-empty WorkItemID targets a
// work item, otherwise the action applies to the container itself.
type ActionRequest struct {
	ContainerID     string
	WorkItemID      string
	Action          string
	Actor           Actor
	ExpectedVersion int64

	Note         string
	Description  string
	Message      string
	NewStatus    string
	NewDueDate   string
	BlockerIndex *int
	MemberID     string
	Member       *MemberInput
	Files        []blobstore.Upload
}

// Apply is the single mutation entry point for existing containers. It runs
// the addressed handler inside one transaction, recomputes health, bumps the
// document version and appends the audit event, then returns the saved
// container.
func (e Engine) Apply(ctx context.Context, req ActionRequest) (domain.Container, error) {
	// Attachments go to the store first, outside the transaction. A failed
	// action may leave orphan blobs but never a half-written document.
	refs, err := e.putFiles(ctx, req.Files)
	if err != nil {
		return domain.Container{}, err
	}

	evtType := "container." + req.Action
	if req.WorkItemID != "" {
		evtType = "workitem." + req.Action
	}
	return e.mutate(ctx, req.ContainerID, req.ExpectedVersion, evtType, req.WorkItemID, req.Actor.UserID, func(c *domain.Container) (events.EventPayload, error) {
		if c.Terminal() {
			return nil, domain.ValidationError{Field: "container_id", Reason: fmt.Sprintf("container is %s and cannot be modified", c.Status)}
		}

		var w *domain.WorkItem
		if req.WorkItemID != "" {
			if w = c.WorkItemByID(req.WorkItemID); w == nil {
				return nil, domain.NotFoundError{Kind: "work item", ID: req.WorkItemID}
			}
		}

		switch req.Action {
		case ActionStartWork:
			if w == nil {
				return nil, domain.ValidationError{Field: "work_item_id", Reason: "required for " + req.Action}
			}
			return e.startWork(c, w, req.Actor)
		case ActionSubmitForReview:
			if w == nil {
				return nil, domain.ValidationError{Field: "work_item_id", Reason: "required for " + req.Action}
			}
			return e.submitForReview(c, w, req.Actor, req.Note, refs)
		case ActionReportBlocker:
			if w == nil {
				return nil, domain.ValidationError{Field: "work_item_id", Reason: "required for " + req.Action}
			}
			return e.reportBlocker(c, w, req.Actor, req.Description, refs)
		case ActionResolveBlocker:
			if w == nil {
				return nil, domain.ValidationError{Field: "work_item_id", Reason: "required for " + req.Action}
			}
			if req.BlockerIndex == nil {
				return nil, domain.ValidationError{Field: "blocker_index", Reason: "required for " + req.Action}
			}
			return e.resolveBlocker(c, w, req.Actor, *req.BlockerIndex)
		case ActionChangeStatus:
			if w == nil {
				return nil, domain.ValidationError{Field: "work_item_id", Reason: "required for " + req.Action}
			}
			return e.changeStatus(c, w, req.Actor, req.NewStatus)
		case ActionReopen:
			if w == nil {
				return nil, domain.ValidationError{Field: "work_item_id", Reason: "required for " + req.Action}
			}
			return e.reopen(c, w, req.Actor)
		case ActionUpdateDeadline:
			if w == nil {
				return nil, domain.ValidationError{Field: "work_item_id", Reason: "required for " + req.Action}
			}
			return e.updateDeadline(c, w, req.Actor, req.NewDueDate)
		case ActionAddComment:
			if w == nil {
				return nil, domain.ValidationError{Field: "work_item_id", Reason: "required for " + req.Action}
			}
			return e.addComment(c, w, req.Actor, req.Message)
		case ActionAddMember:
			if w != nil {
				return e.assignToWorkItem(c, w, req.Actor, req.MemberID)
			}
			if req.Member == nil {
				return nil, domain.ValidationError{Field: "member", Reason: "required for " + req.Action}
			}
			return e.addMember(ctx, c, req.Actor, *req.Member)
		case ActionRemoveMember:
			if w != nil {
				return e.unassignFromWorkItem(c, w, req.Actor, req.MemberID)
			}
			return e.removeMember(c, req.Actor, req.MemberID)
		case ActionAddChatMessage:
			if w != nil {
				return nil, domain.ValidationError{Field: "work_item_id", Reason: "chat messages are container level"}
			}
			return e.addChatMessage(c, req.Actor, req.Message, refs)
		default:
			return nil, domain.ValidationError{Field: "action", Reason: fmt.Sprintf("unknown action %q", req.Action)}
		}
	})
}
