package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"trackline/internal/blobstore"
	"trackline/internal/domain"
	"trackline/internal/events"
)

// CreateWorkItemOptions are parameters for adding a deliverable or action.
type CreateWorkItemOptions struct {
	ContainerID string
	Title       string
	Description string
	AssignedTo  []string
	DueDate     string
	Files       []blobstore.Upload
	Actor       Actor
}

// CreateWorkItem adds a work item to an active container. Any active member
// may create one; setting a due date takes owner rights.
func (e Engine) CreateWorkItem(ctx context.Context, opts CreateWorkItemOptions) (domain.Container, error) {
	if strings.TrimSpace(opts.Title) == "" {
		return domain.Container{}, domain.ValidationError{Field: "title", Reason: "required"}
	}
	if len(opts.AssignedTo) == 0 {
		return domain.Container{}, domain.ValidationError{Field: "assigned_to", Reason: "at least one assignee required"}
	}
	refs, err := e.putFiles(ctx, opts.Files)
	if err != nil {
		return domain.Container{}, err
	}
	id := uuid.New().String()
	return e.mutate(ctx, opts.ContainerID, 0, "workitem.created", id, opts.Actor.UserID, func(c *domain.Container) (events.EventPayload, error) {
		if c.Status != domain.ContainerActive {
			return nil, domain.ValidationError{Field: "container", Reason: "work items can only be added to an active container"}
		}
		if _, err := requireActiveMember(c, opts.Actor, "create-workitem"); err != nil {
			return nil, err
		}
		for _, userID := range opts.AssignedTo {
			if c.ActiveMember(userID) == nil {
				return nil, domain.ValidationError{Field: "assigned_to", Reason: fmt.Sprintf("%s is not an active member", userID)}
			}
		}
		now := e.now().UTC().Format(time.RFC3339)
		w := domain.WorkItem{
			ID:          id,
			Title:       opts.Title,
			Description: opts.Description,
			AssignedTo:  append([]string{}, opts.AssignedTo...),
			Status:      domain.StatusPending,
			Blockers:    []domain.Blocker{},
			Comments:    []domain.Comment{},
			Attachments: refs,
			CreatedBy:   opts.Actor.UserID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if opts.DueDate != "" {
			if err := requireOwner(c, opts.Actor, "set-deadline"); err != nil {
				return nil, err
			}
			if _, err := time.Parse(time.RFC3339, opts.DueDate); err != nil {
				return nil, domain.ValidationError{Field: "due_date", Reason: "must be RFC3339"}
			}
			due := opts.DueDate
			w.DueDate = &due
		}
		c.WorkItems = append(c.WorkItems, w)
		return events.EventPayload{"title": w.Title, "assigned_to": w.AssignedTo}, nil
	})
}

// startWork is the contributor transition pending -> in-progress.
func (e Engine) startWork(c *domain.Container, w *domain.WorkItem, actor Actor) (events.EventPayload, error) {
	if err := requireAssignee(c, w, actor, "start-work"); err != nil {
		return nil, err
	}
	if w.Status != domain.StatusPending {
		return nil, domain.InvalidTransitionError{From: w.Status, To: domain.StatusInProgress}
	}
	w.Status = domain.StatusInProgress
	e.touch(w)
	return events.EventPayload{"status": w.Status}, nil
}

// submitForReview gates in-progress -> in-review behind a mandatory note.
// Attachment refs were already written to the store; a subsequent submission
// cycle after a reopen overwrites the visible fields.
func (e Engine) submitForReview(c *domain.Container, w *domain.WorkItem, actor Actor, note string, refs []string) (events.EventPayload, error) {
	if err := requireAssignee(c, w, actor, "submit-for-review"); err != nil {
		return nil, err
	}
	if strings.TrimSpace(note) == "" {
		return nil, domain.ValidationError{Field: "submission_note", Reason: "required"}
	}
	if w.Status != domain.StatusInProgress {
		return nil, domain.InvalidTransitionError{From: w.Status, To: domain.StatusInReview}
	}
	now := e.now().UTC().Format(time.RFC3339)
	w.Status = domain.StatusInReview
	w.SubmissionNote = note
	w.SubmissionAttachments = refs
	userID := actor.UserID
	w.SubmittedBy = &userID
	w.SubmittedAt = &now
	e.touch(w)
	return events.EventPayload{"status": w.Status, "submitted_by": userID}, nil
}

// changeStatus is the owner's administrative override: it may land on any
// defined non-initial state from any non-done state, skipping the forward
// path. Leaving done still takes an explicit reopen.
func (e Engine) changeStatus(c *domain.Container, w *domain.WorkItem, actor Actor, newStatus string) (events.EventPayload, error) {
	if err := requireOwner(c, actor, "change-status"); err != nil {
		return nil, err
	}
	switch newStatus {
	case domain.StatusInProgress, domain.StatusInReview, domain.StatusDone:
	default:
		return nil, domain.ValidationError{Field: "new_status", Reason: fmt.Sprintf("unknown status %q", newStatus)}
	}
	if w.Status == domain.StatusDone {
		return nil, domain.InvalidTransitionError{From: w.Status, To: newStatus}
	}
	from := w.Status
	w.Status = newStatus
	e.touch(w)
	return events.EventPayload{"from": from, "to": newStatus, "override": true}, nil
}

// reopen is the only backward transition: done -> in-progress.
func (e Engine) reopen(c *domain.Container, w *domain.WorkItem, actor Actor) (events.EventPayload, error) {
	if err := requireOwner(c, actor, "reopen"); err != nil {
		return nil, err
	}
	if w.Status != domain.StatusDone {
		return nil, domain.InvalidTransitionError{From: w.Status, To: domain.StatusInProgress}
	}
	w.Status = domain.StatusInProgress
	e.touch(w)
	return events.EventPayload{"status": w.Status}, nil
}

// updateDeadline sets or clears the due date; leads only.
func (e Engine) updateDeadline(c *domain.Container, w *domain.WorkItem, actor Actor, newDueDate string) (events.EventPayload, error) {
	if err := requireOwner(c, actor, "update-deadline"); err != nil {
		return nil, err
	}
	if newDueDate == "" {
		w.DueDate = nil
	} else {
		if _, err := time.Parse(time.RFC3339, newDueDate); err != nil {
			return nil, domain.ValidationError{Field: "new_due_date", Reason: "must be RFC3339"}
		}
		due := newDueDate
		w.DueDate = &due
	}
	e.touch(w)
	return events.EventPayload{"due_date": newDueDate}, nil
}

func requireAssignee(c *domain.Container, w *domain.WorkItem, actor Actor, action string) error {
	if _, err := requireActiveMember(c, actor, action); err != nil {
		return err
	}
	if !w.Assigned(actor.UserID) {
		return domain.AuthorizationError{Action: action, Reason: "not assigned to this work item"}
	}
	return nil
}

func (e Engine) touch(w *domain.WorkItem) {
	w.UpdatedAt = e.now().UTC().Format(time.RFC3339)
}
