package engine

import (
	"strings"
	"time"

	"trackline/internal/domain"
	"trackline/internal/events"
)

// reportBlocker attaches an unresolved blocker to a work item. Any assignee
// may report one while the item is not done; the status never changes.
func (e Engine) reportBlocker(c *domain.Container, w *domain.WorkItem, actor Actor, description string, refs []string) (events.EventPayload, error) {
	if err := requireAssignee(c, w, actor, "report-blocker"); err != nil {
		return nil, err
	}
	if strings.TrimSpace(description) == "" {
		return nil, domain.ValidationError{Field: "description", Reason: "required"}
	}
	if w.Status == domain.StatusDone {
		return nil, domain.ValidationError{Field: "status", Reason: "cannot report a blocker on a done work item"}
	}
	w.Blockers = append(w.Blockers, domain.Blocker{
		Description: description,
		ReportedBy:  actor.UserID,
		ReportedAt:  e.now().UTC().Format(time.RFC3339),
		IsResolved:  false,
		Attachments: refs,
	})
	e.touch(w)
	return events.EventPayload{"description": description, "blockers": len(w.Blockers)}, nil
}

// resolveBlocker marks a blocker resolved. Resolving one that is already
// resolved is a no-op, not an error: the second call returns the container
// unchanged.
func (e Engine) resolveBlocker(c *domain.Container, w *domain.WorkItem, actor Actor, index int) (events.EventPayload, error) {
	if err := requireOwner(c, actor, "resolve-blocker"); err != nil {
		return nil, err
	}
	if index < 0 || index >= len(w.Blockers) {
		return nil, domain.NotFoundError{Kind: "blocker", ID: w.ID}
	}
	b := &w.Blockers[index]
	if b.IsResolved {
		return nil, errNoChange
	}
	now := e.now().UTC().Format(time.RFC3339)
	b.IsResolved = true
	b.ResolvedAt = &now
	e.touch(w)
	return events.EventPayload{"blocker_index": index}, nil
}
