package engine

import (
	"context"
	"fmt"
	"time"

	"trackline/internal/domain"
	"trackline/internal/events"
)

// addMember appends a new active membership. Rejoining after a soft removal
// is a fresh record; a second active record for the same user is a conflict.
func (e Engine) addMember(ctx context.Context, c *domain.Container, actor Actor, input MemberInput) (events.EventPayload, error) {
	if err := requireOwner(c, actor, "add-member"); err != nil {
		return nil, err
	}
	if input.UserID == "" {
		return nil, domain.ValidationError{Field: "member.user_id", Reason: "required"}
	}
	role := input.Role
	if role == "" {
		role = domain.RoleMember
	}
	if role != domain.RoleLead && role != domain.RoleMember {
		return nil, domain.ValidationError{Field: "member.role", Reason: fmt.Sprintf("unknown role %q", role)}
	}
	if c.ActiveMember(input.UserID) != nil {
		return nil, domain.ConflictError{Reason: fmt.Sprintf("%s already has an active membership", input.UserID)}
	}
	if role == domain.RoleLead && len(c.ActiveLeads()) > 0 {
		return nil, domain.ValidationError{Field: "member.role", Reason: "container already has an active lead; use lead reassignment"}
	}
	person, err := e.Repo.GetPerson(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	if !person.Active || person.Department != c.Department {
		return nil, domain.ValidationError{Field: "member.user_id", Reason: fmt.Sprintf("%s is not on the %s roster", input.UserID, c.Department)}
	}
	name := input.Name
	if name == "" {
		name = person.Name
	}
	c.Members = append(c.Members, domain.Member{
		UserID:   input.UserID,
		Name:     name,
		Role:     role,
		JoinedAt: e.now().UTC().Format(time.RFC3339),
	})
	return events.EventPayload{"user_id": input.UserID, "role": role}, nil
}

// removeMember soft-deletes a membership: LeftAt is set, the record and all
// attribution stay. Removing the sole active lead is rejected. Outstanding
// work-item assignments are left in place.
func (e Engine) removeMember(c *domain.Container, actor Actor, userID string) (events.EventPayload, error) {
	if err := requireOwner(c, actor, "remove-member"); err != nil {
		return nil, err
	}
	m := c.ActiveMember(userID)
	if m == nil {
		return nil, domain.NotFoundError{Kind: "member", ID: userID}
	}
	if m.Role == domain.RoleLead && len(c.ActiveLeads()) == 1 {
		return nil, domain.ValidationError{Field: "member_id", Reason: "cannot remove the sole active lead"}
	}
	now := e.now().UTC().Format(time.RFC3339)
	m.LeftAt = &now
	return events.EventPayload{"user_id": userID}, nil
}

// assignToWorkItem adds an active container member to a work item's
// assignees.
func (e Engine) assignToWorkItem(c *domain.Container, w *domain.WorkItem, actor Actor, userID string) (events.EventPayload, error) {
	if err := requireOwner(c, actor, "add-member"); err != nil {
		return nil, err
	}
	if c.ActiveMember(userID) == nil {
		return nil, domain.ValidationError{Field: "member_id", Reason: fmt.Sprintf("%s is not an active member", userID)}
	}
	if w.Assigned(userID) {
		return nil, domain.ConflictError{Reason: fmt.Sprintf("%s is already assigned", userID)}
	}
	w.AssignedTo = append(w.AssignedTo, userID)
	e.touch(w)
	return events.EventPayload{"user_id": userID}, nil
}

// unassignFromWorkItem removes an assignee from a work item.
func (e Engine) unassignFromWorkItem(c *domain.Container, w *domain.WorkItem, actor Actor, userID string) (events.EventPayload, error) {
	if err := requireOwner(c, actor, "remove-member"); err != nil {
		return nil, err
	}
	for i, id := range w.AssignedTo {
		if id == userID {
			w.AssignedTo = append(w.AssignedTo[:i], w.AssignedTo[i+1:]...)
			e.touch(w)
			return events.EventPayload{"user_id": userID}, nil
		}
	}
	return nil, domain.NotFoundError{Kind: "assignee", ID: userID}
}

// ReassignLead promotes a new lead and demotes the current one as a single
// operation, so the container never has zero or two active leads.
func (e Engine) ReassignLead(ctx context.Context, containerID, newLeadID string, expectedVersion int64, actor Actor) (domain.Container, error) {
	return e.mutate(ctx, containerID, expectedVersion, "lead.reassigned", "", actor.UserID, func(c *domain.Container) (events.EventPayload, error) {
		if err := requireOwner(c, actor, "reassign-lead"); err != nil {
			return nil, err
		}
		next := c.ActiveMember(newLeadID)
		if next == nil {
			return nil, domain.NotFoundError{Kind: "member", ID: newLeadID}
		}
		if next.Role == domain.RoleLead {
			return nil, errNoChange
		}
		var prev string
		for i := range c.Members {
			m := &c.Members[i]
			if m.Active() && m.Role == domain.RoleLead {
				m.Role = domain.RoleMember
				prev = m.UserID
			}
		}
		next.Role = domain.RoleLead
		return events.EventPayload{"from": prev, "to": newLeadID}, nil
	})
}
