package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"trackline/internal/blobstore"
	"trackline/internal/config"
	"trackline/internal/domain"
	"trackline/internal/events"
	"trackline/internal/health"
	"trackline/internal/repo"
)

// Engine owns containers: it is the single mutation entry point. Every write
// loads the container document, applies one change, recomputes health and
// saves the whole document under the optimistic version check, appending an
// event row in the same transaction.
type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Blobs  blobstore.Store
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config, blobs blobstore.Store) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Blobs:  blobs,
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) thresholds() health.Thresholds {
	if e.Config != nil {
		return e.Config.Thresholds()
	}
	return health.Default()
}

// Actor identifies the caller from the server-issued session. Role decisions
// are never taken from the request body.
type Actor struct {
	UserID         string
	Name           string
	Department     string
	DepartmentHead bool
}

// isOwner reports whether the actor holds owner rights on the container:
// its active lead, or a department head over the container's department.
func isOwner(c *domain.Container, actor Actor) bool {
	if actor.DepartmentHead && actor.Department == c.Department {
		return true
	}
	m := c.ActiveMember(actor.UserID)
	return m != nil && m.Role == domain.RoleLead
}

func requireOwner(c *domain.Container, actor Actor, action string) error {
	if !isOwner(c, actor) {
		return domain.AuthorizationError{Action: action, Reason: "owner (lead or department head) required"}
	}
	return nil
}

func requireActiveMember(c *domain.Container, actor Actor, action string) (*domain.Member, error) {
	if m := c.ActiveMember(actor.UserID); m != nil {
		return m, nil
	}
	if actor.DepartmentHead && actor.Department == c.Department {
		// Heads act on any container in their department.
		return &domain.Member{UserID: actor.UserID, Name: actor.Name, Role: domain.RoleLead}, nil
	}
	return nil, domain.AuthorizationError{Action: action, Reason: "active membership required"}
}

// errNoChange signals that a mutation turned out to be a no-op; the document
// is returned as loaded, without a version bump or an event.
var errNoChange = errors.New("no change")

// mutate runs one read-modify-write cycle under the version token. fn edits
// the container in place and returns the event payload.
func (e Engine) mutate(ctx context.Context, containerID string, expectedVersion int64, evtType, workItemID, actorID string, fn func(c *domain.Container) (events.EventPayload, error)) (domain.Container, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Container{}, err
	}
	defer tx.Rollback()

	c, err := e.Repo.GetContainerTx(ctx, tx, containerID)
	if err != nil {
		return domain.Container{}, err
	}
	if expectedVersion > 0 && c.Version != expectedVersion {
		return domain.Container{}, domain.ConflictError{
			Reason: fmt.Sprintf("container %s is at version %d, expected %d", c.ID, c.Version, expectedVersion),
		}
	}
	payload, err := fn(&c)
	if err != nil {
		if errors.Is(err, errNoChange) {
			return c, nil
		}
		return domain.Container{}, err
	}
	now := e.now().UTC()
	c.Health = health.Evaluate(c, now, e.thresholds())
	c.UpdatedAt = now.Format(time.RFC3339)
	saved, err := e.Repo.SaveContainer(ctx, tx, c)
	if err != nil {
		return domain.Container{}, err
	}
	if err := e.Events.Append(ctx, tx, evtType, saved.ID, workItemID, actorID, payload); err != nil {
		return domain.Container{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Container{}, err
	}
	return saved, nil
}

// MemberInput is a membership candidate on container creation or add-member.
type MemberInput struct {
	UserID string
	Name   string
	Role   string
}

// CreateContainerOptions are parameters for creating a project or sprint.
type CreateContainerOptions struct {
	Kind          string
	Title         string
	Description   string
	Department    string
	StartDate     string
	TargetEndDate string
	EndDate       string
	Members       []MemberInput
	Actor         Actor
}

// CreateContainer creates a project or sprint with its initial roster:
// at least one member, exactly one lead, everyone on the department roster.
func (e Engine) CreateContainer(ctx context.Context, opts CreateContainerOptions) (domain.Container, error) {
	if opts.Kind != domain.KindProject && opts.Kind != domain.KindSprint {
		return domain.Container{}, domain.ValidationError{Field: "kind", Reason: "must be project or sprint"}
	}
	if strings.TrimSpace(opts.Title) == "" {
		return domain.Container{}, domain.ValidationError{Field: "title", Reason: "required"}
	}
	if strings.TrimSpace(opts.Department) == "" {
		return domain.Container{}, domain.ValidationError{Field: "department", Reason: "required"}
	}
	if len(opts.Members) == 0 {
		return domain.Container{}, domain.ValidationError{Field: "members", Reason: "at least one member required"}
	}
	leads := 0
	seen := map[string]bool{}
	for _, m := range opts.Members {
		if m.Role != domain.RoleLead && m.Role != domain.RoleMember {
			return domain.Container{}, domain.ValidationError{Field: "members", Reason: fmt.Sprintf("unknown role %q for %s", m.Role, m.UserID)}
		}
		if seen[m.UserID] {
			return domain.Container{}, domain.ConflictError{Reason: fmt.Sprintf("duplicate member %s", m.UserID)}
		}
		seen[m.UserID] = true
		if m.Role == domain.RoleLead {
			leads++
		}
	}
	if leads != 1 {
		return domain.Container{}, domain.ValidationError{Field: "members", Reason: "exactly one lead required"}
	}

	now := e.now().UTC()
	nowStr := now.Format(time.RFC3339)
	start := opts.StartDate
	if start == "" {
		start = nowStr
	} else if _, err := time.Parse(time.RFC3339, start); err != nil {
		return domain.Container{}, domain.ValidationError{Field: "start_date", Reason: "must be RFC3339"}
	}

	c := domain.Container{
		ID:            uuid.New().String(),
		Kind:          opts.Kind,
		Title:         opts.Title,
		Description:   opts.Description,
		Department:    opts.Department,
		Status:        domain.ContainerActive,
		StartDate:     start,
		CreatedBy:     opts.Actor.UserID,
		CreatedByName: opts.Actor.Name,
		CreatedAt:     nowStr,
		UpdatedAt:     nowStr,
		WorkItems:     []domain.WorkItem{},
		Chat:          []domain.ChatMessage{},
	}

	switch opts.Kind {
	case domain.KindSprint:
		if opts.EndDate == "" {
			return domain.Container{}, domain.ValidationError{Field: "end_date", Reason: "required for sprints"}
		}
		end, err := time.Parse(time.RFC3339, opts.EndDate)
		if err != nil {
			return domain.Container{}, domain.ValidationError{Field: "end_date", Reason: "must be RFC3339"}
		}
		startT, _ := time.Parse(time.RFC3339, start)
		if !end.After(startT) {
			return domain.Container{}, domain.ValidationError{Field: "end_date", Reason: "must be after start_date"}
		}
		c.EndDate = &opts.EndDate
	case domain.KindProject:
		if opts.TargetEndDate != "" {
			if _, err := time.Parse(time.RFC3339, opts.TargetEndDate); err != nil {
				return domain.Container{}, domain.ValidationError{Field: "target_end_date", Reason: "must be RFC3339"}
			}
			c.TargetEndDate = &opts.TargetEndDate
		}
	}

	for _, m := range opts.Members {
		person, err := e.Repo.GetPerson(ctx, m.UserID)
		if err != nil {
			return domain.Container{}, err
		}
		if !person.Active || person.Department != opts.Department {
			return domain.Container{}, domain.ValidationError{Field: "members", Reason: fmt.Sprintf("%s is not on the %s roster", m.UserID, opts.Department)}
		}
		name := m.Name
		if name == "" {
			name = person.Name
		}
		c.Members = append(c.Members, domain.Member{
			UserID:   m.UserID,
			Name:     name,
			Role:     m.Role,
			JoinedAt: nowStr,
		})
	}

	c.Health = health.Evaluate(c, now, e.thresholds())

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Container{}, err
	}
	defer tx.Rollback()

	seq, err := e.Repo.NextNumber(ctx, tx, c.Kind)
	if err != nil {
		return domain.Container{}, err
	}
	c.Number = formatNumber(c.Kind, seq)
	c.Version = 1
	if err := e.Repo.InsertContainer(ctx, tx, c); err != nil {
		return domain.Container{}, err
	}
	if err := e.Events.Append(ctx, tx, "container.created", c.ID, "", opts.Actor.UserID, events.EventPayload{
		"kind":   c.Kind,
		"number": c.Number,
		"title":  c.Title,
	}); err != nil {
		return domain.Container{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Container{}, err
	}
	return c, nil
}

func formatNumber(kind string, seq int) string {
	prefix := "PRJ"
	if kind == domain.KindSprint {
		prefix = "SPR"
	}
	return fmt.Sprintf("%s-%04d", prefix, seq)
}

// GetContainer loads one container document.
func (e Engine) GetContainer(ctx context.Context, id string) (domain.Container, error) {
	return e.Repo.GetContainer(ctx, id)
}

// SetContainerStatus applies the owner-only lifecycle toggles. It never
// cascades into work-item statuses.
func (e Engine) SetContainerStatus(ctx context.Context, containerID, status string, expectedVersion int64, actor Actor) (domain.Container, error) {
	return e.mutate(ctx, containerID, expectedVersion, "container.status", "", actor.UserID, func(c *domain.Container) (events.EventPayload, error) {
		if err := requireOwner(c, actor, "set-status"); err != nil {
			return nil, err
		}
		if err := ensureContainerTransition(c.Kind, c.Status, status); err != nil {
			return nil, err
		}
		if status == domain.ContainerActive && len(c.ActiveLeads()) != 1 {
			return nil, domain.ValidationError{Field: "status", Reason: "an active container needs exactly one active lead"}
		}
		from := c.Status
		c.Status = status
		return events.EventPayload{"from": from, "to": status}, nil
	})
}

func ensureContainerTransition(kind, oldStatus, newStatus string) error {
	if oldStatus == newStatus {
		return domain.InvalidTransitionError{From: oldStatus, To: newStatus}
	}
	terminal := domain.ContainerArchived
	if kind == domain.KindSprint {
		terminal = domain.ContainerClosed
	}
	switch newStatus {
	case domain.ContainerCompleted:
		if oldStatus == domain.ContainerActive {
			return nil
		}
	case domain.ContainerActive:
		if oldStatus == domain.ContainerCompleted {
			return nil
		}
	case terminal:
		if oldStatus == domain.ContainerActive || oldStatus == domain.ContainerCompleted {
			return nil
		}
	case domain.ContainerArchived, domain.ContainerClosed:
		return domain.ValidationError{Field: "status", Reason: fmt.Sprintf("%s is not a %s status", newStatus, kind)}
	default:
		return domain.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", newStatus)}
	}
	return domain.InvalidTransitionError{From: oldStatus, To: newStatus}
}

// putFiles sends uploads to the attachment store and returns their refs.
// It runs before the document is touched so a storage failure leaves the
// container unchanged.
func (e Engine) putFiles(ctx context.Context, files []blobstore.Upload) ([]string, error) {
	refs := []string{}
	for _, f := range files {
		ref, err := e.Blobs.Put(ctx, f.Name, f.Type, f.Data)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}
