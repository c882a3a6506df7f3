package domain

// Container kinds.
const (
	KindProject = "project"
	KindSprint  = "sprint"
)

// Container statuses. Projects end in archived, sprints in closed.
const (
	ContainerActive    = "active"
	ContainerCompleted = "completed"
	ContainerArchived  = "archived"
	ContainerClosed    = "closed"
)

// Work item statuses.
const (
	StatusPending    = "pending"
	StatusInProgress = "in-progress"
	StatusInReview   = "in-review"
	StatusDone       = "done"
)

// Health levels, from best to worst.
const (
	HealthHealthy  = "healthy"
	HealthAtRisk   = "at-risk"
	HealthDelayed  = "delayed"
	HealthCritical = "critical"
)

// Member roles.
const (
	RoleLead   = "lead"
	RoleMember = "member"
)

// Container is the aggregate: a project or sprint with its members, work
// items and chat, persisted as one document.
type Container struct {
	ID          string `json:"id"`
	Number      string `json:"number"`
	Kind        string `json:"kind" enum:"project,sprint"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Department  string `json:"department"`

	Status string `json:"status" enum:"active,completed,archived,closed"`
	Health string `json:"health" enum:"healthy,at-risk,delayed,critical"`

	Members   []Member      `json:"members"`
	WorkItems []WorkItem    `json:"work_items"`
	Chat      []ChatMessage `json:"chat"`

	StartDate string `json:"start_date" format:"date-time"`
	// TargetEndDate is optional for projects; EndDate is the sprint timebox.
	TargetEndDate *string `json:"target_end_date,omitempty" format:"date-time"`
	EndDate       *string `json:"end_date,omitempty" format:"date-time"`

	CreatedBy     string `json:"created_by"`
	CreatedByName string `json:"created_by_name"`
	CreatedAt     string `json:"created_at" format:"date-time"`
	UpdatedAt     string `json:"updated_at" format:"date-time"`

	// Version is the optimistic-concurrency token, bumped on every save.
	Version int64 `json:"version"`
}

// Member is a membership record. Removal is soft: LeftAt is set, the record
// stays so chat and comment attribution survives.
type Member struct {
	UserID   string  `json:"user_id"`
	Name     string  `json:"name"`
	Role     string  `json:"role" enum:"lead,member"`
	JoinedAt string  `json:"joined_at" format:"date-time"`
	LeftAt   *string `json:"left_at,omitempty" format:"date-time"`
}

// Active reports whether the membership is current.
func (m Member) Active() bool { return m.LeftAt == nil }

// WorkItem is a deliverable (project) or action (sprint).
type WorkItem struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	AssignedTo  []string `json:"assigned_to"`
	Status      string   `json:"status" enum:"pending,in-progress,in-review,done"`
	DueDate     *string  `json:"due_date,omitempty" format:"date-time"`

	Blockers    []Blocker `json:"blockers"`
	Comments    []Comment `json:"comments"`
	Attachments []string  `json:"attachments"`

	SubmissionNote        string   `json:"submission_note,omitempty"`
	SubmissionAttachments []string `json:"submission_attachments,omitempty"`
	SubmittedBy           *string  `json:"submitted_by,omitempty"`
	SubmittedAt           *string  `json:"submitted_at,omitempty" format:"date-time"`

	CreatedBy string `json:"created_by"`
	CreatedAt string `json:"created_at" format:"date-time"`
	UpdatedAt string `json:"updated_at" format:"date-time"`
}

// Assigned reports whether userID is an assignee of the work item.
func (w WorkItem) Assigned(userID string) bool {
	for _, id := range w.AssignedTo {
		if id == userID {
			return true
		}
	}
	return false
}

// UnresolvedBlockers counts blockers still open on the work item.
func (w WorkItem) UnresolvedBlockers() int {
	n := 0
	for _, b := range w.Blockers {
		if !b.IsResolved {
			n++
		}
	}
	return n
}

// Blocker is a reported impediment. It never changes the work item status.
type Blocker struct {
	Description string   `json:"description"`
	ReportedBy  string   `json:"reported_by"`
	ReportedAt  string   `json:"reported_at" format:"date-time"`
	IsResolved  bool     `json:"is_resolved"`
	ResolvedAt  *string  `json:"resolved_at,omitempty" format:"date-time"`
	Attachments []string `json:"attachments"`
}

// ChatMessage is an append-only container-level message.
type ChatMessage struct {
	UserID      string   `json:"user_id"`
	UserName    string   `json:"user_name"`
	Message     string   `json:"message"`
	Timestamp   string   `json:"timestamp" format:"date-time"`
	Attachments []string `json:"attachments,omitempty"`
}

// Comment is an append-only work-item-level message.
type Comment struct {
	UserID    string `json:"user_id"`
	UserName  string `json:"user_name"`
	Message   string `json:"message"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// Person is a department roster entry, the candidate pool for memberships.
type Person struct {
	UserID     string `json:"user_id"`
	Name       string `json:"name"`
	Department string `json:"department"`
	Title      string `json:"title,omitempty"`
	Active     bool   `json:"active"`
	CreatedAt  string `json:"created_at" format:"date-time"`
}

// Event is one row of the append-only change log.
type Event struct {
	ID          int64  `json:"id"`
	TS          string `json:"ts" format:"date-time"`
	Type        string `json:"type"`
	ContainerID string `json:"container_id"`
	WorkItemID  string `json:"work_item_id,omitempty"`
	ActorID     string `json:"actor_id"`
	Payload     string `json:"payload_json"`
}

// ActiveMember returns the current membership record for userID, if any.
func (c *Container) ActiveMember(userID string) *Member {
	for i := range c.Members {
		if c.Members[i].UserID == userID && c.Members[i].Active() {
			return &c.Members[i]
		}
	}
	return nil
}

// ActiveLeads returns the userIDs of all active leads.
func (c *Container) ActiveLeads() []string {
	var leads []string
	for _, m := range c.Members {
		if m.Active() && m.Role == RoleLead {
			leads = append(leads, m.UserID)
		}
	}
	return leads
}

// WorkItemByID returns the work item with the given id, or nil.
func (c *Container) WorkItemByID(id string) *WorkItem {
	for i := range c.WorkItems {
		if c.WorkItems[i].ID == id {
			return &c.WorkItems[i]
		}
	}
	return nil
}

// PendingCount counts work items not yet done; list views filter on it.
func (c *Container) PendingCount() int {
	n := 0
	for _, w := range c.WorkItems {
		if w.Status != StatusDone {
			n++
		}
	}
	return n
}

// Terminal reports whether the container status accepts no further mutations.
func (c *Container) Terminal() bool {
	return c.Status == ContainerArchived || c.Status == ContainerClosed
}
