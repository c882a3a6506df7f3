package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"trackline/internal/blobstore"
	"trackline/internal/config"
	"trackline/internal/db"
	"trackline/internal/domain"
	"trackline/internal/engine"
	"trackline/internal/migrate"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
	Lead   engine.Actor
	Member engine.Actor
	Head   engine.Actor
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	blobs, err := blobstore.NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("blobstore: %v", err)
	}
	eng := engine.New(conn, config.Default(), blobs)
	eng.Now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	for _, p := range []domain.Person{
		{UserID: "alice", Name: "Alice", Department: "engineering", Active: true},
		{UserID: "bob", Name: "Bob", Department: "engineering", Active: true},
		{UserID: "carol", Name: "Carol", Department: "engineering", Active: true},
	} {
		if err := eng.Repo.UpsertPerson(ctx, p); err != nil {
			t.Fatalf("seed roster: %v", err)
		}
	}
	return testEnv{
		Engine: eng,
		Ctx:    ctx,
		Lead:   engine.Actor{UserID: "alice", Name: "Alice", Department: "engineering"},
		Member: engine.Actor{UserID: "bob", Name: "Bob", Department: "engineering"},
		Head:   engine.Actor{UserID: "dana", Name: "Dana", Department: "engineering", DepartmentHead: true},
	}
}

func (env testEnv) createProject(t *testing.T) domain.Container {
	t.Helper()
	c, err := env.Engine.CreateContainer(env.Ctx, engine.CreateContainerOptions{
		Kind:       domain.KindProject,
		Title:      "Payments revamp",
		Department: "engineering",
		Members: []engine.MemberInput{
			{UserID: "alice", Role: domain.RoleLead},
			{UserID: "bob", Role: domain.RoleMember},
		},
		Actor: env.Lead,
	})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	return c
}

func (env testEnv) createWorkItem(t *testing.T, containerID string, assignees ...string) domain.WorkItem {
	t.Helper()
	c, err := env.Engine.CreateWorkItem(env.Ctx, engine.CreateWorkItemOptions{
		ContainerID: containerID,
		Title:       "Ship the thing",
		AssignedTo:  assignees,
		Actor:       env.Lead,
	})
	if err != nil {
		t.Fatalf("create work item: %v", err)
	}
	return c.WorkItems[len(c.WorkItems)-1]
}

func (env testEnv) apply(t *testing.T, req engine.ActionRequest) domain.Container {
	t.Helper()
	c, err := env.Engine.Apply(env.Ctx, req)
	if err != nil {
		t.Fatalf("apply %s: %v", req.Action, err)
	}
	return c
}

func TestContainerCreation(t *testing.T) {
	env := newTestEnv(t)
	c := env.createProject(t)
	if c.Number != "PRJ-0001" {
		t.Fatalf("expected PRJ-0001, got %s", c.Number)
	}
	if c.Status != domain.ContainerActive || c.Health != domain.HealthHealthy {
		t.Fatalf("unexpected status/health: %s/%s", c.Status, c.Health)
	}
	if c.Version != 1 {
		t.Fatalf("expected version 1, got %d", c.Version)
	}
	c2 := env.createProject(t)
	if c2.Number != "PRJ-0002" {
		t.Fatalf("expected PRJ-0002, got %s", c2.Number)
	}

	end := "2026-03-15T00:00:00Z"
	s, err := env.Engine.CreateContainer(env.Ctx, engine.CreateContainerOptions{
		Kind:       domain.KindSprint,
		Title:      "Sprint 12",
		Department: "engineering",
		EndDate:    end,
		Members:    []engine.MemberInput{{UserID: "alice", Role: domain.RoleLead}},
		Actor:      env.Lead,
	})
	if err != nil {
		t.Fatalf("create sprint: %v", err)
	}
	if s.Number != "SPR-0001" {
		t.Fatalf("sprint numbering independent of projects, got %s", s.Number)
	}
}

func TestContainerCreationValidation(t *testing.T) {
	env := newTestEnv(t)

	// sprint without end date
	_, err := env.Engine.CreateContainer(env.Ctx, engine.CreateContainerOptions{
		Kind: domain.KindSprint, Title: "s", Department: "engineering",
		Members: []engine.MemberInput{{UserID: "alice", Role: domain.RoleLead}},
		Actor:   env.Lead,
	})
	var ve domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}

	// zero leads
	_, err = env.Engine.CreateContainer(env.Ctx, engine.CreateContainerOptions{
		Kind: domain.KindProject, Title: "p", Department: "engineering",
		Members: []engine.MemberInput{{UserID: "alice", Role: domain.RoleMember}},
		Actor:   env.Lead,
	})
	if !errors.As(err, &ve) {
		t.Fatalf("expected exactly-one-lead rejection, got %v", err)
	}

	// member not on the department roster
	_, err = env.Engine.CreateContainer(env.Ctx, engine.CreateContainerOptions{
		Kind: domain.KindProject, Title: "p", Department: "engineering",
		Members: []engine.MemberInput{{UserID: "mallory", Role: domain.RoleLead}},
		Actor:   env.Lead,
	})
	if err == nil {
		t.Fatalf("expected roster rejection")
	}
}

// Scenario: contributor walks the forward path, owner approves.
func TestDeliveryPath(t *testing.T) {
	env := newTestEnv(t)
	c := env.createProject(t)
	w := env.createWorkItem(t, c.ID, "bob")
	if w.Status != domain.StatusPending {
		t.Fatalf("new work item should be pending, got %s", w.Status)
	}

	c = env.apply(t, engine.ActionRequest{ContainerID: c.ID, WorkItemID: w.ID, Action: engine.ActionStartWork, Actor: env.Member})
	if got := c.WorkItemByID(w.ID).Status; got != domain.StatusInProgress {
		t.Fatalf("expected in-progress, got %s", got)
	}

	c = env.apply(t, engine.ActionRequest{ContainerID: c.ID, WorkItemID: w.ID, Action: engine.ActionSubmitForReview, Actor: env.Member, Note: "draft ready"})
	item := c.WorkItemByID(w.ID)
	if item.Status != domain.StatusInReview {
		t.Fatalf("expected in-review, got %s", item.Status)
	}
	if item.SubmittedBy == nil || *item.SubmittedBy != "bob" {
		t.Fatalf("expected submitted_by bob")
	}

	c = env.apply(t, engine.ActionRequest{ContainerID: c.ID, WorkItemID: w.ID, Action: engine.ActionChangeStatus, Actor: env.Lead, NewStatus: domain.StatusDone})
	item = c.WorkItemByID(w.ID)
	if item.Status != domain.StatusDone {
		t.Fatalf("expected done, got %s", item.Status)
	}
	if item.SubmissionNote != "draft ready" {
		t.Fatalf("submission note must survive approval, got %q", item.SubmissionNote)
	}
}

func TestStatusTransitionEdges(t *testing.T) {
	env := newTestEnv(t)
	c := env.createProject(t)
	w := env.createWorkItem(t, c.ID, "bob")

	// skipping pending -> in-review via contributor action
	_, err := env.Engine.Apply(env.Ctx, engine.ActionRequest{ContainerID: c.ID, WorkItemID: w.ID, Action: engine.ActionSubmitForReview, Actor: env.Member, Note: "too soon"})
	var te domain.InvalidTransitionError
	if !errors.As(err, &te) {
		t.Fatalf("expected transition error, got %v", err)
	}

	// non-assignee cannot start work
	_, err = env.Engine.Apply(env.Ctx, engine.ActionRequest{ContainerID: c.ID, WorkItemID: w.ID, Action: engine.ActionStartWork, Actor: env.Lead})
	var ae domain.AuthorizationError
	if !errors.As(err, &ae) {
		t.Fatalf("expected authorization error, got %v", err)
	}

	// member cannot use the owner override
	_, err = env.Engine.Apply(env.Ctx, engine.ActionRequest{ContainerID: c.ID, WorkItemID: w.ID, Action: engine.ActionChangeStatus, Actor: env.Member, NewStatus: domain.StatusDone})
	if !errors.As(err, &ae) {
		t.Fatalf("expected authorization error, got %v", err)
	}

	// owner override lands on a defined state only
	_, err = env.Engine.Apply(env.Ctx, engine.ActionRequest{ContainerID: c.ID, WorkItemID: w.ID, Action: engine.ActionChangeStatus, Actor: env.Lead, NewStatus: "finished"})
	var ve domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error for unknown status, got %v", err)
	}

	// owner may jump straight to done, then change-status away from done is refused
	c = env.apply(t, engine.ActionRequest{ContainerID: c.ID, WorkItemID: w.ID, Action: engine.ActionChangeStatus, Actor: env.Lead, NewStatus: domain.StatusDone})
	_, err = env.Engine.Apply(env.Ctx, engine.ActionRequest{ContainerID: c.ID, WorkItemID: w.ID, Action: engine.ActionChangeStatus, Actor: env.Lead, NewStatus: domain.StatusInReview})
	if !errors.As(err, &te) {
		t.Fatalf("expected transition error from done, got %v", err)
	}

	// reopen is the only way back
	c = env.apply(t, engine.ActionRequest{ContainerID: c.ID, WorkItemID: w.ID, Action: engine.ActionReopen, Actor: env.Lead})
	if got := c.WorkItemByID(w.ID).Status; got != domain.StatusInProgress {
		t.Fatalf("reopen should land on in-progress, got %s", got)
	}
}

func TestSubmitRequiresNote(t *testing.T) {
	env := newTestEnv(t)
	c := env.createProject(t)
	w := env.createWorkItem(t, c.ID, "bob")
	env.apply(t, engine.ActionRequest{ContainerID: c.ID, WorkItemID: w.ID, Action: engine.ActionStartWork, Actor: env.Member})

	for _, note := range []string{"", "   ", "\t\n"} {
		_, err := env.Engine.Apply(env.Ctx, engine.ActionRequest{ContainerID: c.ID, WorkItemID: w.ID, Action: engine.ActionSubmitForReview, Actor: env.Member, Note: note})
		var ve domain.ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("note %q: expected validation error, got %v", note, err)
		}
	}
	got, err := env.Engine.GetContainer(env.Ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.WorkItemByID(w.ID).Status != domain.StatusInProgress {
		t.Fatalf("rejected submission must not change status")
	}
}

// Scenario: blocker reported, health degrades, resolution restores it.
func TestBlockerLifecycle(t *testing.T) {
	env := newTestEnv(t)
	c := env.createProject(t)
	w := env.createWorkItem(t, c.ID, "bob")
	env.apply(t, engine.ActionRequest{ContainerID: c.ID, WorkItemID: w.ID, Action: engine.ActionStartWork, Actor: env.Member})

	c = env.apply(t, engine.ActionRequest{ContainerID: c.ID, WorkItemID: w.ID, Action: engine.ActionReportBlocker, Actor: env.Member, Description: "waiting on API access"})
	item := c.WorkItemByID(w.ID)
	if len(item.Blockers) != 1 || item.Blockers[0].IsResolved {
		t.Fatalf("expected one unresolved blocker")
	}
	if item.Status != domain.StatusInProgress {
		t.Fatalf("report-blocker must not change status, got %s", item.Status)
	}
	if c.Health == domain.HealthHealthy {
		t.Fatalf("container with an unresolved blocker cannot be healthy")
	}

	// member cannot resolve, owner can
	idx := 0
	_, err := env.Engine.Apply(env.Ctx, engine.ActionRequest{ContainerID: c.ID, WorkItemID: w.ID, Action: engine.ActionResolveBlocker, Actor: env.Member, BlockerIndex: &idx})
	var ae domain.AuthorizationError
	if !errors.As(err, &ae) {
		t.Fatalf("expected authorization error, got %v", err)
	}
	c = env.apply(t, engine.ActionRequest{ContainerID: c.ID, WorkItemID: w.ID, Action: engine.ActionResolveBlocker, Actor: env.Lead, BlockerIndex: &idx})
	if !c.WorkItemByID(w.ID).Blockers[0].IsResolved {
		t.Fatalf("expected blocker resolved")
	}
	if c.Health != domain.HealthHealthy {
		t.Fatalf("expected healthy after resolution, got %s", c.Health)
	}
}

func TestResolveBlockerIdempotent(t *testing.T) {
	env := newTestEnv(t)
	c := env.createProject(t)
	w := env.createWorkItem(t, c.ID, "bob")
	env.apply(t, engine.ActionRequest{ContainerID: c.ID, WorkItemID: w.ID, Action: engine.ActionStartWork, Actor: env.Member})
	env.apply(t, engine.ActionRequest{ContainerID: c.ID, WorkItemID: w.ID, Action: engine.ActionReportBlocker, Actor: env.Member, Description: "stuck"})

	idx := 0
	first := env.apply(t, engine.ActionRequest{ContainerID: c.ID, WorkItemID: w.ID, Action: engine.ActionResolveBlocker, Actor: env.Lead, BlockerIndex: &idx})
	second := env.apply(t, engine.ActionRequest{ContainerID: c.ID, WorkItemID: w.ID, Action: engine.ActionResolveBlocker, Actor: env.Lead, BlockerIndex: &idx})
	if second.Version != first.Version {
		t.Fatalf("second resolve must be a no-op, version %d -> %d", first.Version, second.Version)
	}
	if n := second.WorkItemByID(w.ID).UnresolvedBlockers(); n != 0 {
		t.Fatalf("expected zero unresolved blockers, got %d", n)
	}

	missing := 5
	_, err := env.Engine.Apply(env.Ctx, engine.ActionRequest{ContainerID: c.ID, WorkItemID: w.ID, Action: engine.ActionResolveBlocker, Actor: env.Lead, BlockerIndex: &missing})
	var nf domain.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected not found for out-of-range index, got %v", err)
	}
}

func TestMembershipRules(t *testing.T) {
	env := newTestEnv(t)
	c := env.createProject(t)

	// duplicate active membership rejected, list unchanged
	_, err := env.Engine.Apply(env.Ctx, engine.ActionRequest{ContainerID: c.ID, Action: engine.ActionAddMember, Actor: env.Lead, Member: &engine.MemberInput{UserID: "bob"}})
	var ce domain.ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("expected conflict error, got %v", err)
	}
	got, _ := env.Engine.GetContainer(env.Ctx, c.ID)
	if len(got.Members) != 2 {
		t.Fatalf("member list must be unchanged, got %d", len(got.Members))
	}

	// removing the sole active lead rejected
	_, err = env.Engine.Apply(env.Ctx, engine.ActionRequest{ContainerID: c.ID, Action: engine.ActionRemoveMember, Actor: env.Head, MemberID: "alice"})
	var ve domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
	got, _ = env.Engine.GetContainer(env.Ctx, c.ID)
	if len(got.ActiveLeads()) != 1 || got.ActiveLeads()[0] != "alice" {
		t.Fatalf("lead must be unchanged")
	}

	// soft removal keeps the record
	c = env.apply(t, engine.ActionRequest{ContainerID: c.ID, Action: engine.ActionRemoveMember, Actor: env.Lead, MemberID: "bob"})
	if c.ActiveMember("bob") != nil {
		t.Fatalf("bob should no longer be active")
	}
	if len(c.Members) != 2 {
		t.Fatalf("removal is soft, record must stay")
	}

	// rejoining creates a fresh membership
	c = env.apply(t, engine.ActionRequest{ContainerID: c.ID, Action: engine.ActionAddMember, Actor: env.Lead, Member: &engine.MemberInput{UserID: "bob"}})
	if c.ActiveMember("bob") == nil {
		t.Fatalf("bob should be active again")
	}
	if len(c.Members) != 3 {
		t.Fatalf("rejoin appends a new record, got %d", len(c.Members))
	}

	// only owners manage membership
	_, err = env.Engine.Apply(env.Ctx, engine.ActionRequest{ContainerID: c.ID, Action: engine.ActionAddMember, Actor: env.Member, Member: &engine.MemberInput{UserID: "carol"}})
	var ae domain.AuthorizationError
	if !errors.As(err, &ae) {
		t.Fatalf("expected authorization error, got %v", err)
	}
}

func TestWorkItemAssignment(t *testing.T) {
	env := newTestEnv(t)
	c := env.createProject(t)
	w := env.createWorkItem(t, c.ID, "bob")

	// assigning a non-member is rejected
	_, err := env.Engine.Apply(env.Ctx, engine.ActionRequest{ContainerID: c.ID, WorkItemID: w.ID, Action: engine.ActionAddMember, Actor: env.Lead, MemberID: "carol"})
	var ve domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}

	env.apply(t, engine.ActionRequest{ContainerID: c.ID, Action: engine.ActionAddMember, Actor: env.Lead, Member: &engine.MemberInput{UserID: "carol"}})
	c = env.apply(t, engine.ActionRequest{ContainerID: c.ID, WorkItemID: w.ID, Action: engine.ActionAddMember, Actor: env.Lead, MemberID: "carol"})
	if !c.WorkItemByID(w.ID).Assigned("carol") {
		t.Fatalf("expected carol assigned")
	}

	// double assignment conflicts
	_, err = env.Engine.Apply(env.Ctx, engine.ActionRequest{ContainerID: c.ID, WorkItemID: w.ID, Action: engine.ActionAddMember, Actor: env.Lead, MemberID: "carol"})
	var ce domain.ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("expected conflict error, got %v", err)
	}

	// unassignment may empty the list
	c = env.apply(t, engine.ActionRequest{ContainerID: c.ID, WorkItemID: w.ID, Action: engine.ActionRemoveMember, Actor: env.Lead, MemberID: "carol"})
	c = env.apply(t, engine.ActionRequest{ContainerID: c.ID, WorkItemID: w.ID, Action: engine.ActionRemoveMember, Actor: env.Lead, MemberID: "bob"})
	if n := len(c.WorkItemByID(w.ID).AssignedTo); n != 0 {
		t.Fatalf("expected no assignees, got %d", n)
	}
	_, err = env.Engine.Apply(env.Ctx, engine.ActionRequest{ContainerID: c.ID, WorkItemID: w.ID, Action: engine.ActionRemoveMember, Actor: env.Lead, MemberID: "bob"})
	var nf domain.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRemovedMemberKeepsAssignments(t *testing.T) {
	env := newTestEnv(t)
	c := env.createProject(t)
	w := env.createWorkItem(t, c.ID, "bob")
	c = env.apply(t, engine.ActionRequest{ContainerID: c.ID, Action: engine.ActionRemoveMember, Actor: env.Lead, MemberID: "bob"})
	if !c.WorkItemByID(w.ID).Assigned("bob") {
		t.Fatalf("membership removal must not clean up work item assignments")
	}
	// but the removed member can no longer act
	_, err := env.Engine.Apply(env.Ctx, engine.ActionRequest{ContainerID: c.ID, WorkItemID: w.ID, Action: engine.ActionStartWork, Actor: env.Member})
	var ae domain.AuthorizationError
	if !errors.As(err, &ae) {
		t.Fatalf("expected authorization error, got %v", err)
	}
}

func TestLeadReassignment(t *testing.T) {
	env := newTestEnv(t)
	c := env.createProject(t)
	c, err := env.Engine.ReassignLead(env.Ctx, c.ID, "bob", 0, env.Head)
	if err != nil {
		t.Fatalf("reassign: %v", err)
	}
	leads := c.ActiveLeads()
	if len(leads) != 1 || leads[0] != "bob" {
		t.Fatalf("expected bob as the single lead, got %v", leads)
	}
	if c.ActiveMember("alice").Role != domain.RoleMember {
		t.Fatalf("expected alice demoted")
	}
}

func TestContainerLifecycle(t *testing.T) {
	env := newTestEnv(t)
	c := env.createProject(t)

	c, err := env.Engine.SetContainerStatus(env.Ctx, c.ID, domain.ContainerCompleted, 0, env.Lead)
	if err != nil || c.Status != domain.ContainerCompleted {
		t.Fatalf("to completed: %v", err)
	}
	c, err = env.Engine.SetContainerStatus(env.Ctx, c.ID, domain.ContainerActive, 0, env.Lead)
	if err != nil || c.Status != domain.ContainerActive {
		t.Fatalf("back to active: %v", err)
	}

	// a sprint terminal state on a project is rejected
	_, err = env.Engine.SetContainerStatus(env.Ctx, c.ID, domain.ContainerClosed, 0, env.Lead)
	var ve domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}

	c, err = env.Engine.SetContainerStatus(env.Ctx, c.ID, domain.ContainerArchived, 0, env.Lead)
	if err != nil || c.Status != domain.ContainerArchived {
		t.Fatalf("to archived: %v", err)
	}

	// archived accepts no further mutations
	_, err = env.Engine.Apply(env.Ctx, engine.ActionRequest{ContainerID: c.ID, Action: engine.ActionAddChatMessage, Actor: env.Lead, Message: "hi"})
	if err == nil {
		t.Fatalf("expected mutation on archived container to fail")
	}
	_, err = env.Engine.SetContainerStatus(env.Ctx, c.ID, domain.ContainerActive, 0, env.Lead)
	var te domain.InvalidTransitionError
	if !errors.As(err, &te) {
		t.Fatalf("expected transition error out of archived, got %v", err)
	}
}

func TestVersionConflict(t *testing.T) {
	env := newTestEnv(t)
	c := env.createProject(t)
	// first writer wins
	env.apply(t, engine.ActionRequest{ContainerID: c.ID, Action: engine.ActionAddChatMessage, Actor: env.Lead, Message: "first", ExpectedVersion: c.Version})
	// second writer still holds the stale version
	_, err := env.Engine.Apply(env.Ctx, engine.ActionRequest{ContainerID: c.ID, Action: engine.ActionAddChatMessage, Actor: env.Member, Message: "second", ExpectedVersion: c.Version})
	var ce domain.ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("expected conflict error, got %v", err)
	}
}

func TestChatAndComments(t *testing.T) {
	env := newTestEnv(t)
	c := env.createProject(t)
	w := env.createWorkItem(t, c.ID, "bob")

	c = env.apply(t, engine.ActionRequest{ContainerID: c.ID, Action: engine.ActionAddChatMessage, Actor: env.Member, Message: "standup at 10"})
	if len(c.Chat) != 1 || c.Chat[0].UserID != "bob" {
		t.Fatalf("expected one chat message from bob")
	}

	c = env.apply(t, engine.ActionRequest{ContainerID: c.ID, WorkItemID: w.ID, Action: engine.ActionAddComment, Actor: env.Head, Message: "looks good"})
	comments := c.WorkItemByID(w.ID).Comments
	if len(comments) != 1 || comments[0].UserID != "dana" {
		t.Fatalf("expected department head comment")
	}

	// non-members cannot chat
	outsider := engine.Actor{UserID: "carol", Name: "Carol", Department: "engineering"}
	_, err := env.Engine.Apply(env.Ctx, engine.ActionRequest{ContainerID: c.ID, Action: engine.ActionAddChatMessage, Actor: outsider, Message: "hello"})
	var ae domain.AuthorizationError
	if !errors.As(err, &ae) {
		t.Fatalf("expected authorization error, got %v", err)
	}
}

func TestChatAttachments(t *testing.T) {
	env := newTestEnv(t)
	c := env.createProject(t)
	c = env.apply(t, engine.ActionRequest{
		ContainerID: c.ID,
		Action:      engine.ActionAddChatMessage,
		Actor:       env.Lead,
		Files:       []blobstore.Upload{{Name: "spec.pdf", Type: "application/pdf", Data: []byte("pdf bytes")}},
	})
	if len(c.Chat) != 1 || len(c.Chat[0].Attachments) != 1 {
		t.Fatalf("expected one chat message with one attachment")
	}
	data, err := env.Engine.Blobs.Get(env.Ctx, c.Chat[0].Attachments[0])
	if err != nil {
		t.Fatalf("fetch attachment: %v", err)
	}
	if string(data) != "pdf bytes" {
		t.Fatalf("attachment round trip failed")
	}
}

func TestDeadlineUpdates(t *testing.T) {
	env := newTestEnv(t)
	c := env.createProject(t)
	w := env.createWorkItem(t, c.ID, "bob")

	_, err := env.Engine.Apply(env.Ctx, engine.ActionRequest{ContainerID: c.ID, WorkItemID: w.ID, Action: engine.ActionUpdateDeadline, Actor: env.Member, NewDueDate: "2026-03-10T00:00:00Z"})
	var ae domain.AuthorizationError
	if !errors.As(err, &ae) {
		t.Fatalf("expected authorization error, got %v", err)
	}

	c = env.apply(t, engine.ActionRequest{ContainerID: c.ID, WorkItemID: w.ID, Action: engine.ActionUpdateDeadline, Actor: env.Lead, NewDueDate: "2026-03-10T00:00:00Z"})
	if c.WorkItemByID(w.ID).DueDate == nil {
		t.Fatalf("expected due date set")
	}
	c = env.apply(t, engine.ActionRequest{ContainerID: c.ID, WorkItemID: w.ID, Action: engine.ActionUpdateDeadline, Actor: env.Lead})
	if c.WorkItemByID(w.ID).DueDate != nil {
		t.Fatalf("empty due date clears the deadline")
	}
}

func TestHealthRecomputedOnOverdue(t *testing.T) {
	env := newTestEnv(t)
	c := env.createProject(t)
	w := env.createWorkItem(t, c.ID, "bob")
	c = env.apply(t, engine.ActionRequest{ContainerID: c.ID, WorkItemID: w.ID, Action: engine.ActionUpdateDeadline, Actor: env.Lead, NewDueDate: "2026-03-02T00:00:00Z"})
	if c.Health != domain.HealthHealthy {
		t.Fatalf("not yet overdue, expected healthy, got %s", c.Health)
	}

	// move the clock past the due date but within grace
	env.Engine.Now = func() time.Time { return time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC) }
	c = env.apply(t, engine.ActionRequest{ContainerID: c.ID, Action: engine.ActionAddChatMessage, Actor: env.Lead, Message: "checking in"})
	if c.Health != domain.HealthAtRisk {
		t.Fatalf("overdue within grace, expected at-risk, got %s", c.Health)
	}

	// and past the grace window
	env.Engine.Now = func() time.Time { return time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC) }
	c = env.apply(t, engine.ActionRequest{ContainerID: c.ID, Action: engine.ActionAddChatMessage, Actor: env.Lead, Message: "still waiting"})
	if c.Health != domain.HealthCritical {
		t.Fatalf("overdue past grace, expected critical, got %s", c.Health)
	}

	// finishing the item restores health
	env.apply(t, engine.ActionRequest{ContainerID: c.ID, WorkItemID: w.ID, Action: engine.ActionStartWork, Actor: env.Member})
	c = env.apply(t, engine.ActionRequest{ContainerID: c.ID, WorkItemID: w.ID, Action: engine.ActionChangeStatus, Actor: env.Lead, NewStatus: domain.StatusDone})
	if c.Health != domain.HealthHealthy {
		t.Fatalf("nothing outstanding, expected healthy, got %s", c.Health)
	}
}

func TestContainerDeadlinePassedIsDelayed(t *testing.T) {
	env := newTestEnv(t)
	c, err := env.Engine.CreateContainer(env.Ctx, engine.CreateContainerOptions{
		Kind:          domain.KindProject,
		Title:         "Payments revamp",
		Department:    "engineering",
		TargetEndDate: "2026-03-04T00:00:00Z",
		Members: []engine.MemberInput{
			{UserID: "alice", Role: domain.RoleLead},
			{UserID: "bob", Role: domain.RoleMember},
		},
		Actor: env.Lead,
	})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	w := env.createWorkItem(t, c.ID, "bob")

	env.Engine.Now = func() time.Time { return time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC) }
	c = env.apply(t, engine.ActionRequest{ContainerID: c.ID, Action: engine.ActionAddChatMessage, Actor: env.Lead, Message: "past the target"})
	if c.Health != domain.HealthDelayed {
		t.Fatalf("target end date passed with pending work, expected delayed, got %s", c.Health)
	}

	c = env.apply(t, engine.ActionRequest{ContainerID: c.ID, WorkItemID: w.ID, Action: engine.ActionChangeStatus, Actor: env.Lead, NewStatus: domain.StatusDone})
	if c.Health != domain.HealthHealthy {
		t.Fatalf("no pending work left, expected healthy, got %s", c.Health)
	}
}

func TestResubmissionReplacesNoteAndAttachments(t *testing.T) {
	env := newTestEnv(t)
	c := env.createProject(t)
	w := env.createWorkItem(t, c.ID, "bob")

	env.apply(t, engine.ActionRequest{ContainerID: c.ID, WorkItemID: w.ID, Action: engine.ActionStartWork, Actor: env.Member})
	c = env.apply(t, engine.ActionRequest{
		ContainerID: c.ID, WorkItemID: w.ID, Action: engine.ActionSubmitForReview, Actor: env.Member,
		Note:  "first pass",
		Files: []blobstore.Upload{{Name: "report-v1.pdf", Type: "application/pdf", Data: []byte("v1")}},
	})
	got := c.WorkItemByID(w.ID)
	if got.SubmissionNote != "first pass" || len(got.SubmissionAttachments) != 1 {
		t.Fatalf("first submission not recorded: note=%q attachments=%d", got.SubmissionNote, len(got.SubmissionAttachments))
	}
	firstRef := got.SubmissionAttachments[0]

	// note and attachments survive the review verdict and the reopen
	c = env.apply(t, engine.ActionRequest{ContainerID: c.ID, WorkItemID: w.ID, Action: engine.ActionChangeStatus, Actor: env.Lead, NewStatus: domain.StatusDone})
	c = env.apply(t, engine.ActionRequest{ContainerID: c.ID, WorkItemID: w.ID, Action: engine.ActionReopen, Actor: env.Lead})
	got = c.WorkItemByID(w.ID)
	if got.SubmissionNote != "first pass" || len(got.SubmissionAttachments) != 1 {
		t.Fatalf("submission record should survive reopen, got note=%q attachments=%d", got.SubmissionNote, len(got.SubmissionAttachments))
	}

	c = env.apply(t, engine.ActionRequest{
		ContainerID: c.ID, WorkItemID: w.ID, Action: engine.ActionSubmitForReview, Actor: env.Member,
		Note:  "second pass",
		Files: []blobstore.Upload{{Name: "report-v2.pdf", Type: "application/pdf", Data: []byte("v2")}},
	})
	got = c.WorkItemByID(w.ID)
	if got.Status != domain.StatusInReview {
		t.Fatalf("expected in-review after resubmission, got %s", got.Status)
	}
	if got.SubmissionNote != "second pass" {
		t.Fatalf("resubmission should replace the note, got %q", got.SubmissionNote)
	}
	if len(got.SubmissionAttachments) != 1 || got.SubmissionAttachments[0] == firstRef {
		t.Fatalf("resubmission should replace attachments, got %v", got.SubmissionAttachments)
	}
	if got.SubmittedBy == nil || *got.SubmittedBy != "bob" {
		t.Fatalf("expected submitted_by bob, got %v", got.SubmittedBy)
	}
}

func TestEventLog(t *testing.T) {
	env := newTestEnv(t)
	c := env.createProject(t)
	w := env.createWorkItem(t, c.ID, "bob")
	env.apply(t, engine.ActionRequest{ContainerID: c.ID, WorkItemID: w.ID, Action: engine.ActionStartWork, Actor: env.Member})
	env.apply(t, engine.ActionRequest{ContainerID: c.ID, Action: engine.ActionAddChatMessage, Actor: env.Lead, Message: "kickoff"})

	events, err := env.Engine.Repo.EventsAfter(env.Ctx, c.ID, 0, 50)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(events))
	}
	if events[0].Type != "container.created" {
		t.Fatalf("first event should be container.created, got %s", events[0].Type)
	}
	for _, evt := range events {
		if evt.ContainerID != c.ID || evt.ActorID == "" {
			t.Fatalf("event missing attribution: %+v", evt)
		}
	}
}
