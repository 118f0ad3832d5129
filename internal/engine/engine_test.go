package engine_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"shelvey/internal/config"
	"shelvey/internal/db"
	"shelvey/internal/domain"
	"shelvey/internal/engine"
	"shelvey/internal/migrate"
	"shelvey/internal/reviewer"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
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
	cfg := config.Default("team-1")
	eng := engine.New(conn, cfg)
	eng.Now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	if err := eng.InitTeam(ctx, "team-1", "Test Team", cfg.Roster, "tester"); err != nil {
		t.Fatalf("init team: %v", err)
	}
	return testEnv{Engine: eng, Ctx: ctx}
}

func createDeliverable(t *testing.T, env testEnv, name string) domain.Deliverable {
	t.Helper()
	d, err := env.Engine.CreateDeliverable(env.Ctx, engine.DeliverableCreateOptions{
		TeamID:  "team-1",
		Name:    name,
		Type:    "report",
		ActorID: "tester",
	})
	if err != nil {
		t.Fatalf("create deliverable: %v", err)
	}
	return d
}

func TestApprovalRequiresBothPrincipals(t *testing.T) {
	env := newTestEnv(t)
	d := createDeliverable(t, env, "q3-report")

	res, err := env.Engine.SubmitApproval(env.Ctx, engine.ApprovalOptions{
		DeliverableID: d.ID, Approver: "ceo", Approved: true, ActorID: "ceo-1",
	})
	if err != nil {
		t.Fatalf("ceo approve: %v", err)
	}
	if res.FullyApproved || res.Deliverable.Status == domain.StatusApproved {
		t.Fatalf("single sign-off must not approve, got status %s", res.Deliverable.Status)
	}
	if !res.Deliverable.CEOApproved || res.Deliverable.UserApproved {
		t.Fatalf("unexpected flags: ceo=%v user=%v", res.Deliverable.CEOApproved, res.Deliverable.UserApproved)
	}

	res, err = env.Engine.SubmitApproval(env.Ctx, engine.ApprovalOptions{
		DeliverableID: d.ID, Approver: "user", Approved: true, ActorID: "user-1",
	})
	if err != nil {
		t.Fatalf("user approve: %v", err)
	}
	if !res.FullyApproved || res.Deliverable.Status != domain.StatusApproved {
		t.Fatalf("expected approved after both, got %s", res.Deliverable.Status)
	}
	if res.Deliverable.ApprovedAt == nil || res.Deliverable.ApprovedBy == nil {
		t.Fatalf("expected approval stamp")
	}
}

func TestApprovalOrderDoesNotMatter(t *testing.T) {
	env := newTestEnv(t)
	d := createDeliverable(t, env, "design-doc")

	if _, err := env.Engine.SubmitApproval(env.Ctx, engine.ApprovalOptions{
		DeliverableID: d.ID, Approver: "user", Approved: true, ActorID: "user-1",
	}); err != nil {
		t.Fatalf("user approve: %v", err)
	}
	res, err := env.Engine.SubmitApproval(env.Ctx, engine.ApprovalOptions{
		DeliverableID: d.ID, Approver: "ceo", Approved: true, ActorID: "ceo-1",
	})
	if err != nil {
		t.Fatalf("ceo approve: %v", err)
	}
	if !res.FullyApproved || res.Deliverable.Status != domain.StatusApproved {
		t.Fatalf("expected approved regardless of order, got %s", res.Deliverable.Status)
	}
}

func TestReapprovalIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	d := createDeliverable(t, env, "repeat")

	for i := 0; i < 2; i++ {
		res, err := env.Engine.SubmitApproval(env.Ctx, engine.ApprovalOptions{
			DeliverableID: d.ID, Approver: "ceo", Approved: true, ActorID: "ceo-1",
		})
		if err != nil {
			t.Fatalf("approve %d: %v", i, err)
		}
		if res.Deliverable.Status != domain.StatusPending || !res.Deliverable.CEOApproved {
			t.Fatalf("attempt %d: status=%s ceo=%v", i, res.Deliverable.Status, res.Deliverable.CEOApproved)
		}
	}

	var logged int
	err := env.Engine.DB.QueryRowContext(env.Ctx,
		`SELECT COUNT(*) FROM activity_log WHERE action='deliverable.approved'`).Scan(&logged)
	if err != nil {
		t.Fatalf("count activity: %v", err)
	}
	if logged != 2 {
		t.Fatalf("expected one log entry per sign-off, got %d", logged)
	}
}

func TestRejectionClearsBothFlags(t *testing.T) {
	env := newTestEnv(t)
	d := createDeliverable(t, env, "mixed")

	if _, err := env.Engine.SubmitApproval(env.Ctx, engine.ApprovalOptions{
		DeliverableID: d.ID, Approver: "ceo", Approved: true, ActorID: "ceo-1",
	}); err != nil {
		t.Fatal(err)
	}
	res, err := env.Engine.SubmitApproval(env.Ctx, engine.ApprovalOptions{
		DeliverableID: d.ID, Approver: "user", Approved: false, Feedback: "missing sources", ActorID: "user-1",
	})
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if !res.RequiresRegeneration {
		t.Fatalf("expected regeneration signal")
	}
	got := res.Deliverable
	if got.Status != domain.StatusPending {
		t.Fatalf("expected pending after rejection, got %s", got.Status)
	}
	// A rejection restarts the whole cycle, so the earlier CEO sign-off
	// must not survive.
	if got.CEOApproved || got.UserApproved {
		t.Fatalf("flags must both clear: ceo=%v user=%v", got.CEOApproved, got.UserApproved)
	}
	if got.FeedbackJSON == nil {
		t.Fatalf("expected feedback history")
	}
	if n := strings.Count(*got.FeedbackJSON, `"from"`); n != 1 {
		t.Fatalf("expected exactly one history entry, got %d in %s", n, *got.FeedbackJSON)
	}
	if got.Feedback == nil || *got.Feedback != "missing sources" {
		t.Fatalf("expected latest feedback mirrored")
	}
}

func TestRejectionWithoutFeedbackCountsAsApproval(t *testing.T) {
	env := newTestEnv(t)
	d := createDeliverable(t, env, "silent-reject")

	res, err := env.Engine.SubmitApproval(env.Ctx, engine.ApprovalOptions{
		DeliverableID: d.ID, Approver: "user", Approved: false, ActorID: "user-1",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !res.Deliverable.UserApproved {
		t.Fatalf("feedback-less rejection should degrade to approval")
	}
	if res.RequiresRegeneration {
		t.Fatalf("no regeneration without feedback")
	}
}

func TestConcurrentApprovalsConverge(t *testing.T) {
	env := newTestEnv(t)
	d := createDeliverable(t, env, "raced")

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, approver := range []string{"ceo", "user"} {
		wg.Add(1)
		go func(a string) {
			defer wg.Done()
			_, err := env.Engine.SubmitApproval(env.Ctx, engine.ApprovalOptions{
				DeliverableID: d.ID, Approver: a, Approved: true, ActorID: a + "-1",
			})
			errs <- err
		}(approver)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("approval failed: %v", err)
		}
	}
	got, err := env.Engine.Repo.GetDeliverable(env.Ctx, d.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.StatusApproved || !got.CEOApproved || !got.UserApproved {
		t.Fatalf("lost update: status=%s ceo=%v user=%v", got.Status, got.CEOApproved, got.UserApproved)
	}
}

func TestAutoAssignPairsPendingWithIdle(t *testing.T) {
	env := newTestEnv(t)
	names := []string{"a-report", "b-report", "c-report", "d-report", "e-report"}
	for _, n := range names {
		createDeliverable(t, env, n)
	}
	// default roster has 3 non-manager members
	assignments, err := env.Engine.AutoAssignPending(env.Ctx, "team-1", "tester")
	if err != nil {
		t.Fatalf("auto assign: %v", err)
	}
	if len(assignments) != 3 {
		t.Fatalf("expected 3 pairings, got %d", len(assignments))
	}
	for _, a := range assignments {
		if a.Deliverable.Status != domain.StatusInProgress {
			t.Fatalf("deliverable %s not in progress", a.Deliverable.ID)
		}
		if a.Agent.Status != domain.MemberWorking || a.Agent.CurrentTask == nil {
			t.Fatalf("agent %s not working", a.Agent.AgentID)
		}
		if a.Agent.Role == "manager" {
			t.Fatalf("manager must never be auto-assigned")
		}
	}
	// a second pass with nobody idle assigns nothing
	again, err := env.Engine.AutoAssignPending(env.Ctx, "team-1", "tester")
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("expected no pairings with all members busy, got %d", len(again))
	}
}

func TestSubmitForReviewMovesManagerToReviewing(t *testing.T) {
	env := newTestEnv(t)
	d := createDeliverable(t, env, "draft")
	if _, err := env.Engine.AssignTask(env.Ctx, d.ID, "member-1", "manager-1"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	got, err := env.Engine.SubmitForReview(env.Ctx, d.ID, "member-1", `{"summary":"Draft","sections":["intro"]}`, "member-1")
	if err != nil {
		t.Fatalf("submit for review: %v", err)
	}
	if got.Status != domain.StatusReview {
		t.Fatalf("expected review, got %s", got.Status)
	}
	agent, err := env.Engine.Repo.GetTeamMember(env.Ctx, "member-1")
	if err != nil {
		t.Fatal(err)
	}
	if agent.Status != domain.MemberIdle || agent.CurrentTask != nil {
		t.Fatalf("agent should be idle with no task, got %s", agent.Status)
	}
	mgr, err := env.Engine.Repo.GetTeamMember(env.Ctx, "manager-1")
	if err != nil {
		t.Fatal(err)
	}
	if mgr.Status != domain.MemberReviewing {
		t.Fatalf("manager should be reviewing, got %s", mgr.Status)
	}
}

func TestApprovalAfterReviewRestoresManager(t *testing.T) {
	env := newTestEnv(t)
	d := createDeliverable(t, env, "reviewed")
	if _, err := env.Engine.AssignTask(env.Ctx, d.ID, "member-1", "manager-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.SubmitForReview(env.Ctx, d.ID, "member-1", "", "member-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.SubmitApproval(env.Ctx, engine.ApprovalOptions{
		DeliverableID: d.ID, Approver: "ceo", Approved: true, ActorID: "ceo-1",
	}); err != nil {
		t.Fatal(err)
	}
	// one sign-off keeps the review open
	mgr, _ := env.Engine.Repo.GetTeamMember(env.Ctx, "manager-1")
	if mgr.Status != domain.MemberReviewing {
		t.Fatalf("manager released too early: %s", mgr.Status)
	}
	if _, err := env.Engine.SubmitApproval(env.Ctx, engine.ApprovalOptions{
		DeliverableID: d.ID, Approver: "user", Approved: true, ActorID: "user-1",
	}); err != nil {
		t.Fatal(err)
	}
	mgr, _ = env.Engine.Repo.GetTeamMember(env.Ctx, "manager-1")
	if mgr.Status != domain.MemberActive {
		t.Fatalf("manager should be active after full approval, got %s", mgr.Status)
	}
}

func TestRejectionAfterReviewRestoresManager(t *testing.T) {
	env := newTestEnv(t)
	d := createDeliverable(t, env, "bounced")
	if _, err := env.Engine.AssignTask(env.Ctx, d.ID, "member-1", "manager-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.SubmitForReview(env.Ctx, d.ID, "member-1", "", "member-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.SubmitApproval(env.Ctx, engine.ApprovalOptions{
		DeliverableID: d.ID, Approver: "ceo", Approved: false, Feedback: "redo the summary", ActorID: "ceo-1",
	}); err != nil {
		t.Fatal(err)
	}
	mgr, err := env.Engine.Repo.GetTeamMember(env.Ctx, "manager-1")
	if err != nil {
		t.Fatal(err)
	}
	if mgr.Status != domain.MemberActive {
		t.Fatalf("manager should be active after rejection, got %s", mgr.Status)
	}
}

func TestCompleteReviewCycleRequiresManager(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.CompleteReviewCycle(env.Ctx, "member-1", "tester"); err == nil {
		t.Fatalf("expected error for non-manager")
	}
	m, err := env.Engine.CompleteReviewCycle(env.Ctx, "manager-1", "tester")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if m.Status != domain.MemberActive || m.CurrentTask != nil {
		t.Fatalf("manager not reset: %s", m.Status)
	}
}

func TestWebsiteCEORejectionSynthesizesFeedback(t *testing.T) {
	env := newTestEnv(t)
	w, err := env.Engine.CreateWebsite(env.Ctx, engine.WebsiteCreateOptions{
		TeamID: "team-1", Name: "landing", URL: "https://example.com", ActorID: "tester",
	})
	if err != nil {
		t.Fatal(err)
	}
	res, err := env.Engine.SubmitWebsiteApproval(env.Ctx, engine.WebsiteApprovalOptions{
		WebsiteID: w.ID, Approver: "ceo", Approved: false, ActorID: "ceo-1",
	})
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if !res.RequiresRegeneration {
		t.Fatalf("expected regeneration")
	}
	if res.Website.Feedback == nil || *res.Website.Feedback == "" {
		t.Fatalf("expected synthesized feedback")
	}
	if res.Website.CEOApproved || res.Website.UserApproved {
		t.Fatalf("flags must clear on rejection")
	}
}

func TestWebsiteReviewerFailureLeavesRowUntouched(t *testing.T) {
	env := newTestEnv(t)
	env.Engine.Reviewer = &reviewer.Mock{Fail: true}
	w, err := env.Engine.CreateWebsite(env.Ctx, engine.WebsiteCreateOptions{
		TeamID: "team-1", Name: "landing", ActorID: "tester",
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.SubmitWebsiteApproval(env.Ctx, engine.WebsiteApprovalOptions{
		WebsiteID: w.ID, Approver: "ceo", Approved: false, ActorID: "ceo-1",
	}); err == nil {
		t.Fatalf("expected reviewer failure to surface")
	}
	got, err := env.Engine.Repo.GetWebsite(env.Ctx, w.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.StatusPending || got.Version != w.Version || got.FeedbackJSON != nil {
		t.Fatalf("row mutated despite failure: status=%s version=%d", got.Status, got.Version)
	}
}

func TestActivityLoggedOnStateChanges(t *testing.T) {
	env := newTestEnv(t)
	d := createDeliverable(t, env, "logged")
	if _, err := env.Engine.AssignTask(env.Ctx, d.ID, "member-1", "manager-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.SubmitForReview(env.Ctx, d.ID, "member-1", "", "member-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.SubmitApproval(env.Ctx, engine.ApprovalOptions{
		DeliverableID: d.ID, Approver: "ceo", Approved: true, ActorID: "ceo-1",
	}); err != nil {
		t.Fatal(err)
	}
	rows, err := env.Engine.DB.QueryContext(env.Ctx, `SELECT action FROM activity_log WHERE team_id=?`, "team-1")
	if err != nil {
		t.Fatalf("query activity: %v", err)
	}
	defer rows.Close()
	count := 0
	for rows.Next() {
		count++
	}
	// seed + create + assign + review + approve
	if count < 5 {
		t.Fatalf("expected activity rows, got %d", count)
	}
}

func TestTeamStatusCountsByStatus(t *testing.T) {
	env := newTestEnv(t)
	createDeliverable(t, env, "one")
	d := createDeliverable(t, env, "two")
	if _, err := env.Engine.AssignTask(env.Ctx, d.ID, "member-1", "manager-1"); err != nil {
		t.Fatal(err)
	}
	st, err := env.Engine.TeamStatus(env.Ctx, "team-1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if len(st.Members) != 4 {
		t.Fatalf("expected 4 members, got %d", len(st.Members))
	}
	if st.DeliverableCounts[domain.StatusPending] != 1 || st.DeliverableCounts[domain.StatusInProgress] != 1 {
		t.Fatalf("unexpected counts: %+v", st.DeliverableCounts)
	}
}
