package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"shelvey/internal/activity"
	"shelvey/internal/config"
	"shelvey/internal/domain"
	"shelvey/internal/repo"
	"shelvey/internal/reviewer"
)

// approvalRetries bounds the optimistic-concurrency retry loop. Two
// principals racing on the same row resolve within one retry; anything
// beyond that indicates a hot loop elsewhere.
const approvalRetries = 3

type Engine struct {
	DB       *sql.DB
	Repo     repo.Repo
	Activity activity.Writer
	Config   *config.Config
	Reviewer reviewer.Client
	Now      func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:       db,
		Repo:     repo.Repo{DB: db},
		Activity: activity.Writer{DB: db},
		Config:   cfg,
		Reviewer: &reviewer.Mock{},
		Now:      time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// InitTeam seeds the team and its roster. Roster rows are refreshed in
// place; member runtime status survives reseeding.
func (e Engine) InitTeam(ctx context.Context, teamID, name string, roster []config.RosterEntry, actorID string) error {
	if teamID == "" {
		return errors.New("team is required")
	}
	if len(roster) == 0 {
		return errors.New("roster is required")
	}
	now := e.now().UTC().Format(time.RFC3339)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.EnsureTeam(ctx, tx, teamID, name, now); err != nil {
		return fmt.Errorf("ensure team: %w", err)
	}
	if err := e.Repo.SeedRosterTx(ctx, tx, teamID, roster, now); err != nil {
		return fmt.Errorf("seed roster: %w", err)
	}
	if err := e.Activity.Append(ctx, tx, teamID, actorID, "", "team.seeded", "completed", activity.Metadata{"members": len(roster)}); err != nil {
		return err
	}
	return tx.Commit()
}

// DeliverableCreateOptions are parameters for creating a deliverable.
type DeliverableCreateOptions struct {
	ID          string
	TeamID      string
	Phase       string
	Name        string
	Description string
	Type        string
	ContentJSON string
	Screenshots []string
	Citations   []string
	ActorID     string
}

func (e Engine) CreateDeliverable(ctx context.Context, opts DeliverableCreateOptions) (domain.Deliverable, error) {
	if opts.Name == "" {
		return domain.Deliverable{}, errors.New("name is required")
	}
	if opts.TeamID == "" {
		return domain.Deliverable{}, errors.New("team is required")
	}
	if opts.Type == "" {
		opts.Type = "report"
	}
	if opts.ContentJSON != "" {
		if _, err := domain.DecodeContent(opts.Type, []byte(opts.ContentJSON)); err != nil {
			return domain.Deliverable{}, err
		}
	}
	id := opts.ID
	now := e.now().UTC().Format(time.RFC3339)
	if id == "" {
		id = uuid.New().String()
	}
	screenshots, err := marshalStringSlice(opts.Screenshots)
	if err != nil {
		return domain.Deliverable{}, err
	}
	citations, err := marshalStringSlice(opts.Citations)
	if err != nil {
		return domain.Deliverable{}, err
	}
	d := domain.Deliverable{
		ID:              id,
		TeamID:          opts.TeamID,
		Phase:           opts.Phase,
		Name:            opts.Name,
		Description:     opts.Description,
		Type:            opts.Type,
		Status:          domain.StatusPending,
		ContentJSON:     optionalString(opts.ContentJSON),
		ScreenshotsJSON: screenshots,
		CitationsJSON:   citations,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Deliverable{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertDeliverable(ctx, tx, d); err != nil {
		return domain.Deliverable{}, err
	}
	if err := e.Activity.Append(ctx, tx, d.TeamID, opts.ActorID, "", "deliverable.created", "completed", activity.Metadata{"deliverable_id": d.ID, "name": d.Name}); err != nil {
		return domain.Deliverable{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Deliverable{}, err
	}
	return d, nil
}

// ApprovalOptions is one approval or rejection event from a principal.
type ApprovalOptions struct {
	DeliverableID string
	Approver      string // ceo or user
	Approved      bool
	Feedback      string
	ActorID       string
}

// ApprovalResult reports the post-event deliverable state.
type ApprovalResult struct {
	Deliverable          domain.Deliverable
	FullyApproved        bool
	RequiresRegeneration bool
}

// SubmitApproval applies one principal's sign-off or rejection.
//
// The flag flip and status recomputation commit atomically: the row update
// is guarded by the version read inside the transaction, and a lost race
// rereads and retries, so two concurrent principals always converge on
// status=approved once both flags are set.
func (e Engine) SubmitApproval(ctx context.Context, opts ApprovalOptions) (ApprovalResult, error) {
	if opts.Approver != domain.ApproverCEO && opts.Approver != domain.ApproverUser {
		return ApprovalResult{}, fmt.Errorf("invalid approver %q", opts.Approver)
	}
	var lastErr error
	for attempt := 0; attempt < approvalRetries; attempt++ {
		res, err := e.submitApprovalOnce(ctx, opts)
		if errors.Is(err, repo.ErrVersionConflict) {
			lastErr = err
			continue
		}
		return res, err
	}
	return ApprovalResult{}, lastErr
}

func (e Engine) submitApprovalOnce(ctx context.Context, opts ApprovalOptions) (ApprovalResult, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return ApprovalResult{}, err
	}
	defer tx.Rollback()

	d, err := e.Repo.GetDeliverableTx(ctx, tx, opts.DeliverableID)
	if err != nil {
		return ApprovalResult{}, err
	}
	now := e.now().UTC().Format(time.RFC3339)
	wasReview := d.Status == domain.StatusReview

	if !opts.Approved && opts.Feedback != "" {
		// Rejection restarts the full review cycle: both flags clear, so
		// each principal re-reviews the revised work.
		history, err := appendFeedback(d.FeedbackJSON, domain.FeedbackEntry{
			From:      opts.Approver,
			Feedback:  opts.Feedback,
			Timestamp: now,
			Approved:  false,
		})
		if err != nil {
			return ApprovalResult{}, err
		}
		d.FeedbackJSON = &history
		d.Feedback = &opts.Feedback
		d.Status = domain.StatusPending
		d.CEOApproved = false
		d.UserApproved = false
		d.UpdatedAt = now
		if err := e.Repo.UpdateDeliverableTx(ctx, tx, d); err != nil {
			return ApprovalResult{}, err
		}
		if err := e.Activity.Append(ctx, tx, d.TeamID, opts.ActorID, "", "deliverable.revision_requested", "completed", activity.Metadata{
			"deliverable_id": d.ID,
			"rejected_by":    opts.Approver,
		}); err != nil {
			return ApprovalResult{}, err
		}
		if wasReview {
			if err := e.resetReviewingManager(ctx, tx, d.TeamID, now); err != nil {
				return ApprovalResult{}, err
			}
		}
		if err := tx.Commit(); err != nil {
			return ApprovalResult{}, err
		}
		d.Version++
		return ApprovalResult{Deliverable: d, RequiresRegeneration: true}, nil
	}

	switch opts.Approver {
	case domain.ApproverCEO:
		d.CEOApproved = true
		d.ReviewedBy = optionalString(opts.ActorID)
	case domain.ApproverUser:
		d.UserApproved = true
		d.ApprovedBy = optionalString(opts.ActorID)
		d.ApprovedAt = &now
	}
	fully := d.CEOApproved && d.UserApproved
	if fully {
		d.Status = domain.StatusApproved
	}
	d.UpdatedAt = now
	if err := e.Repo.UpdateDeliverableTx(ctx, tx, d); err != nil {
		return ApprovalResult{}, err
	}
	if err := e.Activity.Append(ctx, tx, d.TeamID, opts.ActorID, "", "deliverable.approved", "completed", activity.Metadata{
		"deliverable_id": d.ID,
		"approver":       opts.Approver,
		"fully_approved": fully,
	}); err != nil {
		return ApprovalResult{}, err
	}
	if fully && wasReview {
		if err := e.resetReviewingManager(ctx, tx, d.TeamID, now); err != nil {
			return ApprovalResult{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return ApprovalResult{}, err
	}
	d.Version++
	return ApprovalResult{Deliverable: d, FullyApproved: fully}, nil
}

// resetReviewingManager restores the manager only when a review actually
// put them in the reviewing state.
func (e Engine) resetReviewingManager(ctx context.Context, tx *sql.Tx, teamID, now string) error {
	mgr, err := e.Repo.GetTeamManagerTx(ctx, tx, teamID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil
		}
		return err
	}
	if mgr.Status != domain.MemberReviewing {
		return nil
	}
	return e.Repo.SetMemberStatusTx(ctx, tx, mgr.AgentID, domain.MemberActive, nil, now)
}

// WebsiteApprovalOptions mirrors ApprovalOptions for the websites table.
type WebsiteApprovalOptions struct {
	WebsiteID string
	Approver  string
	Approved  bool
	Feedback  string
	ActorID   string
}

type WebsiteApprovalResult struct {
	Website              domain.Website
	FullyApproved        bool
	RequiresRegeneration bool
}

// SubmitWebsiteApproval runs the parallel website state machine. A CEO
// rejection with no written reason asks the reviewer to synthesize one
// before anything is persisted; a reviewer failure leaves the row untouched.
func (e Engine) SubmitWebsiteApproval(ctx context.Context, opts WebsiteApprovalOptions) (WebsiteApprovalResult, error) {
	if opts.Approver != domain.ApproverCEO && opts.Approver != domain.ApproverUser {
		return WebsiteApprovalResult{}, fmt.Errorf("invalid approver %q", opts.Approver)
	}
	if !opts.Approved && opts.Feedback == "" && opts.Approver == domain.ApproverCEO {
		w, err := e.Repo.GetWebsite(ctx, opts.WebsiteID)
		if err != nil {
			return WebsiteApprovalResult{}, err
		}
		summary := ""
		if w.ContentJSON != nil {
			summary = *w.ContentJSON
		}
		client := e.Reviewer
		if client == nil {
			client = &reviewer.Mock{}
		}
		feedback, err := client.GenerateFeedback(ctx, w.Name, summary)
		if err != nil {
			return WebsiteApprovalResult{}, fmt.Errorf("synthesize feedback: %w", err)
		}
		opts.Feedback = feedback
	}
	var lastErr error
	for attempt := 0; attempt < approvalRetries; attempt++ {
		res, err := e.submitWebsiteApprovalOnce(ctx, opts)
		if errors.Is(err, repo.ErrVersionConflict) {
			lastErr = err
			continue
		}
		return res, err
	}
	return WebsiteApprovalResult{}, lastErr
}

func (e Engine) submitWebsiteApprovalOnce(ctx context.Context, opts WebsiteApprovalOptions) (WebsiteApprovalResult, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return WebsiteApprovalResult{}, err
	}
	defer tx.Rollback()

	w, err := e.Repo.GetWebsiteTx(ctx, tx, opts.WebsiteID)
	if err != nil {
		return WebsiteApprovalResult{}, err
	}
	now := e.now().UTC().Format(time.RFC3339)

	if !opts.Approved && opts.Feedback != "" {
		history, err := appendFeedback(w.FeedbackJSON, domain.FeedbackEntry{
			From:      opts.Approver,
			Feedback:  opts.Feedback,
			Timestamp: now,
			Approved:  false,
		})
		if err != nil {
			return WebsiteApprovalResult{}, err
		}
		w.FeedbackJSON = &history
		w.Feedback = &opts.Feedback
		w.Status = domain.StatusPending
		w.CEOApproved = false
		w.UserApproved = false
		w.UpdatedAt = now
		if err := e.Repo.UpdateWebsiteTx(ctx, tx, w); err != nil {
			return WebsiteApprovalResult{}, err
		}
		if err := e.Activity.Append(ctx, tx, w.TeamID, opts.ActorID, "", "website.revision_requested", "completed", activity.Metadata{
			"website_id":  w.ID,
			"rejected_by": opts.Approver,
		}); err != nil {
			return WebsiteApprovalResult{}, err
		}
		if err := tx.Commit(); err != nil {
			return WebsiteApprovalResult{}, err
		}
		w.Version++
		return WebsiteApprovalResult{Website: w, RequiresRegeneration: true}, nil
	}

	switch opts.Approver {
	case domain.ApproverCEO:
		w.CEOApproved = true
	case domain.ApproverUser:
		w.UserApproved = true
	}
	fully := w.CEOApproved && w.UserApproved
	if fully {
		w.Status = domain.StatusApproved
	}
	w.UpdatedAt = now
	if err := e.Repo.UpdateWebsiteTx(ctx, tx, w); err != nil {
		return WebsiteApprovalResult{}, err
	}
	if err := e.Activity.Append(ctx, tx, w.TeamID, opts.ActorID, "", "website.approved", "completed", activity.Metadata{
		"website_id":     w.ID,
		"approver":       opts.Approver,
		"fully_approved": fully,
	}); err != nil {
		return WebsiteApprovalResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return WebsiteApprovalResult{}, err
	}
	w.Version++
	return WebsiteApprovalResult{Website: w, FullyApproved: fully}, nil
}

type WebsiteCreateOptions struct {
	ID          string
	TeamID      string
	Name        string
	URL         string
	ContentJSON string
	ActorID     string
}

func (e Engine) CreateWebsite(ctx context.Context, opts WebsiteCreateOptions) (domain.Website, error) {
	if opts.Name == "" {
		return domain.Website{}, errors.New("name is required")
	}
	if opts.TeamID == "" {
		return domain.Website{}, errors.New("team is required")
	}
	if opts.ContentJSON != "" && !json.Valid([]byte(opts.ContentJSON)) {
		return domain.Website{}, errors.New("content must be valid JSON")
	}
	id := opts.ID
	if id == "" {
		id = uuid.New().String()
	}
	now := e.now().UTC().Format(time.RFC3339)
	w := domain.Website{
		ID:          id,
		TeamID:      opts.TeamID,
		Name:        opts.Name,
		URL:         opts.URL,
		Status:      domain.StatusPending,
		ContentJSON: optionalString(opts.ContentJSON),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Website{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertWebsite(ctx, tx, w); err != nil {
		return domain.Website{}, err
	}
	if err := e.Activity.Append(ctx, tx, w.TeamID, opts.ActorID, "", "website.created", "completed", activity.Metadata{"website_id": w.ID, "name": w.Name}); err != nil {
		return domain.Website{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Website{}, err
	}
	return w, nil
}

// AssignTask pairs a deliverable with an agent. The caller is trusted to
// pick the agent; no idle check on this path.
func (e Engine) AssignTask(ctx context.Context, deliverableID, agentID, actorID string) (domain.Deliverable, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Deliverable{}, err
	}
	defer tx.Rollback()

	d, err := e.Repo.GetDeliverableTx(ctx, tx, deliverableID)
	if err != nil {
		return domain.Deliverable{}, err
	}
	m, err := e.Repo.GetTeamMemberTx(ctx, tx, agentID)
	if err != nil {
		return domain.Deliverable{}, err
	}
	if m.TeamID != d.TeamID {
		return domain.Deliverable{}, fmt.Errorf("agent %s not in team %s", agentID, d.TeamID)
	}
	now := e.now().UTC().Format(time.RFC3339)
	d, err = e.assignTx(ctx, tx, d, m, now, actorID)
	if err != nil {
		return domain.Deliverable{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Deliverable{}, err
	}
	return d, nil
}

// assignTx performs the dual mutation shared by manual and auto assignment.
func (e Engine) assignTx(ctx context.Context, tx *sql.Tx, d domain.Deliverable, m domain.TeamMember, now, actorID string) (domain.Deliverable, error) {
	d.AssignedAgentID = &m.AgentID
	d.Status = domain.StatusInProgress
	d.UpdatedAt = now
	if err := e.Repo.UpdateDeliverableTx(ctx, tx, d); err != nil {
		return d, err
	}
	d.Version++
	task := d.Name
	if err := e.Repo.SetMemberStatusTx(ctx, tx, m.AgentID, domain.MemberWorking, &task, now); err != nil {
		return d, err
	}
	if err := e.Activity.Append(ctx, tx, d.TeamID, m.AgentID, m.AgentName, "task.assigned", "in_progress", activity.Metadata{
		"deliverable_id": d.ID,
		"assigned_by":    actorID,
	}); err != nil {
		return d, err
	}
	return d, nil
}

// Assignment is one pairing made by AutoAssignPending.
type Assignment struct {
	Deliverable domain.Deliverable `json:"deliverable"`
	Agent       domain.TeamMember  `json:"agent"`
}

// AutoAssignPending zips pending deliverables with idle members
// positionally. Exactly min(pending, idle) pairings are made; the rest wait
// for a future invocation.
func (e Engine) AutoAssignPending(ctx context.Context, teamID, actorID string) ([]Assignment, error) {
	if teamID == "" {
		return nil, errors.New("team is required")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	pending, err := e.Repo.ListPendingDeliverablesTx(ctx, tx, teamID)
	if err != nil {
		return nil, err
	}
	idle, err := e.Repo.ListIdleMembersTx(ctx, tx, teamID)
	if err != nil {
		return nil, err
	}
	n := len(pending)
	if len(idle) < n {
		n = len(idle)
	}
	now := e.now().UTC().Format(time.RFC3339)
	assignments := make([]Assignment, 0, n)
	for i := 0; i < n; i++ {
		d, err := e.assignTx(ctx, tx, pending[i], idle[i], now, actorID)
		if err != nil {
			return nil, err
		}
		m := idle[i]
		m.Status = domain.MemberWorking
		task := d.Name
		m.CurrentTask = &task
		assignments = append(assignments, Assignment{Deliverable: d, Agent: m})
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return assignments, nil
}

// SubmitForReview stores the produced content, frees the submitting agent
// and moves the team's manager into the reviewing state.
func (e Engine) SubmitForReview(ctx context.Context, deliverableID, agentID, contentJSON, actorID string) (domain.Deliverable, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Deliverable{}, err
	}
	defer tx.Rollback()

	d, err := e.Repo.GetDeliverableTx(ctx, tx, deliverableID)
	if err != nil {
		return domain.Deliverable{}, err
	}
	if contentJSON != "" {
		if _, err := domain.DecodeContent(d.Type, []byte(contentJSON)); err != nil {
			return domain.Deliverable{}, err
		}
		d.ContentJSON = &contentJSON
	}
	m, err := e.Repo.GetTeamMemberTx(ctx, tx, agentID)
	if err != nil {
		return domain.Deliverable{}, err
	}
	now := e.now().UTC().Format(time.RFC3339)
	d.Status = domain.StatusReview
	d.UpdatedAt = now
	if err := e.Repo.UpdateDeliverableTx(ctx, tx, d); err != nil {
		return domain.Deliverable{}, err
	}
	d.Version++
	if err := e.Repo.SetMemberStatusTx(ctx, tx, agentID, domain.MemberIdle, nil, now); err != nil {
		return domain.Deliverable{}, err
	}
	mgr, err := e.Repo.GetTeamManagerTx(ctx, tx, d.TeamID)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return domain.Deliverable{}, err
	}
	if err == nil {
		if err := e.Repo.SetMemberStatusTx(ctx, tx, mgr.AgentID, domain.MemberReviewing, nil, now); err != nil {
			return domain.Deliverable{}, err
		}
	}
	if err := e.Activity.Append(ctx, tx, d.TeamID, agentID, m.AgentName, "deliverable.submitted_for_review", "completed", activity.Metadata{
		"deliverable_id": d.ID,
	}); err != nil {
		return domain.Deliverable{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Deliverable{}, err
	}
	return d, nil
}

// CompleteReviewCycle restores a manager to active with no current task.
// Invoked by the paths that moved the manager into reviewing, never as a
// blanket trailing reset.
func (e Engine) CompleteReviewCycle(ctx context.Context, managerID, actorID string) (domain.TeamMember, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.TeamMember{}, err
	}
	defer tx.Rollback()

	m, err := e.Repo.GetTeamMemberTx(ctx, tx, managerID)
	if err != nil {
		return domain.TeamMember{}, err
	}
	if m.Role != "manager" {
		return domain.TeamMember{}, fmt.Errorf("agent %s is not a manager", managerID)
	}
	now := e.now().UTC().Format(time.RFC3339)
	if err := e.Repo.SetMemberStatusTx(ctx, tx, m.AgentID, domain.MemberActive, nil, now); err != nil {
		return domain.TeamMember{}, err
	}
	if err := e.Activity.Append(ctx, tx, m.TeamID, m.AgentID, m.AgentName, "review.cycle_completed", "completed", activity.Metadata{
		"completed_by": actorID,
	}); err != nil {
		return domain.TeamMember{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.TeamMember{}, err
	}
	m.Status = domain.MemberActive
	m.CurrentTask = nil
	m.UpdatedAt = now
	return m, nil
}

// TeamStatusResult is the roster plus deliverable counts by status.
type TeamStatusResult struct {
	Members           []domain.TeamMember `json:"members"`
	DeliverableCounts map[string]int      `json:"deliverable_counts"`
}

func (e Engine) TeamStatus(ctx context.Context, teamID string) (TeamStatusResult, error) {
	members, err := e.Repo.ListTeamMembers(ctx, teamID)
	if err != nil {
		return TeamStatusResult{}, err
	}
	if len(members) == 0 {
		return TeamStatusResult{}, repo.ErrNotFound
	}
	counts, err := e.Repo.CountDeliverablesByStatus(ctx, teamID)
	if err != nil {
		return TeamStatusResult{}, err
	}
	return TeamStatusResult{Members: members, DeliverableCounts: counts}, nil
}

// --- helpers ---

func appendFeedback(raw *string, entry domain.FeedbackEntry) (string, error) {
	var history []domain.FeedbackEntry
	if raw != nil && *raw != "" {
		if err := json.Unmarshal([]byte(*raw), &history); err != nil {
			return "", fmt.Errorf("decode feedback history: %w", err)
		}
	}
	history = append(history, entry)
	b, err := json.Marshal(history)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func marshalStringSlice(in []string) (*string, error) {
	if len(in) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
