package domain

type Deliverable struct {
	ID              string  `json:"id"`
	TeamID          string  `json:"team_id"`
	Phase           string  `json:"phase,omitempty"`
	Name            string  `json:"name"`
	Description     string  `json:"description,omitempty"`
	Type            string  `json:"type" enum:"report,design,code,analysis,other"`
	Status          string  `json:"status" enum:"pending,in_progress,review,revision_requested,approved,rejected"`
	ContentJSON     *string `json:"content_json,omitempty"`
	ScreenshotsJSON *string `json:"screenshots_json,omitempty"`
	CitationsJSON   *string `json:"citations_json,omitempty"`
	AssignedAgentID *string `json:"assigned_agent_id,omitempty"`
	Feedback        *string `json:"feedback,omitempty"`
	FeedbackJSON    *string `json:"feedback_json,omitempty"`
	CEOApproved     bool    `json:"ceo_approved"`
	UserApproved    bool    `json:"user_approved"`
	ReviewedBy      *string `json:"reviewed_by,omitempty"`
	ApprovedBy      *string `json:"approved_by,omitempty"`
	ApprovedAt      *string `json:"approved_at,omitempty" format:"date-time"`
	Version         int64   `json:"version"`
	CreatedAt       string  `json:"created_at" format:"date-time"`
	UpdatedAt       string  `json:"updated_at" format:"date-time"`
}

// Website is the parallel approval state machine for generated sites.
// Same two-flag conjunction as Deliverable.
type Website struct {
	ID           string  `json:"id"`
	TeamID       string  `json:"team_id"`
	Name         string  `json:"name"`
	URL          string  `json:"url,omitempty"`
	Status       string  `json:"status" enum:"pending,in_progress,review,revision_requested,approved,rejected"`
	ContentJSON  *string `json:"content_json,omitempty"`
	Feedback     *string `json:"feedback,omitempty"`
	FeedbackJSON *string `json:"feedback_json,omitempty"`
	CEOApproved  bool    `json:"ceo_approved"`
	UserApproved bool    `json:"user_approved"`
	Version      int64   `json:"version"`
	CreatedAt    string  `json:"created_at" format:"date-time"`
	UpdatedAt    string  `json:"updated_at" format:"date-time"`
}

type TeamMember struct {
	AgentID     string  `json:"agent_id"`
	TeamID      string  `json:"team_id"`
	AgentName   string  `json:"agent_name"`
	Role        string  `json:"role" enum:"manager,lead,member"`
	Status      string  `json:"status" enum:"idle,working,reviewing,active"`
	CurrentTask *string `json:"current_task,omitempty"`
	UpdatedAt   string  `json:"updated_at" format:"date-time"`
}

// FeedbackEntry is one element of a deliverable's feedback history.
type FeedbackEntry struct {
	From      string `json:"from"`
	Feedback  string `json:"feedback"`
	Timestamp string `json:"timestamp" format:"date-time"`
	Approved  bool   `json:"approved"`
}

type ActivityEntry struct {
	ID        int64  `json:"id"`
	TeamID    string `json:"team_id,omitempty"`
	AgentID   string `json:"agent_id"`
	AgentName string `json:"agent_name,omitempty"`
	Action    string `json:"action"`
	Status    string `json:"status" enum:"completed,in_progress,failed"`
	Metadata  string `json:"metadata_json"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type APIKey struct {
	ID         string `json:"id"`
	ActorID    string `json:"actor_id"`
	Name       string `json:"name,omitempty"`
	KeyHash    string `json:"key_hash"`
	CreatedAt  string `json:"created_at" format:"date-time"`
	LastUsedAt string `json:"last_used_at,omitempty"`
}

// Approver principals recognized by the approval gate.
const (
	ApproverCEO  = "ceo"
	ApproverUser = "user"
)

const (
	StatusPending           = "pending"
	StatusInProgress        = "in_progress"
	StatusReview            = "review"
	StatusRevisionRequested = "revision_requested"
	StatusApproved          = "approved"
	StatusRejected          = "rejected"
)

const (
	MemberIdle      = "idle"
	MemberWorking   = "working"
	MemberReviewing = "reviewing"
	MemberActive    = "active"
)
