package server

import (
	"encoding/json"

	"shelvey/internal/domain"
	"shelvey/internal/engine"
)

type ApproveRequest struct {
	DeliverableID *string `json:"deliverable_id,omitempty"`
	WebsiteID     *string `json:"website_id,omitempty"`
	Approver      string  `json:"approver" enum:"ceo,user"`
	Approved      bool    `json:"approved"`
	Feedback      string  `json:"feedback,omitempty"`
}

type ApproveResponse struct {
	Success              bool                 `json:"success"`
	FullyApproved        bool                 `json:"fully_approved"`
	RequiresRegeneration bool                 `json:"requires_regeneration,omitempty"`
	Deliverable          *DeliverableResponse `json:"deliverable,omitempty"`
	Website              *WebsiteResponse     `json:"website,omitempty"`
}

type TeamManagerRequest struct {
	Action        string          `json:"action" enum:"assign_task,submit_for_review,approve_deliverable,reject_deliverable,get_team_status,auto_assign_deliverables"`
	TeamID        string          `json:"team_id"`
	ManagerID     string          `json:"manager_id,omitempty"`
	DeliverableID string          `json:"deliverable_id,omitempty"`
	AgentID       string          `json:"agent_id,omitempty"`
	Content       json.RawMessage `json:"content,omitempty"`
	Feedback      string          `json:"feedback,omitempty"`
	Approver      string          `json:"approver,omitempty" enum:",ceo,user"`
}

type TeamManagerResponse struct {
	Success     bool                 `json:"success"`
	Deliverable *DeliverableResponse `json:"deliverable,omitempty"`
	Assignments []AssignmentResponse `json:"assignments,omitempty"`
	Status      *TeamStatusResponse  `json:"status,omitempty"`
}

type AssignmentResponse struct {
	Deliverable DeliverableResponse `json:"deliverable"`
	Agent       MemberResponse      `json:"agent"`
}

type TeamStatusResponse struct {
	Members           []MemberResponse `json:"members"`
	DeliverableCounts map[string]int   `json:"deliverable_counts"`
}

type CreateDeliverableRequest struct {
	ID          *string         `json:"id,omitempty"`
	Phase       string          `json:"phase,omitempty"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Type        string          `json:"type,omitempty" enum:",report,design,code,analysis,other"`
	Content     json.RawMessage `json:"content,omitempty"`
	Screenshots []string        `json:"screenshots,omitempty"`
	Citations   []string        `json:"citations,omitempty"`
}

type DeliverableResponse struct {
	ID              string                 `json:"id"`
	TeamID          string                 `json:"team_id"`
	Phase           string                 `json:"phase,omitempty"`
	Name            string                 `json:"name"`
	Description     string                 `json:"description,omitempty"`
	Type            string                 `json:"type"`
	Status          string                 `json:"status"`
	Content         json.RawMessage        `json:"content,omitempty"`
	Screenshots     []string               `json:"screenshots,omitempty"`
	Citations       []string               `json:"citations,omitempty"`
	AssignedAgentID *string                `json:"assigned_agent_id,omitempty"`
	Feedback        *string                `json:"feedback,omitempty"`
	FeedbackHistory []domain.FeedbackEntry `json:"feedback_history,omitempty"`
	CEOApproved     bool                   `json:"ceo_approved"`
	UserApproved    bool                   `json:"user_approved"`
	ReviewedBy      *string                `json:"reviewed_by,omitempty"`
	ApprovedBy      *string                `json:"approved_by,omitempty"`
	ApprovedAt      *string                `json:"approved_at,omitempty"`
	Version         int64                  `json:"version"`
	CreatedAt       string                 `json:"created_at"`
	UpdatedAt       string                 `json:"updated_at"`
}

type WebsiteResponse struct {
	ID              string                 `json:"id"`
	TeamID          string                 `json:"team_id"`
	Name            string                 `json:"name"`
	URL             string                 `json:"url,omitempty"`
	Status          string                 `json:"status"`
	Content         json.RawMessage        `json:"content,omitempty"`
	Feedback        *string                `json:"feedback,omitempty"`
	FeedbackHistory []domain.FeedbackEntry `json:"feedback_history,omitempty"`
	CEOApproved     bool                   `json:"ceo_approved"`
	UserApproved    bool                   `json:"user_approved"`
	Version         int64                  `json:"version"`
	CreatedAt       string                 `json:"created_at"`
	UpdatedAt       string                 `json:"updated_at"`
}

type MemberResponse struct {
	AgentID     string  `json:"agent_id"`
	TeamID      string  `json:"team_id"`
	AgentName   string  `json:"agent_name"`
	Role        string  `json:"role"`
	Status      string  `json:"status"`
	CurrentTask *string `json:"current_task,omitempty"`
	UpdatedAt   string  `json:"updated_at"`
}

type ActivityResponse struct {
	ID        int64           `json:"id"`
	TeamID    string          `json:"team_id"`
	AgentID   string          `json:"agent_id,omitempty"`
	AgentName string          `json:"agent_name,omitempty"`
	Action    string          `json:"action"`
	Status    string          `json:"status"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt string          `json:"created_at"`
}

type paginatedDeliverables struct {
	Items      []DeliverableResponse `json:"items"`
	NextCursor string                `json:"next_cursor,omitempty"`
}

type paginatedActivity struct {
	Items      []ActivityResponse `json:"items"`
	NextCursor string             `json:"next_cursor,omitempty"`
}

func deliverableResponse(d domain.Deliverable) DeliverableResponse {
	return DeliverableResponse{
		ID:              d.ID,
		TeamID:          d.TeamID,
		Phase:           d.Phase,
		Name:            d.Name,
		Description:     d.Description,
		Type:            d.Type,
		Status:          d.Status,
		Content:         rawJSON(d.ContentJSON),
		Screenshots:     stringSlice(d.ScreenshotsJSON),
		Citations:       stringSlice(d.CitationsJSON),
		AssignedAgentID: d.AssignedAgentID,
		Feedback:        d.Feedback,
		FeedbackHistory: feedbackHistory(d.FeedbackJSON),
		CEOApproved:     d.CEOApproved,
		UserApproved:    d.UserApproved,
		ReviewedBy:      d.ReviewedBy,
		ApprovedBy:      d.ApprovedBy,
		ApprovedAt:      d.ApprovedAt,
		Version:         d.Version,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

func mapDeliverables(items []domain.Deliverable) []DeliverableResponse {
	out := make([]DeliverableResponse, 0, len(items))
	for _, d := range items {
		out = append(out, deliverableResponse(d))
	}
	return out
}

func websiteResponse(w domain.Website) WebsiteResponse {
	return WebsiteResponse{
		ID:              w.ID,
		TeamID:          w.TeamID,
		Name:            w.Name,
		URL:             w.URL,
		Status:          w.Status,
		Content:         rawJSON(w.ContentJSON),
		Feedback:        w.Feedback,
		FeedbackHistory: feedbackHistory(w.FeedbackJSON),
		CEOApproved:     w.CEOApproved,
		UserApproved:    w.UserApproved,
		Version:         w.Version,
		CreatedAt:       w.CreatedAt,
		UpdatedAt:       w.UpdatedAt,
	}
}

func memberResponse(m domain.TeamMember) MemberResponse {
	return MemberResponse{
		AgentID:     m.AgentID,
		TeamID:      m.TeamID,
		AgentName:   m.AgentName,
		Role:        m.Role,
		Status:      m.Status,
		CurrentTask: m.CurrentTask,
		UpdatedAt:   m.UpdatedAt,
	}
}

func mapMembers(items []domain.TeamMember) []MemberResponse {
	out := make([]MemberResponse, 0, len(items))
	for _, m := range items {
		out = append(out, memberResponse(m))
	}
	return out
}

func activityResponse(a domain.ActivityEntry) ActivityResponse {
	meta := json.RawMessage(nil)
	if a.Metadata != "" && json.Valid([]byte(a.Metadata)) {
		meta = json.RawMessage(a.Metadata)
	}
	return ActivityResponse{
		ID:        a.ID,
		TeamID:    a.TeamID,
		AgentID:   a.AgentID,
		AgentName: a.AgentName,
		Action:    a.Action,
		Status:    a.Status,
		Metadata:  meta,
		CreatedAt: a.CreatedAt,
	}
}

func assignmentResponses(items []engine.Assignment) []AssignmentResponse {
	out := make([]AssignmentResponse, 0, len(items))
	for _, a := range items {
		out = append(out, AssignmentResponse{
			Deliverable: deliverableResponse(a.Deliverable),
			Agent:       memberResponse(a.Agent),
		})
	}
	return out
}

func teamStatusResponse(st engine.TeamStatusResult) TeamStatusResponse {
	return TeamStatusResponse{
		Members:           mapMembers(st.Members),
		DeliverableCounts: st.DeliverableCounts,
	}
}

func rawJSON(s *string) json.RawMessage {
	if s == nil || *s == "" || !json.Valid([]byte(*s)) {
		return nil
	}
	return json.RawMessage(*s)
}

func stringSlice(s *string) []string {
	if s == nil || *s == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(*s), &out); err != nil {
		return nil
	}
	return out
}

func feedbackHistory(s *string) []domain.FeedbackEntry {
	if s == nil || *s == "" {
		return nil
	}
	var out []domain.FeedbackEntry
	if err := json.Unmarshal([]byte(*s), &out); err != nil {
		return nil
	}
	return out
}
