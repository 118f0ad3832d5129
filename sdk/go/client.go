package shelveysdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal ShelVey HTTP API client.
type Client struct {
	BaseURL     string
	TeamID      string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, teamID string) *Client {
	return &Client{
		BaseURL: baseURL,
		TeamID:  teamID,
		Timeout: 10 * time.Second,
	}
}

// Deliverable represents the API deliverable model (partial).
type Deliverable struct {
	ID              string          `json:"id"`
	TeamID          string          `json:"team_id"`
	Name            string          `json:"name"`
	Type            string          `json:"type"`
	Status          string          `json:"status"`
	CEOApproved     bool            `json:"ceo_approved"`
	UserApproved    bool            `json:"user_approved"`
	AssignedAgentID *string         `json:"assigned_agent_id,omitempty"`
	Feedback        *string         `json:"feedback,omitempty"`
	FeedbackHistory []FeedbackEntry `json:"feedback_history,omitempty"`
	Version         int64           `json:"version"`
}

// Website is the parallel approval target.
type Website struct {
	ID           string  `json:"id"`
	TeamID       string  `json:"team_id"`
	Name         string  `json:"name"`
	URL          string  `json:"url,omitempty"`
	Status       string  `json:"status"`
	CEOApproved  bool    `json:"ceo_approved"`
	UserApproved bool    `json:"user_approved"`
	Feedback     *string `json:"feedback,omitempty"`
	Version      int64   `json:"version"`
}

type FeedbackEntry struct {
	From      string `json:"from"`
	Feedback  string `json:"feedback"`
	Timestamp string `json:"timestamp"`
	Approved  bool   `json:"approved"`
}

type Member struct {
	AgentID     string  `json:"agent_id"`
	AgentName   string  `json:"agent_name"`
	Role        string  `json:"role"`
	Status      string  `json:"status"`
	CurrentTask *string `json:"current_task,omitempty"`
}

type TeamStatus struct {
	Members           []Member       `json:"members"`
	DeliverableCounts map[string]int `json:"deliverable_counts"`
}

type Assignment struct {
	Deliverable Deliverable `json:"deliverable"`
	Agent       Member      `json:"agent"`
}

// ApprovalResult is the response of the approval endpoint.
type ApprovalResult struct {
	Success              bool         `json:"success"`
	FullyApproved        bool         `json:"fully_approved"`
	RequiresRegeneration bool         `json:"requires_regeneration"`
	Deliverable          *Deliverable `json:"deliverable,omitempty"`
	Website              *Website     `json:"website,omitempty"`
}

type teamManagerResult struct {
	Success     bool         `json:"success"`
	Deliverable *Deliverable `json:"deliverable,omitempty"`
	Assignments []Assignment `json:"assignments,omitempty"`
	Status      *TeamStatus  `json:"status,omitempty"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// ApproveDeliverable records a sign-off from one principal.
func (c *Client) ApproveDeliverable(ctx context.Context, deliverableID, approver string) (ApprovalResult, error) {
	return c.approve(ctx, map[string]any{
		"deliverable_id": deliverableID,
		"approver":       approver,
		"approved":       true,
	})
}

// RejectDeliverable records a rejection with feedback. Both approval flags
// clear server-side and the deliverable returns to pending.
func (c *Client) RejectDeliverable(ctx context.Context, deliverableID, approver, feedback string) (ApprovalResult, error) {
	return c.approve(ctx, map[string]any{
		"deliverable_id": deliverableID,
		"approver":       approver,
		"approved":       false,
		"feedback":       feedback,
	})
}

// ApproveWebsite records a website sign-off.
func (c *Client) ApproveWebsite(ctx context.Context, websiteID, approver string) (ApprovalResult, error) {
	return c.approve(ctx, map[string]any{
		"website_id": websiteID,
		"approver":   approver,
		"approved":   true,
	})
}

// RejectWebsite rejects a website. An empty feedback from the ceo lets the
// server synthesize the rejection reason.
func (c *Client) RejectWebsite(ctx context.Context, websiteID, approver, feedback string) (ApprovalResult, error) {
	return c.approve(ctx, map[string]any{
		"website_id": websiteID,
		"approver":   approver,
		"approved":   false,
		"feedback":   feedback,
	})
}

func (c *Client) approve(ctx context.Context, body map[string]any) (ApprovalResult, error) {
	var resp ApprovalResult
	err := c.do(ctx, http.MethodPost, "v0/approve-deliverable", body, &resp)
	return resp, err
}

// AssignTask pairs a deliverable with an agent via the team-manager endpoint.
func (c *Client) AssignTask(ctx context.Context, deliverableID, agentID string) (*Deliverable, error) {
	resp, err := c.teamManager(ctx, map[string]any{
		"action":         "assign_task",
		"team_id":        c.TeamID,
		"deliverable_id": deliverableID,
		"agent_id":       agentID,
	})
	if err != nil {
		return nil, err
	}
	return resp.Deliverable, nil
}

// SubmitForReview submits completed work for manager review.
func (c *Client) SubmitForReview(ctx context.Context, deliverableID, agentID string, content json.RawMessage) (*Deliverable, error) {
	resp, err := c.teamManager(ctx, map[string]any{
		"action":         "submit_for_review",
		"team_id":        c.TeamID,
		"deliverable_id": deliverableID,
		"agent_id":       agentID,
		"content":        content,
	})
	if err != nil {
		return nil, err
	}
	return resp.Deliverable, nil
}

// AutoAssign pairs pending deliverables with idle members.
func (c *Client) AutoAssign(ctx context.Context) ([]Assignment, error) {
	resp, err := c.teamManager(ctx, map[string]any{
		"action":  "auto_assign_deliverables",
		"team_id": c.TeamID,
	})
	if err != nil {
		return nil, err
	}
	return resp.Assignments, nil
}

// GetTeamStatus returns the roster and deliverable counts.
func (c *Client) GetTeamStatus(ctx context.Context) (*TeamStatus, error) {
	resp, err := c.teamManager(ctx, map[string]any{
		"action":  "get_team_status",
		"team_id": c.TeamID,
	})
	if err != nil {
		return nil, err
	}
	return resp.Status, nil
}

func (c *Client) teamManager(ctx context.Context, body map[string]any) (teamManagerResult, error) {
	var resp teamManagerResult
	err := c.do(ctx, http.MethodPost, "v0/team-manager", body, &resp)
	return resp, err
}

// GetDeliverable fetches a deliverable by id.
func (c *Client) GetDeliverable(ctx context.Context, id string) (Deliverable, error) {
	var resp Deliverable
	err := c.do(ctx, http.MethodGet, "v0/deliverables/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// CreateDeliverable creates a pending deliverable in the client's team.
func (c *Client) CreateDeliverable(ctx context.Context, name, deliverableType string) (Deliverable, error) {
	body := map[string]any{
		"name": name,
		"type": deliverableType,
	}
	var resp Deliverable
	err := c.do(ctx, http.MethodPost, c.teamPath("deliverables"), body, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) teamPath(p string) string {
	team := url.PathEscape(c.TeamID)
	return fmt.Sprintf("v0/teams/%s/%s", team, strings.TrimLeft(p, "/"))
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
