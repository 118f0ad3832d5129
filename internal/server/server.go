package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"sync"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"shelvey/internal/engine"
	"shelvey/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_found"`
	Message string         `json:"message" example:"deliverable not found"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

type requestKey struct{}
type bodyBytesKey struct{}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the ShelVey API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			ctx := context.WithValue(r.Context(), requestKey{}, r)
			ctx = context.WithValue(ctx, bodyBytesKey{}, bodyBytes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("ShelVey API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerApprove(group, cfg.Engine)
	registerTeamManager(group, cfg.Engine)
	registerTeams(group, cfg.Engine)
	registerDeliverables(group, cfg.Engine)
	registerWebsites(group, cfg.Engine)
	registerActivity(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	if errors.Is(err, repo.ErrVersionConflict) {
		return newAPIError(http.StatusConflict, "conflict", "concurrent update, retry", nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "synthesize feedback"):
		return newAPIError(http.StatusBadGateway, "upstream_error", msg, nil)
	case strings.Contains(lowered, "invalid") ||
		strings.Contains(lowered, "missing") ||
		strings.Contains(lowered, "required") ||
		strings.Contains(lowered, "is not a manager") ||
		strings.Contains(lowered, "not in team") ||
		strings.Contains(lowered, "decode"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusBadGateway:
		return "upstream_error"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func bodyBytes(ctx context.Context) []byte {
	b, _ := ctx.Value(bodyBytesKey{}).([]byte)
	return b
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 200 {
		return 200
	}
	return limit
}

// composite cursor: "<created_at>|<id>"
func composeCursor(createdAt, id string) string {
	return createdAt + "|" + id
}

func parseCompositeCursor(cursor string) (string, string, error) {
	if cursor == "" {
		return "", "", nil
	}
	parts := strings.SplitN(cursor, "|", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid cursor")
	}
	return parts[0], parts[1], nil
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerApprove(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "approve-deliverable",
		Method:      http.MethodPost,
		Path:        "/approve-deliverable",
		Summary:     "Record a CEO or user approval decision",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusBadGateway,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body ApproveRequest `json:"body"`
	}) (*struct {
		Body ApproveResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if input.Body.Approver == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "approver is required", nil)
		}
		hasDeliverable := input.Body.DeliverableID != nil && *input.Body.DeliverableID != ""
		hasWebsite := input.Body.WebsiteID != nil && *input.Body.WebsiteID != ""
		if hasDeliverable == hasWebsite {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "exactly one of deliverable_id or website_id is required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		resp := ApproveResponse{Success: true}
		if hasDeliverable {
			res, err := e.SubmitApproval(ctx, engine.ApprovalOptions{
				DeliverableID: *input.Body.DeliverableID,
				Approver:      input.Body.Approver,
				Approved:      input.Body.Approved,
				Feedback:      input.Body.Feedback,
				ActorID:       actorID,
			})
			if err != nil {
				return nil, handleError(err)
			}
			d := deliverableResponse(res.Deliverable)
			resp.Deliverable = &d
			resp.FullyApproved = res.FullyApproved
			resp.RequiresRegeneration = res.RequiresRegeneration
		} else {
			res, err := e.SubmitWebsiteApproval(ctx, engine.WebsiteApprovalOptions{
				WebsiteID: *input.Body.WebsiteID,
				Approver:  input.Body.Approver,
				Approved:  input.Body.Approved,
				Feedback:  input.Body.Feedback,
				ActorID:   actorID,
			})
			if err != nil {
				return nil, handleError(err)
			}
			w := websiteResponse(res.Website)
			resp.Website = &w
			resp.FullyApproved = res.FullyApproved
			resp.RequiresRegeneration = res.RequiresRegeneration
		}
		return &struct {
			Body ApproveResponse `json:"body"`
		}{Body: resp}, nil
	})
}

func registerTeamManager(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "team-manager",
		Method:      http.MethodPost,
		Path:        "/team-manager",
		Summary:     "Team coordination actions",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body TeamManagerRequest `json:"body"`
	}) (*struct {
		Body TeamManagerResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		req := input.Body
		switch req.Action {
		case "assign_task":
			if req.DeliverableID == "" || req.AgentID == "" {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "deliverable_id and agent_id are required", nil)
			}
			d, err := e.AssignTask(ctx, req.DeliverableID, req.AgentID, actorID)
			if err != nil {
				return nil, handleError(err)
			}
			resp := deliverableResponse(d)
			return teamManagerResult(TeamManagerResponse{Success: true, Deliverable: &resp}), nil
		case "submit_for_review":
			if req.DeliverableID == "" || req.AgentID == "" {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "deliverable_id and agent_id are required", nil)
			}
			d, err := e.SubmitForReview(ctx, req.DeliverableID, req.AgentID, string(req.Content), actorID)
			if err != nil {
				return nil, handleError(err)
			}
			resp := deliverableResponse(d)
			return teamManagerResult(TeamManagerResponse{Success: true, Deliverable: &resp}), nil
		case "approve_deliverable", "reject_deliverable":
			if req.DeliverableID == "" {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "deliverable_id is required", nil)
			}
			approver := req.Approver
			if approver == "" {
				// the manager reviews on the CEO's behalf
				approver = "ceo"
			}
			res, err := e.SubmitApproval(ctx, engine.ApprovalOptions{
				DeliverableID: req.DeliverableID,
				Approver:      approver,
				Approved:      req.Action == "approve_deliverable",
				Feedback:      req.Feedback,
				ActorID:       actorID,
			})
			if err != nil {
				return nil, handleError(err)
			}
			resp := deliverableResponse(res.Deliverable)
			return teamManagerResult(TeamManagerResponse{Success: true, Deliverable: &resp}), nil
		case "get_team_status":
			if req.TeamID == "" {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "team_id is required", nil)
			}
			st, err := e.TeamStatus(ctx, req.TeamID)
			if err != nil {
				return nil, handleError(err)
			}
			resp := teamStatusResponse(st)
			return teamManagerResult(TeamManagerResponse{Success: true, Status: &resp}), nil
		case "auto_assign_deliverables":
			if req.TeamID == "" {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "team_id is required", nil)
			}
			assignments, err := e.AutoAssignPending(ctx, req.TeamID, actorID)
			if err != nil {
				return nil, handleError(err)
			}
			return teamManagerResult(TeamManagerResponse{Success: true, Assignments: assignmentResponses(assignments)}), nil
		default:
			return nil, newAPIError(http.StatusBadRequest, "bad_request", fmt.Sprintf("unknown action %q", req.Action), nil)
		}
	})
}

func teamManagerResult(resp TeamManagerResponse) *struct {
	Body TeamManagerResponse `json:"body"`
} {
	return &struct {
		Body TeamManagerResponse `json:"body"`
	}{Body: resp}
}

func registerTeams(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "team-status",
		Method:      http.MethodGet,
		Path:        "/teams/{team_id}/status",
		Summary:     "Team status",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TeamID string `path:"team_id"`
	}) (*struct {
		Body TeamStatusResponse `json:"body"`
	}, error) {
		st, err := e.TeamStatus(ctx, input.TeamID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TeamStatusResponse `json:"body"`
		}{Body: teamStatusResponse(st)}, nil
	})
}

func registerDeliverables(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-deliverable",
		Method:        http.MethodPost,
		Path:          "/teams/{team_id}/deliverables",
		Summary:       "Create deliverable",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		TeamID string                   `path:"team_id"`
		Body   CreateDeliverableRequest `json:"body"`
	}) (*struct {
		Body DeliverableResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if input.Body.Name == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "name is required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		opts := engine.DeliverableCreateOptions{
			TeamID:      input.TeamID,
			Phase:       input.Body.Phase,
			Name:        input.Body.Name,
			Description: input.Body.Description,
			Type:        input.Body.Type,
			ContentJSON: string(input.Body.Content),
			Screenshots: input.Body.Screenshots,
			Citations:   input.Body.Citations,
			ActorID:     actorID,
		}
		if input.Body.ID != nil {
			opts.ID = *input.Body.ID
		}
		d, err := e.CreateDeliverable(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DeliverableResponse `json:"body"`
		}{Body: deliverableResponse(d)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-deliverables",
		Method:      http.MethodGet,
		Path:        "/teams/{team_id}/deliverables",
		Summary:     "List deliverables",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		TeamID  string `path:"team_id"`
		Status  string `query:"status"`
		Phase   string `query:"phase"`
		AgentID string `query:"agent_id"`
		Limit   int    `query:"limit" default:"50"`
		Cursor  string `query:"cursor"`
	}) (*struct {
		Body paginatedDeliverables `json:"body"`
	}, error) {
		limit := normalizeLimit(input.Limit)
		cursorCreated, cursorID, err := parseCompositeCursor(input.Cursor)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
		}
		items, err := e.Repo.ListDeliverables(ctx, repo.DeliverableFilters{
			TeamID:          input.TeamID,
			Status:          input.Status,
			Phase:           input.Phase,
			AssignedAgentID: input.AgentID,
			Limit:           limit + 1,
			CursorCreatedAt: cursorCreated,
			CursorID:        cursorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedDeliverables{Items: []DeliverableResponse{}}
		if len(items) > limit {
			items = items[:limit]
			// The cursor clause is exclusive, so the next page starts
			// after the last item returned here.
			last := items[limit-1]
			resp.NextCursor = composeCursor(last.CreatedAt, last.ID)
		}
		resp.Items = mapDeliverables(items)
		return &struct {
			Body paginatedDeliverables `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-deliverable",
		Method:      http.MethodGet,
		Path:        "/deliverables/{id}",
		Summary:     "Get deliverable",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body DeliverableResponse `json:"body"`
	}, error) {
		d, err := e.Repo.GetDeliverable(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DeliverableResponse `json:"body"`
		}{Body: deliverableResponse(d)}, nil
	})
}

func registerWebsites(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-website",
		Method:        http.MethodPost,
		Path:          "/teams/{team_id}/websites",
		Summary:       "Create website",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		TeamID string `path:"team_id"`
		Body   struct {
			ID      *string         `json:"id,omitempty"`
			Name    string          `json:"name"`
			URL     string          `json:"url,omitempty"`
			Content json.RawMessage `json:"content,omitempty"`
		} `json:"body"`
	}) (*struct {
		Body WebsiteResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if input.Body.Name == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "name is required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		opts := engine.WebsiteCreateOptions{
			TeamID:      input.TeamID,
			Name:        input.Body.Name,
			URL:         input.Body.URL,
			ContentJSON: string(input.Body.Content),
			ActorID:     actorID,
		}
		if input.Body.ID != nil {
			opts.ID = *input.Body.ID
		}
		w, err := e.CreateWebsite(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body WebsiteResponse `json:"body"`
		}{Body: websiteResponse(w)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-websites",
		Method:      http.MethodGet,
		Path:        "/teams/{team_id}/websites",
		Summary:     "List websites",
	}, func(ctx context.Context, input *struct {
		TeamID string `path:"team_id"`
	}) (*struct {
		Body []WebsiteResponse `json:"body"`
	}, error) {
		items, err := e.Repo.ListWebsites(ctx, input.TeamID)
		if err != nil {
			return nil, handleError(err)
		}
		out := make([]WebsiteResponse, 0, len(items))
		for _, w := range items {
			out = append(out, websiteResponse(w))
		}
		return &struct {
			Body []WebsiteResponse `json:"body"`
		}{Body: out}, nil
	})
}

func registerActivity(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-activity",
		Method:      http.MethodGet,
		Path:        "/teams/{team_id}/activity",
		Summary:     "Activity log",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		TeamID  string `path:"team_id"`
		AgentID string `query:"agent_id"`
		Action  string `query:"action"`
		Limit   int    `query:"limit" default:"50"`
		Cursor  int64  `query:"cursor"`
	}) (*struct {
		Body paginatedActivity `json:"body"`
	}, error) {
		limit := normalizeLimit(input.Limit)
		items, err := e.Repo.LatestActivity(ctx, limit+1, input.Cursor, input.TeamID, input.AgentID, input.Action)
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedActivity{Items: []ActivityResponse{}}
		if len(items) > limit {
			items = items[:limit]
			resp.NextCursor = fmt.Sprintf("%d", items[limit-1].ID)
		}
		for _, a := range items {
			resp.Items = append(resp.Items, activityResponse(a))
		}
		return &struct {
			Body paginatedActivity `json:"body"`
		}{Body: resp}, nil
	})
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var (
		once sync.Once
		spec []byte
	)
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		})
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	oas.Components.SecuritySchemes["apiKeyAuth"] = &huma.SecurityScheme{
		Type: "apiKey",
		In:   "header",
		Name: "X-Api-Key",
	}
	security := []map[string][]string{
		{"bearerAuth": {}},
		{"apiKeyAuth": {}},
	}
	oas.Security = security
	healthPath := path.Join(basePath, "health")
	if !strings.HasPrefix(healthPath, "/") {
		healthPath = "/" + healthPath
	}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if route == healthPath {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>ShelVey API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt; or X-Api-Key.
    </p>
  </body>
</html>`, specURL)
}
