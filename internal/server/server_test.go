package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"shelvey/internal/config"
	"shelvey/internal/db"
	"shelvey/internal/engine"
	"shelvey/internal/migrate"
)

const testJWTSecret = "test-secret"

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	cfg := config.Default("team-1")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, cfg)
	if err := e.InitTeam(context.Background(), "team-1", "Test Team", cfg.Roster, "tester"); err != nil {
		t.Fatalf("init team: %v", err)
	}
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v0",
		Auth: AuthConfig{
			JWTSecret:              testJWTSecret,
			AllowLegacyActorHeader: true,
		},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func actorHeaders() map[string]string {
	return map[string]string{"X-Actor-Id": "tester"}
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func createDeliverableHTTP(t *testing.T, srv *testServer, name string) DeliverableResponse {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/teams/team-1/deliverables", map[string]any{
		"name": name,
		"type": "report",
	}, actorHeaders())
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create status %d: %s", res.StatusCode, string(data))
	}
	var d DeliverableResponse
	if err := json.Unmarshal(data, &d); err != nil {
		t.Fatalf("unmarshal deliverable: %v", err)
	}
	return d
}

func TestHealthSkipsAuth(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d: %s", res.StatusCode, string(data))
	}
}

func TestUnauthenticatedRequestRejected(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/team-manager", map[string]any{
		"action":  "get_team_status",
		"team_id": "team-1",
	}, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error apiErrorBody `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if envelope.Error.Code != "unauthorized" {
		t.Fatalf("expected unauthorized code, got %q", envelope.Error.Code)
	}
}

func TestJWTBearerAccepted(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "manager-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/team-manager", map[string]any{
		"action":  "get_team_status",
		"team_id": "team-1",
	}, map[string]string{"Authorization": "Bearer " + signed})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", res.StatusCode, string(data))
	}
	var resp TeamManagerResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Status == nil || len(resp.Status.Members) != 4 {
		t.Fatalf("expected team status with 4 members: %s", string(data))
	}
}

func TestApprovalRoundTrip(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	d := createDeliverableHTTP(t, srv, "q3-report")

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/approve-deliverable", map[string]any{
		"deliverable_id": d.ID,
		"approver":       "ceo",
		"approved":       true,
	}, actorHeaders())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("ceo approve status %d: %s", res.StatusCode, string(data))
	}
	var first ApproveResponse
	if err := json.Unmarshal(data, &first); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if first.FullyApproved || first.Deliverable.Status == "approved" {
		t.Fatalf("single sign-off must not approve: %s", string(data))
	}

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/approve-deliverable", map[string]any{
		"deliverable_id": d.ID,
		"approver":       "user",
		"approved":       true,
	}, actorHeaders())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("user approve status %d: %s", res.StatusCode, string(data))
	}
	var second ApproveResponse
	if err := json.Unmarshal(data, &second); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !second.FullyApproved || second.Deliverable.Status != "approved" {
		t.Fatalf("expected approved after both: %s", string(data))
	}
}

func TestApproveUnknownDeliverable(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/approve-deliverable", map[string]any{
		"deliverable_id": "nope",
		"approver":       "ceo",
		"approved":       true,
	}, actorHeaders())
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error apiErrorBody `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if envelope.Error.Code != "not_found" {
		t.Fatalf("expected not_found code, got %q", envelope.Error.Code)
	}
}

func TestApproveRequiresExactlyOneTarget(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/approve-deliverable", map[string]any{
		"approver": "ceo",
		"approved": true,
	}, actorHeaders())
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", res.StatusCode, string(data))
	}
}

func TestRejectionViaTeamManager(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	d := createDeliverableHTTP(t, srv, "bounced")

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/approve-deliverable", map[string]any{
		"deliverable_id": d.ID,
		"approver":       "user",
		"approved":       true,
	}, actorHeaders())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("user approve status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/team-manager", map[string]any{
		"action":         "reject_deliverable",
		"team_id":        "team-1",
		"deliverable_id": d.ID,
		"feedback":       "rework the intro",
	}, actorHeaders())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("reject status %d: %s", res.StatusCode, string(data))
	}
	var resp TeamManagerResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	got := resp.Deliverable
	if got == nil || got.Status != "pending" {
		t.Fatalf("expected pending after rejection: %s", string(data))
	}
	if got.CEOApproved || got.UserApproved {
		t.Fatalf("both flags must clear: %s", string(data))
	}
	if len(got.FeedbackHistory) != 1 || got.FeedbackHistory[0].Feedback != "rework the intro" {
		t.Fatalf("expected one history entry: %s", string(data))
	}
}

func TestAutoAssignViaTeamManager(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	for _, name := range []string{"a", "b", "c", "d"} {
		createDeliverableHTTP(t, srv, name)
	}
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/team-manager", map[string]any{
		"action":  "auto_assign_deliverables",
		"team_id": "team-1",
	}, actorHeaders())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("auto assign status %d: %s", res.StatusCode, string(data))
	}
	var resp TeamManagerResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	// 3 non-manager members in the default roster
	if len(resp.Assignments) != 3 {
		t.Fatalf("expected 3 assignments, got %d: %s", len(resp.Assignments), string(data))
	}
	for _, a := range resp.Assignments {
		if a.Deliverable.Status != "in_progress" || a.Agent.Status != "working" {
			t.Fatalf("bad pairing: %+v", a)
		}
	}
}

func TestDeliverableListPagination(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	for _, name := range []string{"a", "b", "c"} {
		createDeliverableHTTP(t, srv, name)
	}
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/teams/team-1/deliverables?limit=2", nil, actorHeaders())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list status %d: %s", res.StatusCode, string(data))
	}
	var page paginatedDeliverables
	if err := json.Unmarshal(data, &page); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(page.Items) != 2 || page.NextCursor == "" {
		t.Fatalf("expected 2 items and a cursor: %s", string(data))
	}
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/teams/team-1/deliverables?limit=2&cursor="+url.QueryEscape(page.NextCursor), nil, actorHeaders())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("page 2 status %d: %s", res.StatusCode, string(data))
	}
	var rest paginatedDeliverables
	if err := json.Unmarshal(data, &rest); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(rest.Items) != 1 {
		t.Fatalf("expected 1 remaining item: %s", string(data))
	}
	seen := map[string]bool{}
	for _, d := range append(page.Items, rest.Items...) {
		if seen[d.ID] {
			t.Fatalf("item %s returned on both pages", d.ID)
		}
		seen[d.ID] = true
	}
	if len(seen) != 3 {
		t.Fatalf("expected all 3 items across pages, got %d", len(seen))
	}
}

func TestActivityPaginationBoundary(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	for _, name := range []string{"a", "b", "c"} {
		createDeliverableHTTP(t, srv, name)
	}
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/teams/team-1/activity", nil, actorHeaders())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("activity status %d: %s", res.StatusCode, string(data))
	}
	var all paginatedActivity
	if err := json.Unmarshal(data, &all); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	total := len(all.Items)
	if total < 4 {
		t.Fatalf("expected at least 4 entries, got %d", total)
	}

	seen := map[int64]bool{}
	next := ""
	pages := 0
	for {
		u := srv.URL + "/v0/teams/team-1/activity?limit=2"
		if next != "" {
			u += "&cursor=" + next
		}
		res, data = doJSON(t, srv.Client(), http.MethodGet, u, nil, actorHeaders())
		if res.StatusCode != http.StatusOK {
			t.Fatalf("page %d status %d: %s", pages, res.StatusCode, string(data))
		}
		var page paginatedActivity
		if err := json.Unmarshal(data, &page); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		for _, a := range page.Items {
			if seen[a.ID] {
				t.Fatalf("entry %d returned twice", a.ID)
			}
			seen[a.ID] = true
		}
		pages++
		if page.NextCursor == "" {
			break
		}
		next = page.NextCursor
	}
	if len(seen) != total {
		t.Fatalf("paged walk returned %d of %d entries", len(seen), total)
	}
	if pages < 2 {
		t.Fatalf("expected the walk to span pages, got %d", pages)
	}
}

func TestActivityEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	createDeliverableHTTP(t, srv, "logged")
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/teams/team-1/activity", nil, actorHeaders())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("activity status %d: %s", res.StatusCode, string(data))
	}
	var page paginatedActivity
	if err := json.Unmarshal(data, &page); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	// team seed plus deliverable creation
	if len(page.Items) < 2 {
		t.Fatalf("expected activity entries: %s", string(data))
	}
}
