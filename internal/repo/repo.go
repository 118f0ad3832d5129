package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"shelvey/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// ErrVersionConflict means a versioned update lost the race; callers reread
// and retry.
var ErrVersionConflict = errors.New("version conflict")

const deliverableColumns = `id,team_id,phase,name,description,type,status,content_json,screenshots_json,citations_json,assigned_agent_id,feedback,feedback_json,ceo_approved,user_approved,reviewed_by,approved_by,approved_at,version,created_at,updated_at`

func (r Repo) InsertDeliverable(ctx context.Context, tx *sql.Tx, d domain.Deliverable) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO deliverables(`+deliverableColumns+`)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		d.ID, d.TeamID, nullable(d.Phase), d.Name, nullable(d.Description), d.Type, d.Status,
		nullableStringPtr(d.ContentJSON), nullableStringPtr(d.ScreenshotsJSON), nullableStringPtr(d.CitationsJSON),
		nullableStringPtr(d.AssignedAgentID), nullableStringPtr(d.Feedback), nullableStringPtr(d.FeedbackJSON),
		boolInt(d.CEOApproved), boolInt(d.UserApproved),
		nullableStringPtr(d.ReviewedBy), nullableStringPtr(d.ApprovedBy), nullableStringPtr(d.ApprovedAt),
		d.Version, d.CreatedAt, d.UpdatedAt)
	return err
}

func scanDeliverable(scan func(dest ...any) error) (domain.Deliverable, error) {
	var d domain.Deliverable
	var phase, description, content, screenshots, citations, agent, feedback, feedbackJSON, reviewedBy, approvedBy, approvedAt sql.NullString
	var ceo, user int
	err := scan(&d.ID, &d.TeamID, &phase, &d.Name, &description, &d.Type, &d.Status,
		&content, &screenshots, &citations, &agent, &feedback, &feedbackJSON,
		&ceo, &user, &reviewedBy, &approvedBy, &approvedAt,
		&d.Version, &d.CreatedAt, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	if err != nil {
		return d, err
	}
	if phase.Valid {
		d.Phase = phase.String
	}
	if description.Valid {
		d.Description = description.String
	}
	if content.Valid {
		d.ContentJSON = &content.String
	}
	if screenshots.Valid {
		d.ScreenshotsJSON = &screenshots.String
	}
	if citations.Valid {
		d.CitationsJSON = &citations.String
	}
	if agent.Valid {
		d.AssignedAgentID = &agent.String
	}
	if feedback.Valid {
		d.Feedback = &feedback.String
	}
	if feedbackJSON.Valid {
		d.FeedbackJSON = &feedbackJSON.String
	}
	if reviewedBy.Valid {
		d.ReviewedBy = &reviewedBy.String
	}
	if approvedBy.Valid {
		d.ApprovedBy = &approvedBy.String
	}
	if approvedAt.Valid {
		d.ApprovedAt = &approvedAt.String
	}
	d.CEOApproved = ceo != 0
	d.UserApproved = user != 0
	return d, nil
}

func (r Repo) GetDeliverable(ctx context.Context, id string) (domain.Deliverable, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+deliverableColumns+` FROM deliverables WHERE id=?`, id)
	return scanDeliverable(row.Scan)
}

func (r Repo) GetDeliverableTx(ctx context.Context, tx *sql.Tx, id string) (domain.Deliverable, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+deliverableColumns+` FROM deliverables WHERE id=?`, id)
	return scanDeliverable(row.Scan)
}

// UpdateDeliverableTx writes the full row guarded by the version the caller
// read. The version is bumped on success; zero rows affected means another
// writer got there first.
func (r Repo) UpdateDeliverableTx(ctx context.Context, tx *sql.Tx, d domain.Deliverable) error {
	res, err := tx.ExecContext(ctx, `UPDATE deliverables SET phase=?, name=?, description=?, type=?, status=?, content_json=?, screenshots_json=?, citations_json=?, assigned_agent_id=?, feedback=?, feedback_json=?, ceo_approved=?, user_approved=?, reviewed_by=?, approved_by=?, approved_at=?, version=version+1, updated_at=? WHERE id=? AND version=?`,
		nullable(d.Phase), d.Name, nullable(d.Description), d.Type, d.Status,
		nullableStringPtr(d.ContentJSON), nullableStringPtr(d.ScreenshotsJSON), nullableStringPtr(d.CitationsJSON),
		nullableStringPtr(d.AssignedAgentID), nullableStringPtr(d.Feedback), nullableStringPtr(d.FeedbackJSON),
		boolInt(d.CEOApproved), boolInt(d.UserApproved),
		nullableStringPtr(d.ReviewedBy), nullableStringPtr(d.ApprovedBy), nullableStringPtr(d.ApprovedAt),
		d.UpdatedAt, d.ID, d.Version)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrVersionConflict
	}
	return nil
}

type DeliverableFilters struct {
	TeamID          string
	Status          string
	Phase           string
	AssignedAgentID string
	Limit           int
	CursorCreatedAt string
	CursorID        string
}

func (r Repo) ListDeliverables(ctx context.Context, f DeliverableFilters) ([]domain.Deliverable, error) {
	var clauses []string
	var args []any
	if f.TeamID != "" {
		clauses = append(clauses, "team_id=?")
		args = append(args, f.TeamID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.Phase != "" {
		clauses = append(clauses, "phase=?")
		args = append(args, f.Phase)
	}
	if f.AssignedAgentID != "" {
		clauses = append(clauses, "assigned_agent_id=?")
		args = append(args, f.AssignedAgentID)
	}
	if f.CursorCreatedAt != "" && f.CursorID != "" {
		clauses = append(clauses, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, f.CursorCreatedAt, f.CursorCreatedAt, f.CursorID)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + deliverableColumns + ` FROM deliverables ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Deliverable
	for rows.Next() {
		d, err := scanDeliverable(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

// ListPendingDeliverablesTx returns pending deliverables in creation order,
// the order auto-assignment pairs them in.
func (r Repo) ListPendingDeliverablesTx(ctx context.Context, tx *sql.Tx, teamID string) ([]domain.Deliverable, error) {
	rows, err := tx.QueryContext(ctx, `SELECT `+deliverableColumns+` FROM deliverables WHERE team_id=? AND status='pending' ORDER BY created_at ASC, id ASC`, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Deliverable
	for rows.Next() {
		d, err := scanDeliverable(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

func (r Repo) CountDeliverablesByStatus(ctx context.Context, teamID string) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, count(*) FROM deliverables WHERE team_id=? GROUP BY status`, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		res[status] = count
	}
	return res, rows.Err()
}

const websiteColumns = `id,team_id,name,url,status,content_json,feedback,feedback_json,ceo_approved,user_approved,version,created_at,updated_at`

func (r Repo) InsertWebsite(ctx context.Context, tx *sql.Tx, w domain.Website) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO websites(`+websiteColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		w.ID, w.TeamID, w.Name, nullable(w.URL), w.Status,
		nullableStringPtr(w.ContentJSON), nullableStringPtr(w.Feedback), nullableStringPtr(w.FeedbackJSON),
		boolInt(w.CEOApproved), boolInt(w.UserApproved), w.Version, w.CreatedAt, w.UpdatedAt)
	return err
}

func scanWebsite(scan func(dest ...any) error) (domain.Website, error) {
	var w domain.Website
	var url, content, feedback, feedbackJSON sql.NullString
	var ceo, user int
	err := scan(&w.ID, &w.TeamID, &w.Name, &url, &w.Status, &content, &feedback, &feedbackJSON,
		&ceo, &user, &w.Version, &w.CreatedAt, &w.UpdatedAt)
	if err == sql.ErrNoRows {
		return w, ErrNotFound
	}
	if err != nil {
		return w, err
	}
	if url.Valid {
		w.URL = url.String
	}
	if content.Valid {
		w.ContentJSON = &content.String
	}
	if feedback.Valid {
		w.Feedback = &feedback.String
	}
	if feedbackJSON.Valid {
		w.FeedbackJSON = &feedbackJSON.String
	}
	w.CEOApproved = ceo != 0
	w.UserApproved = user != 0
	return w, nil
}

func (r Repo) GetWebsite(ctx context.Context, id string) (domain.Website, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+websiteColumns+` FROM websites WHERE id=?`, id)
	return scanWebsite(row.Scan)
}

func (r Repo) GetWebsiteTx(ctx context.Context, tx *sql.Tx, id string) (domain.Website, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+websiteColumns+` FROM websites WHERE id=?`, id)
	return scanWebsite(row.Scan)
}

func (r Repo) UpdateWebsiteTx(ctx context.Context, tx *sql.Tx, w domain.Website) error {
	res, err := tx.ExecContext(ctx, `UPDATE websites SET name=?, url=?, status=?, content_json=?, feedback=?, feedback_json=?, ceo_approved=?, user_approved=?, version=version+1, updated_at=? WHERE id=? AND version=?`,
		w.Name, nullable(w.URL), w.Status,
		nullableStringPtr(w.ContentJSON), nullableStringPtr(w.Feedback), nullableStringPtr(w.FeedbackJSON),
		boolInt(w.CEOApproved), boolInt(w.UserApproved), w.UpdatedAt, w.ID, w.Version)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrVersionConflict
	}
	return nil
}

func (r Repo) ListWebsites(ctx context.Context, teamID string) ([]domain.Website, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+websiteColumns+` FROM websites WHERE team_id=? ORDER BY created_at DESC, id DESC`, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Website
	for rows.Next() {
		w, err := scanWebsite(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, w)
	}
	return res, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
