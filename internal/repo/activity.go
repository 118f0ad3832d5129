package repo

import (
	"context"
	"database/sql"
	"strings"

	"shelvey/internal/domain"
)

func scanActivity(scan func(dest ...any) error) (domain.ActivityEntry, error) {
	var e domain.ActivityEntry
	var teamID, agentName, metadata sql.NullString
	err := scan(&e.ID, &teamID, &e.AgentID, &agentName, &e.Action, &e.Status, &metadata, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return e, ErrNotFound
	}
	if err != nil {
		return e, err
	}
	if teamID.Valid {
		e.TeamID = teamID.String
	}
	if agentName.Valid {
		e.AgentName = agentName.String
	}
	if metadata.Valid {
		e.Metadata = metadata.String
	}
	return e, nil
}

const activityColumns = `id,team_id,agent_id,agent_name,action,status,metadata_json,created_at`

// LatestActivity returns the newest entries first, with an id cursor for
// paging further back.
func (r Repo) LatestActivity(ctx context.Context, limit int, cursor int64, teamID, agentID, action string) ([]domain.ActivityEntry, error) {
	clauses := []string{"1=1"}
	var args []any
	if teamID != "" {
		clauses = append(clauses, "team_id=?")
		args = append(args, teamID)
	}
	if agentID != "" {
		clauses = append(clauses, "agent_id=?")
		args = append(args, agentID)
	}
	if action != "" {
		clauses = append(clauses, "action=?")
		args = append(args, action)
	}
	if cursor > 0 {
		clauses = append(clauses, "id<?")
		args = append(args, cursor)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := `SELECT ` + activityColumns + ` FROM activity_log ` + where + ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ActivityEntry
	for rows.Next() {
		e, err := scanActivity(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// ActivityAfter returns entries with IDs greater than the cursor in
// ascending order. Used by the webhook dispatcher.
func (r Repo) ActivityAfter(ctx context.Context, limit int, cursor int64, teamID string) ([]domain.ActivityEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	clauses := []string{"1=1"}
	var args []any
	if teamID != "" {
		clauses = append(clauses, "team_id=?")
		args = append(args, teamID)
	}
	if cursor > 0 {
		clauses = append(clauses, "id>?")
		args = append(args, cursor)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := `SELECT ` + activityColumns + ` FROM activity_log ` + where + ` ORDER BY id ASC LIMIT ?`
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ActivityEntry
	for rows.Next() {
		e, err := scanActivity(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// LatestActivityID returns the most recent activity ID for a team.
func (r Repo) LatestActivityID(ctx context.Context, teamID string) (int64, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM activity_log WHERE team_id=?`, teamID)
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}
