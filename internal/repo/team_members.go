package repo

import (
	"context"
	"database/sql"

	"shelvey/internal/config"
	"shelvey/internal/domain"
)

func (r Repo) EnsureTeam(ctx context.Context, tx *sql.Tx, teamID, name, now string) error {
	if name == "" {
		name = teamID
	}
	_, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO teams(id, name, created_at) VALUES (?,?,?)`, teamID, name, now)
	return err
}

// SeedRosterTx inserts roster members that do not exist yet and refreshes
// name/role for ones that do. Runtime status and current_task survive
// reseeding.
func (r Repo) SeedRosterTx(ctx context.Context, tx *sql.Tx, teamID string, roster []config.RosterEntry, now string) error {
	for _, m := range roster {
		if _, err := tx.ExecContext(ctx, `INSERT INTO team_members(agent_id, team_id, agent_name, role, status, current_task, updated_at)
VALUES (?,?,?,?,'idle',NULL,?)
ON CONFLICT(agent_id) DO UPDATE SET agent_name=excluded.agent_name, role=excluded.role`,
			m.AgentID, teamID, m.AgentName, m.Role, now); err != nil {
			return err
		}
	}
	return nil
}

func scanMember(scan func(dest ...any) error) (domain.TeamMember, error) {
	var m domain.TeamMember
	var task sql.NullString
	err := scan(&m.AgentID, &m.TeamID, &m.AgentName, &m.Role, &m.Status, &task, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return m, ErrNotFound
	}
	if err != nil {
		return m, err
	}
	if task.Valid {
		m.CurrentTask = &task.String
	}
	return m, nil
}

const memberColumns = `agent_id,team_id,agent_name,role,status,current_task,updated_at`

func (r Repo) GetTeamMember(ctx context.Context, agentID string) (domain.TeamMember, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+memberColumns+` FROM team_members WHERE agent_id=?`, agentID)
	return scanMember(row.Scan)
}

func (r Repo) GetTeamMemberTx(ctx context.Context, tx *sql.Tx, agentID string) (domain.TeamMember, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+memberColumns+` FROM team_members WHERE agent_id=?`, agentID)
	return scanMember(row.Scan)
}

func (r Repo) ListTeamMembers(ctx context.Context, teamID string) ([]domain.TeamMember, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+memberColumns+` FROM team_members WHERE team_id=? ORDER BY agent_id ASC`, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.TeamMember
	for rows.Next() {
		m, err := scanMember(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

// ListIdleMembersTx returns idle members eligible for auto-assignment
// (role member or lead), in agent_id order.
func (r Repo) ListIdleMembersTx(ctx context.Context, tx *sql.Tx, teamID string) ([]domain.TeamMember, error) {
	rows, err := tx.QueryContext(ctx, `SELECT `+memberColumns+` FROM team_members WHERE team_id=? AND status='idle' AND role IN ('member','lead') ORDER BY agent_id ASC`, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.TeamMember
	for rows.Next() {
		m, err := scanMember(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

func (r Repo) GetTeamManagerTx(ctx context.Context, tx *sql.Tx, teamID string) (domain.TeamMember, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+memberColumns+` FROM team_members WHERE team_id=? AND role='manager' LIMIT 1`, teamID)
	return scanMember(row.Scan)
}

func (r Repo) SetMemberStatusTx(ctx context.Context, tx *sql.Tx, agentID, status string, currentTask *string, now string) error {
	res, err := tx.ExecContext(ctx, `UPDATE team_members SET status=?, current_task=?, updated_at=? WHERE agent_id=?`,
		status, nullableStringPtr(currentTask), now, agentID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
