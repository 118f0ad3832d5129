package activity

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

type Metadata map[string]any

// Append writes one audit entry inside the caller's transaction, so the
// entry commits or rolls back together with the mutation it records.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, teamID, agentID, agentName, action, status string, meta Metadata) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	ts := w.Now().UTC().Format(time.RFC3339)
	if meta == nil {
		meta = Metadata{}
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal activity metadata: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO activity_log(team_id,agent_id,agent_name,action,status,metadata_json,created_at) VALUES (?,?,?,?,?,?,?)`,
		nullable(teamID), agentID, nullable(agentName), action, status, string(data), ts)
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
