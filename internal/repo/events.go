package repo

import (
	"context"
	"time"

	"emsp/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// CallbackJournalRepo keeps every command callback exactly as delivered,
// including rejected and conflicting ones.
type CallbackJournalRepo struct {
	db  *pgxpool.Pool
	Now func() time.Time
}

func NewCallbackJournalRepo(db *pgxpool.Pool) *CallbackJournalRepo {
	return &CallbackJournalRepo{db: db, Now: time.Now}
}

func (r *CallbackJournalRepo) Record(ctx context.Context, commandId string, commandType models.CommandType, outcome string, payload []byte) error {
	_, err := r.db.Exec(ctx, `
		insert into command_callbacks (command_id, type, outcome, payload, received_at)
		values ($1,$2,$3,$4,$5)
	`, commandId, commandType, outcome, payload, r.Now().UTC())
	return err
}

// Deliveries returns the outcomes recorded for commandId, oldest first.
func (r *CallbackJournalRepo) Deliveries(ctx context.Context, commandId string) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		select outcome from command_callbacks where command_id=$1 order by id
	`, commandId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var o string
		if err := rows.Scan(&o); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
