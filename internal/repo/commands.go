package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"emsp/internal/correlate"
	"emsp/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PendingCommandsRepo is the Postgres correlation store. The single-row
// "update ... where result_raw is null" makes the result slot write-once.
type PendingCommandsRepo struct{ db *pgxpool.Pool }

func NewPendingCommandsRepo(db *pgxpool.Pool) *PendingCommandsRepo {
	return &PendingCommandsRepo{db: db}
}

func (r *PendingCommandsRepo) Register(ctx context.Context, c models.PendingCommand) error {
	c.CommandId = strings.TrimSpace(c.CommandId)
	if c.CommandId == "" {
		return correlate.ErrMissingCommandId
	}
	if c.DispatchedAt.IsZero() {
		c.DispatchedAt = time.Now().UTC()
	}
	tag, err := r.db.Exec(ctx, `
		insert into pending_commands (command_id, type, remote_party, dispatched_at)
		values ($1,$2,$3,$4)
		on conflict (command_id) do nothing
	`, c.CommandId, c.Type, c.RemoteParty, c.DispatchedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return correlate.ErrDuplicateCommand
	}
	return nil
}

func (r *PendingCommandsRepo) Lookup(ctx context.Context, id string) (*models.PendingCommand, error) {
	row := r.db.QueryRow(ctx, `
		select command_id, type, remote_party, dispatched_at, result_raw, result_at
		from pending_commands where command_id=$1
	`, strings.TrimSpace(id))

	var (
		c        models.PendingCommand
		raw      []byte
		resultAt *time.Time
	)
	if err := row.Scan(&c.CommandId, &c.Type, &c.RemoteParty, &c.DispatchedAt, &raw, &resultAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if raw != nil {
		res, err := storedResult(raw, resultAt)
		if err != nil {
			return nil, err
		}
		c.Result = &res
	}
	return &c, nil
}

func (r *PendingCommandsRepo) SetResult(ctx context.Context, id string, result models.CommandResult) (models.CommandResult, bool, error) {
	id = strings.TrimSpace(id)
	tag, err := r.db.Exec(ctx, `
		update pending_commands set result_raw=$2, result_at=$3
		where command_id=$1 and result_raw is null
	`, id, result.Raw, result.ReceivedAt)
	if err != nil {
		return models.CommandResult{}, false, err
	}
	if tag.RowsAffected() == 1 {
		return result, true, nil
	}

	var (
		raw      []byte
		resultAt *time.Time
	)
	err = r.db.QueryRow(ctx, `select result_raw, result_at from pending_commands where command_id=$1`, id).Scan(&raw, &resultAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.CommandResult{}, false, correlate.ErrCommandNotFound
	}
	if err != nil {
		return models.CommandResult{}, false, err
	}
	stored, err := storedResult(raw, resultAt)
	return stored, false, err
}

func (r *PendingCommandsRepo) Expire(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := r.db.Exec(ctx, `delete from pending_commands where dispatched_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func storedResult(raw []byte, at *time.Time) (models.CommandResult, error) {
	var receivedAt time.Time
	if at != nil {
		receivedAt = at.UTC()
	}
	return correlate.DecodeStoredResult(raw, receivedAt)
}
