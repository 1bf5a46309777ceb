package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xavierca1/zag-leads/internal/entity"
)

// DispatchLogRepository is the durable idempotency record of sent steps.
type DispatchLogRepository struct {
	DB      *sql.DB
	Dialect Dialect
}

func NewDispatchLogRepository(db *sql.DB, d Dialect) *DispatchLogRepository {
	return &DispatchLogRepository{DB: db, Dialect: d}
}

func (r *DispatchLogRepository) Claim(ctx context.Context, a *entity.DispatchedAction, lease time.Duration) (entity.DispatchState, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("database: begin claim: %w", err)
	}
	defer tx.Rollback()

	lock := ""
	if r.Dialect == Postgres {
		lock = " FOR UPDATE"
	}
	var (
		state     string
		messageID string
		at        time.Time
	)
	err = tx.QueryRowContext(ctx,
		rebind(r.Dialect, "SELECT state, message_id, dispatched_at FROM dispatch_log WHERE idempotency_key = ?"+lock),
		a.IdempotencyKey,
	).Scan(&state, &messageID, &at)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		res, err := tx.ExecContext(ctx, rebind(r.Dialect, `
			INSERT INTO dispatch_log (idempotency_key, lead_id, step_index, step_name, channel, state, message_id, dispatched_at)
			VALUES (?, ?, ?, ?, ?, ?, '', ?)
			ON CONFLICT (idempotency_key) DO NOTHING`),
			a.IdempotencyKey, a.LeadID, a.StepIndex, a.StepName, string(a.Channel), string(entity.DispatchPending), a.Timestamp.UTC(),
		)
		if err != nil {
			return "", fmt.Errorf("database: insert claim: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return "", entity.ErrDispatchInProgress
		}
	case err != nil:
		return "", fmt.Errorf("database: read claim: %w", err)
	case entity.DispatchState(state) == entity.DispatchSent:
		a.State = entity.DispatchSent
		a.MessageID = messageID
		a.Timestamp = at.UTC()
		return entity.DispatchSent, nil
	case a.Timestamp.Sub(at) < lease:
		return "", entity.ErrDispatchInProgress
	default:
		if _, err := tx.ExecContext(ctx,
			rebind(r.Dialect, "UPDATE dispatch_log SET dispatched_at = ? WHERE idempotency_key = ?"),
			a.Timestamp.UTC(), a.IdempotencyKey,
		); err != nil {
			return "", fmt.Errorf("database: renew claim: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("database: commit claim: %w", err)
	}
	a.State = entity.DispatchPending
	return entity.DispatchPending, nil
}

func (r *DispatchLogRepository) MarkSent(ctx context.Context, key, messageID string, at time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		rebind(r.Dialect, "UPDATE dispatch_log SET state = ?, message_id = ?, dispatched_at = ? WHERE idempotency_key = ?"),
		string(entity.DispatchSent), messageID, at.UTC(), key,
	)
	if err != nil {
		return fmt.Errorf("database: mark sent: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return entity.ErrDispatchNotFound
	}
	return nil
}

func (r *DispatchLogRepository) Release(ctx context.Context, key string) error {
	_, err := r.DB.ExecContext(ctx,
		rebind(r.Dialect, "DELETE FROM dispatch_log WHERE idempotency_key = ? AND state = ?"),
		key, string(entity.DispatchPending),
	)
	if err != nil {
		return fmt.Errorf("database: release claim: %w", err)
	}
	return nil
}

func (r *DispatchLogRepository) ListByLead(ctx context.Context, leadID string) ([]entity.DispatchedAction, error) {
	rows, err := r.DB.QueryContext(ctx, rebind(r.Dialect, `
		SELECT idempotency_key, lead_id, step_index, step_name, channel, state, message_id, dispatched_at
		FROM dispatch_log WHERE lead_id = ? ORDER BY dispatched_at, step_index`), leadID)
	if err != nil {
		return nil, fmt.Errorf("database: list dispatches: %w", err)
	}
	defer rows.Close()

	var out []entity.DispatchedAction
	for rows.Next() {
		var a entity.DispatchedAction
		if err := rows.Scan(&a.IdempotencyKey, &a.LeadID, &a.StepIndex, &a.StepName, &a.Channel, &a.State, &a.MessageID, &a.Timestamp); err != nil {
			return nil, fmt.Errorf("database: scan dispatch: %w", err)
		}
		a.Timestamp = a.Timestamp.UTC()
		out = append(out, a)
	}
	return out, rows.Err()
}
