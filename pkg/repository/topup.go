package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"virtualcard_back/models"
)

const topupColumns = `id, user_id, card_id, amount, txid, status, funded_amount, idempotency_key,
	dispatched_at, failure_reason, created_at, updated_at`

type TopupPostgres struct {
	db *sqlx.DB
}

func NewTopupPostgres(db *sqlx.DB) *TopupPostgres {
	return &TopupPostgres{db: db}
}

// CreatePending records the submission before anything is verified. The UNIQUE
// constraint on txid is what makes a transaction hash single use.
func (r *TopupPostgres) CreatePending(ctx context.Context, t models.Topup) (int64, error) {
	var id int64
	query := fmt.Sprintf(`INSERT INTO %s (user_id, card_id, amount, txid, status)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`, topupsTable)
	err := r.db.QueryRowContext(ctx, query, t.UserID, t.CardID, t.Amount, t.TxID, models.TopupPending).Scan(&id)
	if isUniqueViolation(err) {
		return 0, ErrDuplicateTxID
	}
	if err != nil {
		return 0, errors.Wrap(err, "insert pending topup")
	}
	return id, nil
}

func (r *TopupPostgres) GetByTxID(ctx context.Context, txID string) (models.Topup, error) {
	var t models.Topup
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE txid = $1`, topupColumns, topupsTable)
	err := r.db.GetContext(ctx, &t, query, txID)
	if errors.Is(err, sql.ErrNoRows) {
		return t, ErrNotFound
	}
	return t, errors.Wrap(err, "get topup by txid")
}

func (r *TopupPostgres) GetByID(ctx context.Context, id int64) (models.Topup, error) {
	var t models.Topup
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, topupColumns, topupsTable)
	err := r.db.GetContext(ctx, &t, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return t, ErrNotFound
	}
	return t, errors.Wrap(err, "get topup by id")
}

// ClaimForDispatch writes the funding intent. Only a pending row that was never
// dispatched can be claimed, so of two racing callers exactly one gets the row back.
func (r *TopupPostgres) ClaimForDispatch(ctx context.Context, id int64, idempotencyKey string, fundedAmount decimal.Decimal) (models.Topup, error) {
	var t models.Topup
	query := fmt.Sprintf(`UPDATE %s
		SET idempotency_key = $1, funded_amount = $2, dispatched_at = NOW(), updated_at = NOW()
		WHERE id = $3 AND status = $4 AND dispatched_at IS NULL
		RETURNING %s`, topupsTable, topupColumns)
	err := r.db.GetContext(ctx, &t, query, idempotencyKey, fundedAmount, id, models.TopupPending)
	if errors.Is(err, sql.ErrNoRows) {
		return t, ErrStaleStatus
	}
	return t, errors.Wrap(err, "claim topup for dispatch")
}

// UpdateStatus moves the row from one status to another. The WHERE on the old status
// keeps terminal rows terminal even when two writers race.
func (r *TopupPostgres) UpdateStatus(ctx context.Context, txID string, from, to models.TopupStatus, reason *string) error {
	if _, err := models.Transition(from, to); err != nil {
		return err
	}
	query := fmt.Sprintf(`UPDATE %s SET status = $1, failure_reason = $2, updated_at = NOW()
		WHERE txid = $3 AND status = $4`, topupsTable)
	res, err := r.db.ExecContext(ctx, query, to, reason, txID, from)
	if err != nil {
		return errors.Wrap(err, "update topup status")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "update topup status")
	}
	if n == 0 {
		return ErrStaleStatus
	}
	return nil
}

func (r *TopupPostgres) ListTopupsByUser(ctx context.Context, userID int64, limit int) ([]models.Topup, error) {
	topups := []models.Topup{}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`, topupColumns, topupsTable)
	err := r.db.SelectContext(ctx, &topups, query, userID, limit)
	return topups, errors.Wrap(err, "list user topups")
}

func (r *TopupPostgres) ListTopups(ctx context.Context) ([]models.Topup, error) {
	topups := []models.Topup{}
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY created_at DESC`, topupColumns, topupsTable)
	err := r.db.SelectContext(ctx, &topups, query)
	return topups, errors.Wrap(err, "list topups")
}

// ListUnverified returns pending rows nobody tried to fund yet, created in [notBefore, olderThan].
func (r *TopupPostgres) ListUnverified(ctx context.Context, olderThan, notBefore time.Time, limit int) ([]models.Topup, error) {
	topups := []models.Topup{}
	query := fmt.Sprintf(`SELECT %s FROM %s
		WHERE status = $1 AND dispatched_at IS NULL AND created_at <= $2 AND created_at >= $3
		ORDER BY created_at LIMIT $4`, topupColumns, topupsTable)
	err := r.db.SelectContext(ctx, &topups, query, models.TopupPending, olderThan, notBefore, limit)
	return topups, errors.Wrap(err, "list unverified topups")
}

// ListInFlight returns pending rows whose funding call started before olderThan and
// whose outcome was never recorded.
func (r *TopupPostgres) ListInFlight(ctx context.Context, olderThan time.Time, limit int) ([]models.Topup, error) {
	topups := []models.Topup{}
	query := fmt.Sprintf(`SELECT %s FROM %s
		WHERE status = $1 AND dispatched_at IS NOT NULL AND dispatched_at <= $2
		ORDER BY dispatched_at LIMIT $3`, topupColumns, topupsTable)
	err := r.db.SelectContext(ctx, &topups, query, models.TopupPending, olderThan, limit)
	return topups, errors.Wrap(err, "list in-flight topups")
}

// DeleteTopup removes a failed or never dispatched row. Completed and in-flight rows are
// kept so their txid stays reserved, for them ErrStaleStatus is returned.
func (r *TopupPostgres) DeleteTopup(ctx context.Context, id int64) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1
		AND (status = 'failed' OR (status = 'pending' AND dispatched_at IS NULL))`, topupsTable)
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return errors.Wrap(err, "delete topup")
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return ErrStaleStatus
}
