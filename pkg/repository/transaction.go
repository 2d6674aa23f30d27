package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"virtualcard_back/models"
)

const transactionColumns = `id, user_id, type, description, amount, status, card_id, occurred_at, source`

type TransactionPostgres struct {
	db *sqlx.DB
}

func NewTransactionPostgres(db *sqlx.DB) *TransactionPostgres {
	return &TransactionPostgres{db: db}
}

// CreateTransaction inserts tx unless a row with its id already exists. The returned
// flag tells whether a row was written, imports rely on it to count new records.
func (r *TransactionPostgres) CreateTransaction(ctx context.Context, tx models.Transaction) (bool, error) {
	query := fmt.Sprintf(`INSERT INTO %s (id, user_id, type, description, amount, status, card_id, occurred_at, source)
		VALUES (:id, :user_id, :type, :description, :amount, :status, :card_id, :occurred_at, :source)
		ON CONFLICT (id) DO NOTHING`, transactionsTable)
	res, err := r.db.NamedExecContext(ctx, query, tx)
	if err != nil {
		return false, errors.Wrap(err, "insert transaction")
	}
	n, err := res.RowsAffected()
	return n > 0, errors.Wrap(err, "insert transaction")
}

func (r *TransactionPostgres) ListTransactionsByUser(ctx context.Context, userID int64) ([]models.Transaction, error) {
	txs := []models.Transaction{}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE user_id = $1 ORDER BY occurred_at DESC`, transactionColumns, transactionsTable)
	err := r.db.SelectContext(ctx, &txs, query, userID)
	return txs, errors.Wrap(err, "list user transactions")
}

func (r *TransactionPostgres) ListTransactions(ctx context.Context) ([]models.Transaction, error) {
	txs := []models.Transaction{}
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY occurred_at DESC`, transactionColumns, transactionsTable)
	err := r.db.SelectContext(ctx, &txs, query)
	return txs, errors.Wrap(err, "list transactions")
}
