package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"virtualcard_back/models"
)

const cardColumns = `id, user_id, number, cvv, expiry, balance, status, type, created_at`

type CardPostgres struct {
	db *sqlx.DB
}

func NewCardPostgres(db *sqlx.DB) *CardPostgres {
	return &CardPostgres{db: db}
}

func (r *CardPostgres) CreateCard(ctx context.Context, card models.Card) error {
	query := fmt.Sprintf(`INSERT INTO %s (id, user_id, number, cvv, expiry, balance, status, type)
		VALUES (:id, :user_id, :number, :cvv, :expiry, :balance, :status, :type)`, cardsTable)
	_, err := r.db.NamedExecContext(ctx, query, card)
	return errors.Wrap(err, "insert card")
}

func (r *CardPostgres) GetCard(ctx context.Context, id string) (models.Card, error) {
	var card models.Card
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, cardColumns, cardsTable)
	err := r.db.GetContext(ctx, &card, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return card, ErrNotFound
	}
	return card, errors.Wrap(err, "get card")
}

func (r *CardPostgres) ListCardsByUser(ctx context.Context, userID int64) ([]models.Card, error) {
	cards := []models.Card{}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE user_id = $1 ORDER BY created_at DESC`, cardColumns, cardsTable)
	err := r.db.SelectContext(ctx, &cards, query, userID)
	return cards, errors.Wrap(err, "list user cards")
}

func (r *CardPostgres) ListCards(ctx context.Context) ([]models.Card, error) {
	cards := []models.Card{}
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY created_at DESC`, cardColumns, cardsTable)
	err := r.db.SelectContext(ctx, &cards, query)
	return cards, errors.Wrap(err, "list cards")
}

func (r *CardPostgres) UpdateBalance(ctx context.Context, id string, balance decimal.Decimal) error {
	query := fmt.Sprintf(`UPDATE %s SET balance = $1 WHERE id = $2`, cardsTable)
	_, err := r.db.ExecContext(ctx, query, balance, id)
	return errors.Wrap(err, "update card balance")
}

func (r *CardPostgres) AddBalance(ctx context.Context, id string, delta decimal.Decimal) error {
	query := fmt.Sprintf(`UPDATE %s SET balance = balance + $1 WHERE id = $2`, cardsTable)
	_, err := r.db.ExecContext(ctx, query, delta, id)
	return errors.Wrap(err, "add card balance")
}

func (r *CardPostgres) DeleteCard(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, cardsTable)
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return errors.Wrap(err, "delete card")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
