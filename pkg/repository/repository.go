package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"virtualcard_back/models"
)

type Authorization interface {
	CreateUser(ctx context.Context, user models.User) (int64, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	GetUserByID(ctx context.Context, id int64) (models.User, error)
	SetCardholderID(ctx context.Context, userID int64, cardholderID string) error
	SetVerified(ctx context.Context, userID int64) error
	ListUsers(ctx context.Context) ([]models.User, error)
}

type Card interface {
	CreateCard(ctx context.Context, card models.Card) error
	GetCard(ctx context.Context, id string) (models.Card, error)
	ListCardsByUser(ctx context.Context, userID int64) ([]models.Card, error)
	ListCards(ctx context.Context) ([]models.Card, error)
	UpdateBalance(ctx context.Context, id string, balance decimal.Decimal) error
	AddBalance(ctx context.Context, id string, delta decimal.Decimal) error
	DeleteCard(ctx context.Context, id string) error
}

type Topup interface {
	CreatePending(ctx context.Context, topup models.Topup) (int64, error)
	GetByTxID(ctx context.Context, txID string) (models.Topup, error)
	GetByID(ctx context.Context, id int64) (models.Topup, error)
	ClaimForDispatch(ctx context.Context, id int64, idempotencyKey string, fundedAmount decimal.Decimal) (models.Topup, error)
	UpdateStatus(ctx context.Context, txID string, from, to models.TopupStatus, reason *string) error
	ListTopupsByUser(ctx context.Context, userID int64, limit int) ([]models.Topup, error)
	ListTopups(ctx context.Context) ([]models.Topup, error)
	ListUnverified(ctx context.Context, olderThan, notBefore time.Time, limit int) ([]models.Topup, error)
	ListInFlight(ctx context.Context, olderThan time.Time, limit int) ([]models.Topup, error)
	DeleteTopup(ctx context.Context, id int64) error
}

type Transaction interface {
	CreateTransaction(ctx context.Context, tx models.Transaction) (bool, error)
	ListTransactionsByUser(ctx context.Context, userID int64) ([]models.Transaction, error)
	ListTransactions(ctx context.Context) ([]models.Transaction, error)
}

type Repository struct {
	Authorization
	Card
	Topup
	Transaction
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{
		Authorization: NewAuthPostgres(db),
		Card:          NewCardPostgres(db),
		Topup:         NewTopupPostgres(db),
		Transaction:   NewTransactionPostgres(db),
	}
}
