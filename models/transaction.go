package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TransactionSourceLocal    = "local"
	TransactionSourceTopup    = "topup"
	TransactionSourceExternal = "external"
)

type Transaction struct {
	ID          string          `db:"id" json:"id"`
	UserID      *int64          `db:"user_id" json:"user_id"`
	Type        string          `db:"type" json:"type"`
	Description string          `db:"description" json:"description"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	Status      string          `db:"status" json:"status"`
	CardID      *string         `db:"card_id" json:"card_id,omitempty"`
	OccurredAt  time.Time       `db:"occurred_at" json:"occurred_at"`
	Source      string          `db:"source" json:"source"`
}
