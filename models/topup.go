package models

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type TopupStatus int

const (
	TopupPending TopupStatus = iota + 1
	TopupCompleted
	TopupFailed
)

var ErrInvalidTransition = errors.New("invalid topup status transition")

func (s TopupStatus) String() string {
	switch s {
	case TopupPending:
		return "pending"
	case TopupCompleted:
		return "completed"
	case TopupFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s TopupStatus) Terminal() bool {
	return s == TopupCompleted || s == TopupFailed
}

func ParseTopupStatus(v string) (TopupStatus, error) {
	switch v {
	case "pending":
		return TopupPending, nil
	case "completed":
		return TopupCompleted, nil
	case "failed":
		return TopupFailed, nil
	}
	return 0, fmt.Errorf("unknown topup status %q", v)
}

// Transition is the only place topup status changes are decided.
// pending -> completed | failed; completed and failed are terminal.
func Transition(from, to TopupStatus) (TopupStatus, error) {
	if from != TopupPending || !to.Terminal() {
		return from, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return to, nil
}

func (s TopupStatus) Value() (driver.Value, error) {
	if s < TopupPending || s > TopupFailed {
		return nil, fmt.Errorf("invalid topup status %d", int(s))
	}
	return s.String(), nil
}

func (s *TopupStatus) Scan(src interface{}) error {
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("cannot scan %T into TopupStatus", src)
	}
	parsed, err := ParseTopupStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s TopupStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *TopupStatus) UnmarshalText(b []byte) error {
	parsed, err := ParseTopupStatus(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

type Topup struct {
	ID             int64               `db:"id" json:"id"`
	UserID         int64               `db:"user_id" json:"user_id"`
	CardID         string              `db:"card_id" json:"card_id"`
	Amount         decimal.Decimal     `db:"amount" json:"amount"`
	TxID           string              `db:"txid" json:"txid"`
	Status         TopupStatus         `db:"status" json:"status"`
	FundedAmount   decimal.NullDecimal `db:"funded_amount" json:"funded_amount,omitempty"`
	IdempotencyKey *string             `db:"idempotency_key" json:"-"`
	DispatchedAt   *time.Time          `db:"dispatched_at" json:"dispatched_at,omitempty"`
	FailureReason  *string             `db:"failure_reason" json:"failure_reason,omitempty"`
	CreatedAt      time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time           `db:"updated_at" json:"updated_at"`
}

// Dispatched reports whether a funding call was ever started for the topup.
func (t Topup) Dispatched() bool {
	return t.DispatchedAt != nil
}

// Deletable reports whether removing the row can free its txid safely. A completed row
// would let the payment fund a card again, an in-flight row still carries its funding intent.
func (t Topup) Deletable() bool {
	switch t.Status {
	case TopupFailed:
		return true
	case TopupPending:
		return !t.Dispatched()
	}
	return false
}

type TopupInput struct {
	Amount decimal.Decimal `json:"amount"`
	CardID string          `json:"cardId"`
	TxID   string          `json:"txid"`
}

type TopupStatusInput struct {
	ID     int64  `json:"id"`
	TxID   string `json:"txid"`
	Status string `json:"status"`
}
