package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Card struct {
	ID        string          `db:"id" json:"id"`
	UserID    int64           `db:"user_id" json:"user_id"`
	Number    string          `db:"number" json:"number"`
	CVV       string          `db:"cvv" json:"cvv"`
	Expiry    string          `db:"expiry" json:"expiry"`
	Balance   decimal.Decimal `db:"balance" json:"balance"`
	Status    string          `db:"status" json:"status"`
	Type      string          `db:"type" json:"type"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// MaskedNumber keeps the first and last four digits.
func (c Card) MaskedNumber() string {
	return MaskCardNumber(c.Number)
}

func MaskCardNumber(number string) string {
	if len(number) < 8 {
		return number
	}
	return number[:4] + " **** **** " + number[len(number)-4:]
}

type CardResponse struct {
	ID           string          `json:"id"`
	UserID       int64           `json:"user_id,omitempty"`
	MaskedNumber string          `json:"maskedNumber"`
	Expiry       string          `json:"expiry"`
	Balance      decimal.Decimal `json:"balance"`
	Status       string          `json:"status"`
	Type         string          `json:"type"`
	CreatedAt    time.Time       `json:"created_at"`
}

func (c Card) Response() CardResponse {
	return CardResponse{
		ID:           c.ID,
		UserID:       c.UserID,
		MaskedNumber: c.MaskedNumber(),
		Expiry:       c.Expiry,
		Balance:      c.Balance,
		Status:       c.Status,
		Type:         c.Type,
		CreatedAt:    c.CreatedAt,
	}
}

type CreateCardInput struct {
	UserID  int64  `json:"userId"`
	Purpose string `json:"purpose"`
}
