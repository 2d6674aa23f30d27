package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"virtualcard_back/models"
)

func TestCreateTransactionSkipsKnownIDs(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTransactionPostgres(db)
	card := "crd_9"
	tx := models.Transaction{
		ID: "77", Type: "debit", Description: "ACME", Amount: decimal.RequireFromString("12.30"),
		Status: "completed", CardID: &card, OccurredAt: time.Now(), Source: models.TransactionSourceExternal,
	}

	mock.ExpectExec("INSERT INTO transactions (.+) ON CONFLICT \\(id\\) DO NOTHING").
		WillReturnResult(sqlmock.NewResult(0, 1))
	created, err := repo.CreateTransaction(context.Background(), tx)
	require.NoError(t, err)
	assert.True(t, created)

	mock.ExpectExec("INSERT INTO transactions").
		WillReturnResult(sqlmock.NewResult(0, 0))
	created, err = repo.CreateTransaction(context.Background(), tx)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestUpdateBalance(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCardPostgres(db)

	mock.ExpectExec("UPDATE cards SET balance = \\$1 WHERE id = \\$2").
		WithArgs("95.5", "crd_9").
		WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, repo.UpdateBalance(context.Background(), "crd_9", decimal.RequireFromString("95.50")))
}
