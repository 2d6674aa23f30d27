package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"virtualcard_back/models"
	"virtualcard_back/pkg/provider"
	"virtualcard_back/pkg/repository"
)

type TransactionService struct {
	txs    repository.Transaction
	topups repository.Topup
}

func NewTransactionService(txs repository.Transaction, topups repository.Topup) *TransactionService {
	return &TransactionService{txs: txs, topups: topups}
}

// ListTransactions merges stored card transactions with the user's top-ups, newest first.
func (s *TransactionService) ListTransactions(ctx context.Context, userID int64) ([]models.Transaction, error) {
	txs, err := s.txs.ListTransactionsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	topups, err := s.topups.ListTopupsByUser(ctx, userID, historyLimit)
	if err != nil {
		return nil, err
	}
	return mergeTopups(txs, topups), nil
}

func mergeTopups(txs []models.Transaction, topups []models.Topup) []models.Transaction {
	out := make([]models.Transaction, 0, len(txs)+len(topups))
	out = append(out, txs...)
	for _, t := range topups {
		out = append(out, topupTransaction(t))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OccurredAt.After(out[j].OccurredAt)
	})
	return out
}

func topupTransaction(t models.Topup) models.Transaction {
	userID := t.UserID
	cardID := t.CardID
	return models.Transaction{
		ID:          fmt.Sprintf("topup-%d", t.ID),
		UserID:      &userID,
		Type:        "topup",
		Description: "USDT top-up " + t.TxID,
		Amount:      t.Amount,
		Status:      t.Status.String(),
		CardID:      &cardID,
		OccurredAt:  t.CreatedAt,
		Source:      models.TransactionSourceTopup,
	}
}

func externalTransaction(card models.Card, pt provider.CardTransaction) models.Transaction {
	userID := card.UserID
	cardID := card.ID
	occurred, err := time.Parse(time.RFC3339, pt.DateCreated)
	if err != nil {
		occurred = time.Now()
	}
	description := pt.Merchant
	if description == "" {
		description = pt.Description
	}
	status := pt.Status
	if status == "" {
		status = "completed"
	}
	return models.Transaction{
		ID:          "ext-" + pt.ID.String(),
		UserID:      &userID,
		Type:        "card",
		Description: description,
		Amount:      pt.Amount,
		Status:      status,
		CardID:      &cardID,
		OccurredAt:  occurred,
		Source:      models.TransactionSourceExternal,
	}
}
