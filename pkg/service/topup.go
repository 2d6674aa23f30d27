package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"virtualcard_back/models"
	"virtualcard_back/pkg/metrics"
	"virtualcard_back/pkg/repository"
	"virtualcard_back/pkg/tronclient"
)

const (
	historyLimit = 100

	msgPending = "Payment not yet confirmed on TRON chain. Will remain pending."
)

var ErrCardNotFound = errors.New("card not found")

type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ReplayError rejects a txid that was already used for another topup.
type ReplayError struct {
	TxID   string
	Status models.TopupStatus
}

func (e *ReplayError) Error() string {
	return fmt.Sprintf("transaction %s was already submitted (%s)", e.TxID, e.Status)
}

type TopupConfig struct {
	WalletAddress string
	MinimumAmount decimal.Decimal
}

type TopupService struct {
	topups     repository.Topup
	cards      repository.Card
	verifier   PaymentVerifier
	dispatcher *FundingDispatcher
	cfg        TopupConfig
	log        logrus.FieldLogger
}

func NewTopupService(topups repository.Topup, cards repository.Card, verifier PaymentVerifier,
	dispatcher *FundingDispatcher, cfg TopupConfig, log logrus.FieldLogger) *TopupService {
	return &TopupService{
		topups:     topups,
		cards:      cards,
		verifier:   verifier,
		dispatcher: dispatcher,
		cfg:        cfg,
		log:        log,
	}
}

// Submit runs intake, records the pending row, verifies the payment and funds the card.
// An unconfirmed payment is not an error: the result carries status pending.
func (s *TopupService) Submit(ctx context.Context, who models.Identity, input models.TopupInput) (*TopupResult, error) {
	input.CardID = strings.TrimSpace(input.CardID)
	input.TxID = strings.ToLower(strings.TrimSpace(input.TxID))
	if err := s.validate(input); err != nil {
		metrics.TopupOutcomes.WithLabelValues(metrics.OutcomeRejected).Inc()
		return nil, err
	}

	card, err := s.cards.GetCard(ctx, input.CardID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && card.UserID != who.ID) {
		return nil, ErrCardNotFound
	}
	if err != nil {
		return nil, err
	}

	topup, err := s.recordPending(ctx, who.ID, input)
	if err != nil {
		return nil, err
	}
	log := s.log.WithFields(logrus.Fields{"topup_id": topup.ID, "txid": topup.TxID, "card_id": topup.CardID})

	if !s.verifier.Verify(ctx, topup.TxID, s.cfg.WalletAddress, topup.Amount) {
		metrics.LedgerVerifications.WithLabelValues("unconfirmed").Inc()
		metrics.TopupOutcomes.WithLabelValues(metrics.OutcomePending).Inc()
		log.Info("payment not confirmed, topup stays pending")
		return &TopupResult{TopupID: topup.ID, Status: models.TopupPending, Message: msgPending}, nil
	}
	metrics.LedgerVerifications.WithLabelValues("confirmed").Inc()

	return s.dispatcher.Dispatch(ctx, topup)
}

func (s *TopupService) validate(input models.TopupInput) error {
	if input.CardID == "" || input.TxID == "" || input.Amount.IsZero() {
		return &ValidationError{Message: "amount, cardId and txid are required"}
	}
	if input.Amount.LessThan(s.cfg.MinimumAmount) {
		return &ValidationError{Message: fmt.Sprintf("Minimum top-up amount is $%s", s.cfg.MinimumAmount.String())}
	}
	// сумма хранится в центах, иначе повтор и сверка не совпадут с записью
	if !input.Amount.Equal(input.Amount.Truncate(2)) {
		return &ValidationError{Message: "amount must have at most 2 decimal places"}
	}
	if !tronclient.ValidTxID(input.TxID) {
		return &ValidationError{Message: "txid must be a 64 character hex transaction hash"}
	}
	return nil
}

// recordPending inserts the pending row. A resubmission of the same request whose row
// was never dispatched resumes it, any other reuse of the txid is a replay.
func (s *TopupService) recordPending(ctx context.Context, userID int64, input models.TopupInput) (models.Topup, error) {
	topup := models.Topup{
		UserID: userID,
		CardID: input.CardID,
		Amount: input.Amount,
		TxID:   input.TxID,
		Status: models.TopupPending,
	}
	id, err := s.topups.CreatePending(ctx, topup)
	if err == nil {
		topup.ID = id
		return topup, nil
	}
	if !errors.Is(err, repository.ErrDuplicateTxID) {
		return topup, fmt.Errorf("failed to record topup: %w", err)
	}

	existing, err := s.topups.GetByTxID(ctx, input.TxID)
	if err != nil {
		return topup, fmt.Errorf("failed to load existing topup: %w", err)
	}
	if existing.Status == models.TopupPending && !existing.Dispatched() &&
		existing.UserID == userID && existing.CardID == input.CardID && existing.Amount.Equal(input.Amount) {
		return existing, nil
	}
	metrics.TopupOutcomes.WithLabelValues(metrics.OutcomeReplay).Inc()
	s.log.WithFields(logrus.Fields{"txid": input.TxID, "user_id": userID, "existing_topup": existing.ID}).
		Warn("rejected reused txid")
	return topup, &ReplayError{TxID: input.TxID, Status: existing.Status}
}

func (s *TopupService) History(ctx context.Context, userID int64) ([]models.Topup, error) {
	return s.topups.ListTopupsByUser(ctx, userID, historyLimit)
}
