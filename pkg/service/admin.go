package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"virtualcard_back/models"
	"virtualcard_back/pkg/repository"
)

// ErrTopupLocked rejects deleting a completed or in-flight topup, its txid must stay reserved.
var ErrTopupLocked = errors.New("completed or in-flight top-ups cannot be deleted")

type AdminService struct {
	repos    *repository.Repository
	cards    *CardService
	provider CardProvider
	log      logrus.FieldLogger
}

func NewAdminService(repos *repository.Repository, cards *CardService, p CardProvider, log logrus.FieldLogger) *AdminService {
	return &AdminService{repos: repos, cards: cards, provider: p, log: log.WithField("component", "admin")}
}

func (s *AdminService) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.repos.ListUsers(ctx)
}

func (s *AdminService) ListAllCards(ctx context.Context) ([]models.CardResponse, error) {
	cards, err := s.repos.ListCards(ctx)
	if err != nil {
		return nil, err
	}
	return s.cards.responses(cards), nil
}

func (s *AdminService) ListAllTopups(ctx context.Context) ([]models.Topup, error) {
	return s.repos.ListTopups(ctx)
}

func (s *AdminService) ListAllTransactions(ctx context.Context) ([]models.Transaction, error) {
	txs, err := s.repos.ListTransactions(ctx)
	if err != nil {
		return nil, err
	}
	topups, err := s.repos.ListTopups(ctx)
	if err != nil {
		return nil, err
	}
	return mergeTopups(txs, topups), nil
}

func (s *AdminService) CreateCardForUser(ctx context.Context, input models.CreateCardInput) (models.CardResponse, error) {
	if input.UserID == 0 {
		return models.CardResponse{}, &ValidationError{Message: "userId is required"}
	}
	return s.cards.RequestCard(ctx, input.UserID, input.Purpose)
}

// DeleteCard removes the card at the provider and locally. localOnly skips the provider,
// for cards that are already gone there.
func (s *AdminService) DeleteCard(ctx context.Context, cardID string, localOnly bool) error {
	if !localOnly {
		if err := s.provider.DeleteCard(ctx, cardID, uuid.NewString()); err != nil {
			return fmt.Errorf("failed to delete card at provider: %w", err)
		}
	}
	if err := s.repos.DeleteCard(ctx, cardID); err != nil {
		return err
	}
	if s.cards.cache != nil {
		s.cards.cache.Invalidate(cardID)
	}
	s.log.WithFields(logrus.Fields{"card_id": cardID, "local_only": localOnly}).Info("card deleted")
	return nil
}

// SetTopupStatus is the manual override. It goes through the same transition rule as
// the funding path, so settled rows cannot be changed.
func (s *AdminService) SetTopupStatus(ctx context.Context, input models.TopupStatusInput) (models.Topup, error) {
	to, err := models.ParseTopupStatus(strings.ToLower(input.Status))
	if err != nil {
		return models.Topup{}, &ValidationError{Message: err.Error()}
	}

	var t models.Topup
	switch {
	case input.TxID != "":
		t, err = s.repos.GetByTxID(ctx, strings.ToLower(input.TxID))
	case input.ID != 0:
		t, err = s.repos.GetByID(ctx, input.ID)
	default:
		return models.Topup{}, &ValidationError{Message: "id or txid is required"}
	}
	if err != nil {
		return models.Topup{}, err
	}
	if t.Dispatched() {
		// outcome of the funding call is still open, the reconciliation job owns the row
		return models.Topup{}, ErrAlreadyDispatched
	}

	if _, err := models.Transition(t.Status, to); err != nil {
		return models.Topup{}, &ValidationError{Message: err.Error()}
	}
	var reason *string
	if to == models.TopupFailed {
		r := "rejected by admin"
		reason = &r
	}
	if err := s.repos.UpdateStatus(ctx, t.TxID, t.Status, to, reason); err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			return models.Topup{}, &ValidationError{Message: "topup status changed, reload and retry"}
		}
		return models.Topup{}, err
	}
	s.log.WithFields(logrus.Fields{"txid": t.TxID, "status": to.String()}).Info("topup status set manually")
	return s.repos.GetByTxID(ctx, t.TxID)
}

func (s *AdminService) DeleteTopup(ctx context.Context, id int64) error {
	t, err := s.repos.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !t.Deletable() {
		return ErrTopupLocked
	}
	if err := s.repos.DeleteTopup(ctx, id); err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			return ErrTopupLocked
		}
		return err
	}
	s.log.WithFields(logrus.Fields{"txid": t.TxID, "status": t.Status.String()}).Info("topup deleted")
	return nil
}

func (s *AdminService) SyncBalances(ctx context.Context) (int, error) {
	return s.cards.SyncBalances(ctx)
}

// ImportTransactions pulls every card's provider transactions into the local store.
func (s *AdminService) ImportTransactions(ctx context.Context) (int, error) {
	cards, err := s.repos.ListCards(ctx)
	if err != nil {
		return 0, err
	}
	imported := 0
	for _, c := range cards {
		txs, err := s.provider.CardTransactions(ctx, c.ID)
		if err != nil {
			s.log.WithField("card_id", c.ID).WithError(err).Warn("failed to fetch card transactions")
			continue
		}
		for _, pt := range txs {
			created, err := s.repos.CreateTransaction(ctx, externalTransaction(c, pt))
			if err != nil {
				return imported, err
			}
			if created {
				imported++
			}
		}
	}
	return imported, nil
}
