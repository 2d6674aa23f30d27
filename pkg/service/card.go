package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"virtualcard_back/models"
	"virtualcard_back/pkg/cache"
	"virtualcard_back/pkg/provider"
	"virtualcard_back/pkg/repository"
)

const defaultCardPurpose = "visacard-1"

type CardService struct {
	cards    repository.Card
	users    repository.Authorization
	provider CardProvider
	cache    *cache.BalanceCache
	log      logrus.FieldLogger
}

func NewCardService(cards repository.Card, users repository.Authorization, p CardProvider,
	c *cache.BalanceCache, log logrus.FieldLogger) *CardService {
	return &CardService{cards: cards, users: users, provider: p, cache: c, log: log}
}

// ListCards returns the user's cards with the freshest balance known.
func (s *CardService) ListCards(ctx context.Context, userID int64) ([]models.CardResponse, error) {
	cards, err := s.cards.ListCardsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.responses(cards), nil
}

func (s *CardService) responses(cards []models.Card) []models.CardResponse {
	out := make([]models.CardResponse, 0, len(cards))
	for _, c := range cards {
		if s.cache != nil {
			if balance, ok := s.cache.Get(c.ID); ok {
				c.Balance = balance
			}
		}
		out = append(out, c.Response())
	}
	return out
}

// RequestCard issues a provider card, creating the cardholder first if the user has none.
func (s *CardService) RequestCard(ctx context.Context, userID int64, purpose string) (models.CardResponse, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return models.CardResponse{}, err
	}
	if purpose == "" {
		purpose = defaultCardPurpose
	}

	holderID, err := s.ensureCardholder(ctx, user, purpose)
	if err != nil {
		return models.CardResponse{}, err
	}

	pc, err := s.provider.CreateCard(ctx, holderID, purpose, uuid.NewString())
	if err != nil {
		return models.CardResponse{}, fmt.Errorf("failed to create card: %w", err)
	}
	card := models.Card{
		ID:      pc.ID.String(),
		UserID:  user.ID,
		Number:  pc.CardNumber,
		CVV:     pc.CVV,
		Expiry:  pc.Expiry(),
		Balance: pc.Balance,
		Status:  cardStatus(pc.State),
		Type:    "virtual",
	}
	if err := s.cards.CreateCard(ctx, card); err != nil {
		// the provider card exists already, keep its id in the logs for a manual fix
		s.log.WithFields(logrus.Fields{"card_id": card.ID, "user_id": user.ID}).WithError(err).
			Error("provider card created but not stored")
		return models.CardResponse{}, err
	}
	s.log.WithFields(logrus.Fields{"card_id": card.ID, "user_id": user.ID}).Info("card issued")
	return card.Response(), nil
}

func (s *CardService) ensureCardholder(ctx context.Context, user models.User, purpose string) (string, error) {
	if user.CardholderID != nil && *user.CardholderID != "" {
		return *user.CardholderID, nil
	}
	holderID, err := s.provider.CreateCardholder(ctx, cardholderRequest(user, purpose), uuid.NewString())
	if err != nil {
		return "", fmt.Errorf("failed to create cardholder: %w", err)
	}
	if err := s.users.SetCardholderID(ctx, user.ID, holderID); err != nil {
		return "", err
	}
	return holderID, nil
}

// SyncBalances copies the provider balance of every local card into the store and the cache.
func (s *CardService) SyncBalances(ctx context.Context) (int, error) {
	cards, err := s.cards.ListCards(ctx)
	if err != nil {
		return 0, err
	}
	synced := 0
	for _, c := range cards {
		if ctx.Err() != nil {
			return synced, ctx.Err()
		}
		pc, err := s.provider.GetCard(ctx, c.ID)
		if err != nil {
			s.log.WithField("card_id", c.ID).WithError(err).Warn("failed to fetch card balance")
			continue
		}
		if err := s.cards.UpdateBalance(ctx, c.ID, pc.Balance); err != nil {
			return synced, err
		}
		if s.cache != nil {
			s.cache.Set(c.ID, pc.Balance)
		}
		synced++
	}
	return synced, nil
}

func cardholderRequest(user models.User, purpose string) provider.CardholderRequest {
	dob := user.DateOfBirth
	if dob == "" {
		dob = "1990-01-01"
	}
	return provider.CardholderRequest{
		Name:         truncate(strings.TrimSpace(user.FirstName+" "+user.LastName), 23),
		FirstName:    truncate(user.FirstName, 12),
		MidName:      user.MidName,
		LastName:     truncate(user.LastName, 12),
		Gender:       user.Gender,
		DateOfBirth:  dob,
		EmailAddress: user.Email,
		Purpose:      purpose,
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func cardStatus(state string) string {
	if state == "" {
		return "active"
	}
	return strings.ToLower(state)
}
