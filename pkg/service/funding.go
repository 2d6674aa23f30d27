package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"virtualcard_back/models"
	"virtualcard_back/pkg/cache"
	"virtualcard_back/pkg/metrics"
	"virtualcard_back/pkg/provider"
	"virtualcard_back/pkg/repository"
)

var (
	// ErrFundingUnknown means the provider gave no answer. The row keeps its intent and the
	// reconciliation job finishes it with the same idempotency key.
	ErrFundingUnknown = errors.New("funding outcome unknown, the top-up stays pending and will be reconciled")
	// ErrAlreadyDispatched means another request holds the dispatch right for the row.
	ErrAlreadyDispatched = errors.New("top-up is already being processed")
)

// fundingNamespace scopes the deterministic funding keys.
var fundingNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("virtualcard.topup.fund"))

// FundingError is a provider rejection after the payment was verified.
type FundingError struct {
	StatusCode int
	Message    string
}

func (e *FundingError) Error() string {
	return e.Message
}

// FundedAmount deducts the markup and clamps at zero, rounded to cents.
func FundedAmount(amount, markupPercent decimal.Decimal) decimal.Decimal {
	fee := amount.Mul(markupPercent).Div(decimal.NewFromInt(100))
	funded := amount.Sub(fee)
	if funded.IsNegative() {
		return decimal.Zero
	}
	return funded.Round(2)
}

// IdempotencyKey is the same for every attempt to fund one topup, so retries collapse provider side.
func IdempotencyKey(cardID, txID string) string {
	return uuid.NewSHA1(fundingNamespace, []byte(cardID+":"+txID)).String()
}

type TopupResult struct {
	TopupID      int64              `json:"topupId"`
	Status       models.TopupStatus `json:"status"`
	Message      string             `json:"message"`
	FundedAmount decimal.Decimal    `json:"fundedAmount"`
	ProviderData json.RawMessage    `json:"providerData,omitempty"`
}

type FundingDispatcher struct {
	topups   repository.Topup
	cards    repository.Card
	users    repository.Authorization
	provider CardProvider
	markup   decimal.Decimal
	cache    *cache.BalanceCache
	notifier Notifier
	log      logrus.FieldLogger
}

func NewFundingDispatcher(topups repository.Topup, cards repository.Card, users repository.Authorization,
	p CardProvider, markup decimal.Decimal, c *cache.BalanceCache, n Notifier, log logrus.FieldLogger) *FundingDispatcher {
	return &FundingDispatcher{
		topups:   topups,
		cards:    cards,
		users:    users,
		provider: p,
		markup:   markup,
		cache:    c,
		notifier: n,
		log:      log,
	}
}

// Dispatch claims the row and funds the card. Callers must only get here after the
// payment was verified.
func (d *FundingDispatcher) Dispatch(ctx context.Context, t models.Topup) (*TopupResult, error) {
	funded := FundedAmount(t.Amount, d.markup)
	claimed, err := d.topups.ClaimForDispatch(ctx, t.ID, IdempotencyKey(t.CardID, t.TxID), funded)
	if errors.Is(err, repository.ErrStaleStatus) {
		return nil, ErrAlreadyDispatched
	}
	if err != nil {
		return nil, fmt.Errorf("failed to record funding intent: %w", err)
	}
	return d.fund(ctx, claimed)
}

// Redispatch repeats the funding call of a row whose outcome was never recorded.
func (d *FundingDispatcher) Redispatch(ctx context.Context, t models.Topup) (*TopupResult, error) {
	if !t.Dispatched() || t.IdempotencyKey == nil || !t.FundedAmount.Valid {
		return nil, fmt.Errorf("topup %d carries no funding intent", t.ID)
	}
	return d.fund(ctx, t)
}

func (d *FundingDispatcher) fund(ctx context.Context, t models.Topup) (*TopupResult, error) {
	log := d.log.WithFields(logrus.Fields{"topup_id": t.ID, "txid": t.TxID, "card_id": t.CardID})
	funded := t.FundedAmount.Decimal

	var raw json.RawMessage
	if funded.IsPositive() {
		res, err := d.provider.FundCard(ctx, t.CardID, funded, *t.IdempotencyKey)
		if err != nil {
			return nil, d.settleFailure(ctx, t, err, log)
		}
		raw = res.Raw
	}

	result := &TopupResult{
		TopupID:      t.ID,
		Status:       models.TopupCompleted,
		Message:      "Card funded successfully",
		FundedAmount: funded,
		ProviderData: raw,
	}

	err := d.topups.UpdateStatus(ctx, t.TxID, models.TopupPending, models.TopupCompleted, nil)
	switch {
	case errors.Is(err, repository.ErrStaleStatus):
		// the other writer already applied the side effects
		log.Warn("topup settled concurrently")
		return result, nil
	case err != nil:
		log.WithError(err).Error("card funded but recording the outcome failed")
		return nil, fmt.Errorf("card funded but recording the outcome failed: %w", err)
	}

	if funded.IsPositive() {
		if err := d.cards.AddBalance(ctx, t.CardID, funded); err != nil {
			log.WithError(err).Warn("failed to update local card balance")
		}
		if d.cache != nil {
			d.cache.Add(t.CardID, funded)
		}
	}
	metrics.TopupOutcomes.WithLabelValues(metrics.OutcomeCompleted).Inc()
	log.WithField("funded_amount", funded.String()).Info("card funded")
	if email := d.email(ctx, t.UserID); email != "" {
		d.notifier.TopupCompleted(email, t.CardID, funded)
	}
	return result, nil
}

func (d *FundingDispatcher) settleFailure(ctx context.Context, t models.Topup, callErr error, log logrus.FieldLogger) error {
	var apiErr *provider.APIError
	if !errors.As(callErr, &apiErr) {
		metrics.TopupOutcomes.WithLabelValues(metrics.OutcomeUnknown).Inc()
		log.WithError(callErr).Warn("funding outcome unknown, leaving topup pending")
		return fmt.Errorf("%w: %v", ErrFundingUnknown, callErr)
	}

	reason := apiErr.Message
	if err := d.topups.UpdateStatus(ctx, t.TxID, models.TopupPending, models.TopupFailed, &reason); err != nil &&
		!errors.Is(err, repository.ErrStaleStatus) {
		log.WithError(err).Error("failed to mark topup failed")
		return fmt.Errorf("provider rejected funding (%s) and recording it failed: %w", reason, err)
	}
	metrics.TopupOutcomes.WithLabelValues(metrics.OutcomeFailed).Inc()
	log.WithFields(logrus.Fields{"status": apiErr.StatusCode, "reason": reason}).Warn("provider rejected funding")
	if email := d.email(ctx, t.UserID); email != "" {
		d.notifier.TopupFailed(email, t.CardID, reason)
	}
	return &FundingError{StatusCode: apiErr.StatusCode, Message: reason}
}

func (d *FundingDispatcher) email(ctx context.Context, userID int64) string {
	if d.notifier == nil || d.users == nil {
		return ""
	}
	user, err := d.users.GetUserByID(ctx, userID)
	if err != nil {
		d.log.WithField("user_id", userID).WithError(err).Warn("no email for notification")
		return ""
	}
	return user.Email
}
