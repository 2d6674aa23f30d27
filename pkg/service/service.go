package service

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"virtualcard_back/models"
	"virtualcard_back/pkg/cache"
	"virtualcard_back/pkg/config"
	"virtualcard_back/pkg/provider"
	"virtualcard_back/pkg/repository"
)

// PaymentVerifier confirms an on-chain payment. false means "not confirmed yet".
type PaymentVerifier interface {
	Verify(ctx context.Context, txID, expectedAddress string, expectedAmount decimal.Decimal) bool
}

// CardProvider is the card issuer's API, implemented by provider.Client.
type CardProvider interface {
	CreateCardholder(ctx context.Context, req provider.CardholderRequest, idempotencyKey string) (string, error)
	CreateCard(ctx context.Context, cardholderID, purpose, idempotencyKey string) (*provider.Card, error)
	FundCard(ctx context.Context, cardID string, amount decimal.Decimal, idempotencyKey string) (*provider.FundResult, error)
	GetCard(ctx context.Context, cardID string) (*provider.Card, error)
	DeleteCard(ctx context.Context, cardID, idempotencyKey string) error
	CardTransactions(ctx context.Context, cardID string) ([]provider.CardTransaction, error)
}

type Notifier interface {
	SendVerification(to, token string)
	TopupCompleted(to, cardID string, funded decimal.Decimal)
	TopupFailed(to, cardID, reason string)
}

type Authorization interface {
	Register(ctx context.Context, input models.RegisterInput) (int64, error)
	Login(ctx context.Context, input models.LoginInput) (string, error)
	ParseToken(token string) (models.Identity, error)
	VerifyEmail(ctx context.Context, token string) error
	Me(ctx context.Context, userID int64) (models.User, error)
}

type Cards interface {
	ListCards(ctx context.Context, userID int64) ([]models.CardResponse, error)
	RequestCard(ctx context.Context, userID int64, purpose string) (models.CardResponse, error)
	SyncBalances(ctx context.Context) (int, error)
}

type Topup interface {
	Submit(ctx context.Context, who models.Identity, input models.TopupInput) (*TopupResult, error)
	History(ctx context.Context, userID int64) ([]models.Topup, error)
}

type Transactions interface {
	ListTransactions(ctx context.Context, userID int64) ([]models.Transaction, error)
}

type Admin interface {
	ListUsers(ctx context.Context) ([]models.User, error)
	ListAllCards(ctx context.Context) ([]models.CardResponse, error)
	ListAllTopups(ctx context.Context) ([]models.Topup, error)
	ListAllTransactions(ctx context.Context) ([]models.Transaction, error)
	CreateCardForUser(ctx context.Context, input models.CreateCardInput) (models.CardResponse, error)
	DeleteCard(ctx context.Context, cardID string, localOnly bool) error
	SetTopupStatus(ctx context.Context, input models.TopupStatusInput) (models.Topup, error)
	DeleteTopup(ctx context.Context, id int64) error
	SyncBalances(ctx context.Context) (int, error)
	ImportTransactions(ctx context.Context) (int, error)
}

type Service struct {
	Authorization
	Cards
	Topup
	Transactions
	Admin
	Reconcile *ReconcileJob
}

type Deps struct {
	Repos    *repository.Repository
	Verifier PaymentVerifier
	Provider CardProvider
	Cache    *cache.BalanceCache
	Notifier Notifier
	Config   *config.Config
	Log      logrus.FieldLogger
}

func NewService(d Deps) *Service {
	cfg := d.Config
	cards := NewCardService(d.Repos.Card, d.Repos.Authorization, d.Provider, d.Cache, d.Log)
	dispatcher := NewFundingDispatcher(d.Repos.Topup, d.Repos.Card, d.Repos.Authorization,
		d.Provider, cfg.MarkupPercent, d.Cache, d.Notifier, d.Log)
	topups := NewTopupService(d.Repos.Topup, d.Repos.Card, d.Verifier, dispatcher, TopupConfig{
		WalletAddress: cfg.WalletAddress,
		MinimumAmount: cfg.MinimumAmount,
	}, d.Log)

	return &Service{
		Authorization: NewAuthService(d.Repos.Authorization, d.Provider, d.Notifier, cfg.JWTSecret, cfg.JWTTTL, d.Log),
		Cards:         cards,
		Topup:         topups,
		Transactions:  NewTransactionService(d.Repos.Transaction, d.Repos.Topup),
		Admin:         NewAdminService(d.Repos, cards, d.Provider, d.Log),
		Reconcile:     NewReconcileJob(d.Repos.Topup, d.Verifier, dispatcher, cards, cfg.WalletAddress, cfg.Reconcile, d.Log),
	}
}
