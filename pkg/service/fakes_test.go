package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"

	"virtualcard_back/models"
	"virtualcard_back/pkg/cache"
	"virtualcard_back/pkg/provider"
	"virtualcard_back/pkg/repository"
)

const (
	testWallet = "TLBaRhANQoJFTqre9Nf1mjuwNWjCJeYqUL"
	testTxID   = "7c2d4fb1f8a0b7c1d6e3a9f04e1b2c3d4e5f60718293a4b5c6d7e8f901a2b3c4"
	otherTxID  = "0000000000000000000000000000000000000000000000000000000000000abc"
)

type memTopups struct {
	mu          sync.Mutex
	rows        map[int64]*models.Topup
	nextID      int64
	createCalls int
	now         func() time.Time
}

func newMemTopups() *memTopups {
	return &memTopups{rows: map[int64]*models.Topup{}, now: time.Now}
}

func (m *memTopups) CreatePending(_ context.Context, t models.Topup) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	for _, r := range m.rows {
		if r.TxID == t.TxID {
			return 0, repository.ErrDuplicateTxID
		}
	}
	m.nextID++
	t.ID = m.nextID
	t.Status = models.TopupPending
	t.CreatedAt = m.now()
	t.UpdatedAt = t.CreatedAt
	m.rows[t.ID] = &t
	return t.ID, nil
}

func (m *memTopups) GetByTxID(_ context.Context, txID string) (models.Topup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.TxID == txID {
			return *r, nil
		}
	}
	return models.Topup{}, repository.ErrNotFound
}

func (m *memTopups) GetByID(_ context.Context, id int64) (models.Topup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rows[id]; ok {
		return *r, nil
	}
	return models.Topup{}, repository.ErrNotFound
}

func (m *memTopups) ClaimForDispatch(_ context.Context, id int64, key string, funded decimal.Decimal) (models.Topup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok || r.Status != models.TopupPending || r.Dispatched() {
		return models.Topup{}, repository.ErrStaleStatus
	}
	now := m.now()
	r.IdempotencyKey = &key
	r.FundedAmount = decimal.NewNullDecimal(funded)
	r.DispatchedAt = &now
	return *r, nil
}

func (m *memTopups) UpdateStatus(_ context.Context, txID string, from, to models.TopupStatus, reason *string) error {
	if _, err := models.Transition(from, to); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.TxID == txID && r.Status == from {
			r.Status = to
			r.FailureReason = reason
			return nil
		}
	}
	return repository.ErrStaleStatus
}

func (m *memTopups) ListTopupsByUser(_ context.Context, userID int64, limit int) ([]models.Topup, error) {
	var out []models.Topup
	for _, r := range m.sorted() {
		if r.UserID == userID && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memTopups) ListTopups(context.Context) ([]models.Topup, error) {
	return m.sorted(), nil
}

func (m *memTopups) ListUnverified(_ context.Context, olderThan, notBefore time.Time, limit int) ([]models.Topup, error) {
	var out []models.Topup
	for _, r := range m.sorted() {
		if r.Status == models.TopupPending && !r.Dispatched() &&
			!r.CreatedAt.After(olderThan) && !r.CreatedAt.Before(notBefore) && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memTopups) ListInFlight(_ context.Context, olderThan time.Time, limit int) ([]models.Topup, error) {
	var out []models.Topup
	for _, r := range m.sorted() {
		if r.Status == models.TopupPending && r.Dispatched() && !r.DispatchedAt.After(olderThan) && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memTopups) DeleteTopup(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	if !r.Deletable() {
		return repository.ErrStaleStatus
	}
	delete(m.rows, id)
	return nil
}

func (m *memTopups) sorted() []models.Topup {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Topup, 0, len(m.rows))
	for _, r := range m.rows {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// row returns the live row for assertions and direct edits in tests.
func (m *memTopups) row(txID string) *models.Topup {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.TxID == txID {
			return r
		}
	}
	return nil
}

type memCards struct {
	mu    sync.Mutex
	cards map[string]*models.Card
}

func newMemCards(cards ...models.Card) *memCards {
	m := &memCards{cards: map[string]*models.Card{}}
	for i := range cards {
		c := cards[i]
		m.cards[c.ID] = &c
	}
	return m
}

func (m *memCards) CreateCard(_ context.Context, c models.Card) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cards[c.ID] = &c
	return nil
}

func (m *memCards) GetCard(_ context.Context, id string) (models.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.cards[id]; ok {
		return *c, nil
	}
	return models.Card{}, repository.ErrNotFound
}

func (m *memCards) ListCardsByUser(_ context.Context, userID int64) ([]models.Card, error) {
	all, _ := m.ListCards(context.Background())
	var out []models.Card
	for _, c := range all {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memCards) ListCards(context.Context) ([]models.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Card, 0, len(m.cards))
	for _, c := range m.cards {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memCards) UpdateBalance(_ context.Context, id string, balance decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.cards[id]; ok {
		c.Balance = balance
	}
	return nil
}

func (m *memCards) AddBalance(_ context.Context, id string, delta decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.cards[id]; ok {
		c.Balance = c.Balance.Add(delta)
	}
	return nil
}

func (m *memCards) DeleteCard(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cards[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.cards, id)
	return nil
}

type memUsers struct {
	mu    sync.Mutex
	users map[int64]*models.User
}

func newMemUsers(users ...models.User) *memUsers {
	m := &memUsers{users: map[int64]*models.User{}}
	for i := range users {
		u := users[i]
		m.users[u.ID] = &u
	}
	return m
}

func (m *memUsers) CreateUser(_ context.Context, u models.User) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return 0, repository.ErrDuplicateUser
		}
	}
	u.ID = int64(len(m.users) + 1)
	m.users[u.ID] = &u
	return u.ID, nil
}

func (m *memUsers) GetUserByEmail(_ context.Context, email string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return *u, nil
		}
	}
	return models.User{}, repository.ErrNotFound
}

func (m *memUsers) GetUserByID(_ context.Context, id int64) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return *u, nil
	}
	return models.User{}, repository.ErrNotFound
}

func (m *memUsers) SetCardholderID(_ context.Context, userID int64, holderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[userID].CardholderID = &holderID
	return nil
}

func (m *memUsers) SetVerified(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.Verified = true
	return nil
}

func (m *memUsers) ListUsers(context.Context) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, *u)
	}
	return out, nil
}

type memTransactions struct {
	rows []models.Transaction
}

func (m *memTransactions) CreateTransaction(_ context.Context, tx models.Transaction) (bool, error) {
	for _, r := range m.rows {
		if r.ID == tx.ID {
			return false, nil
		}
	}
	m.rows = append(m.rows, tx)
	return true, nil
}

func (m *memTransactions) ListTransactionsByUser(_ context.Context, userID int64) ([]models.Transaction, error) {
	var out []models.Transaction
	for _, r := range m.rows {
		if r.UserID != nil && *r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memTransactions) ListTransactions(context.Context) ([]models.Transaction, error) {
	return m.rows, nil
}

type verifyCall struct {
	txID    string
	address string
	amount  decimal.Decimal
}

type fakeVerifier struct {
	mu        sync.Mutex
	confirmed bool
	calls     []verifyCall
}

func (f *fakeVerifier) Verify(_ context.Context, txID, address string, amount decimal.Decimal) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, verifyCall{txID, address, amount})
	return f.confirmed
}

type fundCall struct {
	cardID string
	amount decimal.Decimal
	key    string
}

type fakeProvider struct {
	mu        sync.Mutex
	fundErr   error
	fundCalls []fundCall
	balances  map[string]decimal.Decimal
	holders   int
	created   []string
	deleted   []string
	txs       map[string][]provider.CardTransaction
}

func (f *fakeProvider) CreateCardholder(context.Context, provider.CardholderRequest, string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.holders++
	return "holder-1", nil
}

func (f *fakeProvider) CreateCard(_ context.Context, holderID, purpose, _ string) (*provider.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, holderID+"/"+purpose)
	return &provider.Card{
		ID: "crd_new", CardNumber: "4532123412341234", CVV: "123",
		ExpMonth: "12", ExpYear: "2027", State: "ACTIVE",
	}, nil
}

func (f *fakeProvider) FundCard(_ context.Context, cardID string, amount decimal.Decimal, key string) (*provider.FundResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fundCalls = append(f.fundCalls, fundCall{cardID, amount, key})
	if f.fundErr != nil {
		return nil, f.fundErr
	}
	return &provider.FundResult{Raw: []byte(`{"status":"success"}`)}, nil
}

func (f *fakeProvider) GetCard(_ context.Context, cardID string) (*provider.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	balance, ok := f.balances[cardID]
	if !ok {
		return nil, &provider.APIError{StatusCode: 404, Message: "card not found"}
	}
	return &provider.Card{ID: provider.FlexString(cardID), Balance: balance}, nil
}

func (f *fakeProvider) DeleteCard(_ context.Context, cardID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, cardID)
	return nil
}

func (f *fakeProvider) CardTransactions(_ context.Context, cardID string) ([]provider.CardTransaction, error) {
	return f.txs[cardID], nil
}

func (f *fakeProvider) fundCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fundCalls)
}

type fakeNotifier struct {
	mu        sync.Mutex
	completed []string
	failed    []string
	verify    []string
	tokens    []string
}

func (n *fakeNotifier) SendVerification(to, token string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.verify = append(n.verify, to)
	n.tokens = append(n.tokens, token)
}

func (n *fakeNotifier) TopupCompleted(to, cardID string, _ decimal.Decimal) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completed = append(n.completed, to+"/"+cardID)
}

func (n *fakeNotifier) TopupFailed(to, cardID, _ string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, to+"/"+cardID)
}

// env wires the topup pipeline over in-memory collaborators.
type env struct {
	topups   *memTopups
	cards    *memCards
	users    *memUsers
	verifier *fakeVerifier
	provider *fakeProvider
	notifier *fakeNotifier
	cache    *cache.BalanceCache
	svc      *TopupService
	disp     *FundingDispatcher
	cardSvc  *CardService
}

var alice = models.Identity{ID: 1, Email: "alice@example.com", Role: models.RoleUser}

func newEnv() *env {
	log, _ := test.NewNullLogger()
	e := &env{
		topups: newMemTopups(),
		cards: newMemCards(
			models.Card{ID: "card_1", UserID: 1, Number: "4532123412341234", Balance: decimal.NewFromInt(20)},
			models.Card{ID: "card_2", UserID: 2, Number: "4532000000009999"},
		),
		users: newMemUsers(
			models.User{ID: 1, Email: "alice@example.com", FirstName: "Alice", LastName: "Doe"},
			models.User{ID: 2, Email: "bob@example.com", FirstName: "Bob", LastName: "Roe"},
		),
		verifier: &fakeVerifier{confirmed: true},
		provider: &fakeProvider{balances: map[string]decimal.Decimal{}},
		notifier: &fakeNotifier{},
		cache:    cache.NewBalanceCache(time.Minute, log),
	}
	e.disp = NewFundingDispatcher(e.topups, e.cards, e.users, e.provider, decimal.NewFromInt(5), e.cache, e.notifier, log)
	e.svc = NewTopupService(e.topups, e.cards, e.verifier, e.disp, TopupConfig{
		WalletAddress: testWallet,
		MinimumAmount: decimal.NewFromInt(10),
	}, log)
	e.cardSvc = NewCardService(e.cards, e.users, e.provider, e.cache, log)
	return e
}
