package cache

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const DefaultTTL = 10 * time.Minute

type cachedBalance struct {
	Balance   decimal.Decimal
	Timestamp time.Time
}

// BalanceCache keeps the last provider-reported card balances. The provider stays
// authoritative, entries are only a shortcut for dashboards.
type BalanceCache struct {
	mu      sync.Mutex
	entries map[string]cachedBalance
	ttl     time.Duration
	now     func() time.Time
	log     logrus.FieldLogger
}

func NewBalanceCache(ttl time.Duration, log logrus.FieldLogger) *BalanceCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &BalanceCache{
		entries: make(map[string]cachedBalance),
		ttl:     ttl,
		now:     time.Now,
		log:     log,
	}
}

// Get возвращает баланс из кэша или false, если его нет или он устарел
func (c *BalanceCache) Get(cardID string) (decimal.Decimal, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[cardID]
	if !ok {
		return decimal.Zero, false
	}
	if c.now().Sub(entry.Timestamp) > c.ttl {
		delete(c.entries, cardID)
		return decimal.Zero, false
	}

	c.log.WithField("card_id", cardID).Debug("balance taken from cache")
	return entry.Balance, true
}

// Set сохраняет баланс в кэш
func (c *BalanceCache) Set(cardID string, balance decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[cardID] = cachedBalance{Balance: balance, Timestamp: c.now()}
}

// Add shifts a fresh entry by delta. Stale or missing entries are left alone,
// the next sync will fetch the real value.
func (c *BalanceCache) Add(cardID string, delta decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[cardID]
	if !ok || c.now().Sub(entry.Timestamp) > c.ttl {
		return
	}
	entry.Balance = entry.Balance.Add(delta)
	c.entries[cardID] = entry
}

func (c *BalanceCache) Invalidate(cardID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, cardID)
}
