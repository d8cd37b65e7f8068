package cache

import (
	"sync"
	"time"

	"github.com/xela07ax/capnego/internal/domain"
	"go.uber.org/zap"
)

const DefaultTTL = 5 * time.Minute

type entry struct {
	result domain.CapabilityResult
	// Нулевое значение - без срока (blocked).
	expiresAt time.Time
}

// ResultCache - in-memory кэш последнего известного статуса по каждой возможности.
// blocked по TTL не истекает: снимается только явным Invalidate.
type ResultCache struct {
	mu      sync.RWMutex
	entries map[domain.CapabilityType]entry

	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
}

type Option func(*ResultCache)

// WithClock подменяет часы (тесты).
func WithClock(now func() time.Time) Option {
	return func(c *ResultCache) { c.now = now }
}

func New(ttl time.Duration, logger *zap.Logger, opts ...Option) *ResultCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &ResultCache{
		entries: make(map[domain.CapabilityType]entry),
		ttl:     ttl,
		now:     time.Now,
		logger:  logger.Named("cache"),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Get возвращает действующую запись с source=cache.
func (c *ResultCache) Get(t domain.CapabilityType) (domain.CapabilityResult, bool) {
	c.mu.RLock()
	e, ok := c.entries[t]
	c.mu.RUnlock()
	if !ok {
		return domain.CapabilityResult{}, false
	}
	if !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt) {
		c.mu.Lock()
		// Запись могли перезаписать между RUnlock и Lock.
		if cur, ok := c.entries[t]; ok && cur.expiresAt.Equal(e.expiresAt) {
			delete(c.entries, t)
		}
		c.mu.Unlock()
		return domain.CapabilityResult{}, false
	}
	return e.result.WithSource(domain.SourceCache), true
}

// Put сохраняет результат. ttl <= 0 - TTL по умолчанию.
func (c *ResultCache) Put(t domain.CapabilityType, r domain.CapabilityResult, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	e := entry{result: r.Clone()}
	if r.Status != domain.StatusBlocked {
		e.expiresAt = c.now().Add(ttl)
	}

	c.mu.Lock()
	c.entries[t] = e
	c.mu.Unlock()
}

// PutIfNewer пишет результат, только если действующая запись получена не позже since
// (начала обращения к ОС, давшего r). Возвращает false, если запись оставлена как есть.
func (c *ResultCache) PutIfNewer(t domain.CapabilityType, r domain.CapabilityResult, since time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		ttl = c.ttl
	}
	now := c.now()
	e := entry{result: r.Clone()}
	if r.Status != domain.StatusBlocked {
		e.expiresAt = now.Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.entries[t]; ok {
		live := cur.expiresAt.IsZero() || now.Before(cur.expiresAt)
		if live && cur.result.Metadata.Timestamp.After(since) {
			return false
		}
	}
	c.entries[t] = e
	return true
}

// Invalidate удаляет запись; для композита - и записи его частей.
func (c *ResultCache) Invalidate(t domain.CapabilityType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, t)
	for _, part := range t.Components() {
		delete(c.entries, part)
	}
}

func (c *ResultCache) InvalidateAll() {
	c.mu.Lock()
	n := len(c.entries)
	c.entries = make(map[domain.CapabilityType]entry)
	c.mu.Unlock()

	c.logger.Debug("cache cleared", zap.Int("entries", n))
}

func (c *ResultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
