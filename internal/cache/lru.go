package cache

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

// LRUProvider is an in-process Provider bounded by size. maxTTL caps every
// entry; shorter per-key TTLs are honoured on read.
type LRUProvider struct {
	mu     sync.Mutex
	items  *expirable.LRU[string, entry]
	maxTTL time.Duration
	now    func() time.Time
}

// NewLRUProvider constructs an LRUProvider.
func NewLRUProvider(size int, maxTTL time.Duration) *LRUProvider {
	if size <= 0 {
		size = 128
	}
	if maxTTL <= 0 {
		maxTTL = time.Minute
	}
	return &LRUProvider{
		items:  expirable.NewLRU[string, entry](size, nil, maxTTL),
		maxTTL: maxTTL,
		now:    time.Now,
	}
}

func (p *LRUProvider) Get(_ context.Context, key string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.lookup(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	return append([]byte(nil), e.value...), nil
}

func (p *LRUProvider) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.items.Add(key, p.newEntry(value, ttl))
	return nil
}

// SetNX stores value only when key is absent or expired.
func (p *LRUProvider) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.lookup(key); ok {
		return false, nil
	}
	p.items.Add(key, p.newEntry(value, ttl))
	return true, nil
}

func (p *LRUProvider) Del(_ context.Context, key string) error {
	p.items.Remove(key)
	return nil
}

// Close drops all entries.
func (p *LRUProvider) Close() error {
	p.items.Purge()
	return nil
}

// lookup must be called with mu held.
func (p *LRUProvider) lookup(key string) (entry, bool) {
	e, ok := p.items.Get(key)
	if !ok {
		return entry{}, false
	}
	if !p.now().Before(e.expiresAt) {
		p.items.Remove(key)
		return entry{}, false
	}
	return e, true
}

func (p *LRUProvider) newEntry(value []byte, ttl time.Duration) entry {
	if ttl <= 0 || ttl > p.maxTTL {
		ttl = p.maxTTL
	}
	return entry{value: append([]byte(nil), value...), expiresAt: p.now().Add(ttl)}
}
