package evaluation

import (
	"context"
	"sync"
	"time"
)

// Storage is a durable key-value slot holding serialized drafts.
type Storage interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// MemoryStorage keeps slots in process memory.
type MemoryStorage struct {
	mu    sync.Mutex
	items map[string]string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{items: map[string]string{}}
}

func (m *MemoryStorage) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items[key]
	return v, ok, nil
}

func (m *MemoryStorage) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	m.items[key] = value
	m.mu.Unlock()
	return nil
}

func (m *MemoryStorage) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
	return nil
}

// MemoryPool hands out one MemoryStorage per client. Clients idle for longer
// than ttl are dropped, and the least recently used client is evicted once
// max clients are held.
type MemoryPool struct {
	mu      sync.Mutex
	ttl     time.Duration
	max     int
	now     func() time.Time
	clients map[string]*pooledStorage
}

type pooledStorage struct {
	store    *MemoryStorage
	lastSeen time.Time
}

func NewMemoryPool(ttl time.Duration, limit int) *MemoryPool {
	return &MemoryPool{ttl: ttl, max: max(limit, 1), now: time.Now, clients: map[string]*pooledStorage{}}
}

// For returns the storage of client, creating it when absent.
func (p *MemoryPool) For(client string) *MemoryStorage {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if e, ok := p.clients[client]; ok {
		if now.Sub(e.lastSeen) <= p.ttl {
			e.lastSeen = now
			return e.store
		}
		delete(p.clients, client)
	}
	if len(p.clients) >= p.max {
		p.evict(now)
	}
	e := &pooledStorage{store: NewMemoryStorage(), lastSeen: now}
	p.clients[client] = e
	return e.store
}

// Len reports how many clients are held.
func (p *MemoryPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.clients)
}

// evict drops idle clients, then the oldest one if the pool is still full.
func (p *MemoryPool) evict(now time.Time) {
	var oldest string
	var oldestSeen time.Time
	for id, e := range p.clients {
		if now.Sub(e.lastSeen) > p.ttl {
			delete(p.clients, id)
			continue
		}
		if oldest == "" || e.lastSeen.Before(oldestSeen) {
			oldest, oldestSeen = id, e.lastSeen
		}
	}
	if len(p.clients) >= p.max && oldest != "" {
		delete(p.clients, oldest)
	}
}
