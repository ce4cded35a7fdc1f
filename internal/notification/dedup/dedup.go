// Package dedup suppresses duplicate notifications. The notification
// service keeps no database, so the idempotency check lives in a
// standalone seen-set instead of a transactional ledger. Best effort:
// losing the set means a duplicate email, never a lost one.
package dedup

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Deduper reports whether an event has already been handled, marking it
// handled as a side effect of the first call.
type Deduper interface {
	Seen(ctx context.Context, eventID uuid.UUID) (bool, error)
}

// MemoryDeduper is a bounded in-process seen-set. When the cap is reached
// the oldest entry is evicted first.
type MemoryDeduper struct {
	mu    sync.Mutex
	cap   int
	seen  map[uuid.UUID]*list.Element
	order *list.List
}

const DefaultCap = 10000

func NewMemoryDeduper(cap int) *MemoryDeduper {
	if cap <= 0 {
		cap = DefaultCap
	}
	return &MemoryDeduper{
		cap:   cap,
		seen:  make(map[uuid.UUID]*list.Element, cap),
		order: list.New(),
	}
}

func (d *MemoryDeduper) Seen(_ context.Context, eventID uuid.UUID) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[eventID]; ok {
		return true, nil
	}
	if d.order.Len() >= d.cap {
		oldest := d.order.Front()
		d.order.Remove(oldest)
		delete(d.seen, oldest.Value.(uuid.UUID))
	}
	d.seen[eventID] = d.order.PushBack(eventID)
	return false, nil
}

// RedisDeduper shares the seen-set across notification replicas using
// SET NX with a TTL.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

const DefaultTTL = 24 * time.Hour

func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisDeduper{client: client, ttl: ttl}
}

func (d *RedisDeduper) Seen(ctx context.Context, eventID uuid.UUID) (bool, error) {
	ok, err := d.client.SetNX(ctx, "notification:seen:"+eventID.String(), 1, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup: redis setnx: %w", err)
	}
	return !ok, nil
}
