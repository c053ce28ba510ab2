package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"agri-ivr/pkg/utils"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker serializes turns for one call id. Different call ids never contend.
//
// Telephony gateways retry webhooks on timeout, so two deliveries for the same
// call can be in flight at once; the whole read-decide-write of a turn runs
// under the lock and a delete is the last write before unlock.
type Locker interface {
	Lock(ctx context.Context, callID string) (unlock func(), err error)
}

// KeyedMutex is an in-process Locker. Entries are reference counted and
// removed once nobody holds or waits on them.
type KeyedMutex struct {
	mu      sync.Mutex
	entries map[string]*keyedEntry
}

type keyedEntry struct {
	ch   chan struct{}
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{entries: map[string]*keyedEntry{}}
}

func (k *KeyedMutex) Lock(ctx context.Context, callID string) (func(), error) {
	k.mu.Lock()
	e, ok := k.entries[callID]
	if !ok {
		e = &keyedEntry{ch: make(chan struct{}, 1)}
		k.entries[callID] = e
	}
	e.refs++
	k.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		k.release(callID, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			k.release(callID, e)
		})
	}, nil
}

func (k *KeyedMutex) release(callID string, e *keyedEntry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.entries, callID)
	}
}

// size is the number of tracked keys (tests only).
func (k *KeyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}

const redisLockPrefix = "ivr:lock:"

// RedisLocker is a Locker shared by every instance pointing at the same redis.
// The lock carries a TTL so a crashed holder cannot pin a call forever; the
// TTL must exceed the longest turn (advisory timeout plus slack).
type RedisLocker struct {
	rdb      *redis.Client
	ttl      time.Duration
	retry    time.Duration
	newToken func() string
	log      *slog.Logger
}

func NewRedisLocker(rdb *redis.Client, ttl time.Duration, log *slog.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &RedisLocker{rdb: rdb, ttl: ttl, retry: 25 * time.Millisecond, newToken: uuid.NewString, log: log}
}

func (l *RedisLocker) Lock(ctx context.Context, callID string) (func(), error) {
	key := redisLockPrefix + callID
	token := l.newToken()
	for {
		ok, err := utils.AcquireLock(ctx, l.rdb, key, token, l.ttl)
		if err != nil {
			return nil, fmt.Errorf("session: acquire lock: %w", err)
		}
		if ok {
			break
		}
		t := time.NewTimer(l.retry)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The turn's context may already be cancelled; release regardless.
			rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := utils.ReleaseLock(rctx, l.rdb, key, token); err != nil {
				l.log.Warn("call lock release failed", "call_id", callID, "err", err)
			}
		})
	}, nil
}
