package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisSessionPrefix = "ivr:session:"

// DefaultSessionTTL bounds how long an abandoned call's record survives in redis.
const DefaultSessionTTL = time.Hour

// RedisStore keeps sessions as JSON values with a TTL so records of calls
// that never reached a terminal turn expire on their own.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
	log *slog.Logger
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration, log *slog.Logger) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if log == nil {
		log = slog.Default()
	}
	return &RedisStore{rdb: rdb, ttl: ttl, log: log}
}

func sessionKey(callID string) string { return redisSessionPrefix + callID }

func (r *RedisStore) Get(ctx context.Context, callID string) (Session, error) {
	if callID == "" {
		return Session{}, ErrInvalidCallID
	}
	s, ok, err := r.Lookup(ctx, callID)
	if err != nil {
		return Session{}, err
	}
	if ok {
		return s, nil
	}
	s = New(callID)
	if err := r.save(ctx, s); err != nil {
		return Session{}, err
	}
	return s, nil
}

func (r *RedisStore) Update(ctx context.Context, callID string, p Patch) (Session, error) {
	if callID == "" {
		return Session{}, ErrInvalidCallID
	}
	s, ok, err := r.Lookup(ctx, callID)
	if err != nil {
		return Session{}, err
	}
	if !ok {
		s = New(callID)
	}
	s = p.Apply(s)
	if err := r.save(ctx, s); err != nil {
		return Session{}, err
	}
	return s, nil
}

func (r *RedisStore) Delete(ctx context.Context, callID string) error {
	if err := r.rdb.Del(ctx, sessionKey(callID)).Err(); err != nil {
		return fmt.Errorf("session: redis delete: %w", err)
	}
	return nil
}

// Lookup treats an undecodable record as absent so the call restarts cleanly.
func (r *RedisStore) Lookup(ctx context.Context, callID string) (Session, bool, error) {
	raw, err := r.rdb.Get(ctx, sessionKey(callID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, fmt.Errorf("session: redis get: %w", err)
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		r.log.Warn("discarding corrupt session record", "call_id", callID, "err", err)
		return Session{}, false, nil
	}
	s.CallID = callID
	return s, true, nil
}

func (r *RedisStore) save(ctx context.Context, s Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if err := r.rdb.Set(ctx, sessionKey(s.CallID), string(raw), r.ttl).Err(); err != nil {
		return fmt.Errorf("session: redis set: %w", err)
	}
	return nil
}
