// Package ratelimit counts sign-in attempts per key inside a fixed window.
//
// The first attempt in a window starts the window. Every later attempt
// increments the counter, and once the counter passes the limit Hit returns
// ErrTooManyAttempts until the window expires. A successful sign-in calls
// Reset so that the next window starts from zero.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrTooManyAttempts = errors.New("too many attempts, please try again later")

// Limiter is implemented by Memory and Redis.
type Limiter interface {
	Hit(ctx context.Context, key string) error
	Reset(ctx context.Context, key string) error
}

var (
	_ Limiter = (*Memory)(nil)
	_ Limiter = (*Redis)(nil)
)

// ===== REDIS =====

// LoginKeyPrefix namespaces the sign-in attempt counters. Keys look like
// "campusconnect:login_attempts:<email>".
const LoginKeyPrefix = "campusconnect:login"

// Redis keeps counters in Redis, so the limit holds across server instances.
type Redis struct {
	client *redis.Client
	prefix string
	limit  int64
	window time.Duration
}

func NewRedis(client *redis.Client, prefix string, limit int, window time.Duration) *Redis {
	return &Redis{client: client, prefix: prefix, limit: int64(limit), window: window}
}

// Hit increments the counter and sets its expiry in one MULTI/EXEC.
// EXPIRE NX only applies to a key without a TTL, so the window is fixed
// rather than sliding, and a key that somehow lost its TTL gets one back on
// the next attempt. NX needs Redis 7.
func (r *Redis) Hit(ctx context.Context, key string) error {
	k := r.key(key)

	var incr *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.ExpireNX(ctx, k, r.window)
		return nil
	})
	if err != nil {
		return fmt.Errorf("ratelimit: counting attempt on %s: %w", k, err)
	}
	if incr.Val() > r.limit {
		return ErrTooManyAttempts
	}
	return nil
}

func (r *Redis) Reset(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("ratelimit: resetting %s: %w", key, err)
	}
	return nil
}

func (r *Redis) key(key string) string {
	return fmt.Sprintf("%s_attempts:%s", r.prefix, key)
}

// ===== MEMORY =====

type window struct {
	count   int
	expires time.Time
}

// Memory is the single-process Limiter used when no Redis is configured.
type Memory struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	entries map[string]*window
	now     func() time.Time
}

func NewMemory(limit int, w time.Duration) *Memory {
	return &Memory{
		limit:   limit,
		window:  w,
		entries: make(map[string]*window),
		now:     time.Now,
	}
}

func (m *Memory) Hit(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	e, ok := m.entries[key]
	if !ok || !now.Before(e.expires) {
		e = &window{expires: now.Add(m.window)}
		m.entries[key] = e
		m.sweep(now)
	}

	e.count++
	if e.count > m.limit {
		return ErrTooManyAttempts
	}
	return nil
}

func (m *Memory) Reset(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// sweep drops expired windows. Called with mu held whenever a new window opens.
func (m *Memory) sweep(now time.Time) {
	for k, e := range m.entries {
		if !now.Before(e.expires) {
			delete(m.entries, k)
		}
	}
}
