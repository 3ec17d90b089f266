package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// AttemptLimiter tracks consecutive failed logins per email.
type AttemptLimiter interface {
	Locked(ctx context.Context, key string) (bool, error)
	Fail(ctx context.Context, key string) error
	Reset(ctx context.Context, key string) error
}

// MemoryAttempts is a single-process AttemptLimiter.
type MemoryAttempts struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	now     func() time.Time
	entries map[string]attemptEntry
}

type attemptEntry struct {
	count   int
	expires time.Time
}

func NewMemoryAttempts(limit int, window time.Duration) *MemoryAttempts {
	return &MemoryAttempts{
		limit:   limit,
		window:  window,
		now:     time.Now,
		entries: make(map[string]attemptEntry),
	}
}

func (m *MemoryAttempts) Locked(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(key)
	return ok && e.count >= m.limit, nil
}

func (m *MemoryAttempts) Fail(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(key)
	if !ok {
		e = attemptEntry{expires: m.now().Add(m.window)}
	}
	e.count++
	m.entries[key] = e
	return nil
}

func (m *MemoryAttempts) Reset(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

// live returns the entry for key unless its window has elapsed. Caller holds mu.
func (m *MemoryAttempts) live(key string) (attemptEntry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return attemptEntry{}, false
	}
	if !m.now().Before(e.expires) {
		delete(m.entries, key)
		return attemptEntry{}, false
	}
	return e, true
}

// RedisAttempts shares failure counters across replicas. The window starts at
// the first failure and is not extended by later ones.
type RedisAttempts struct {
	client redis.Cmdable
	limit  int
	window time.Duration
	prefix string
}

func NewRedisAttempts(client redis.Cmdable, limit int, window time.Duration) *RedisAttempts {
	return &RedisAttempts{client: client, limit: limit, window: window, prefix: "relief:login:fail:"}
}

func (r *RedisAttempts) Locked(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Get(ctx, r.prefix+key).Int()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return n >= r.limit, nil
}

// failScript counts a failure and arms the window in one atomic step. A counter
// found without a TTL gets one, so no key can lock an email out forever.
const failScript = `
local n = redis.call('INCR', KEYS[1])
if n == 1 or redis.call('PTTL', KEYS[1]) < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n`

func (r *RedisAttempts) Fail(ctx context.Context, key string) error {
	return r.client.Eval(ctx, failScript, []string{r.prefix + key}, r.window.Milliseconds()).Err()
}

func (r *RedisAttempts) Reset(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}
