package runlock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
)

// ErrHeld is returned by Acquire while another holder owns the key.
var ErrHeld = errors.New("lock held")

type Lease struct {
	Key       string
	Token     string
	ExpiresAt time.Time
}

type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (*Lease, error)
	// Release drops the lock only if the lease still owns it.
	Release(ctx context.Context, lease *Lease) error
}

func CurationKey(curationID string) string {
	return "curation:run:" + curationID
}

func newToken() string {
	return ulid.Make().String()
}

type redisLocker struct {
	rdb *redis.Client
}

func NewRedisLocker(rdb *redis.Client) Locker {
	return &redisLocker{rdb: rdb}
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

func (l *redisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lease, error) {
	token := newToken()
	ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	if !ok {
		return nil, ErrHeld
	}
	return &Lease{Key: key, Token: token, ExpiresAt: time.Now().Add(ttl)}, nil
}

func (l *redisLocker) Release(ctx context.Context, lease *Lease) error {
	if lease == nil {
		return nil
	}
	if err := releaseScript.Run(ctx, l.rdb, []string{lease.Key}, lease.Token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis release %s: %w", lease.Key, err)
	}
	return nil
}

// localLocker serves single-replica deployments and tests.
type localLocker struct {
	mu    sync.Mutex
	held  map[string]Lease
	clock func() time.Time
}

func NewLocalLocker() Locker {
	return &localLocker{held: map[string]Lease{}, clock: time.Now}
}

func (l *localLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lease, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock()
	if cur, ok := l.held[key]; ok && now.Before(cur.ExpiresAt) {
		return nil, ErrHeld
	}
	lease := Lease{Key: key, Token: newToken(), ExpiresAt: now.Add(ttl)}
	l.held[key] = lease
	return &lease, nil
}

func (l *localLocker) Release(ctx context.Context, lease *Lease) error {
	if lease == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if cur, ok := l.held[lease.Key]; ok && cur.Token == lease.Token {
		delete(l.held, lease.Key)
	}
	return nil
}
