package guard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrHeld is returned by Acquire when the key is already held.
var ErrHeld = errors.New("lock already held")

// Guard is a short-lived in-flight lock keyed by a caller-chosen key.
type Guard interface {
	// Acquire takes the lock for ttl and returns a release func.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

const keyPrefix = "checkout:inflight:"

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

type redisGuard struct {
	client *redis.Client
}

func NewRedisGuard(client *redis.Client) Guard {
	return &redisGuard{client: client}
}

func (g *redisGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	ok, err := g.client.SetNX(ctx, keyPrefix+key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrHeld
	}
	return func() {
		// use a fresh context; the request one may already be cancelled
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, g.client, []string{keyPrefix + key}, token).Err()
	}, nil
}

type memoryGuard struct {
	mu    sync.Mutex
	held  map[string]memoryLease
	seq   uint64
	clock func() time.Time
}

type memoryLease struct {
	token   uint64
	expires time.Time
}

// NewMemoryGuard returns a process-local guard, used when no Redis is
// configured.
func NewMemoryGuard() Guard {
	return &memoryGuard{held: make(map[string]memoryLease), clock: time.Now}
}

func (g *memoryGuard) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock()
	if l, ok := g.held[key]; ok && now.Before(l.expires) {
		return nil, ErrHeld
	}
	g.seq++
	lease := memoryLease{token: g.seq, expires: now.Add(ttl)}
	g.held[key] = lease
	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		if cur, ok := g.held[key]; ok && cur.token == lease.token {
			delete(g.held, key)
		}
	}, nil
}
