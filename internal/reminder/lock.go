package reminder

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	platformredis "certflow/internal/platform/redis"
)

// SweepLocker serializes sweeps. TryAcquire returns false when another sweep
// holds the lease; release is the returned func.
type SweepLocker interface {
	TryAcquire(ctx context.Context) (release func(), acquired bool, err error)
}

const sweepLockKey = "certflow:reminder:sweep"

// RedisLock serializes sweeps across processes with SET NX EX. The TTL caps
// how long a crashed sweeper can block its successors.
type RedisLock struct {
	client *platformredis.Client
	ttl    time.Duration
}

func NewRedisLock(client *platformredis.Client, ttl time.Duration) *RedisLock {
	return &RedisLock{client: client, ttl: ttl}
}

func (l *RedisLock) TryAcquire(ctx context.Context) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, sweepLockKey, token, l.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	release := func() {
		// Only delete our own lease: a slow sweep whose TTL expired must not
		// release a successor's lock.
		script := `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) else return 0 end`
		l.client.Eval(context.Background(), script, []string{sweepLockKey}, token)
	}
	return release, true, nil
}

// LocalLock serializes sweeps within one process. Used when Redis is not
// configured and the deployment runs a single sweeper.
type LocalLock struct {
	mu sync.Mutex
}

func NewLocalLock() *LocalLock {
	return &LocalLock{}
}

func (l *LocalLock) TryAcquire(_ context.Context) (func(), bool, error) {
	if !l.mu.TryLock() {
		return nil, false, nil
	}
	return l.mu.Unlock, true, nil
}
