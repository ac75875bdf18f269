package tracking

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLockTimeout = errors.New("run is busy ingesting another position")

const (
	lockRetryInterval = 20 * time.Millisecond
	defaultLockTTL    = 5 * time.Second
	defaultLockWait   = 2 * time.Second
)

// Locker serialises ingestion per run so the "previous position" lookup
// cannot race with a concurrent insert.
type Locker interface {
	Lock(ctx context.Context, runID int64) (unlock func(), err error)
}

func lockKey(runID int64) string {
	return "runs:" + strconv.FormatInt(runID, 10) + ":ingest"
}

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

var renewScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker holds a SET NX PX lease per run, shared by every instance.
// The lease is extended every third of its TTL while held, so a slow
// ingestion keeps the lock; the TTL only bounds how long a crashed holder
// blocks the run.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
}

// NewRedisLocker falls back to the default lease and wait for non-positive values.
func NewRedisLocker(client *redis.Client, ttl, wait time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	if wait <= 0 {
		wait = defaultLockWait
	}
	return &RedisLocker{client: client, ttl: ttl, wait: wait}
}

func (l *RedisLocker) Lock(ctx context.Context, runID int64) (func(), error) {
	key := lockKey(runID)
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			stop := make(chan struct{})
			done := make(chan struct{})
			go l.renew(key, token, stop, done)

			var once sync.Once
			return func() {
				once.Do(func() {
					close(stop)
					<-done
					_ = releaseScript.Run(context.Background(), l.client, []string{key}, token).Err()
				})
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}
}

// renew extends the lease until stop is closed or the lease is found to
// belong to someone else. Redis errors are retried on the next tick.
func (l *RedisLocker) renew(key, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(max(l.ttl/3, lockRetryInterval))
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			held, err := renewScript.Run(context.Background(), l.client, []string{key}, token, l.ttl.Milliseconds()).Int()
			if err == nil && held == 0 {
				return
			}
		}
	}
}

// LocalLocker is the single-instance fallback used when redis is not configured.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[int64]*localLock
	wait  time.Duration
}

type localLock struct {
	ch   chan struct{}
	refs int
}

func NewLocalLocker(wait time.Duration) *LocalLocker {
	if wait <= 0 {
		wait = defaultLockWait
	}
	return &LocalLocker{locks: map[int64]*localLock{}, wait: wait}
}

func (l *LocalLocker) Lock(ctx context.Context, runID int64) (func(), error) {
	l.mu.Lock()
	lk := l.locks[runID]
	if lk == nil {
		lk = &localLock{ch: make(chan struct{}, 1)}
		l.locks[runID] = lk
	}
	lk.refs++
	l.mu.Unlock()

	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	select {
	case lk.ch <- struct{}{}:
		return func() {
			<-lk.ch
			l.release(runID, lk)
		}, nil
	case <-timer.C:
		l.release(runID, lk)
		return nil, ErrLockTimeout
	case <-ctx.Done():
		l.release(runID, lk)
		return nil, ctx.Err()
	}
}

func (l *LocalLocker) release(runID int64, lk *localLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk.refs--
	if lk.refs == 0 {
		delete(l.locks, runID)
	}
}
