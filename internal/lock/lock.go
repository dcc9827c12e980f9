// Package lock provides per-key critical sections.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"go.uber.org/zap"
)

// ErrNotObtained indicates the lock could not be acquired before the context ended.
var ErrNotObtained = errors.New("lock not obtained")

// Locker serialises work per key. The returned func releases the lock.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

type slot struct {
	ch   chan struct{}
	refs int
}

// Local is an in-process Locker. Idle keys are dropped so the map does not grow unbounded.
type Local struct {
	mu    sync.Mutex
	slots map[string]*slot
}

// NewLocal creates an in-process locker.
func NewLocal() *Local {
	return &Local{slots: make(map[string]*slot)}
}

// Lock implements Locker.
func (l *Local) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, s, false)
		return nil, fmt.Errorf("%w: %s: %w", ErrNotObtained, key, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(key, s, true) })
	}, nil
}

func (l *Local) release(key string, s *slot, held bool) {
	if held {
		<-s.ch
	}
	l.mu.Lock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
	l.mu.Unlock()
}

// Redis is a Locker shared across processes, backed by redislock.
type Redis struct {
	client  *redislock.Client
	ttl     time.Duration
	backoff time.Duration
	logger  *zap.Logger
}

// NewRedis builds a Redis locker. ttl bounds how long a crashed holder keeps the key.
func NewRedis(client *redislock.Client, ttl time.Duration, logger *zap.Logger) *Redis {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis{client: client, ttl: ttl, backoff: 50 * time.Millisecond, logger: logger}
}

// Lock implements Locker, retrying until the context ends.
func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	lk, err := r.client.Obtain(ctx, key, r.ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(r.backoff),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %s", ErrNotObtained, key)
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock %s: %w", key, err)
	}

	return func() {
		if err := lk.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			r.logger.Error("failed to release lock", zap.String("key", key), zap.Error(err))
		}
	}, nil
}
