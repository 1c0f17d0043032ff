package repository

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/frenetico9/Navalha.Digital/internal/domain"

	"github.com/rs/zerolog"
)

// memoryTokenPrefix marks tokens issued by MemoryLocker so failover can route Release.
const memoryTokenPrefix = "mem:"

// Locker combines domain.SlotLocker and domain.RateLimiter.
type Locker interface {
	domain.SlotLocker
	domain.RateLimiter
}

// FailoverLocker uses Redis while it answers and the in-memory locker otherwise.
type FailoverLocker struct {
	primary       Locker
	fallback      Locker
	logger        *zerolog.Logger
	retryInterval time.Duration

	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
}

func NewFailoverLocker(primary, fallback Locker, logger *zerolog.Logger) *FailoverLocker {
	return &FailoverLocker{
		primary:       primary,
		fallback:      fallback,
		logger:        logger,
		retryInterval: time.Minute,
	}
}

// usePrimary reports whether the primary should be tried, probing it again after retryInterval.
func (r *FailoverLocker) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return time.Since(r.lastCheck) > r.retryInterval
}

func (r *FailoverLocker) markDown(err error) {
	if !r.isDown.Swap(true) {
		r.logger.Error().Err(err).Msg("Primary locker failed, falling back to memory")
	}
	r.mu.Lock()
	r.lastCheck = time.Now()
	r.mu.Unlock()
}

func (r *FailoverLocker) markUp() {
	if r.isDown.Swap(false) {
		r.logger.Info().Msg("Primary locker recovered")
	}
}

func (r *FailoverLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if r.usePrimary() {
		token, ok, err := r.primary.Acquire(ctx, key, ttl)
		if err == nil {
			r.markUp()
			return token, ok, nil
		}
		r.markDown(err)
	}
	return r.fallback.Acquire(ctx, key, ttl)
}

func (r *FailoverLocker) Release(ctx context.Context, key, token string) error {
	if strings.HasPrefix(token, memoryTokenPrefix) {
		return r.fallback.Release(ctx, key, token)
	}
	if err := r.primary.Release(ctx, key, token); err != nil {
		r.markDown(err)
		return err
	}
	return nil
}

func (r *FailoverLocker) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.usePrimary() {
		allowed, err := r.primary.CheckRateLimit(ctx, key, limit, window)
		if err == nil {
			r.markUp()
			return allowed, nil
		}
		r.markDown(err)
	}
	return r.fallback.CheckRateLimit(ctx, key, limit, window)
}
