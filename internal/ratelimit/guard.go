package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/redis/go-redis/v9"

	"github.com/tumalove/tumalove-backend/internal/pkg/apperror"
)

// Guard bounds request volume per action class per client before any
// network or ledger call is made. It is injected into services rather
// than held as a module-level singleton so tests and deployments can
// scope it explicitly.
type Guard struct {
	store limiter.Store
	rate  limiter.Rate
}

// NewGuard creates a guard with an in-memory store. Suitable for a single
// instance; multi-instance deployments should share a redis store.
func NewGuard(limit int64, period time.Duration) *Guard {
	return newGuard(memory.NewStore(), limit, period)
}

// NewRedisGuard creates a guard backed by a shared redis store so the
// window is enforced across instances.
func NewRedisGuard(client *redis.Client, limit int64, period time.Duration) (*Guard, error) {
	store, err := redisstore.NewStoreWithOptions(client, limiter.StoreOptions{
		Prefix: "ratelimit",
	})
	if err != nil {
		return nil, fmt.Errorf("ratelimit: redis store: %w", err)
	}
	return newGuard(store, limit, period), nil
}

// NewGuardWithStore creates a guard on an existing store so the HTTP layer
// and the services count against the same backend.
func NewGuardWithStore(store limiter.Store, limit int64, period time.Duration) *Guard {
	return newGuard(store, limit, period)
}

func newGuard(store limiter.Store, limit int64, period time.Duration) *Guard {
	if limit <= 0 {
		limit = 10
	}
	if period <= 0 {
		period = time.Minute
	}
	return &Guard{
		store: store,
		rate:  limiter.Rate{Period: period, Limit: limit},
	}
}

// Allow consumes one unit of the rolling window for the given action class
// and client key. Returns apperror.ErrTooManyRequests when the window is
// exhausted; the caller must fail fast without touching the provider.
func (g *Guard) Allow(ctx context.Context, action, clientKey string) error {
	instance := limiter.New(g.store, g.rate)
	lctx, err := instance.Get(ctx, action+":"+clientKey)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeInternal, "rate limiter unavailable")
	}
	if lctx.Reached {
		return apperror.ErrTooManyRequests
	}
	return nil
}
