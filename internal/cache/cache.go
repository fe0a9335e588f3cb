package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/singleflight"
)

// DefaultRefreshTimeout bounds a background refresh.
const DefaultRefreshTimeout = 30 * time.Second

// envelope is what is written to the store. Value holds the msgpack encoding
// of the cached value.
type envelope struct {
	Value     []byte `msgpack:"v"`
	WrittenAt int64  `msgpack:"w"` // unix nanoseconds
	TTL       int64  `msgpack:"t"` // nanoseconds
}

// Cache serves values from a Store and refreshes them in the background once
// they enter the revalidation window. Store errors are logged, never returned.
type Cache struct {
	store          Store
	now            func() time.Time
	log            zerolog.Logger
	refreshTimeout time.Duration

	group      singleflight.Group
	refreshing sync.Map // key -> struct{}
	wg         sync.WaitGroup
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock sets the time source used to age entries.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithLogger sets the logger for swallowed store errors and failed refreshes.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Cache) { c.log = log.With().Str("component", "cache").Logger() }
}

// WithRefreshTimeout bounds each background refresh.
func WithRefreshTimeout(d time.Duration) Option {
	return func(c *Cache) { c.refreshTimeout = d }
}

// New creates a Cache over store.
func New(store Store, opts ...Option) *Cache {
	c := &Cache{
		store:          store,
		now:            time.Now,
		log:            zerolog.Nop(),
		refreshTimeout: DefaultRefreshTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Wait blocks until all background refreshes started so far have finished.
func (c *Cache) Wait() {
	c.wg.Wait()
}

// GetOrRefresh returns the value cached under key, computing it when needed.
//
// An entry younger than ttl-revalidate is returned as is. An entry in the last
// revalidate of its ttl is returned as is and refreshed once in the
// background; a failed refresh keeps the old entry. A missing, expired or
// undecodable entry is computed synchronously and written back best-effort.
// Only compute errors from the synchronous path are returned.
func GetOrRefresh[T any](ctx context.Context, c *Cache, key string, ttl, revalidate time.Duration, compute func(context.Context) (T, error)) (T, error) {
	if revalidate < 0 {
		revalidate = 0
	}
	if revalidate > ttl {
		revalidate = ttl
	}

	if env, ok := c.load(ctx, key); ok {
		age := c.now().Sub(time.Unix(0, env.WrittenAt))
		if age < ttl {
			var v T
			err := msgpack.Unmarshal(env.Value, &v)
			if err == nil {
				if age >= ttl-revalidate {
					c.refresh(ctx, key, ttl, func(ctx context.Context) (any, error) {
						return compute(ctx)
					})
				}
				return v, nil
			}
			c.log.Warn().Err(err).Str("key", key).Msg("discarding undecodable cache entry")
		}
	}

	// The shared computation outlives any single caller; each caller only
	// stops waiting when its own context ends.
	ch := c.group.DoChan(key, func() (any, error) {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.refreshTimeout)
		defer cancel()
		v, err := c.safeCompute(sctx, key, func(ctx context.Context) (any, error) {
			return compute(ctx)
		})
		if err != nil {
			return nil, err
		}
		c.write(sctx, key, v, ttl)
		return v, nil
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, context.Cause(ctx)
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		v, ok := res.Val.(T)
		if !ok {
			// another caller shared the key with a different type
			return compute(ctx)
		}
		return v, nil
	}
}

// safeCompute turns a panic in compute into an error.
func (c *Cache) safeCompute(ctx context.Context, key string, compute func(context.Context) (any, error)) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().Str("key", key).Interface("panic", r).Msg("cache compute panicked")
			err = fmt.Errorf("compute %s: panic: %v", key, r)
		}
	}()
	return compute(ctx)
}

// refresh recomputes key in the background unless a refresh is already running.
func (c *Cache) refresh(ctx context.Context, key string, ttl time.Duration, compute func(context.Context) (any, error)) {
	if _, running := c.refreshing.LoadOrStore(key, struct{}{}); running {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.refreshing.Delete(key)

		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.refreshTimeout)
		defer cancel()

		v, err := c.safeCompute(rctx, key, compute)
		if err != nil {
			c.log.Warn().Err(err).Str("key", key).Msg("background refresh failed, keeping stale value")
			return
		}
		c.write(rctx, key, v, ttl)
	}()
}

func (c *Cache) load(ctx context.Context, key string) (envelope, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
		}
		return envelope{}, false
	}
	var env envelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("discarding corrupt cache envelope")
		return envelope{}, false
	}
	return env, true
}

func (c *Cache) write(ctx context.Context, key string, v any, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	data, err := encode(v, c.now(), ttl)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache encode failed")
		return
	}
	if err := c.store.Set(ctx, key, data, ttl); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

func encode(v any, now time.Time, ttl time.Duration) ([]byte, error) {
	value, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	return msgpack.Marshal(envelope{Value: value, WrittenAt: now.UnixNano(), TTL: int64(ttl)})
}

// Prune drops expired entries when the store supports it and returns how many
// were removed.
func (c *Cache) Prune(ctx context.Context) (int64, error) {
	p, ok := c.store.(Pruner)
	if !ok {
		return 0, nil
	}
	return p.Prune(ctx)
}

// Put writes v under key as a fresh entry, best-effort.
func Put[T any](ctx context.Context, c *Cache, key string, v T, ttl time.Duration) {
	c.write(ctx, key, v, ttl)
}
