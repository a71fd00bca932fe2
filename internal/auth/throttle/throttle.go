// Package throttle counts failed authentication attempts per key in fixed
// windows and locks a key out once it reaches the limit.
package throttle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrLocked           = errors.New("throttle: too many attempts")
	ErrRedisUnavailable = errors.New("throttle: redis unavailable")
)

// Throttle is consulted before verifying a secret and told about failures.
type Throttle interface {
	// Check returns ErrLocked while key is locked out.
	Check(ctx context.Context, key string) error
	// Fail records a failed attempt for key.
	Fail(ctx context.Context, key string) error
	// Reset clears key after a success.
	Reset(ctx context.Context, key string) error
}

// Config is the attempt budget per window.
type Config struct {
	MaxAttempts int
	Window      time.Duration
}

func DefaultConfig() Config {
	return Config{MaxAttempts: 10, Window: 15 * time.Minute}
}

// Redis keeps one INCR counter per key with the window as its TTL.
type Redis struct {
	redis  redis.UniversalClient
	config Config
	prefix string
}

// NewRedis creates a Redis throttle. Keys are namespaced under prefix.
func NewRedis(client redis.UniversalClient, cfg Config, prefix string) *Redis {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultConfig().Window
	}
	return &Redis{redis: client, config: cfg, prefix: prefix}
}

func (r *Redis) key(k string) string { return r.prefix + k }

func (r *Redis) Check(ctx context.Context, key string) error {
	count, err := r.redis.Get(ctx, r.key(key)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count >= int64(r.config.MaxAttempts) {
		return ErrLocked
	}
	return nil
}

func (r *Redis) Fail(ctx context.Context, key string) error {
	k := r.key(key)

	// Fixed window: EXPIRE NX only sets a TTL on a counter that has none, and
	// MULTI keeps a counter from ever existing without one.
	_, err := r.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, k)
		pipe.ExpireNX(ctx, k, r.config.Window)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (r *Redis) Reset(ctx context.Context, key string) error {
	if err := r.redis.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Ping reports whether Redis answers. Readiness probes use it; the
// throttle itself fails open.
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Nop never locks. It is used when no Redis is configured.
type Nop struct{}

func (Nop) Check(context.Context, string) error { return nil }
func (Nop) Fail(context.Context, string) error  { return nil }
func (Nop) Reset(context.Context, string) error { return nil }
