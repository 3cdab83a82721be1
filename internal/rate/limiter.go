// Package rate throttles credential verification with Redis-backed
// fixed-window counters, keyed per email and optionally per client IP.
package rate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrLimited is returned when the attempt budget for the window is spent.
	ErrLimited = errors.New("too many login attempts")
	// ErrUnavailable is returned when the Redis backend cannot be reached.
	ErrUnavailable = errors.New("rate limiter unavailable")
)

const (
	emailKeyPrefix = "login:email:"
	ipKeyPrefix    = "login:ip:"
)

// Config holds login limiter tuning parameters.
type Config struct {
	// MaxAttempts is the failed-attempt budget per key per window.
	MaxAttempts int
	// Window is the fixed-window length; the counter expires with it.
	Window time.Duration
	// PerIP additionally throttles by client IP when one is known.
	PerIP bool
}

// LoginLimiter enforces the failed-login budget using Redis counters.
// Counters track failures only, so a correct password is never throttled
// by its own successes.
type LoginLimiter struct {
	client redis.UniversalClient
	cfg    Config
}

// NewLoginLimiter creates a LoginLimiter backed by the given Redis client.
func NewLoginLimiter(client redis.UniversalClient, cfg Config) *LoginLimiter {
	return &LoginLimiter{client: client, cfg: cfg}
}

// Check reports whether a login attempt for the email+IP pair is still
// within budget. Returns ErrLimited when it is not.
func (l *LoginLimiter) Check(ctx context.Context, email, ip string) error {
	if err := l.checkCounter(ctx, emailKey(email)); err != nil {
		return err
	}
	if l.cfg.PerIP && ip != "" {
		if err := l.checkCounter(ctx, ipKey(ip)); err != nil {
			return err
		}
	}
	return nil
}

// Failure records a failed login attempt for the email+IP pair.
func (l *LoginLimiter) Failure(ctx context.Context, email, ip string) error {
	count, err := l.incrementWithTTL(ctx, emailKey(email))
	if err != nil {
		return err
	}
	if count > int64(l.cfg.MaxAttempts) {
		return ErrLimited
	}

	if l.cfg.PerIP && ip != "" {
		count, err = l.incrementWithTTL(ctx, ipKey(ip))
		if err != nil {
			return err
		}
		if count > int64(l.cfg.MaxAttempts) {
			return ErrLimited
		}
	}

	return nil
}

// Reset clears the failure counters for the email+IP pair. Called after a
// successful login or a password change.
func (l *LoginLimiter) Reset(ctx context.Context, email, ip string) error {
	keys := []string{emailKey(email)}
	if l.cfg.PerIP && ip != "" {
		keys = append(keys, ipKey(ip))
	}
	if err := l.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Attempts returns the current failure counter for an email. Missing keys
// return zero, so the counter never reveals whether the account exists.
func (l *LoginLimiter) Attempts(ctx context.Context, email string) (int, error) {
	count, err := l.client.Get(ctx, emailKey(email)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

func (l *LoginLimiter) checkCounter(ctx context.Context, key string) error {
	count, err := l.client.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if count >= int64(l.cfg.MaxAttempts) {
		return ErrLimited
	}
	return nil
}

func (l *LoginLimiter) incrementWithTTL(ctx context.Context, key string) (int64, error) {
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	// Fixed-window semantics: only the first hit in the window arms the TTL.
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.cfg.Window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	return count, nil
}

func emailKey(email string) string {
	return emailKeyPrefix + strings.ToLower(strings.TrimSpace(email))
}

func ipKey(ip string) string {
	return ipKeyPrefix + ip
}
