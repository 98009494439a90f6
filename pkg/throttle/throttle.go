// Package throttle slows brute-force login attempts. The audit trail in
// Postgres records every attempt; this Redis counter is what actually
// pushes back after repeated failures.
package throttle

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultThreshold = 5
	defaultWindow    = 15 * time.Minute
	defaultBaseBlock = 1 * time.Minute
	defaultMaxBlock  = 1 * time.Hour
)

// LoginThrottle counts failed logins per email+source address. Once the
// failure count reaches the threshold, further attempts are blocked and
// each extra failure doubles the block TTL up to the cap.
type LoginThrottle struct {
	redis     *redis.Client
	threshold int64
	window    time.Duration
	baseBlock time.Duration
	maxBlock  time.Duration
}

func NewLoginThrottle(redisClient *redis.Client) *LoginThrottle {
	return &LoginThrottle{
		redis:     redisClient,
		threshold: defaultThreshold,
		window:    defaultWindow,
		baseBlock: defaultBaseBlock,
		maxBlock:  defaultMaxBlock,
	}
}

func key(email, sourceIP string) string {
	return fmt.Sprintf("throttle:login:%s:%s", email, sourceIP)
}

// Blocked reports whether this email+source pair has exhausted its
// failure budget and must wait out the block TTL.
func (t *LoginThrottle) Blocked(ctx context.Context, email, sourceIP string) (bool, error) {
	count, err := t.redis.Get(ctx, key(email, sourceIP)).Int64()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check login throttle: %w", err)
	}

	return count >= t.threshold, nil
}

// RecordFailure bumps the failure counter. Below the threshold the
// counter rides a fixed observation window; at and beyond it, the TTL
// becomes a block that doubles per failure, capped at maxBlock.
func (t *LoginThrottle) RecordFailure(ctx context.Context, email, sourceIP string) error {
	k := key(email, sourceIP)

	count, err := t.redis.Incr(ctx, k).Result()
	if err != nil {
		return fmt.Errorf("failed to record login failure: %w", err)
	}

	ttl := t.window
	if count >= t.threshold {
		block := t.baseBlock << uint(count-t.threshold)
		if block > t.maxBlock || block <= 0 {
			block = t.maxBlock
		}
		ttl = block
	}

	if err := t.redis.Expire(ctx, k, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set throttle expiry: %w", err)
	}

	return nil
}

// Reset clears the counter after a successful login.
func (t *LoginThrottle) Reset(ctx context.Context, email, sourceIP string) error {
	if err := t.redis.Del(ctx, key(email, sourceIP)).Err(); err != nil {
		return fmt.Errorf("failed to reset login throttle: %w", err)
	}
	return nil
}
