package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CooldownLimiter enforces a fixed-window minimum interval between
// repeated requests for the same key (e.g. verification-code resends).
type CooldownLimiter struct {
	client *redis.Client
}

func NewCooldownLimiter(client *redis.Client) *CooldownLimiter {
	return &CooldownLimiter{client: client}
}

// Allow reports whether the action identified by key may run now. The first
// call in a window claims it; later calls within `window` are denied.
func (l *CooldownLimiter) Allow(ctx context.Context, key string, window time.Duration) (bool, error) {
	count, err := l.client.Incr(ctx, "cooldown:"+key).Result()
	if err != nil {
		return false, fmt.Errorf("cooldown incr: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, "cooldown:"+key, window).Err(); err != nil {
			return false, fmt.Errorf("cooldown expire: %w", err)
		}
	}
	return count == 1, nil
}

// Reset clears the window, used when a consumed code should allow an
// immediate re-request.
func (l *CooldownLimiter) Reset(ctx context.Context, key string) error {
	return l.client.Del(ctx, "cooldown:"+key).Err()
}
