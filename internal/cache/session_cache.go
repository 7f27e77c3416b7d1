package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionValidity is the minimal state an authenticated request needs to
// accept or reject a session without a storage round-trip.
type SessionValidity struct {
	UserID    string     `json:"userId"`
	ExpiresAt time.Time  `json:"expiresAt"`
	RevokedAt *time.Time `json:"revokedAt,omitempty"`
}

// SessionCache is a cache-aside layer over session state. The short TTL
// bounds how long a just-revoked session can still pass validation; every
// revocation path calls Delete to shrink that window further.
type SessionCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionCache(client *redis.Client, ttl time.Duration) *SessionCache {
	return &SessionCache{client: client, ttl: ttl}
}

func sessionKey(sessionID string) string {
	return "session:valid:" + sessionID
}

// Get returns (validity, true) on a hit. Cache errors degrade to a miss so
// the caller falls through to storage.
func (c *SessionCache) Get(ctx context.Context, sessionID string) (SessionValidity, bool) {
	raw, err := c.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if err != nil {
		return SessionValidity{}, false
	}
	var validity SessionValidity
	if err := json.Unmarshal(raw, &validity); err != nil {
		return SessionValidity{}, false
	}
	return validity, true
}

func (c *SessionCache) Set(ctx context.Context, sessionID string, validity SessionValidity) error {
	raw, err := json.Marshal(validity)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, sessionKey(sessionID), raw, c.ttl).Err()
}

func (c *SessionCache) Delete(ctx context.Context, sessionIDs ...string) error {
	if len(sessionIDs) == 0 {
		return nil
	}
	keys := make([]string, len(sessionIDs))
	for i, id := range sessionIDs {
		keys[i] = sessionKey(id)
	}
	err := c.client.Del(ctx, keys...).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}
