package consent

import (
	"context"
	"fmt"
	"time"

	"github.com/NicoleSchelter/KIRO-GITTE-sub006/pkg/common/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// statusCache keeps hot consent-status reads off the database. Every error
// path behaves like a miss, so a broken cache never changes a gate decision.
type statusCache struct {
	client *redis.Client
	ttl    time.Duration
}

func newStatusCache(client *redis.Client, ttl time.Duration) *statusCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &statusCache{client: client, ttl: ttl}
}

func cacheKey(accountID uuid.UUID, consentType models.ConsentType) string {
	return fmt.Sprintf("consent:%s:%s", accountID, consentType)
}

func (c *statusCache) get(ctx context.Context, accountID uuid.UUID, consentType models.ConsentType) (bool, bool) {
	if c == nil || c.client == nil {
		return false, false
	}
	value, err := c.client.Get(ctx, cacheKey(accountID, consentType)).Result()
	if err != nil {
		return false, false
	}
	return value == "1", true
}

func (c *statusCache) set(ctx context.Context, accountID uuid.UUID, consentType models.ConsentType, given bool) {
	if c == nil || c.client == nil {
		return
	}
	value := "0"
	if given {
		value = "1"
	}
	c.client.Set(ctx, cacheKey(accountID, consentType), value, c.ttl)
}

func (c *statusCache) invalidate(ctx context.Context, accountID uuid.UUID, consentType models.ConsentType) {
	if c == nil || c.client == nil {
		return
	}
	c.client.Del(ctx, cacheKey(accountID, consentType))
}
