// Package cache provides a Redis read-through cache for milestone view
// snapshots. Entries are written only after a committed read or invalidated
// after a committed transition, so a cached view always reflects a state the
// store has durably held and never a partial mutation.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"paylog/internal/ledger"
	"paylog/pkg/domain"
)

// MilestoneCache caches milestone views with a short TTL. All operations are
// best effort: Redis faults are logged and degrade to store reads.
type MilestoneCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewMilestoneCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *MilestoneCache {
	return &MilestoneCache{client: client, ttl: ttl, logger: logger}
}

func key(registryID domain.RegistryID, milestoneID int) string {
	return fmt.Sprintf("paylog:milestone:%s:%d", registryID, milestoneID)
}

func (c *MilestoneCache) GetMilestone(ctx context.Context, registryID domain.RegistryID, milestoneID int) (*ledger.MilestoneView, bool) {
	raw, err := c.client.Get(ctx, key(registryID, milestoneID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.WarnContext(ctx, "milestone cache read failed", "error", err)
		}
		return nil, false
	}
	var view ledger.MilestoneView
	if err := json.Unmarshal(raw, &view); err != nil {
		c.logger.WarnContext(ctx, "milestone cache entry corrupt", "error", err)
		return nil, false
	}
	return &view, true
}

func (c *MilestoneCache) SetMilestone(ctx context.Context, registryID domain.RegistryID, milestoneID int, view ledger.MilestoneView) {
	raw, err := json.Marshal(view)
	if err != nil {
		c.logger.WarnContext(ctx, "milestone cache encode failed", "error", err)
		return
	}
	if err := c.client.Set(ctx, key(registryID, milestoneID), raw, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "milestone cache write failed", "error", err)
	}
}

func (c *MilestoneCache) Invalidate(ctx context.Context, registryID domain.RegistryID, milestoneID int) {
	if err := c.client.Del(ctx, key(registryID, milestoneID)).Err(); err != nil {
		c.logger.WarnContext(ctx, "milestone cache invalidation failed", "error", err)
	}
}
