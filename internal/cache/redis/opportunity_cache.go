package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

// OpportunityCache implements domain.OpportunityCache. The latest ranked
// batch is one JSON value so readers never see half of a run.
//
// Key schema:
//
//	{prefix}opportunities:latest - JSON array of domain.Opportunity
type OpportunityCache struct {
	client *Client
	ttl    time.Duration
}

var _ domain.OpportunityCache = (*OpportunityCache)(nil)

// NewOpportunityCache creates a cache whose entry expires after ttl. A zero
// ttl keeps the entry until the next SetLatest.
func NewOpportunityCache(c *Client, ttl time.Duration) *OpportunityCache {
	return &OpportunityCache{client: c, ttl: ttl}
}

// SetLatest replaces the cached batch. An empty batch is cached too, so
// readers can tell "nothing found" from "never ran".
func (oc *OpportunityCache) SetLatest(ctx context.Context, opps []domain.Opportunity) error {
	if opps == nil {
		opps = []domain.Opportunity{}
	}
	data, err := json.Marshal(opps)
	if err != nil {
		return fmt.Errorf("redis: marshal latest opportunities: %w", err)
	}
	if err := oc.client.rdb.Set(ctx, oc.client.key("opportunities", "latest"), data, oc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set latest opportunities: %w", err)
	}
	return nil
}

// Latest returns the cached batch or domain.ErrNotFound.
func (oc *OpportunityCache) Latest(ctx context.Context) ([]domain.Opportunity, error) {
	data, err := oc.client.rdb.Get(ctx, oc.client.key("opportunities", "latest")).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get latest opportunities: %w", err)
	}

	var opps []domain.Opportunity
	if err := json.Unmarshal(data, &opps); err != nil {
		return nil, fmt.Errorf("redis: unmarshal latest opportunities: %w", err)
	}
	return opps, nil
}
