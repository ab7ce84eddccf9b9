package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const summaryTTL = 10 * time.Minute

// VariantSummary is the cached per-source aggregate shown on project pages.
type VariantSummary struct {
	SourceImageID string `json:"sourceImageId"`
	Total         int    `json:"total"`
	Completed     int    `json:"completed"`
	Failed        int    `json:"failed"`
}

type SummaryCache struct {
	client *redis.Client
}

func NewSummaryCache(client *redis.Client) *SummaryCache {
	return &SummaryCache{client: client}
}

func summaryKey(sourceImageID string) string {
	return fmt.Sprintf("variants:summary:%s", sourceImageID)
}

func (c *SummaryCache) Get(ctx context.Context, sourceImageID string) (*VariantSummary, error) {
	raw, err := c.client.Get(ctx, summaryKey(sourceImageID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var summary VariantSummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return nil, fmt.Errorf("decode summary: %w", err)
	}
	return &summary, nil
}

func (c *SummaryCache) Set(ctx context.Context, summary VariantSummary) error {
	raw, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	return c.client.Set(ctx, summaryKey(summary.SourceImageID), raw, summaryTTL).Err()
}

func (c *SummaryCache) Invalidate(ctx context.Context, sourceImageID string) error {
	return c.client.Del(ctx, summaryKey(sourceImageID)).Err()
}
