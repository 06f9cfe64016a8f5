package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const dedupePrefix = "microcredit:event:"

// EventDeduplicator implements port.EventDeduplicator with SET NX. A claim
// expires after the TTL, after which the event ID may be processed again;
// the aggregates' own applied-event memory covers anything older.
type EventDeduplicator struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewEventDeduplicator creates a deduplicator whose claims live for ttl.
func NewEventDeduplicator(rdb *redis.Client, ttl time.Duration) *EventDeduplicator {
	return &EventDeduplicator{rdb: rdb, ttl: ttl}
}

// Claim returns true when this caller is the first to see eventID.
func (d *EventDeduplicator) Claim(ctx context.Context, eventID string) (bool, error) {
	ok, err := d.rdb.SetNX(ctx, dedupePrefix+eventID, time.Now().UTC().Format(time.RFC3339), d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim event %s: %w", eventID, err)
	}
	return ok, nil
}

// Release forgets a claim so a failed event can be redelivered.
func (d *EventDeduplicator) Release(ctx context.Context, eventID string) error {
	if err := d.rdb.Del(ctx, dedupePrefix+eventID).Err(); err != nil {
		return fmt.Errorf("release event %s: %w", eventID, err)
	}
	return nil
}
