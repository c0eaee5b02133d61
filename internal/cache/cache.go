// Package cache keeps computed day slot lists in redis so pickers do not
// recompute availability on every request. Entries are short-lived and
// invalidated whenever a reservation or facility write touches the day.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"stablebook/internal/metrics"
	"stablebook/internal/model"
)

// SlotCache is a read-through cache over the slot generator's output.
// A nil *SlotCache is a valid no-op cache.
type SlotCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// New creates a slot cache; ttl <= 0 disables it.
func New(rdb *redis.Client, ttl time.Duration) *SlotCache {
	if rdb == nil || ttl <= 0 {
		return nil
	}
	return &SlotCache{rdb: rdb, ttl: ttl}
}

func slotKey(facilityID int64, date model.Date) string {
	return fmt.Sprintf("slots:%d:%s", facilityID, date)
}

// Get returns the cached starts for a facility/date, if present.
func (c *SlotCache) Get(ctx context.Context, facilityID int64, date model.Date) ([]time.Time, bool) {
	if c == nil {
		return nil, false
	}
	data, err := c.rdb.Get(ctx, slotKey(facilityID, date)).Bytes()
	if err != nil {
		metrics.IncSlotCache("miss")
		return nil, false
	}
	var starts []time.Time
	if err := json.Unmarshal(data, &starts); err != nil {
		metrics.IncSlotCache("miss")
		return nil, false
	}
	metrics.IncSlotCache("hit")
	return starts, true
}

// Set stores the starts for a facility/date. Failures are silent: the
// cache is an optimization, never an authority.
func (c *SlotCache) Set(ctx context.Context, facilityID int64, date model.Date, starts []time.Time) {
	if c == nil {
		return
	}
	data, err := json.Marshal(starts)
	if err != nil {
		return
	}
	_ = c.rdb.Set(ctx, slotKey(facilityID, date), data, c.ttl).Err()
}

// InvalidateSpan drops cached days covered by [start, end] on a facility,
// called after any reservation write.
func (c *SlotCache) InvalidateSpan(ctx context.Context, facilityID int64, start, end time.Time, loc *time.Location) {
	if c == nil {
		return
	}
	date := model.DateOf(start.In(loc))
	last := model.DateOf(end.In(loc))
	keys := []string{slotKey(facilityID, date)}
	for date != last {
		date = date.Next()
		keys = append(keys, slotKey(facilityID, date))
	}
	_ = c.rdb.Del(ctx, keys...).Err()
}

// InvalidateFacility drops every cached day for a facility, called after a
// facility or schedule update.
func (c *SlotCache) InvalidateFacility(ctx context.Context, facilityID int64) {
	if c == nil {
		return
	}
	pattern := fmt.Sprintf("slots:%d:*", facilityID)
	iter := c.rdb.Scan(ctx, 0, pattern, 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if len(keys) > 0 {
		_ = c.rdb.Del(ctx, keys...).Err()
	}
}
