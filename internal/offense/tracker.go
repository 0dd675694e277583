// Package offense tracks repeat connection-level detections per IP and
// escalates the recommended Z-line duration. Counters live in Redis with
// TTL-based expiry:
//
//	Key:   offense:<ip>
//	Value: detection count
//	TTL:   24h, reset only when the counter is created
package offense

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// CounterPrefix is the Redis key prefix for offense counters.
	CounterPrefix = "offense:"

	// Escalating Z-line durations.
	First  = 15 * time.Minute // 1st offense
	Second = 1 * time.Hour    // 2nd offense
	Repeat = 24 * time.Hour   // 3rd+ offense

	// CounterTTL is how long an offense counter lives. After 24h without
	// new detections the counter expires and escalation starts over.
	CounterTTL = 24 * time.Hour
)

// Tracker manages offense counters in Redis.
type Tracker struct {
	client *redis.Client
}

// NewTracker creates a Tracker using the provided Redis client.
func NewTracker(client *redis.Client) *Tracker {
	return &Tracker{client: client}
}

// durationFor returns the Z-line duration for a given offense count.
func durationFor(count int) time.Duration {
	switch {
	case count <= 1:
		return First
	case count == 2:
		return Second
	default:
		return Repeat
	}
}

// Count returns the current offense counter for an IP. A missing or
// expired counter reads as zero.
func (t *Tracker) Count(ctx context.Context, ip string) (int, error) {
	val, err := t.client.Get(ctx, CounterPrefix+ip).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return val, nil
}

// Record increments the offense counter for an IP and returns the Z-line
// duration to recommend:
//
//	1st offense  -> 15 minutes
//	2nd offense  -> 1 hour
//	3rd+ offense -> 24 hours
//
// The TTL is set only when the counter is created so the 24h window does
// not slide. Redis errors are returned so callers can fall back to their
// configured default duration.
func (t *Tracker) Record(ctx context.Context, ip string) (time.Duration, error) {
	key := CounterPrefix + ip

	count, err := t.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("offense: incr: %w", err)
	}

	if count == 1 {
		if err := t.client.Expire(ctx, key, CounterTTL).Err(); err != nil {
			return 0, fmt.Errorf("offense: expire: %w", err)
		}
	}

	return durationFor(int(count)), nil
}
