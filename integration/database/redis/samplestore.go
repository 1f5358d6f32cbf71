package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/devicekit/core/metrics"
)

// SampleStore is the Redis metrics.SampleStore implementation. Counters use
// INCRBYFLOAT on plain keys; every other type appends to a sorted set
// scored by sample timestamp. Both mutations are single atomic commands, so
// recording needs no cross-process coordination.
type SampleStore struct {
	client    *redis.Client
	prefix    string
	scanBatch int64
}

func NewSampleStore(client *redis.Client, cfg Config) *SampleStore {
	batch := cfg.ScanBatchSize
	if batch <= 0 {
		batch = 1000
	}
	return &SampleStore{client: client, prefix: cfg.KeyPrefix, scanBatch: batch}
}

func (s *SampleStore) redisKey(key metrics.Key) string {
	return s.prefix + ":" + key.String()
}

func (s *SampleStore) Inc(ctx context.Context, key metrics.Key, v float64, ttl time.Duration) error {
	rk := s.redisKey(key)
	pipe := s.client.TxPipeline()
	pipe.IncrByFloat(ctx, rk, v)
	pipe.Expire(ctx, rk, ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *SampleStore) Append(ctx context.Context, key metrics.Key, p metrics.Point, ttl time.Duration) error {
	rk := s.redisKey(key)
	// Member carries the payload plus a nonce so equal samples at the same
	// timestamp stay distinct set members.
	member := fmt.Sprintf("%d|%g|%d|%s", p.Timestamp, p.Value, p.Count, uuid.NewString()[:8])
	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, rk, redis.Z{Score: float64(p.Timestamp), Member: member})
	pipe.Expire(ctx, rk, ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *SampleStore) Keys(ctx context.Context, window metrics.Window, maxSlot int64) ([]metrics.Key, error) {
	pattern := s.prefix + ":*:*:" + string(window) + ":*:*"
	var (
		out    []metrics.Key
		cursor uint64
	)
	for {
		batch, next, err := s.client.Scan(ctx, cursor, pattern, s.scanBatch).Result()
		if err != nil {
			return nil, err
		}
		for _, raw := range batch {
			key, err := metrics.ParseKey(strings.TrimPrefix(raw, s.prefix+":"))
			if err != nil {
				continue
			}
			if key.Slot <= maxSlot {
				out = append(out, key)
			}
		}
		cursor = next
		if cursor == 0 {
			return out, nil
		}
	}
}

func (s *SampleStore) Points(ctx context.Context, key metrics.Key) ([]metrics.Point, error) {
	rk := s.redisKey(key)

	if key.Type == metrics.TypeCounter {
		raw, err := s.client.Get(ctx, rk).Result()
		if err != nil {
			if err == redis.Nil {
				return nil, nil
			}
			return nil, err
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("redis: malformed counter value %q: %w", raw, err)
		}
		return []metrics.Point{{Timestamp: key.Slot, Value: v, Count: 1}}, nil
	}

	members, err := s.client.ZRange(ctx, rk, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	points := make([]metrics.Point, 0, len(members))
	for _, member := range members {
		p, err := parseMember(member)
		if err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, nil
}

func (s *SampleStore) Delete(ctx context.Context, keys ...metrics.Key) error {
	if len(keys) == 0 {
		return nil
	}
	rks := make([]string, len(keys))
	for i, key := range keys {
		rks[i] = s.redisKey(key)
	}
	return s.client.Del(ctx, rks...).Err()
}

func parseMember(member string) (metrics.Point, error) {
	parts := strings.SplitN(member, "|", 4)
	if len(parts) < 3 {
		return metrics.Point{}, fmt.Errorf("redis: malformed sample member %q", member)
	}
	ts, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return metrics.Point{}, fmt.Errorf("redis: malformed sample timestamp %q", member)
	}
	v, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return metrics.Point{}, fmt.Errorf("redis: malformed sample value %q", member)
	}
	count, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return metrics.Point{}, fmt.Errorf("redis: malformed sample count %q", member)
	}
	return metrics.Point{Timestamp: ts, Value: v, Count: count}, nil
}
