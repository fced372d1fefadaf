package repositories

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/BradenHooton/loginguard/internal/models"
	"github.com/redis/go-redis/v9"
)

// recordFailureScript performs the whole read-modify-write server side, so
// concurrent failures for one key are serialized by Redis itself.
//
// KEYS[1] record hash
// ARGV[1] now (unix ms), ARGV[2] lock threshold, ARGV[3] lockout (ms), ARGV[4] ttl (ms)
var recordFailureScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local threshold = tonumber(ARGV[2])
local lockout = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local count = tonumber(redis.call('HGET', KEYS[1], 'count') or '0')
local locked = tonumber(redis.call('HGET', KEYS[1], 'locked_until') or '0')

if locked > 0 and locked <= now then
	count = 0
	locked = 0
end

count = count + 1
if locked == 0 and count >= threshold then
	locked = now + lockout
end

redis.call('HSET', KEYS[1], 'count', count, 'locked_until', locked, 'updated_at', now)
redis.call('PEXPIRE', KEYS[1], ttl)

return {count, locked, now}
`)

// RedisAttemptStore keeps one hash per key. Records expire on their own after
// the lockout plus the retention window, so Prune has nothing to do.
type RedisAttemptStore struct {
	redis     redis.UniversalClient
	prefix    string
	retention time.Duration
}

// NewRedisAttemptStore creates a Redis-backed store
func NewRedisAttemptStore(redisClient redis.UniversalClient, prefix string, retention time.Duration) *RedisAttemptStore {
	if prefix == "" {
		prefix = "lrl"
	}
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &RedisAttemptStore{
		redis:     redisClient,
		prefix:    prefix,
		retention: retention,
	}
}

func (s *RedisAttemptStore) key(key models.AttemptKey) string {
	return s.prefix + ":" + string(key)
}

// Load returns the record for key, or nil if none exists
func (s *RedisAttemptStore) Load(ctx context.Context, key models.AttemptKey) (*models.AttemptRecord, error) {
	fields, err := s.redis.HGetAll(ctx, s.key(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	var values [3]int64
	for i, name := range []string{"count", "locked_until", "updated_at"} {
		v, err := strconv.ParseInt(fields[name], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: corrupt %s for %s: %v", models.ErrStoreUnavailable, name, key, err)
		}
		values[i] = v
	}

	return buildRedisRecord(key, values[0], values[1], values[2]), nil
}

// RecordFailure runs the failure script for key
func (s *RedisAttemptStore) RecordFailure(ctx context.Context, key models.AttemptKey, now time.Time, rule models.FailureRule) (*models.AttemptRecord, error) {
	ttl := rule.LockoutDuration + s.retention

	result, err := recordFailureScript.Run(ctx, s.redis,
		[]string{s.key(key)},
		now.UnixMilli(),
		rule.LockThreshold,
		rule.LockoutDuration.Milliseconds(),
		ttl.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	if len(result) != 3 {
		return nil, fmt.Errorf("%w: unexpected script reply of length %d", models.ErrStoreUnavailable, len(result))
	}

	return buildRedisRecord(key, result[0], result[1], result[2]), nil
}

// Clear deletes the record for key
func (s *RedisAttemptStore) Clear(ctx context.Context, key models.AttemptKey) error {
	if err := s.redis.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	return nil
}

// Prune is a no-op: Redis expires records by TTL
func (s *RedisAttemptStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func buildRedisRecord(key models.AttemptKey, count, lockedUntilMs, updatedAtMs int64) *models.AttemptRecord {
	record := &models.AttemptRecord{
		Key:          key,
		FailureCount: int(count),
		UpdatedAt:    time.UnixMilli(updatedAtMs),
	}
	if lockedUntilMs > 0 {
		lockedUntil := time.UnixMilli(lockedUntilMs)
		record.LockedUntil = &lockedUntil
	}
	return record
}
