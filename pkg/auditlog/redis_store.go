package auditlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/doxa-platform/triage/pkg/observability/logging"
)

// DefaultAuditTTL keeps audit records for 30 days unless configured.
const DefaultAuditTTL = 30 * 24 * time.Hour

// RedisStoreConfig configures the Redis backend.
type RedisStoreConfig struct {
	Address    string
	Database   int
	Password   string
	KeyPrefix  string
	TTLSeconds int
}

// RedisStore persists audit records in Redis as JSON.
//
// Key patterns:
//   - {prefix}{traceID}             -> JSON record data
//   - {prefix}index:time            -> Sorted set by timestamp (score = unix nano)
//   - {prefix}index:date:{date}     -> Set of trace IDs logged on a YYYY-MM-DD date
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(config RedisStoreConfig) (*RedisStore, error) {
	if config.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	keyPrefix := config.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "audit:"
	}

	ttl := time.Duration(config.TTLSeconds) * time.Second
	if config.TTLSeconds <= 0 {
		ttl = DefaultAuditTTL
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Address,
		Password: config.Password,
		DB:       config.Database,
	})

	store := &RedisStore{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := store.CheckConnection(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	logging.Infof("Audit Redis store connected to %s with prefix %s, TTL %v",
		config.Address, keyPrefix, ttl)

	return store, nil
}

func (r *RedisStore) recordKey(traceID string) string {
	return r.keyPrefix + traceID
}

func (r *RedisStore) timeIndexKey() string {
	return r.keyPrefix + "index:time"
}

func (r *RedisStore) dateIndexKey(date string) string {
	return r.keyPrefix + "index:date:" + date
}

// StoreRecord writes the record and its index entries atomically.
func (r *RedisStore) StoreRecord(ctx context.Context, record *Record) error {
	if record == nil || record.Metadata.TraceID == "" {
		return ErrInvalidInput
	}
	if record.Metadata.Date == "" {
		record.Finalize()
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal audit record: %w", err)
	}

	pipe := r.client.Pipeline()

	pipe.Set(ctx, r.recordKey(record.Metadata.TraceID), data, r.ttl)

	pipe.ZAdd(ctx, r.timeIndexKey(), redis.Z{
		Score:  float64(record.Metadata.Timestamp.UnixNano()),
		Member: record.Metadata.TraceID,
	})

	dateKey := r.dateIndexKey(record.Metadata.Date)
	pipe.SAdd(ctx, dateKey, record.Metadata.TraceID)
	pipe.Expire(ctx, dateKey, r.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store audit record: %w", err)
	}
	return nil
}

// recordByID fetches one record, mapping redis.Nil to ErrNotFound.
func (r *RedisStore) recordByID(ctx context.Context, traceID string) (*Record, error) {
	data, err := r.client.Get(ctx, r.recordKey(traceID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get audit record: %w", err)
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal audit record: %w", err)
	}
	return &record, nil
}

// RecordsByDate returns one day's records ordered oldest first.
func (r *RedisStore) RecordsByDate(ctx context.Context, date string) ([]*Record, error) {
	ids, err := r.client.SMembers(ctx, r.dateIndexKey(date)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list audit records: %w", err)
	}

	var records []*Record
	for _, id := range ids {
		record, err := r.recordByID(ctx, id)
		if errors.Is(err, ErrNotFound) {
			// The record expired ahead of its index entry.
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Metadata.Timestamp.Before(records[j].Metadata.Timestamp)
	})
	return records, nil
}

// CheckConnection verifies the Redis connection is healthy.
func (r *RedisStore) CheckConnection(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the Redis client.
func (r *RedisStore) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

var _ Store = (*RedisStore)(nil)
