package auditlog

import (
	"context"
	"errors"
	"fmt"

	"github.com/doxa-platform/triage/pkg/config"
)

// Standard errors for audit store operations.
var (
	// ErrNotFound is returned when no records exist for a query.
	ErrNotFound = errors.New("audit record not found")

	// ErrStoreDisabled is returned when the store is disabled.
	ErrStoreDisabled = errors.New("audit store is disabled")

	// ErrInvalidInput is returned when the record is malformed.
	ErrInvalidInput = errors.New("invalid audit record")

	// ErrConnectionFailed is returned when the store connection fails.
	ErrConnectionFailed = errors.New("audit store connection failed")
)

// Store persists audit records and serves the per-day query surface.
type Store interface {
	// StoreRecord appends one record.
	StoreRecord(ctx context.Context, record *Record) error

	// RecordsByDate returns all records logged on a YYYY-MM-DD date,
	// oldest first. Returns ErrNotFound when the day has no records.
	RecordsByDate(ctx context.Context, date string) ([]*Record, error)

	// CheckConnection verifies the store is reachable.
	CheckConnection(ctx context.Context) error

	// Close releases resources held by the store.
	Close() error
}

// NewStore builds the configured audit backend.
func NewStore(cfg config.AuditConfig) (Store, error) {
	switch cfg.Backend {
	case "", "file":
		return NewFileStore(FileStoreConfig{Dir: cfg.Dir})
	case "redis":
		return NewRedisStore(RedisStoreConfig{
			Address:    cfg.Redis.Address,
			Database:   cfg.Redis.Database,
			Password:   cfg.Redis.Password,
			KeyPrefix:  cfg.Redis.KeyPrefix,
			TTLSeconds: cfg.Redis.TTLSeconds,
		})
	default:
		return nil, fmt.Errorf("audit backend %q is not supported", cfg.Backend)
	}
}
