package auditlog

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/doxa-platform/triage/pkg/observability/logging"
)

// FileStoreConfig configures the file backend.
type FileStoreConfig struct {
	// Dir is the log directory. Default: logs/query_results
	Dir string
}

// FileStore appends records as JSON lines to one file per calendar
// day (queries_YYYY-MM-DD.jsonl). Appends are O(1) regardless of how
// many records the day already holds.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates the log directory and returns the store.
func NewFileStore(cfg FileStoreConfig) (*FileStore, error) {
	dir := cfg.Dir
	if dir == "" {
		dir = "logs/query_results"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating audit log dir: %w", err)
	}
	logging.Infof("Audit file store writing to %s", dir)
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) pathForDate(date string) string {
	return filepath.Join(s.dir, "queries_"+date+".jsonl")
}

// StoreRecord appends the record to the current day's file.
func (s *FileStore) StoreRecord(_ context.Context, record *Record) error {
	if record == nil || record.Metadata.TraceID == "" {
		return ErrInvalidInput
	}
	if record.Metadata.Date == "" {
		record.Finalize()
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding audit record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.pathForDate(record.Metadata.Date),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening audit log file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing audit record: %w", err)
	}
	return nil
}

// RecordsByDate reads back one day's records, oldest first.
func (s *FileStore) RecordsByDate(_ context.Context, date string) ([]*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.pathForDate(date))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("opening audit log file: %w", err)
	}
	defer f.Close()

	var records []*Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			// A torn write must not hide the rest of the day.
			logging.Warnf("Skipping corrupt audit line in %s: %v", s.pathForDate(date), err)
			continue
		}
		records = append(records, &rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading audit log file: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return records, nil
}

// CheckConnection verifies the directory is writable.
func (s *FileStore) CheckConnection(context.Context) error {
	probe := filepath.Join(s.dir, ".probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	return os.Remove(probe)
}

// Close is a no-op for the file backend.
func (s *FileStore) Close() error { return nil }

var _ Store = (*FileStore)(nil)
