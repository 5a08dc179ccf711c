package auditlog

import (
	"context"
	"sync"
	"time"

	"github.com/doxa-platform/triage/pkg/observability/logging"
	"github.com/doxa-platform/triage/pkg/observability/metrics"
)

// AsyncWriter buffers audit records and persists them in batches so
// request handling never waits on the store. A record that cannot be
// enqueued or flushed is dropped with a warning; auditing must not
// fail the request it describes.
type AsyncWriter struct {
	store         Store
	writeChan     chan *Record
	batchSize     int
	flushInterval time.Duration

	wg      sync.WaitGroup
	done    chan struct{}
	mu      sync.Mutex
	running bool
}

// AsyncWriterConfig configures the async writer.
type AsyncWriterConfig struct {
	// BufferSize is the channel buffer size. Default: 1000
	BufferSize int

	// BatchSize is the number of records to batch before writing.
	// Default: 10
	BatchSize int

	// FlushIntervalMs is the maximum time in milliseconds to wait
	// before flushing a partial batch. Default: 100
	FlushIntervalMs int
}

// NewAsyncWriter creates an async writer on top of the given store.
func NewAsyncWriter(store Store, config AsyncWriterConfig) *AsyncWriter {
	if config.BufferSize <= 0 {
		config.BufferSize = 1000
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 10
	}
	if config.FlushIntervalMs <= 0 {
		config.FlushIntervalMs = 100
	}

	return &AsyncWriter{
		store:         store,
		writeChan:     make(chan *Record, config.BufferSize),
		batchSize:     config.BatchSize,
		flushInterval: time.Duration(config.FlushIntervalMs) * time.Millisecond,
		done:          make(chan struct{}),
	}
}

// Start begins the writer goroutine.
func (w *AsyncWriter) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return
	}
	w.running = true

	w.wg.Add(1)
	go w.worker()

	logging.Infof("Audit AsyncWriter started with buffer size %d, batch size %d",
		cap(w.writeChan), w.batchSize)
}

func (w *AsyncWriter) worker() {
	defer w.wg.Done()

	batch := make([]*Record, 0, w.batchSize)
	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx := context.Background()
		for _, record := range batch {
			if err := w.store.StoreRecord(ctx, record); err != nil {
				metrics.AuditWriteFailures.Inc()
				logging.Warnf("AsyncWriter: failed to persist audit record %s: %v",
					record.ID(), err)
			}
		}
		batch = batch[:0]
	}

	for {
		select {
		case record, ok := <-w.writeChan:
			if !ok {
				flush()
				return
			}
			batch = append(batch, record)
			if len(batch) >= w.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-w.done:
			// Drain remaining records before exiting.
			for {
				select {
				case record, ok := <-w.writeChan:
					if !ok {
						flush()
						return
					}
					batch = append(batch, record)
				default:
					flush()
					return
				}
			}
		}
	}
}

// Enqueue adds a record to the write queue. Returns false when the
// buffer is full and the record was dropped.
func (w *AsyncWriter) Enqueue(record *Record) bool {
	select {
	case w.writeChan <- record:
		return true
	default:
		metrics.AuditWriteFailures.Inc()
		logging.Warnf("AsyncWriter: write buffer full, dropping audit record %s", record.ID())
		return false
	}
}

// Stop drains pending records and shuts the writer down.
func (w *AsyncWriter) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.done)
	close(w.writeChan)
	w.wg.Wait()

	logging.Infof("Audit AsyncWriter stopped")
}

// IsRunning reports whether the writer goroutine is active.
func (w *AsyncWriter) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// PendingCount returns the number of buffered records.
func (w *AsyncWriter) PendingCount() int {
	return len(w.writeChan)
}
