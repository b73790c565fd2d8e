package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"TradeLens/internal/domain/models"
	drepo "TradeLens/internal/domain/repository"
	"TradeLens/pkg/logger"
)

// JournalBuffer batches telemetry events. A batch is flushed when the
// buffer reaches the batch size or on the interval. A failed batch goes
// back to the head of the buffer so order is kept across retries.
type JournalBuffer struct {
	sink      drepo.JournalSink
	sessions  SessionProvider
	batchSize int
	interval  time.Duration
	metrics   drepo.Metrics
	log       *logger.Logger
	now       func() time.Time

	mu       sync.Mutex
	buf      []models.JournalEvent
	flushing bool
	kick     chan struct{}
}

func NewJournalBuffer(sink drepo.JournalSink, sessions SessionProvider, batchSize int, interval time.Duration, metrics drepo.Metrics, log *logger.Logger) *JournalBuffer {
	if batchSize <= 0 {
		batchSize = 100
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if metrics == nil {
		metrics = drepo.NopMetrics{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &JournalBuffer{
		sink:      sink,
		sessions:  sessions,
		batchSize: batchSize,
		interval:  interval,
		metrics:   metrics,
		log:       log,
		now:       time.Now,
		kick:      make(chan struct{}, 1),
	}
}

// Log appends one event, filling in id and timestamp when missing.
func (b *JournalBuffer) Log(ev models.JournalEvent) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = b.now()
	}
	b.mu.Lock()
	b.buf = append(b.buf, ev)
	full := len(b.buf) >= b.batchSize
	b.mu.Unlock()
	if full {
		b.signal()
	}
}

// PublishMessage receives log digests and journals them.
func (b *JournalBuffer) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	b.Log(models.JournalEvent{
		Type:    models.EventLogDigest,
		Payload: map[string]interface{}{"topic": topic, "entries": payload},
	})
	return nil
}

// Len is the number of buffered events.
func (b *JournalBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf)
}

// Flush sends at most one batch. Concurrent calls while a batch is in
// flight return immediately.
func (b *JournalBuffer) Flush(ctx context.Context) error {
	b.mu.Lock()
	if b.flushing || len(b.buf) == 0 {
		b.mu.Unlock()
		return nil
	}
	n := len(b.buf)
	if n > b.batchSize {
		n = b.batchSize
	}
	batch := make([]models.JournalEvent, n)
	copy(batch, b.buf[:n])
	b.buf = append(b.buf[:0:0], b.buf[n:]...)
	b.flushing = true
	b.mu.Unlock()

	err := b.submit(ctx, batch)

	b.mu.Lock()
	b.flushing = false
	if err != nil {
		b.buf = append(batch, b.buf...)
	}
	more := len(b.buf) >= b.batchSize
	pending := len(b.buf)
	b.mu.Unlock()

	b.metrics.RecordJournalFlush(err == nil, len(batch))
	if err != nil {
		b.log.Warn("journal flush failed",
			logger.Int("events", len(batch)),
			logger.Int("pending", pending),
			logger.Error(err),
		)
		return err
	}
	if more {
		b.signal()
	}
	return nil
}

func (b *JournalBuffer) submit(ctx context.Context, batch []models.JournalEvent) error {
	var sid string
	if b.sessions != nil {
		id, err := b.sessions.SessionID(ctx)
		if err != nil {
			return err
		}
		sid = id
	}
	return b.sink.Submit(ctx, sid, batch)
}

// Run flushes on the interval and whenever a batch fills up. Pending events
// get one last attempt on shutdown.
func (b *JournalBuffer) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			fctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = b.Flush(fctx)
			cancel()
			return nil
		case <-ticker.C:
			_ = b.Flush(ctx)
		case <-b.kick:
			_ = b.Flush(ctx)
		}
	}
}

func (b *JournalBuffer) signal() {
	select {
	case b.kick <- struct{}{}:
	default:
	}
}
