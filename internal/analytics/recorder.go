package analytics

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cwrk-planet/realtime-service/internal/domain"
	"github.com/cwrk-planet/realtime-service/internal/repository"
)

// Recorder принимает просмотры товаров. RecordView не блокирует и не возвращает ошибок:
// счётчик fire-and-forget и не должен влиять на рассылку события.
type Recorder interface {
	RecordView(v domain.ProductView)
}

// LogRecorder — режим без БД: просмотр только логируется.
type LogRecorder struct {
	log *slog.Logger
}

func NewLogRecorder(l *slog.Logger) *LogRecorder {
	if l == nil {
		l = slog.Default()
	}
	return &LogRecorder{log: l}
}

func (r *LogRecorder) RecordView(v domain.ProductView) {
	r.log.Info("analytics: product view",
		"productId", v.ProductID,
		"vendorId", v.VendorID,
		"viewed_at", v.ViewedAt)
}

var ErrQueueClosed = errors.New("analytics: queue closed")

// Queue — ограниченная очередь с одним воркером, который пишет счётчики в репозиторий.
// При переполнении просмотр отбрасывается с предупреждением.
type Queue struct {
	repo    repository.ViewRepository
	ch      chan domain.ProductView
	timeout time.Duration

	mu     sync.RWMutex
	closed bool

	dropped atomic.Int64
	failed  atomic.Int64
	written atomic.Int64

	startOnce sync.Once
	done      chan struct{}
}

func NewQueue(repo repository.ViewRepository, size int, writeTimeout time.Duration) *Queue {
	if size <= 0 {
		size = 1024
	}
	if writeTimeout <= 0 {
		writeTimeout = 3 * time.Second
	}
	return &Queue{
		repo:    repo,
		ch:      make(chan domain.ProductView, size),
		timeout: writeTimeout,
		done:    make(chan struct{}),
	}
}

func (q *Queue) Start() {
	q.startOnce.Do(func() { go q.run() })
}

func (q *Queue) run() {
	defer close(q.done)
	for v := range q.ch {
		ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
		err := q.repo.Increment(ctx, v)
		cancel()
		if err != nil {
			q.failed.Add(1)
			slog.Warn("analytics: increment failed", "productId", v.ProductID, "vendorId", v.VendorID, "err", err)
			continue
		}
		q.written.Add(1)
	}
}

func (q *Queue) RecordView(v domain.ProductView) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.dropped.Add(1)
		return
	}

	select {
	case q.ch <- v:
	default:
		q.dropped.Add(1)
		slog.Warn("analytics: queue full, view dropped", "productId", v.ProductID, "vendorId", v.VendorID)
	}
}

// Close перестаёт принимать просмотры и ждёт, пока воркер допишет очередь.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	// воркер мог быть не запущен
	q.Start()

	select {
	case <-q.done:
		slog.Info("analytics: queue flushed",
			"written", q.written.Load(),
			"failed", q.failed.Load(),
			"dropped", q.dropped.Load())
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Counters — для тестов и интроспекции.
func (q *Queue) Counters() (written, failed, dropped int64) {
	return q.written.Load(), q.failed.Load(), q.dropped.Load()
}
