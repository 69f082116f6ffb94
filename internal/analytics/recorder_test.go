package analytics

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/cwrk-planet/realtime-service/internal/domain"
	"github.com/cwrk-planet/realtime-service/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRepo struct {
	mu    sync.Mutex
	views map[domain.ID]int64
	fail  domain.ID
	gate  chan struct{}
}

var _ repository.ViewRepository = (*memRepo)(nil)

func newMemRepo() *memRepo { return &memRepo{views: map[domain.ID]int64{}} }

func (m *memRepo) EnsureSchema(context.Context) error { return nil }

func (m *memRepo) Increment(_ context.Context, v domain.ProductView) error {
	if m.gate != nil {
		<-m.gate
	}
	if v.ProductID == m.fail {
		return errors.New("db down")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.views[v.ProductID]++
	return nil
}

func (m *memRepo) count(id domain.ID) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.views[id]
}

func view(product string) domain.ProductView {
	return domain.ProductView{ProductID: domain.ID(product), VendorID: "teva-deli", ViewedAt: time.Now()}
}

func TestQueue_FlushOnClose(t *testing.T) {
	repo := newMemRepo()
	q := NewQueue(repo, 16, time.Second)
	q.Start()

	for i := 0; i < 5; i++ {
		q.RecordView(view("p-1"))
	}
	q.RecordView(view("p-2"))

	require.NoError(t, q.Close(context.Background()))

	assert.EqualValues(t, 5, repo.count("p-1"))
	written, failed, dropped := q.Counters()
	assert.EqualValues(t, 6, written)
	assert.Zero(t, failed)
	assert.Zero(t, dropped)
}

func TestQueue_DropsWhenFull(t *testing.T) {
	repo := newMemRepo()
	repo.gate = make(chan struct{})
	q := NewQueue(repo, 1, time.Second)
	// воркер не запущен: в очередь помещается ровно один просмотр
	q.RecordView(view("p-1"))
	q.RecordView(view("p-2"))
	q.RecordView(view("p-3"))

	_, _, dropped := q.Counters()
	assert.EqualValues(t, 2, dropped)

	close(repo.gate)
	require.NoError(t, q.Close(context.Background()))
	written, _, _ := q.Counters()
	assert.EqualValues(t, 1, written)
}

func TestQueue_RepoFailureIsCounted(t *testing.T) {
	repo := newMemRepo()
	repo.fail = "bad"
	q := NewQueue(repo, 8, time.Second)
	q.Start()

	q.RecordView(view("bad"))
	q.RecordView(view("good"))
	require.NoError(t, q.Close(context.Background()))

	written, failed, _ := q.Counters()
	assert.EqualValues(t, 1, written)
	assert.EqualValues(t, 1, failed)
}

func TestQueue_RecordAfterCloseIsDropped(t *testing.T) {
	q := NewQueue(newMemRepo(), 4, time.Second)
	require.NoError(t, q.Close(context.Background()))

	assert.NotPanics(t, func() { q.RecordView(view("p-1")) })
	_, _, dropped := q.Counters()
	assert.EqualValues(t, 1, dropped)

	assert.ErrorIs(t, q.Close(context.Background()), ErrQueueClosed)
}

func TestLogRecorder(t *testing.T) {
	var buf bytes.Buffer
	r := NewLogRecorder(slog.New(slog.NewJSONHandler(&buf, nil)))

	r.RecordView(view("p-9"))

	assert.Contains(t, buf.String(), `"productId":"p-9"`)
	assert.Contains(t, buf.String(), `"vendorId":"teva-deli"`)
}
