package outbox

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/corray333/backend-labs/marketplace/internal/metrics"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/actor"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/event"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/outbox"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type memoryOutbox struct {
	mu       sync.Mutex
	nextID   int64
	messages map[int64]outbox.OutboxMessage
}

func newMemoryOutbox() *memoryOutbox {
	return &memoryOutbox{messages: make(map[int64]outbox.OutboxMessage)}
}

func (m *memoryOutbox) Insert(_ context.Context, msg outbox.OutboxMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	msg.ID = m.nextID
	m.messages[msg.ID] = msg

	return nil
}

func (m *memoryOutbox) GetPendingMessages(_ context.Context, now time.Time, limit int) ([]outbox.OutboxMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	due := make([]outbox.OutboxMessage, 0)
	for _, msg := range m.messages {
		if !msg.NextRetryAt.After(now) && msg.RetryCount < msg.MaxRetries {
			due = append(due, msg)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ID < due[j].ID })

	if len(due) > limit {
		due = due[:limit]
	}

	return due, nil
}

func (m *memoryOutbox) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.messages, id)

	return nil
}

func (m *memoryOutbox) UpdateRetry(_ context.Context, id int64, retryCount int, lastError string, nextRetryAt, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg := m.messages[id]
	msg.RetryCount = retryCount
	msg.LastError = lastError
	msg.NextRetryAt = nextRetryAt
	msg.UpdatedAt = now
	m.messages[id] = msg

	return nil
}

func (m *memoryOutbox) CountDead(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	dead := 0
	for _, msg := range m.messages {
		if msg.RetryCount >= msg.MaxRetries {
			dead++
		}
	}

	return dead, nil
}

func (m *memoryOutbox) get(id int64) (outbox.OutboxMessage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg, ok := m.messages[id]

	return msg, ok
}

type recordingHandler struct {
	mu     sync.Mutex
	events []event.Event
	fail   error
}

func (h *recordingHandler) HandleEvent(_ context.Context, e event.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.fail != nil {
		return h.fail
	}
	h.events = append(h.events, e)

	return nil
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.events)
}

func enqueue(t *testing.T, repo *memoryOutbox, typ event.Type, now time.Time, maxRetries int) outbox.OutboxMessage {
	t.Helper()

	e, err := event.New(typ, uuid.New(), actor.Actor{ID: "buyer-1", Role: actor.RoleBuyer}, map[string]string{"k": "v"}, now)
	require.NoError(t, err)

	msg, err := outbox.FromEvent(e, "marketplace.events", maxRetries, now)
	require.NoError(t, err)
	require.NoError(t, repo.Insert(context.Background(), msg))

	return msg
}

func newTestWorker(repo *memoryOutbox, pub publisher, now time.Time) *Worker {
	w := NewWorker(repo, pub)
	w.retryInterval = 30 * time.Second
	w.now = func() time.Time { return now }

	return w
}

func TestWorker_RelaysInOrderAndDeletes(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	repo := newMemoryOutbox()
	handler := &recordingHandler{}

	enqueue(t, repo, event.OrderPlaced, now, 10)
	enqueue(t, repo, event.OrderStatusChanged, now, 10)

	newTestWorker(repo, NewLocalDispatcher(handler), now).processMessages(context.Background())

	require.Equal(t, 2, handler.count())
	assert.Equal(t, event.OrderPlaced, handler.events[0].Type)
	assert.Equal(t, event.OrderStatusChanged, handler.events[1].Type)

	pending, err := repo.GetPendingMessages(context.Background(), now, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestWorker_FailureSchedulesExponentialRetry(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		retryCount int
		wantDelay  time.Duration
	}{
		{name: "first failure", retryCount: 0, wantDelay: time.Minute},
		{name: "third failure", retryCount: 2, wantDelay: 4 * time.Minute},
		{name: "capped", retryCount: 8, wantDelay: maxBackoff},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemoryOutbox()
			handler := &recordingHandler{fail: errors.New("broker unavailable")}

			msg := enqueue(t, repo, event.DisputeOpened, now, 10)
			stored, _ := repo.get(1)
			stored.RetryCount = tt.retryCount
			repo.messages[1] = stored

			newTestWorker(repo, NewLocalDispatcher(handler), now).processMessages(context.Background())

			got, ok := repo.get(1)
			require.True(t, ok, "failed message must stay in the outbox")
			assert.Equal(t, tt.retryCount+1, got.RetryCount)
			assert.Equal(t, now.Add(tt.wantDelay), got.NextRetryAt)
			assert.Equal(t, "broker unavailable", got.LastError)
			assert.Equal(t, msg.EventID, got.EventID)
		})
	}
}

func TestWorker_ExhaustedMessageIsNoLongerPending(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	repo := newMemoryOutbox()
	handler := &recordingHandler{fail: errors.New("down")}

	enqueue(t, repo, event.OrderPlaced, now, 1)

	w := newTestWorker(repo, NewLocalDispatcher(handler), now)
	w.processMessages(context.Background())

	got, ok := repo.get(1)
	require.True(t, ok)
	assert.Equal(t, 1, got.RetryCount)

	pending, err := repo.GetPendingMessages(context.Background(), now.Add(24*time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.OutboxDead))
}

type recordingBroker struct {
	exchange, routingKey, contentType, messageID string
	body                                         []byte
}

func (b *recordingBroker) Publish(_ context.Context, exchange, routingKey, contentType, messageID string, body []byte) error {
	b.exchange, b.routingKey, b.contentType, b.messageID, b.body = exchange, routingKey, contentType, messageID, body

	return nil
}

func TestBrokerPublisher_RoutesByEventType(t *testing.T) {
	now := time.Now()
	repo := newMemoryOutbox()
	msg := enqueue(t, repo, event.DisputeMessageAdded, now, 10)

	broker := &recordingBroker{}
	require.NoError(t, NewBrokerPublisher(broker).Publish(context.Background(), msg))

	assert.Equal(t, "marketplace.events", broker.exchange)
	assert.Equal(t, string(event.DisputeMessageAdded), broker.routingKey)
	assert.Equal(t, outbox.ContentTypeJSON, broker.contentType)
	assert.Equal(t, msg.EventID.String(), broker.messageID)
	assert.Equal(t, msg.Payload, broker.body)
}

func TestWorker_StartStops(t *testing.T) {
	defer goleak.VerifyNone(t)

	repo := newMemoryOutbox()
	handler := &recordingHandler{}
	enqueue(t, repo, event.OrderPlaced, time.Now().Add(-time.Second), 10)

	w := NewWorker(repo, NewLocalDispatcher(handler))
	w.pollInterval = 10 * time.Millisecond

	done := make(chan struct{})
	go func() {
		w.Start(context.Background())
		close(done)
	}()

	require.Eventually(t, func() bool { return handler.count() == 1 }, 2*time.Second, 10*time.Millisecond)

	w.Stop()
	<-done
}
