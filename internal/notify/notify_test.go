package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wellness-analytics/internal/models"
)

type mockTransport struct {
	mock.Mock
}

func (m *mockTransport) Deliver(ctx context.Context, d Delivery) error {
	return m.Called(ctx, d).Error(0)
}

func TestWebhookTransport_Deliver(t *testing.T) {
	var got WebhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	tr := NewWebhookTransport(srv.URL, time.Second, zap.NewNop())
	err := tr.Deliver(context.Background(), Delivery{ID: "d1", CaregiverID: "c1", Title: "Alert", Priority: models.PriorityCritical})
	require.NoError(t, err)
	assert.Equal(t, "d1", got.DeliveryID)
	assert.Equal(t, "critical", got.Priority)
}

func TestWebhookTransport_ServerError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	tr := NewWebhookTransport(srv.URL, time.Second, zap.NewNop())
	err := tr.Deliver(context.Background(), Delivery{ID: "d1", CaregiverID: "c1"})
	assert.Error(t, err)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(1))
}

func TestThrottle_CriticalBypasses(t *testing.T) {
	next := new(mockTransport)
	next.On("Deliver", mock.Anything, mock.Anything).Return(nil)

	th := NewThrottle(next, time.Hour)
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	th.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, th.Deliver(ctx, Delivery{CaregiverID: "c1", Priority: models.PriorityHigh}))
	assert.ErrorIs(t, th.Deliver(ctx, Delivery{CaregiverID: "c1", Priority: models.PriorityHigh}), ErrThrottled)
	require.NoError(t, th.Deliver(ctx, Delivery{CaregiverID: "c1", Priority: models.PriorityCritical}))
	require.NoError(t, th.Deliver(ctx, Delivery{CaregiverID: "c2", Priority: models.PriorityLow}))

	now = now.Add(2 * time.Hour)
	require.NoError(t, th.Deliver(ctx, Delivery{CaregiverID: "c1", Priority: models.PriorityMedium}))

	next.AssertNumberOfCalls(t, "Deliver", 4)
}

func TestThrottle_ConcurrentDeliveriesShareOneSlot(t *testing.T) {
	next := new(mockTransport)
	next.On("Deliver", mock.Anything, mock.Anything).Return(nil)
	th := NewThrottle(next, time.Hour)
	ctx := context.Background()

	var wg sync.WaitGroup
	var throttled int32
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if errors.Is(th.Deliver(ctx, Delivery{CaregiverID: "c1", Priority: models.PriorityHigh}), ErrThrottled) {
				atomic.AddInt32(&throttled, 1)
			}
		}()
	}
	wg.Wait()

	next.AssertNumberOfCalls(t, "Deliver", 1)
	assert.Equal(t, int32(9), atomic.LoadInt32(&throttled))
}

func TestThrottle_FailedSendReleasesSlot(t *testing.T) {
	next := new(mockTransport)
	next.On("Deliver", mock.Anything, mock.Anything).Return(errors.New("gateway down")).Once()
	next.On("Deliver", mock.Anything, mock.Anything).Return(nil)
	th := NewThrottle(next, time.Hour)
	ctx := context.Background()

	assert.Error(t, th.Deliver(ctx, Delivery{CaregiverID: "c1", Priority: models.PriorityMedium}))
	require.NoError(t, th.Deliver(ctx, Delivery{CaregiverID: "c1", Priority: models.PriorityMedium}))
	assert.ErrorIs(t, th.Deliver(ctx, Delivery{CaregiverID: "c1", Priority: models.PriorityMedium}), ErrThrottled)
}

func TestLogTransport(t *testing.T) {
	assert.NoError(t, NewLogTransport(zap.NewNop()).Deliver(context.Background(), Delivery{ID: "x"}))
}
