package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
	"ordersystem/internal/pkg/httpclient"
	"ordersystem/internal/service/order/domain"
)

type recordingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func TestStockUpdateKafkaAdapter_Publish(t *testing.T) {
	w := &recordingWriter{}
	a := NewStockUpdateKafkaAdapter(w)

	require.NoError(t, a.Publish(context.Background(), 42, 3))
	require.NoError(t, a.Publish(context.Background(), 42, 1))
	require.Len(t, w.msgs, 2)
	assert.Equal(t, "42", string(w.msgs[0].Key))

	var first, second domain.StockUpdateCommand
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &first))
	require.NoError(t, json.Unmarshal(w.msgs[1].Value, &second))
	assert.Equal(t, int64(42), first.ProductID)
	assert.Equal(t, 3, first.Quantity)
	assert.NotEmpty(t, first.EventID)
	assert.NotEqual(t, first.EventID, second.EventID)
}

func TestStockUpdateKafkaAdapter_PublishFailure(t *testing.T) {
	a := NewStockUpdateKafkaAdapter(&recordingWriter{err: errors.New("leader not available")})
	err := a.Publish(context.Background(), 1, 1)
	require.ErrorIs(t, err, domain.ErrPublishUnavailable)
}

func TestNotificationKafkaAdapter_Publish(t *testing.T) {
	w := &recordingWriter{}
	a := NewNotificationKafkaAdapter(w)

	require.NoError(t, a.Publish(context.Background(), "admin@naver.com", "buyer@example.com", 7))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "admin@naver.com", string(w.msgs[0].Key))

	var payload map[string]any
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &payload))
	assert.Equal(t, "admin@naver.com", payload["recipientEmail"])
	assert.Equal(t, "buyer@example.com", payload["actorEmail"])
	assert.Equal(t, float64(7), payload["orderId"])
}

func TestStockUpdateHTTPAdapter_Publish(t *testing.T) {
	var got updateStockRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, updateStockPath, r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := NewStockUpdateHTTPAdapter(httpclient.NewClient(noop.NewTracerProvider().Tracer("test")), StaticResolver(srv.URL))
	require.NoError(t, a.Publish(context.Background(), 5, 2))
	assert.Equal(t, updateStockRequest{ProductID: 5, ProductCount: 2}, got)
}
