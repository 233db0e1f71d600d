package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func bufferLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(&Handler{Handler: slog.NewJSONHandler(buf, nil)})
}

func TestHandler_AddsRequestAndTraceIDs(t *testing.T) {
	var buf bytes.Buffer
	log := bufferLogger(&buf)

	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-42")
	ctx, span := tp.Tracer("test").Start(ctx, "op")
	log.InfoContext(ctx, "hello", "k", "v")
	span.End()

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))

	assert.Equal(t, "req-42", record["request_id"])
	assert.Equal(t, span.SpanContext().TraceID().String(), record["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), record["span_id"])
	assert.Equal(t, "v", record["k"])
}

func TestHandler_PlainContext(t *testing.T) {
	var buf bytes.Buffer
	bufferLogger(&buf).With("component", "test").Info("hello")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))

	assert.NotContains(t, record, "request_id")
	assert.NotContains(t, record, "trace_id")
	assert.Equal(t, "test", record["component"])
}

func TestLoggerMiddleware(t *testing.T) {
	var buf bytes.Buffer
	handler := NewLoggerMiddleware(bufferLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("tea"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders", nil))

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))

	assert.Equal(t, "Request completed", record["msg"])
	assert.Equal(t, "/orders", record["path"])
	assert.EqualValues(t, http.StatusTeapot, record["status"])
	assert.EqualValues(t, 3, record["bytes"])
}
