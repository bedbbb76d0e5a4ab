package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithContext(t *testing.T) {
	log := zap.NewNop()
	ctx := WithContext(context.Background(), log)

	assert.Same(t, log, FromContext(ctx))
}

func TestFromContext_Missing(t *testing.T) {
	log := FromContext(context.Background())

	require.NotNil(t, log)
	// The fallback logger swallows everything instead of panicking.
	log.Info("never written")
}

func TestWithRequestID(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	ctx, tagged := WithRequestID(context.Background(), base, "req-12345")

	assert.Equal(t, "req-12345", GetRequestID(ctx))
	assert.Same(t, tagged, FromContext(ctx))

	tagged.Info("order created")
	entries := recorded.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "req-12345", entries[0].ContextMap()["request_id"])
}

func TestGetRequestID_Missing(t *testing.T) {
	assert.Empty(t, GetRequestID(context.Background()))
}

func TestWithTraceContext(t *testing.T) {
	t.Run("tags with active span ids", func(t *testing.T) {
		provider := sdktrace.NewTracerProvider()
		t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
		ctx, span := provider.Tracer("test").Start(context.Background(), "ingest_webhook")
		defer span.End()

		core, recorded := observer.New(zapcore.InfoLevel)
		log := WithTraceContext(ctx, zap.New(core))

		log.Info("payment recorded")
		entries := recorded.All()
		require.Len(t, entries, 1)
		fields := entries[0].ContextMap()
		assert.Equal(t, span.SpanContext().TraceID().String(), fields["trace_id"])
		assert.Equal(t, span.SpanContext().SpanID().String(), fields["span_id"])
	})

	t.Run("no active span leaves the logger untouched", func(t *testing.T) {
		log := zap.NewNop()

		assert.Same(t, log, WithTraceContext(context.Background(), log))
	})
}
