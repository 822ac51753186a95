package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromContext(t *testing.T) {
	t.Run("returns nop without logger", func(t *testing.T) {
		assert.NotNil(t, FromContext(context.Background()))
	})

	t.Run("returns stored logger", func(t *testing.T) {
		l := zap.NewExample()
		ctx := WithContext(context.Background(), l)
		assert.Same(t, l, FromContext(ctx))
	})
}

func TestCorrelationIDs(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetRequestID(ctx))
	assert.Empty(t, GetActorID(ctx))
	assert.Empty(t, GetOrderID(ctx))
	assert.Empty(t, GetTraceID(ctx))
	assert.Empty(t, Fields(ctx))

	ctx = WithRequestID(ctx, "req-1")
	ctx = WithActorID(ctx, "cashier-7")
	ctx = WithOrderID(ctx, "ord-9")

	assert.Equal(t, "req-1", GetRequestID(ctx))
	assert.Equal(t, "cashier-7", GetActorID(ctx))
	assert.Equal(t, "ord-9", GetOrderID(ctx))
	assert.Len(t, Fields(ctx), 3)
}

func TestL(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	ctx = WithRequestID(ctx, "req-42")

	L(ctx, base).Info("order committed")

	require.Equal(t, 1, recorded.Len())
	fields := recorded.All()[0].ContextMap()
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", fields["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", fields["span_id"])
	assert.Equal(t, "req-42", fields["request_id"])
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", GetTraceID(ctx))
}

func TestL_UsesContextLogger(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	ctx := WithContext(context.Background(), zap.New(core))
	ctx = WithOrderID(ctx, "ord-1")

	L(ctx, nil).Info("held")

	require.Equal(t, 1, recorded.Len())
	assert.Equal(t, "ord-1", recorded.All()[0].ContextMap()["order_id"])
}
