package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace"
)

func TestTraceCorrelationHelpers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	assert.Empty(t, TraceID(ctx))
	assert.Empty(t, SpanID(ctx))

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: trace.TraceID{0x01},
		SpanID:  trace.SpanID{0x02},
	})
	ctx = trace.ContextWithSpanContext(ctx, sc)

	assert.Equal(t, sc.TraceID().String(), TraceID(ctx))
	assert.Equal(t, sc.SpanID().String(), SpanID(ctx))
}
