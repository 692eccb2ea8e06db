package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/mocktracer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartSpanAndFinish(t *testing.T) {
	tracer := mocktracer.New()
	prev := opentracing.GlobalTracer()
	opentracing.SetGlobalTracer(tracer)
	t.Cleanup(func() { opentracing.SetGlobalTracer(prev) })

	span, ctx := StartSpan(context.Background(), "market_api.submit", "26000")
	require.NotNil(t, opentracing.SpanFromContext(ctx))
	Finish(span, errors.New("boom"))

	ok, _ := StartSpan(context.Background(), "market_api.ltp", "")
	Finish(ok, nil)

	spans := tracer.FinishedSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "market_api.submit", spans[0].OperationName)
	assert.Equal(t, "26000", spans[0].Tag("token"))
	assert.Equal(t, true, spans[0].Tag("error"))
	assert.Nil(t, spans[1].Tag("error"))
}

func TestSetServiceName(t *testing.T) {
	old := SetServiceName("signal_bot")
	t.Cleanup(func() { SetServiceName(old) })
	assert.Equal(t, "signal_bot", serviceName)
}
