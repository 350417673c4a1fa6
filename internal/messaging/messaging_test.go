package messaging

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestHeaderCarrier(t *testing.T) {
	msg := kafka.Message{Headers: []kafka.Header{
		{Key: contentTypeHeader, Value: []byte("application/json")},
		{Key: "Traceparent", Value: []byte("stale")},
	}}
	c := NewHeaderCarrier(&msg)

	c.Set("traceparent", "a")
	c.Set("traceparent", "b")

	assert.Equal(t, "b", c.Get("traceparent"))
	assert.Equal(t, "b", c.Get("TRACEPARENT"))
	assert.Equal(t, "application/json", c.Get(contentTypeHeader))
	assert.Empty(t, c.Get("missing"))
	assert.ElementsMatch(t, []string{contentTypeHeader, "traceparent"}, c.Keys())
	assert.Len(t, msg.Headers, 2)
}

// spans collects every span ended in this package's tests. The package tracers
// bind to the first global provider, so it is installed once.
var spans = tracetest.NewInMemoryExporter()

func TestMain(m *testing.M) {
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSyncer(spans)))
	otel.SetTextMapPropagator(propagation.TraceContext{})
	os.Exit(m.Run())
}

func TestConsumer_ContinuesProducerTrace(t *testing.T) {
	spans.Reset()

	ctx, parent := otel.Tracer("test").Start(context.Background(), "place order")
	msg := kafka.Message{Key: []byte("order-1"), Value: []byte(`{"type":"order.placed"}`), Offset: 7}
	otel.GetTextMapPropagator().Inject(ctx, NewHeaderCarrier(&msg))
	parent.End()

	c := &Consumer{topic: "order.events", groupID: "notifications"}

	var got trace.SpanContext
	err := c.processMessage(context.Background(), msg, func(ctx context.Context, payload []byte) error {
		got = trace.SpanContextFromContext(ctx)
		assert.JSONEq(t, `{"type":"order.placed"}`, string(payload))
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, parent.SpanContext().TraceID(), got.TraceID())

	ended := spans.GetSpans()
	require.Len(t, ended, 2)
	assert.Equal(t, "process order.events", ended[1].Name)
	assert.Equal(t, trace.SpanKindConsumer, ended[1].SpanKind)
	assert.Equal(t, parent.SpanContext().SpanID(), ended[1].Parent.SpanID())
}

func TestConsumer_HandlerErrorMarksSpan(t *testing.T) {
	spans.Reset()
	c := &Consumer{topic: "order.events", groupID: "notifications"}

	boom := errors.New("mail service down")
	err := c.processMessage(context.Background(), kafka.Message{}, func(context.Context, []byte) error {
		return boom
	})
	require.ErrorIs(t, err, boom)

	ended := spans.GetSpans()
	require.Len(t, ended, 1)
	assert.Equal(t, codes.Error, ended[0].Status.Code)
}
