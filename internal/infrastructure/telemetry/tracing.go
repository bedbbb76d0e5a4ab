package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName identifies spans opened by the application services.
const TracerName = "storefront-backend"

// Span attribute keys used on business spans. Metric attributes live in
// metrics.go as attribute.Key values; these are plain strings because they
// always pass through the pair helpers below.
const (
	SpanAttrOrderID          = "order_id"
	SpanAttrOrderStatus      = "order_status"
	SpanAttrUserID           = "user_id"
	SpanAttrProductID        = "product_id"
	SpanAttrQuantity         = "quantity"
	SpanAttrPaymentID        = "payment_id"
	SpanAttrGatewayPaymentID = "gateway_payment_id"
	SpanAttrPaymentMethod    = "payment_method"
	SpanAttrAmount           = "amount"
)

// StartServiceSpan opens an internal span named {service}.{method}, e.g.
// "payment.settle". End it with span.End(); failures go through RecordError.
func StartServiceSpan(ctx context.Context, service, method string) (context.Context, trace.Span) {
	tracer := otel.GetTracerProvider().Tracer(TracerName)
	return tracer.Start(ctx, service+"."+method,
		trace.WithSpanKind(trace.SpanKindInternal))
}

// SetAttributes attaches alternating key/value pairs to the span. Keys must
// be strings; pairs with a non-string key are skipped.
func SetAttributes(span trace.Span, keyValues ...any) {
	if span == nil {
		return
	}
	span.SetAttributes(pairsToAttributes(keyValues)...)
}

// AddEvent drops a timestamped annotation on the span, with optional
// alternating key/value pairs.
func AddEvent(span trace.Span, name string, keyValues ...any) {
	if span == nil {
		return
	}
	span.AddEvent(name, trace.WithAttributes(pairsToAttributes(keyValues)...))
}

// RecordError marks the span failed and records the error on it.
func RecordError(span trace.Span, err error, opts ...trace.EventOption) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err, opts...)
	span.SetStatus(codes.Error, err.Error())
}

func pairsToAttributes(keyValues []any) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(keyValues)/2)
	for i := 0; i+1 < len(keyValues); i += 2 {
		key, ok := keyValues[i].(string)
		if !ok {
			continue
		}
		attrs = append(attrs, spanAttribute(key, keyValues[i+1]))
	}
	return attrs
}

func spanAttribute(key string, value any) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case bool:
		return attribute.Bool(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case []string:
		return attribute.StringSlice(key, v)
	case fmt.Stringer:
		return attribute.String(key, v.String())
	default:
		return attribute.String(key, fmt.Sprintf("%v", v))
	}
}
