package telemetry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

// meteredBusinessMetrics wires BusinessMetrics to a ManualReader so tests
// can assert on the recorded data points.
func meteredBusinessMetrics(t *testing.T, cfg telemetry.BusinessMetricsConfig) (*telemetry.BusinessMetrics, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	cfg.Meter = provider.Meter("business-test")
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	bm, err := telemetry.NewBusinessMetrics(cfg)
	require.NoError(t, err)
	t.Cleanup(bm.Stop)
	return bm, reader
}

func collectBusinessMetric(t *testing.T, reader *sdkmetric.ManualReader, name string) (metricdata.Metrics, bool) {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

func sumValue(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "expected int64 sum data")
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestNewBusinessMetrics_NilMeter(t *testing.T) {
	bm, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
		Logger: zap.NewNop(),
	})

	assert.Nil(t, bm)
	require.Error(t, err)
	assert.True(t, errors.Is(err, telemetry.ErrMeterNil))
}

func TestBusinessMetrics_RecordOrderCreated(t *testing.T) {
	bm, reader := meteredBusinessMetrics(t, telemetry.BusinessMetricsConfig{})
	ctx := context.Background()

	bm.RecordOrderCreated(ctx, decimal.NewFromFloat(199.99))
	bm.RecordOrderCreated(ctx, decimal.NewFromFloat(0.01))

	created, ok := collectBusinessMetric(t, reader, "shop_order_created_total")
	require.True(t, ok)
	assert.Equal(t, int64(2), sumValue(t, created))

	revenue, ok := collectBusinessMetric(t, reader, "shop_order_amount_total")
	require.True(t, ok)
	assert.Equal(t, int64(20000), sumValue(t, revenue), "revenue is accumulated in cents")
}

func TestBusinessMetrics_RecordOrderCancelled(t *testing.T) {
	bm, reader := meteredBusinessMetrics(t, telemetry.BusinessMetricsConfig{})

	bm.RecordOrderCancelled(context.Background())

	cancelled, ok := collectBusinessMetric(t, reader, "shop_order_cancelled_total")
	require.True(t, ok)
	assert.Equal(t, int64(1), sumValue(t, cancelled))
}

func TestBusinessMetrics_RecordPayment(t *testing.T) {
	bm, reader := meteredBusinessMetrics(t, telemetry.BusinessMetricsConfig{})
	ctx := context.Background()

	bm.RecordPayment(ctx, "ONLINE", telemetry.PaymentOutcomeSuccess)
	bm.RecordPayment(ctx, "ONLINE", telemetry.PaymentOutcomeSuccess)
	bm.RecordPayment(ctx, "CASH", telemetry.PaymentOutcomeFailed)

	payments, ok := collectBusinessMetric(t, reader, "shop_payment_total")
	require.True(t, ok)
	sum, isSum := payments.Data.(metricdata.Sum[int64])
	require.True(t, isSum)

	byLabel := make(map[string]int64)
	for _, dp := range sum.DataPoints {
		method, _ := dp.Attributes.Value(attribute.Key("payment_method"))
		status, _ := dp.Attributes.Value(attribute.Key("payment_status"))
		byLabel[method.AsString()+"/"+status.AsString()] = dp.Value
	}
	assert.Equal(t, int64(2), byLabel["ONLINE/success"])
	assert.Equal(t, int64(1), byLabel["CASH/failed"])
}

type stubStockProvider struct {
	lowStockCount int64
	err           error
}

func (s *stubStockProvider) GetLowStockCount(context.Context, int64) (int64, error) {
	return s.lowStockCount, s.err
}

func TestBusinessMetrics_PeriodicCollection(t *testing.T) {
	bm, reader := meteredBusinessMetrics(t, telemetry.BusinessMetricsConfig{
		StockProvider:   &stubStockProvider{lowStockCount: 5},
		CollectInterval: 10 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bm.StartPeriodicCollection(ctx)

	assert.Eventually(t, func() bool {
		m, ok := collectBusinessMetric(t, reader, "shop_stock_low_count")
		if !ok {
			return false
		}
		gauge, isGauge := m.Data.(metricdata.Gauge[int64])
		return isGauge && len(gauge.DataPoints) > 0 && gauge.DataPoints[0].Value == 5
	}, time.Second, 10*time.Millisecond)
}

func TestBusinessMetrics_PeriodicCollection_ProviderError(t *testing.T) {
	bm, reader := meteredBusinessMetrics(t, telemetry.BusinessMetricsConfig{
		StockProvider:   &stubStockProvider{err: errors.New("catalog unavailable")},
		CollectInterval: 10 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bm.StartPeriodicCollection(ctx)

	time.Sleep(30 * time.Millisecond)
	bm.Stop()

	_, ok := collectBusinessMetric(t, reader, "shop_stock_low_count")
	assert.False(t, ok, "no gauge value should be recorded when the provider fails")
}

func TestBusinessMetrics_PeriodicCollection_NoProvider(t *testing.T) {
	bm, _ := meteredBusinessMetrics(t, telemetry.BusinessMetricsConfig{
		CollectInterval: 10 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bm.StartPeriodicCollection(ctx)
	time.Sleep(30 * time.Millisecond)
	bm.Stop()
}

func TestBusinessMetrics_StopIsIdempotent(t *testing.T) {
	bm, _ := meteredBusinessMetrics(t, telemetry.BusinessMetricsConfig{})

	bm.Stop()
	bm.Stop()
}

func TestBusinessMetrics_StartPeriodicCollectionOnlyOnce(t *testing.T) {
	bm, _ := meteredBusinessMetrics(t, telemetry.BusinessMetricsConfig{
		CollectInterval: time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bm.StartPeriodicCollection(ctx)
	bm.StartPeriodicCollection(ctx)
	bm.Stop()
}
