// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// ErrMeterNil is returned when BusinessMetrics is built without a meter.
var ErrMeterNil = errors.New("business metrics: meter cannot be nil")

// StockMetricsProvider supplies catalog stock data for periodic gauge
// collection without the telemetry layer depending on the catalog domain.
type StockMetricsProvider interface {
	// GetLowStockCount returns the number of products at or below the threshold.
	GetLowStockCount(ctx context.Context, threshold int64) (int64, error)
}

// BusinessMetricsConfig configures BusinessMetrics.
type BusinessMetricsConfig struct {
	Meter             metric.Meter
	Logger            *zap.Logger
	StockProvider     StockMetricsProvider
	CollectInterval   time.Duration // gauge collection period, default 5 minutes
	LowStockThreshold int64         // default 10
}

// BusinessMetrics records order activity, payment settlement outcomes,
// and stock health on an OTel meter.
type BusinessMetrics struct {
	logger *zap.Logger

	ordersCreated   *Counter
	ordersCancelled *Counter
	orderRevenue    *Counter
	payments        *Counter
	lowStock        *Gauge

	stockProvider  StockMetricsProvider
	threshold      int64
	interval       time.Duration
	done           chan struct{}
	stopOnce       sync.Once
	collectionOnce sync.Once
}

func NewBusinessMetrics(cfg BusinessMetricsConfig) (*BusinessMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	bm := &BusinessMetrics{
		logger:        logger,
		stockProvider: cfg.StockProvider,
		threshold:     cfg.LowStockThreshold,
		interval:      cfg.CollectInterval,
		done:          make(chan struct{}),
	}
	if bm.threshold <= 0 {
		bm.threshold = 10
	}
	if bm.interval <= 0 {
		bm.interval = 5 * time.Minute
	}

	// counter defers error handling so the instrument list reads flat;
	// the first failure wins.
	var err error
	counter := func(name, description, unit string) *Counter {
		if err != nil {
			return nil
		}
		var c *Counter
		c, err = NewCounter(cfg.Meter, name, description, unit)
		return c
	}

	bm.ordersCreated = counter("shop_order_created_total", "Total number of orders created", "{orders}")
	bm.ordersCancelled = counter("shop_order_cancelled_total", "Total number of orders cancelled", "{orders}")
	bm.orderRevenue = counter("shop_order_amount_total", "Total order amount in cents", "{cents}")
	bm.payments = counter("shop_payment_total", "Total number of payment transactions", "{payments}")
	if err != nil {
		return nil, err
	}

	bm.lowStock, err = NewGauge(cfg.Meter,
		"shop_stock_low_count",
		"Number of products at or below the low stock threshold",
		"{products}")
	if err != nil {
		return nil, err
	}

	return bm, nil
}

// RecordOrderCreated counts one created order and adds its total to the
// revenue counter in cents.
func (bm *BusinessMetrics) RecordOrderCreated(ctx context.Context, total decimal.Decimal) {
	bm.ordersCreated.Inc(ctx)
	bm.orderRevenue.Add(ctx, total.Mul(decimal.NewFromInt(100)).IntPart())
}

// RecordOrderCancelled counts one cancelled order.
func (bm *BusinessMetrics) RecordOrderCancelled(ctx context.Context) {
	bm.ordersCancelled.Inc(ctx)
}

// PaymentOutcome labels a payment transaction for metrics.
type PaymentOutcome string

const (
	PaymentOutcomeSuccess   PaymentOutcome = "success"
	PaymentOutcomeFailed    PaymentOutcome = "failed"
	PaymentOutcomeDuplicate PaymentOutcome = "duplicate"
)

// RecordPayment counts a settlement webhook or cash payment by method
// and outcome.
func (bm *BusinessMetrics) RecordPayment(ctx context.Context, paymentMethod string, outcome PaymentOutcome) {
	bm.payments.Inc(ctx,
		AttrPaymentMethod.String(paymentMethod),
		AttrPaymentStatus.String(string(outcome)),
	)
}

// StartPeriodicCollection starts the background gauge collection using
// the configured threshold and interval. Non-blocking; use Stop to end it.
func (bm *BusinessMetrics) StartPeriodicCollection(ctx context.Context) {
	bm.collectionOnce.Do(func() {
		go bm.collectLoop(ctx)
	})
}

func (bm *BusinessMetrics) collectLoop(ctx context.Context) {
	ticker := time.NewTicker(bm.interval)
	defer ticker.Stop()

	// Collect immediately on start
	bm.collectStockMetrics(ctx)

	for {
		select {
		case <-bm.done:
			bm.logger.Info("Stopping periodic business metrics collection")
			return
		case <-ctx.Done():
			bm.logger.Info("Context cancelled, stopping periodic business metrics collection")
			return
		case <-ticker.C:
			bm.collectStockMetrics(ctx)
		}
	}
}

func (bm *BusinessMetrics) collectStockMetrics(ctx context.Context) {
	if bm.stockProvider == nil {
		bm.logger.Debug("No stock provider configured, skipping stock metrics collection")
		return
	}

	count, err := bm.stockProvider.GetLowStockCount(ctx, bm.threshold)
	if err != nil {
		bm.logger.Warn("Failed to get low stock count",
			zap.Int64("threshold", bm.threshold),
			zap.Error(err),
		)
		return
	}

	bm.lowStock.Record(ctx, count)
}

// Stop ends the periodic collection. Safe to call multiple times.
func (bm *BusinessMetrics) Stop() {
	bm.stopOnce.Do(func() {
		close(bm.done)
	})
}
