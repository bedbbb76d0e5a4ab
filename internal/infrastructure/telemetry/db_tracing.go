package telemetry

import (
	"context"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig configures span creation for database queries.
type DBTracingConfig struct {
	Enabled bool
	// LogFullSQL includes bind variables in span attributes. Order and
	// payment rows carry user data, so this stays off outside development.
	LogFullSQL      bool
	SlowQueryThresh time.Duration
	DBSystem        string
}

// DefaultDBTracingConfig returns the production defaults: disabled until
// the server wires it, variables redacted, 200ms slow-query threshold.
func DefaultDBTracingConfig() DBTracingConfig {
	return DBTracingConfig{
		Enabled:         false,
		LogFullSQL:      false,
		SlowQueryThresh: 200 * time.Millisecond,
		DBSystem:        "postgresql",
	}
}

// DBTracingPlugin registers otelgorm on a GORM instance and layers slow
// query detection on top of the spans otelgorm opens.
type DBTracingPlugin struct {
	config DBTracingConfig
	logger *zap.Logger
}

func NewDBTracingPlugin(cfg DBTracingConfig, logger *zap.Logger) *DBTracingPlugin {
	return &DBTracingPlugin{config: cfg, logger: logger}
}

type tracingContextKey string

const queryStartTimeKey tracingContextKey = "db_query_start_time"

// RegisterOtelGorm installs the otelgorm plugin plus the timing callbacks.
// A disabled config is a no-op so callers can register unconditionally.
func (p *DBTracingPlugin) RegisterOtelGorm(db *gorm.DB) error {
	if !p.config.Enabled {
		p.logger.Debug("Database tracing disabled")
		return nil
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(p.config.DBSystem)}
	if !p.config.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	if err := p.registerTimingCallbacks(db); err != nil {
		return err
	}

	p.logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", p.config.LogFullSQL),
		zap.Duration("slow_query_threshold", p.config.SlowQueryThresh))
	return nil
}

type gormRegister interface {
	Register(name string, fn func(*gorm.DB)) error
}

// registerTimingCallbacks hooks every GORM operation kind with a start-time
// stamp before the operation and the slow-query check after it. The after
// hooks are pinned ahead of otelgorm's, which end the query span.
func (p *DBTracingPlugin) registerTimingCallbacks(db *gorm.DB) error {
	cb := db.Callback()
	hooks := []struct {
		register gormRegister
		fn       func(*gorm.DB)
		name     string
	}{
		{cb.Create().Before("gorm:create"), markQueryStart, "before_create"},
		{cb.Create().After("gorm:create").Before("otel:after:create"), p.annotateSpan, "after_create"},
		{cb.Query().Before("gorm:query"), markQueryStart, "before_query"},
		{cb.Query().After("gorm:query").Before("otel:after:select"), p.annotateSpan, "after_query"},
		{cb.Update().Before("gorm:update"), markQueryStart, "before_update"},
		{cb.Update().After("gorm:update").Before("otel:after:update"), p.annotateSpan, "after_update"},
		{cb.Delete().Before("gorm:delete"), markQueryStart, "before_delete"},
		{cb.Delete().After("gorm:delete").Before("otel:after:delete"), p.annotateSpan, "after_delete"},
		{cb.Row().Before("gorm:row"), markQueryStart, "before_row"},
		{cb.Row().After("gorm:row").Before("otel:after:row"), p.annotateSpan, "after_row"},
		{cb.Raw().Before("gorm:raw"), markQueryStart, "before_raw"},
		{cb.Raw().After("gorm:raw").Before("otel:after:raw"), p.annotateSpan, "after_raw"},
	}
	for _, h := range hooks {
		if err := h.register.Register("storefront_timing:"+h.name, h.fn); err != nil {
			return err
		}
	}
	return nil
}

func markQueryStart(db *gorm.DB) {
	if db.Statement.Context != nil {
		db.Statement.Context = context.WithValue(db.Statement.Context, queryStartTimeKey, time.Now())
	}
}

// annotateSpan enriches the active query span with row counts and table
// names, marks real errors, and flags queries over the slow threshold.
func (p *DBTracingPlugin) annotateSpan(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if span == nil || !span.IsRecording() {
		return
	}

	if db.Statement.RowsAffected >= 0 {
		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
	}
	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}

	// Not-found is an answer, not a failure.
	if db.Error != nil && db.Error != gorm.ErrRecordNotFound {
		span.SetStatus(codes.Error, db.Error.Error())
		span.RecordError(db.Error)
	}

	startTime, ok := ctx.Value(queryStartTimeKey).(time.Time)
	if !ok {
		return
	}
	elapsed := time.Since(startTime)
	if elapsed > p.config.SlowQueryThresh {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
		span.AddEvent("slow_query", trace.WithAttributes(
			attribute.Int64("duration_ms", elapsed.Milliseconds()),
			attribute.Int64("threshold_ms", p.config.SlowQueryThresh.Milliseconds()),
		))
	}
}
