package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/utils"
)

type zapLogger struct {
	logger                    *zap.SugaredLogger
	SlowThreshold             time.Duration
	LogLevel                  logger.LogLevel
	IgnoreRecordNotFoundError bool
}

// NewLogger adapts a zap logger to gorm's logger interface.
func NewLogger(sugar *zap.SugaredLogger) logger.Interface {
	return &zapLogger{
		logger:                    sugar,
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
	}
}

func (z *zapLogger) LogMode(level logger.LogLevel) logger.Interface {
	return &zapLogger{
		logger:                    z.logger,
		SlowThreshold:             z.SlowThreshold,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: z.IgnoreRecordNotFoundError,
	}
}

func (z *zapLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	if z.LogLevel >= logger.Info {
		z.withTrace(ctx).Infof(msg, args...)
	}
}

func (z *zapLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	if z.LogLevel >= logger.Warn {
		z.withTrace(ctx).Warnf(msg, args...)
	}
}

func (z *zapLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	if z.LogLevel >= logger.Error {
		z.withTrace(ctx).Errorf(msg, args...)
	}
}

func (z *zapLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if z.LogLevel <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && z.LogLevel >= logger.Error && (!errors.Is(err, gorm.ErrRecordNotFound) || !z.IgnoreRecordNotFoundError):
		sql, rows := fc()
		z.withTrace(ctx).With(
			"line_number", utils.FileWithLineNum(),
			"error", err.Error(),
			"rows", rows,
			"elapsed_ms", float64(elapsed.Nanoseconds())/1e6,
		).Debug(sql)
	case elapsed > z.SlowThreshold && z.SlowThreshold != 0 && z.LogLevel >= logger.Warn:
		sql, rows := fc()
		z.withTrace(ctx).With(
			"line_number", utils.FileWithLineNum(),
			"slow", fmt.Sprintf("SLOW SQL >= %v", z.SlowThreshold),
			"rows", rows,
			"elapsed_ms", float64(elapsed.Nanoseconds())/1e6,
		).Warn(sql)
	case z.LogLevel == logger.Info:
		sql, rows := fc()
		z.withTrace(ctx).With(
			"line_number", utils.FileWithLineNum(),
			"rows", rows,
			"elapsed_ms", float64(elapsed.Nanoseconds())/1e6,
		).Info(sql)
	}
}

func (z *zapLogger) withTrace(ctx context.Context) *zap.SugaredLogger {
	if ctx == nil {
		return z.logger
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return z.logger
	}
	return z.logger.With("trace_id", sc.TraceID().String(), "span_id", sc.SpanID().String())
}
