package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const slowQueryThreshold = 200 * time.Millisecond

// gormLogger sends GORM output through slog so the log stream stays JSON.
// Misses (gorm.ErrRecordNotFound) are expected lookups and are not logged.
type gormLogger struct {
	log   *slog.Logger
	level logger.LogLevel
	slow  time.Duration
}

func newGormLogger(l *slog.Logger) *gormLogger {
	return &gormLogger{log: l.With("component", "gorm"), level: logger.Warn, slow: slowQueryThreshold}
}

func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	cp := *l
	cp.level = level
	return &cp
}

func (l *gormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Info {
		l.log.InfoContext(ctx, fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Warn {
		l.log.WarnContext(ctx, fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Error {
		l.log.ErrorContext(ctx, fmt.Sprintf(msg, data...))
	}
}

// ParamsFilter drops bound values so usernames and emails stay out of the log.
func (l *gormLogger) ParamsFilter(_ context.Context, sql string, _ ...any) (string, []any) {
	return sql, nil
}

func (l *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.level >= logger.Error:
		sql, rows := fc()
		l.log.ErrorContext(ctx, "gorm_query_failed",
			"sql", sql, "rows", rows, "elapsed_ms", elapsed.Milliseconds(), "error", err.Error())
	case l.slow > 0 && elapsed > l.slow && l.level >= logger.Warn:
		sql, rows := fc()
		l.log.WarnContext(ctx, "gorm_slow_query", "sql", sql, "rows", rows, "elapsed_ms", elapsed.Milliseconds())
	case l.level >= logger.Info:
		sql, rows := fc()
		l.log.DebugContext(ctx, "gorm_query", "sql", sql, "rows", rows, "elapsed_ms", elapsed.Milliseconds())
	}
}
