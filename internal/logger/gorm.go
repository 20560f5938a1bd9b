package logger

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormLogger routes gorm output through slog under package=gorm.
type GormLogger struct {
	logLevel      gormlogger.LogLevel
	slowThreshold time.Duration
}

func NewGormLogger(level string) *GormLogger {
	var lvl gormlogger.LogLevel
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "silent":
		lvl = gormlogger.Silent
	case "error":
		lvl = gormlogger.Error
	case "warn", "warning":
		lvl = gormlogger.Warn
	default:
		lvl = gormlogger.Info
	}
	return &GormLogger{logLevel: lvl, slowThreshold: 200 * time.Millisecond}
}

func (g *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	return &GormLogger{logLevel: level, slowThreshold: g.slowThreshold}
}

func (g *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if g.logLevel >= gormlogger.Info {
		For(ctx, "gorm").Info("gorm info", "msg_detail", msg, "data", data)
	}
}

func (g *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if g.logLevel >= gormlogger.Warn {
		For(ctx, "gorm").Warn("gorm warn", "msg_detail", msg, "data", data)
	}
}

func (g *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if g.logLevel >= gormlogger.Error {
		For(ctx, "gorm").Error("gorm error", "msg_detail", msg, "data", data)
	}
}

// Trace logs SQL with rows affected and elapsed time. Missing rows are not
// treated as failures.
func (g *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.logLevel == gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	sql, rows := fc()
	log := For(ctx, "gorm")

	attrs := []any{
		"sql", sql,
		"rows", rows,
		"elapsed_ms", float64(elapsed.Microseconds()) / 1000.0,
	}

	switch {
	case err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, gorm.ErrRecordNotFound):
		if g.logLevel >= gormlogger.Error {
			log.Error("gorm trace", append(attrs, "err", err)...)
		}
	case g.slowThreshold > 0 && elapsed > g.slowThreshold:
		if g.logLevel >= gormlogger.Warn {
			log.Warn("gorm trace slow", append(attrs, "slow", true, "threshold_ms", float64(g.slowThreshold.Microseconds())/1000.0)...)
		}
	case g.logLevel >= gormlogger.Info:
		log.Info("gorm trace", attrs...)
	}
}
