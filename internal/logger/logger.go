// Package logger configures the process-wide slog logger. Only time, level
// and msg live at the root of a record; every other attribute is grouped
// under `data`.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

type Config struct {
	Level   string
	Format  string
	Service string
	Env     string
	Version string
	Output  string
}

type ctxKey int

const (
	ctxKeyLogger ctxKey = iota
	ctxKeyRequestID
)

var (
	levelVar      slog.LevelVar
	defaultLogger *slog.Logger
)

func Default() *slog.Logger {
	if defaultLogger != nil {
		return defaultLogger
	}
	return slog.Default()
}

func Init(cfg Config) *slog.Logger {
	return InitWriter(cfg, resolveWriter(cfg.Output))
}

// InitWriter is Init with an explicit destination, used by tests.
func InitWriter(cfg Config, w io.Writer) *slog.Logger {
	SetLevel(cfg.Level)

	opts := &slog.HandlerOptions{Level: &levelVar}
	var h slog.Handler
	if strings.EqualFold(strings.TrimSpace(cfg.Format), "text") {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}

	service := strings.TrimSpace(cfg.Service)
	if service == "" {
		service = defaultServiceName()
	}

	base := slog.New(h).WithGroup("data").With("service", service)
	if cfg.Env != "" {
		base = base.With("env", cfg.Env)
	}
	if cfg.Version != "" {
		base = base.With("version", cfg.Version)
	}

	defaultLogger = base
	slog.SetDefault(defaultLogger)
	return defaultLogger
}

func SetLevel(level string) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		levelVar.Set(slog.LevelDebug)
	case "warn", "warning":
		levelVar.Set(slog.LevelWarn)
	case "error":
		levelVar.Set(slog.LevelError)
	default:
		levelVar.Set(slog.LevelInfo)
	}
}

func With(args ...any) *slog.Logger {
	return Default().With(args...)
}

// For returns the request-scoped logger tagged with the package that logs.
func For(ctx context.Context, pkg string) *slog.Logger {
	return FromContext(ctx).With("package", pkg)
}

func IntoContext(ctx context.Context, l *slog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKeyLogger, l)
}

func FromContext(ctx context.Context) *slog.Logger {
	l := Default()
	if ctx == nil {
		return l
	}
	if lg, ok := ctx.Value(ctxKeyLogger).(*slog.Logger); ok && lg != nil {
		l = lg
	}
	if id := RequestID(ctx); id != "" {
		l = l.With("request_id", id)
	}
	return l
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKeyRequestID, requestID)
}

func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}

func resolveWriter(output string) io.Writer {
	switch strings.ToLower(strings.TrimSpace(output)) {
	case "", "stdout":
		return os.Stdout
	case "stderr":
		return os.Stderr
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return os.Stdout
		}
		return f
	}
}

func defaultServiceName() string {
	if len(os.Args) > 0 && os.Args[0] != "" {
		return filepath.Base(os.Args[0])
	}
	return "shortlink"
}
