package clog

import (
	"context"
	"log/slog"
	"runtime"
	"strings"
	"time"
)

// NamespaceKey 是日志中命名空间的字段名
const NamespaceKey = "namespace"

// loggerImpl 是 Logger 接口的具体实现
type loggerImpl struct {
	handler   slog.Handler
	levelVar  *slog.LevelVar
	namespace string
	baseAttrs []slog.Attr
}

// newLogger 创建 Logger 实例（内部使用）
func newLogger(config *Config, options *options) (Logger, error) {
	level, _ := ParseLevel(config.Level)
	levelVar := new(slog.LevelVar)
	levelVar.Set(level.slogLevel())

	handler, err := newHandler(config, options, levelVar)
	if err != nil {
		return nil, err
	}

	return &loggerImpl{
		handler:   handler,
		levelVar:  levelVar,
		namespace: strings.Join(options.namespaceParts, "."),
	}, nil
}

func (l *loggerImpl) Debug(msg string, fields ...Field) {
	l.log(context.Background(), DebugLevel, msg, fields)
}

func (l *loggerImpl) Info(msg string, fields ...Field) {
	l.log(context.Background(), InfoLevel, msg, fields)
}

func (l *loggerImpl) Warn(msg string, fields ...Field) {
	l.log(context.Background(), WarnLevel, msg, fields)
}

func (l *loggerImpl) Error(msg string, fields ...Field) {
	l.log(context.Background(), ErrorLevel, msg, fields)
}

func (l *loggerImpl) DebugContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, DebugLevel, msg, fields)
}

func (l *loggerImpl) InfoContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, InfoLevel, msg, fields)
}

func (l *loggerImpl) WarnContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, WarnLevel, msg, fields)
}

func (l *loggerImpl) ErrorContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, ErrorLevel, msg, fields)
}

func (l *loggerImpl) With(fields ...Field) Logger {
	attrs := make([]slog.Attr, 0, len(l.baseAttrs)+len(fields))
	attrs = append(attrs, l.baseAttrs...)
	attrs = append(attrs, fields...)
	return &loggerImpl{
		handler:   l.handler,
		levelVar:  l.levelVar,
		namespace: l.namespace,
		baseAttrs: attrs,
	}
}

func (l *loggerImpl) WithNamespace(parts ...string) Logger {
	all := make([]string, 0, len(parts)+1)
	if l.namespace != "" {
		all = append(all, l.namespace)
	}
	all = append(all, parts...)
	return &loggerImpl{
		handler:   l.handler,
		levelVar:  l.levelVar,
		namespace: strings.Join(all, "."),
		baseAttrs: l.baseAttrs,
	}
}

func (l *loggerImpl) SetLevel(level Level) error {
	if _, err := ParseLevel(level.String()); err != nil {
		return err
	}
	l.levelVar.Set(level.slogLevel())
	return nil
}

func (l *loggerImpl) log(ctx context.Context, level Level, msg string, fields []Field) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !l.handler.Enabled(ctx, level.slogLevel()) {
		return
	}

	// skip: runtime.Callers, log, Debug/Info/...
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:])
	record := slog.NewRecord(time.Now(), level.slogLevel(), msg, pcs[0])
	if l.namespace != "" {
		record.AddAttrs(slog.String(NamespaceKey, l.namespace))
	}
	record.AddAttrs(l.baseAttrs...)
	record.AddAttrs(fields...)

	_ = l.handler.Handle(ctx, record)
}
