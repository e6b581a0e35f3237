package clog

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

const timeFormat = "2006-01-02T15:04:05.000Z07:00"

// newHandler 根据配置创建 slog.Handler，级别由 levelVar 控制以支持动态调整
func newHandler(config *Config, options *options, levelVar *slog.LevelVar) (slog.Handler, error) {
	w, err := resolveWriter(config, options)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{
		AddSource:   config.AddSource,
		Level:       levelVar,
		ReplaceAttr: replaceAttr,
	}

	if strings.ToLower(config.Format) == "json" {
		return slog.NewJSONHandler(w, opts), nil
	}
	return slog.NewTextHandler(w, opts), nil
}

// resolveWriter 根据配置创建输出 writer
func resolveWriter(config *Config, options *options) (io.Writer, error) {
	if options.writer != nil {
		return options.writer, nil
	}
	switch strings.ToLower(config.Output) {
	case "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	default:
		return os.OpenFile(config.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	}
}

// replaceAttr 统一 level 与 time 的输出格式
func replaceAttr(_ []string, a slog.Attr) slog.Attr {
	switch a.Key {
	case slog.LevelKey:
		if level, ok := a.Value.Any().(slog.Level); ok {
			a.Value = slog.StringValue(strings.ToUpper(Level(level).String()))
		}
	case slog.TimeKey:
		if a.Value.Kind() == slog.KindTime {
			a.Value = slog.StringValue(a.Value.Time().Format(timeFormat))
		}
	}
	return a
}
