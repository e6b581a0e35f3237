package clog

import (
	"fmt"
	"log/slog"
	"strings"
)

// Level 日志级别类型，数值与 slog.Level 对齐
type Level int

const (
	DebugLevel Level = Level(slog.LevelDebug) // 调试级别
	InfoLevel  Level = Level(slog.LevelInfo)  // 信息级别
	WarnLevel  Level = Level(slog.LevelWarn)  // 警告级别
	ErrorLevel Level = Level(slog.LevelError) // 错误级别
)

// String 返回 Level 的字符串表示
func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "debug"
	case InfoLevel:
		return "info"
	case WarnLevel:
		return "warn"
	case ErrorLevel:
		return "error"
	default:
		return fmt.Sprintf("level(%d)", l)
	}
}

// ParseLevel 将字符串解析为 Level（不区分大小写）
//
// 如果无法解析，会返回 InfoLevel 和错误信息。
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return DebugLevel, nil
	case "info":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	default:
		return InfoLevel, fmt.Errorf("unknown log level: %s", s)
	}
}

func (l Level) slogLevel() slog.Level {
	return slog.Level(l)
}
