// Package clog 为 scopestat 提供基于 slog 的结构化日志组件。
//
// 特性：
//   - 抽象接口，不暴露底层实现（slog）
//   - 支持层级命名空间，每个组件追加自己的命名空间
//   - 运行时动态调整日志级别
//   - 采用函数式选项模式
//
// 基本使用：
//
//	logger, _ := clog.New(&clog.Config{
//	    Level:  "info",
//	    Format: "console",
//	    Output: "stdout",
//	})
//	logger.Info("metric registered", clog.String("name", "http_requests"))
//
// 指标组件内部使用：
//
//	reg := metrics.NewRegistry(metrics.WithLogger(logger))
//	// 日志中 namespace=metrics
package clog

import "context"

// Logger 日志接口，提供结构化日志记录功能
//
// 支持四个日志级别：Debug、Info、Warn、Error
// 每个级别都有带 Context 和不带 Context 的版本
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	DebugContext(ctx context.Context, msg string, fields ...Field)
	InfoContext(ctx context.Context, msg string, fields ...Field)
	WarnContext(ctx context.Context, msg string, fields ...Field)
	ErrorContext(ctx context.Context, msg string, fields ...Field)

	// With 创建一个带有预设字段的子 Logger
	With(fields ...Field) Logger

	// WithNamespace 创建一个扩展命名空间的子 Logger
	//
	// 命名空间以 "." 连接，例如 "app" + "metrics" => "app.metrics"
	WithNamespace(parts ...string) Logger

	// SetLevel 动态调整日志级别，对所有派生的子 Logger 同时生效
	SetLevel(level Level) error
}
