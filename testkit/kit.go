package testkit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ceyewan/scopestat/clog"
	"github.com/ceyewan/scopestat/metrics"
)

// Kit 包含通用的测试依赖
type Kit struct {
	Ctx      context.Context
	Logger   clog.Logger
	Registry *metrics.Registry
	Root     *metrics.Scope
}

// NewKit 返回一个包含默认依赖的测试工具包
//
// Ctx 在测试结束时取消；Registry 是独立的空注册表，不同测试之间互不影响。
func NewKit(t *testing.T) *Kit {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	logger := NewLogger()
	reg := metrics.NewRegistry(metrics.WithLogger(logger))
	return &Kit{
		Ctx:      ctx,
		Logger:   logger,
		Registry: reg,
		Root:     reg.Root(),
	}
}

// NewLogger 返回一个用于测试的 logger
// 输出到开发环境格式，适合本地调试
func NewLogger() clog.Logger {
	logger, err := clog.New(clog.NewDevDefaultConfig(), clog.WithNamespace("test"))
	if err != nil {
		return clog.Discard()
	}
	return logger
}

// NewContext 返回一个带有超时的测试上下文
func NewContext(t *testing.T, timeout time.Duration) (context.Context, context.CancelFunc) {
	t.Helper()
	return context.WithTimeout(context.Background(), timeout)
}

// NewID 返回一个唯一的测试 ID (UUID v4 前 8 位)
// 用于生成唯一的指标名或标签值后缀
func NewID() string {
	return uuid.New().String()[0:8]
}
