package clog

import "fmt"

// New 创建一个新的 Logger 实例
//
// config - 日志配置，如果为 nil 会使用默认配置
// opts   - 函数式选项列表，用于命名空间、测试缓冲区等配置
//
// Logger - 日志实例
func New(config *Config, opts ...Option) (Logger, error) {
	if config == nil {
		config = NewDevDefaultConfig()
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	options := applyOptions(opts...)
	return newLogger(config, options)
}

// MustNew 类似 New，但出错时 panic
// 仅用于初始化阶段
func MustNew(config *Config, opts ...Option) Logger {
	l, err := New(config, opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to create logger: %v", err))
	}
	return l
}
