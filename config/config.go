package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/ceyewan/scopestat/clog"
)

// Config 配置加载器自身的配置
type Config struct {
	Name      string      // 配置文件名称（不含扩展名），默认 "config"
	Paths     []string    // 配置文件搜索路径，默认 [".", "./config"]
	FileType  string      // 配置文件类型 (yaml, json, etc.)，默认 "yaml"
	EnvPrefix string      // 环境变量前缀，默认 "SCOPESTAT"
	Logger    clog.Logger // 加载过程中的提示日志，默认静默
}

// validate 设置默认值并验证配置
func (c *Config) validate() error {
	if c.Name == "" {
		c.Name = "config"
	}
	if c.Paths == nil {
		c.Paths = []string{".", "./config"}
	}
	if c.FileType == "" {
		c.FileType = "yaml"
	}
	if c.EnvPrefix == "" {
		c.EnvPrefix = "SCOPESTAT"
	}
	c.EnvPrefix = strings.ToUpper(c.EnvPrefix)
	if c.Logger == nil {
		c.Logger = clog.Discard()
	}
	return nil
}

// New 创建配置加载器。
//
// 如果 cfg 为 nil，使用默认配置。
func New(cfg *Config) (Loader, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return newLoader(cfg), nil
}

// Load 通过选项创建加载器并立即加载
func Load(ctx context.Context, opts ...Option) (Loader, error) {
	cfg := &Config{}
	for _, opt := range opts {
		opt(cfg)
	}

	l, err := New(cfg)
	if err != nil {
		return nil, err
	}
	if err := l.Load(ctx); err != nil {
		return nil, err
	}
	return l, nil
}

// MustLoad 类似 Load，但出错时 panic
// 仅用于初始化阶段
func MustLoad(ctx context.Context, opts ...Option) Loader {
	l, err := Load(ctx, opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return l
}
