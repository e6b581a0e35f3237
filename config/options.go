package config

import "github.com/ceyewan/scopestat/clog"

// Option 配置选项模式
type Option func(*Config)

// WithConfigName 设置配置文件名称（不带扩展名）
func WithConfigName(name string) Option {
	return func(c *Config) {
		c.Name = name
	}
}

// WithConfigPath 添加配置文件搜索路径
func WithConfigPath(path string) Option {
	return func(c *Config) {
		c.Paths = append(c.Paths, path)
	}
}

// WithConfigPaths 设置配置文件搜索路径（覆盖默认值）
func WithConfigPaths(paths ...string) Option {
	return func(c *Config) {
		c.Paths = paths
	}
}

// WithConfigType 设置配置文件类型 (yaml, json, etc.)
func WithConfigType(typ string) Option {
	return func(c *Config) {
		c.FileType = typ
	}
}

// WithEnvPrefix 设置环境变量前缀
func WithEnvPrefix(prefix string) Option {
	return func(c *Config) {
		c.EnvPrefix = prefix
	}
}

// WithLogger 注入日志记录器，自动添加 "config" 命名空间
func WithLogger(logger clog.Logger) Option {
	return func(c *Config) {
		if logger != nil {
			c.Logger = logger.WithNamespace("config")
		}
	}
}
