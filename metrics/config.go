package metrics

import (
	"strings"

	"github.com/ceyewan/scopestat/config"
	"github.com/ceyewan/scopestat/xerrors"
)

// Config 指标系统的配置结构体
//
// 支持 mapstructure 标签，可以从配置文件中加载：
//
//	cfg, err := metrics.LoadConfig(loader, "metrics")
//
// 典型配置示例（YAML）：
//
//	metrics:
//	  namespace: "order_api"
//	  const_labels:
//	    env: "prod"
//	  instance_label: true
//	  default_buckets: [0.01, 0.05, 0.1, 0.5, 1, 5]
//	  port: 9090
//	  path: "/metrics"
type Config struct {
	// Namespace 根 Scope 的名称前缀，所有指标名以 "<namespace>_" 开头
	// 为空时不添加前缀
	Namespace string `mapstructure:"namespace"`

	// ConstLabels 根 Scope 上的常量标签，按键排序后附加
	ConstLabels map[string]string `mapstructure:"const_labels"`

	// InstanceLabel 为 true 时在根 Scope 上附加 instance 标签，值为随机 UUID
	// 用于区分同一服务的多个进程
	InstanceLabel bool `mapstructure:"instance_label"`

	// DefaultBuckets Histogram/Timer 未指定分桶时使用的分桶，为空时使用 DefaultBuckets
	DefaultBuckets []float64 `mapstructure:"default_buckets"`

	// Port 暴露指标的 HTTP 端口，大于 0 且 Path 非空时启动内置 HTTP 服务器
	Port int `mapstructure:"port"`

	// Path 暴露指标的 HTTP 路径，必须以 "/" 开头
	Path string `mapstructure:"path"`
}

// NewDevDefaultConfig 开发环境默认配置：不启动 HTTP 服务器
func NewDevDefaultConfig(namespace string) *Config {
	return &Config{
		Namespace: namespace,
		Path:      "/metrics",
	}
}

// NewProdDefaultConfig 生产环境默认配置：在 9090 端口暴露 /metrics，并附加 instance 标签
func NewProdDefaultConfig(namespace string) *Config {
	return &Config{
		Namespace:     namespace,
		InstanceLabel: true,
		Port:          9090,
		Path:          "/metrics",
	}
}

// LoadConfig 从配置加载器读取 key 下的指标配置
func LoadConfig(loader config.Loader, key string) (*Config, error) {
	cfg := NewDevDefaultConfig("")
	if !loader.IsSet(key) {
		return nil, xerrors.Wrapf(config.ErrKeyNotFound, "metrics config %q", key)
	}
	if err := loader.UnmarshalKey(key, cfg); err != nil {
		return nil, xerrors.Wrapf(err, "unmarshal metrics config %q", key)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate 只报告第一个不合法的字段
func (c *Config) validate() error {
	var errs xerrors.Collector
	if c.Port < 0 || c.Port > 65535 {
		errs.Collect(xerrors.Wrapf(config.ErrValidationFailed, "metrics port %d out of range", c.Port))
	}
	if c.Path != "" && !strings.HasPrefix(c.Path, "/") {
		errs.Collect(xerrors.Wrapf(config.ErrValidationFailed, "metrics path %q must start with /", c.Path))
	}
	if _, err := validateBuckets(c.DefaultBuckets); err != nil {
		errs.Collect(xerrors.Wrap(config.ErrValidationFailed, err.Error()))
	}
	return errs.Err()
}
