// Package metrics 提供进程内的指标采集引擎。
//
// 核心概念：
//   - Registry：按 MetricKey 去重的指标注册表，同一个键只有一份存储
//   - Scope：带名称前缀和标签的获取入口，可以逐层派生
//   - Counter / Gauge / Histogram：三种指标，更新无锁或使用单指标锁
//   - Timer：同步 Time/TimeFunc 与异步 Go，异步任务被取消时不记录耗时
//   - Reporter：将快照渲染为 Prometheus 文本格式
//
// 基本用法：
//
//	reg := metrics.NewRegistry()
//	http := metrics.Root(reg).Named("http")
//	http.MustLabeled("route", "/x").MustCounter("requests").Inc()
//	fmt.Print(metrics.Render(reg)) // http_requests{route="/x"} 1
//
// 需要配置驱动、内置 HTTP 暴露时使用 Provider：
//
//	p, err := metrics.New(cfg, metrics.WithLogger(logger))
//	defer p.Shutdown(ctx)
//	p.Root().MustCounter("jobs_total").Inc()
//
// 快照还可以通过 Collector 交给 Prometheus 官方客户端，或通过 Producer
// 交给 OpenTelemetry SDK。
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/ceyewan/scopestat/clog"
	"github.com/ceyewan/scopestat/xerrors"
)

// ============================================================================
// 工厂函数
// ============================================================================

// Provider 组装好的指标系统：注册表、根 Scope、Reporter 与可选的 HTTP 暴露服务
type Provider struct {
	cfg      *Config
	reg      *Registry
	root     *Scope
	reporter *Reporter
	logger   clog.Logger
	instance string

	server   *http.Server
	listener net.Listener
	serveErr chan error
}

// New 创建 Provider
//
// cfg.Port > 0 且 cfg.Path 非空时会立即监听端口并在后台提供指标，
// 端口被占用等错误在 New 中直接返回。
func New(cfg *Config, opts ...Option) (*Provider, error) {
	if cfg == nil {
		return nil, xerrors.New("config is required")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if len(cfg.DefaultBuckets) > 0 {
		opts = append(slices.Clone(opts), WithDefaultBuckets(cfg.DefaultBuckets))
	}
	o := newOptions(opts...)

	p := &Provider{
		cfg:    cfg,
		reg:    NewRegistry(opts...),
		logger: o.logger,
	}
	p.reporter = NewReporter(p.reg, opts...)

	root, err := p.buildRoot()
	if err != nil {
		return nil, err
	}
	p.root = root

	if cfg.Port > 0 && cfg.Path != "" {
		if err := p.serve(); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Must 类似 New，但出错时 panic
// 仅用于初始化阶段
func Must(cfg *Config, opts ...Option) *Provider {
	p, err := New(cfg, opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to create metrics: %v", err))
	}
	return p
}

func (p *Provider) buildRoot() (*Scope, error) {
	root := p.reg.Root().Named(p.cfg.Namespace)

	keys := make([]string, 0, len(p.cfg.ConstLabels))
	for k := range p.cfg.ConstLabels {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	labels := make([]Label, 0, len(keys)+1)
	for _, k := range keys {
		labels = append(labels, L(k, p.cfg.ConstLabels[k]))
	}
	if p.cfg.InstanceLabel {
		p.instance = uuid.NewString()
		labels = append(labels, L(LabelInstance, p.instance))
	}

	root, err := root.WithLabels(labels...)
	if err != nil {
		return nil, xerrors.Wrap(err, "invalid const labels")
	}
	return root, nil
}

func (p *Provider) serve() error {
	addr := fmt.Sprintf(":%d", p.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return xerrors.Wrapf(err, "listen metrics server on %s", addr)
	}

	mux := http.NewServeMux()
	mux.Handle(p.cfg.Path, p.Handler())
	p.listener = ln
	p.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	p.serveErr = make(chan error, 1)

	p.logger.Info("starting metrics server", clog.String("addr", ln.Addr().String()), clog.String("path", p.cfg.Path))
	go func() {
		err := p.server.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.logger.Error("metrics server error", clog.Error(err))
		}
		p.serveErr <- err
	}()
	return nil
}

// Root 根 Scope，已附加命名空间与常量标签
func (p *Provider) Root() *Scope {
	return p.root
}

// Registry 底层注册表
func (p *Provider) Registry() *Registry {
	return p.reg
}

// Reporter 文本导出器
func (p *Provider) Reporter() *Reporter {
	return p.reporter
}

// Handler 暴露注册表的 http.Handler
func (p *Provider) Handler() http.Handler {
	return &exposition{reporter: p.reporter}
}

// InstanceID instance 标签的值，未启用时为空
func (p *Provider) InstanceID() string {
	return p.instance
}

// Addr 内置 HTTP 服务器的监听地址，未启动时为空
func (p *Provider) Addr() string {
	if p.listener == nil {
		return ""
	}
	return p.listener.Addr().String()
}

// Shutdown 关闭内置 HTTP 服务器，指标数据保留在内存中
// 不能与自身并发调用
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.server == nil {
		return nil
	}
	if err := p.server.Shutdown(ctx); err != nil {
		return xerrors.Wrap(err, "shutdown metrics server")
	}
	<-p.serveErr
	p.server = nil
	p.logger.Info("metrics server stopped")
	return nil
}
