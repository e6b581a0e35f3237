package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"

	"github.com/ceyewan/scopestat/xerrors"
)

// OTelConfig OpenTelemetry 管道配置
type OTelConfig struct {
	// ServiceName 写入 Resource 的 service.name
	ServiceName string
	// Version 写入 Resource 的 service.version
	Version string
	// Registerer OTel Prometheus exporter 注册到的 Registerer，为空时使用 prometheus.DefaultRegisterer
	Registerer prometheus.Registerer
}

// OTelBridge 让原生 OpenTelemetry 仪表与注册表中的指标经由同一个
// Prometheus exporter 暴露
//
// 注册表通过 Producer 接入 exporter，应用代码仍可以用 Meter 创建 OTel 仪表。
type OTelBridge struct {
	provider *sdkmetric.MeterProvider
}

// NewOTelBridge 创建 OTelBridge
func NewOTelBridge(reg *Registry, cfg *OTelConfig) (*OTelBridge, error) {
	if cfg == nil {
		return nil, xerrors.New("otel config is required")
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.Version),
		),
	)
	if err != nil {
		return nil, xerrors.Wrap(err, "create otel resource")
	}

	exporterOpts := []otelprom.Option{otelprom.WithProducer(NewProducer(reg))}
	if cfg.Registerer != nil {
		exporterOpts = append(exporterOpts, otelprom.WithRegisterer(cfg.Registerer))
	}
	exporter, err := otelprom.New(exporterOpts...)
	if err != nil {
		return nil, xerrors.Wrap(err, "create otel prometheus exporter")
	}

	return &OTelBridge{
		provider: sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(exporter),
			sdkmetric.WithResource(res),
		),
	}, nil
}

// Meter 返回原生 OTel Meter
func (b *OTelBridge) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	return b.provider.Meter(name, opts...)
}

// MeterProvider 底层 MeterProvider，可用于 otel.SetMeterProvider
func (b *OTelBridge) MeterProvider() metric.MeterProvider {
	return b.provider
}

// Shutdown 关闭 MeterProvider
func (b *OTelBridge) Shutdown(ctx context.Context) error {
	return b.provider.Shutdown(ctx)
}
