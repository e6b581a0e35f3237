package metrics

import (
	"context"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ceyewan/scopestat/clog"
	"github.com/ceyewan/scopestat/xerrors"
)

const (
	MetricGRPCServerRequestTotal    = "grpc_server_requests_total"
	MetricGRPCServerDurationSeconds = "grpc_server_request_duration_seconds"
)

var defaultGRPCDurationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

// GRPCServerMetricsConfig 配置可重用的 gRPC 服务器指标
type GRPCServerMetricsConfig struct {
	Service             string
	RequestTotalName    string
	RequestDurationName string
	DurationBuckets     []float64
	StaticLabels        []Label
}

// DefaultGRPCServerMetricsConfig 返回默认的 gRPC 服务器指标配置
func DefaultGRPCServerMetricsConfig(service string) *GRPCServerMetricsConfig {
	return &GRPCServerMetricsConfig{
		Service:             service,
		RequestTotalName:    MetricGRPCServerRequestTotal,
		RequestDurationName: MetricGRPCServerDurationSeconds,
		DurationBuckets:     defaultGRPCDurationBuckets,
	}
}

// GRPCServerMetrics 封装可重用的 gRPC 服务器 RED 指标集
type GRPCServerMetrics struct {
	scope        *Scope
	requestTotal string
	duration     string
	buckets      []float64
	logger       clog.Logger
}

// NewGRPCServerMetrics 在 scope 下创建 gRPC 服务器指标
func NewGRPCServerMetrics(scope *Scope, cfg *GRPCServerMetricsConfig, opts ...Option) (*GRPCServerMetrics, error) {
	if scope == nil {
		return nil, xerrors.New("scope is nil")
	}
	if cfg == nil {
		return nil, xerrors.New("config is nil")
	}

	service := strings.TrimSpace(cfg.Service)
	if service == "" {
		service = "unknown"
	}

	requestTotalName := strings.TrimSpace(cfg.RequestTotalName)
	if requestTotalName == "" {
		requestTotalName = MetricGRPCServerRequestTotal
	}
	requestDurationName := strings.TrimSpace(cfg.RequestDurationName)
	if requestDurationName == "" {
		requestDurationName = MetricGRPCServerDurationSeconds
	}

	buckets, err := validateBuckets(cfg.DurationBuckets)
	if err != nil {
		return nil, xerrors.Wrap(err, "grpc duration buckets")
	}

	labels := make([]Label, 0, len(cfg.StaticLabels)+2)
	labels = append(labels, cfg.StaticLabels...)
	labels = append(labels, L(LabelService, service), L(LabelOperation, OperationGRPCServer))
	base, err := scope.WithLabels(labels...)
	if err != nil {
		return nil, xerrors.Wrap(err, "grpc server static labels")
	}

	return &GRPCServerMetrics{
		scope:        base,
		requestTotal: requestTotalName,
		duration:     requestDurationName,
		buckets:      buckets,
		logger:       newOptions(opts...).logger,
	}, nil
}

// Observe 记录 gRPC RED 指标
func (m *GRPCServerMetrics) Observe(fullMethod string, code codes.Code, duration time.Duration) error {
	if m == nil {
		return nil
	}

	method := strings.TrimSpace(fullMethod)
	if method == "" {
		method = "unknown"
	}

	scope, err := m.scope.WithLabels(
		L(LabelMethod, method),
		L(LabelGRPCCode, strings.ToUpper(code.String())),
		L(LabelOutcome, GRPCOutcome(code)),
	)
	if err != nil {
		return err
	}

	counter, err := scope.Counter(m.requestTotal, WithHelp("Total number of gRPC requests."))
	if err != nil {
		return xerrors.Wrap(err, "grpc request counter")
	}
	timer, err := scope.Timer(m.duration, m.buckets, WithHelp("gRPC request duration in seconds."))
	if err != nil {
		return xerrors.Wrap(err, "grpc request duration histogram")
	}

	counter.Inc()
	return timer.ObserveDuration(duration)
}

func (m *GRPCServerMetrics) observe(ctx context.Context, fullMethod string, err error, start time.Time) {
	if oerr := m.Observe(fullMethod, status.Code(err), time.Since(start)); oerr != nil {
		m.logger.WarnContext(ctx, "record grpc metrics failed", clog.String("method", fullMethod), clog.Error(oerr))
	}
}

// UnaryServerInterceptor 返回一个可重用的 grpc.UnaryServerInterceptor
func (m *GRPCServerMetrics) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		m.observe(ctx, info.FullMethod, err, start)
		return resp, err
	}
}

// StreamServerInterceptor 返回一个可重用的 grpc.StreamServerInterceptor
func (m *GRPCServerMetrics) StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, ss)
		ctx := context.Background()
		if ss != nil {
			ctx = ss.Context()
		}
		m.observe(ctx, info.FullMethod, err, start)
		return err
	}
}
