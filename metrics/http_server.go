package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/ceyewan/scopestat/xerrors"
)

const (
	MetricHTTPServerRequestTotal    = "http_server_requests_total"
	MetricHTTPServerDurationSeconds = "http_server_request_duration_seconds"
)

var defaultHTTPDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// HTTPServerMetricsConfig 配置可重用的 HTTP 服务器指标
type HTTPServerMetricsConfig struct {
	Service             string
	RequestTotalName    string
	RequestDurationName string
	DurationBuckets     []float64
	StaticLabels        []Label
}

// DefaultHTTPServerMetricsConfig 返回默认的 HTTP 服务器指标配置
func DefaultHTTPServerMetricsConfig(service string) *HTTPServerMetricsConfig {
	return &HTTPServerMetricsConfig{
		Service:             service,
		RequestTotalName:    MetricHTTPServerRequestTotal,
		RequestDurationName: MetricHTTPServerDurationSeconds,
		DurationBuckets:     defaultHTTPDurationBuckets,
	}
}

// HTTPServerMetrics 封装可重用的 HTTP 服务器 RED 指标集
//
// 每个 (method, route, status_class, outcome) 组合对应 Scope 下的一组
// 计数器和计时直方图。
type HTTPServerMetrics struct {
	scope        *Scope
	requestTotal string
	duration     string
	buckets      []float64
}

// NewHTTPServerMetrics 在 scope 下创建 HTTP 服务器指标
func NewHTTPServerMetrics(scope *Scope, cfg *HTTPServerMetricsConfig) (*HTTPServerMetrics, error) {
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
		requestTotalName = MetricHTTPServerRequestTotal
	}

	requestDurationName := strings.TrimSpace(cfg.RequestDurationName)
	if requestDurationName == "" {
		requestDurationName = MetricHTTPServerDurationSeconds
	}

	buckets, err := validateBuckets(cfg.DurationBuckets)
	if err != nil {
		return nil, xerrors.Wrap(err, "http duration buckets")
	}

	labels := make([]Label, 0, len(cfg.StaticLabels)+2)
	labels = append(labels, cfg.StaticLabels...)
	labels = append(labels, L(LabelService, service), L(LabelOperation, OperationHTTPServer))
	base, err := scope.WithLabels(labels...)
	if err != nil {
		return nil, xerrors.Wrap(err, "http server static labels")
	}

	return &HTTPServerMetrics{
		scope:        base,
		requestTotal: requestTotalName,
		duration:     requestDurationName,
		buckets:      buckets,
	}, nil
}

// Observe 记录 HTTP 请求 RED 指标
func (m *HTTPServerMetrics) Observe(method string, route string, status int, duration time.Duration) error {
	if m == nil {
		return nil
	}

	safeMethod := strings.ToUpper(strings.TrimSpace(method))
	if safeMethod == "" {
		safeMethod = http.MethodGet
	}

	safeRoute := strings.TrimSpace(route)
	if safeRoute == "" {
		safeRoute = UnknownRoute
	}

	scope, err := m.scope.WithLabels(
		L(LabelMethod, safeMethod),
		L(LabelRoute, safeRoute),
		L(LabelStatusClass, HTTPStatusClass(status)),
		L(LabelOutcome, HTTPOutcome(status)),
	)
	if err != nil {
		return err
	}

	counter, err := scope.Counter(m.requestTotal, WithHelp("Total number of HTTP requests."))
	if err != nil {
		return xerrors.Wrap(err, "http request counter")
	}
	timer, err := scope.Timer(m.duration, m.buckets, WithHelp("HTTP request duration in seconds."))
	if err != nil {
		return xerrors.Wrap(err, "http request duration histogram")
	}

	counter.Inc()
	return timer.ObserveDuration(duration)
}
