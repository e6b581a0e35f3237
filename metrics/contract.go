package metrics

import (
	"strconv"
	"strings"

	"google.golang.org/grpc/codes"
)

// 内置 RED 指标与 Provider 使用的标签名
const (
	LabelService     = "service"
	LabelOperation   = "operation"
	LabelMethod      = "method"
	LabelRoute       = "route"
	LabelStatusClass = "status_class"
	LabelOutcome     = "outcome"
	LabelGRPCCode    = "grpc_code"
	LabelInstance    = "instance"
)

// operation 标签的取值
const (
	OperationHTTPServer = "http.server"
	OperationGRPCServer = "grpc.server"
)

// outcome 标签的取值
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// UnknownRoute 未命中路由时的 route 标签值，避免原始路径带来高基数
const UnknownRoute = "unknown"

// HTTPStatusClass 返回 HTTP 状态类标签值：1xx/2xx/3xx/4xx/5xx/unknown
func HTTPStatusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}

// HTTPOutcome 2xx 与 3xx 视为成功
func HTTPOutcome(status int) string {
	if status >= 200 && status < 400 {
		return OutcomeSuccess
	}
	return OutcomeError
}

// GRPCStatusClass 将 gRPC 状态码转换为稳定的小写类标签
func GRPCStatusClass(code codes.Code) string {
	if code == codes.OK {
		return "ok"
	}
	return strings.ToLower(code.String())
}

// GRPCOutcome 只有 OK 视为成功
func GRPCOutcome(code codes.Code) string {
	if code == codes.OK {
		return OutcomeSuccess
	}
	return OutcomeError
}
