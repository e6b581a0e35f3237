package metrics

import "github.com/ceyewan/scopestat/xerrors"

// 错误分类：
//   - 构造期错误（Scope/句柄创建）：ErrInvalidLabel、ErrInvalidBuckets、ErrMetricKindConflict
//   - 更新期错误（拒绝更新，原有值不变）：ErrInvalidDelta、ErrInvalidObservation
//   - 导出期错误（仅跳过对应条目）：ErrInvalidMetricName、ErrInvalidLabel、ErrMetricKindConflict
//
// 所有错误都可以用 errors.Is 匹配到具体哨兵，也可以匹配到 xerrors 的通用类别，
// 并通过 xerrors.GetCode 获取错误码。
var (
	ErrInvalidLabel       = xerrors.Category(xerrors.ErrInvalidInput, "INVALID_LABEL", "invalid label")
	ErrInvalidMetricName  = xerrors.Category(xerrors.ErrInvalidInput, "INVALID_METRIC_NAME", "invalid metric name")
	ErrInvalidDelta       = xerrors.Category(xerrors.ErrInvalidInput, "INVALID_DELTA", "invalid delta")
	ErrInvalidObservation = xerrors.Category(xerrors.ErrInvalidInput, "INVALID_OBSERVATION", "invalid observation")
	ErrInvalidBuckets     = xerrors.Category(xerrors.ErrInvalidInput, "INVALID_BUCKETS", "invalid histogram buckets")
	ErrMetricKindConflict = xerrors.Category(xerrors.ErrConflict, "METRIC_KIND_CONFLICT", "metric kind conflict")
	ErrTaskPanicked       = xerrors.WithCode(xerrors.New("timed task panicked"), "TASK_PANICKED")
)
