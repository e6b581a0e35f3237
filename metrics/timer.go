package metrics

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ceyewan/scopestat/xerrors"
)

// 计时单位
const (
	UnitSeconds      = "s"
	UnitMilliseconds = "ms"
	UnitMicroseconds = "us"
)

// durationIn 将时长换算为 unit 对应的数值，未知单位按秒处理
func durationIn(d time.Duration, unit string) float64 {
	switch unit {
	case UnitMilliseconds:
		return float64(d) / float64(time.Millisecond)
	case UnitMicroseconds:
		return float64(d) / float64(time.Microsecond)
	default:
		return d.Seconds()
	}
}

// TimerState 计时器状态，Running 之后只会进入一种终态
type TimerState int32

const (
	TimerRunning TimerState = iota
	TimerStopped
	TimerCancelled
)

func (s TimerState) String() string {
	switch s {
	case TimerRunning:
		return "running"
	case TimerStopped:
		return "stopped"
	case TimerCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Stopwatch 一次计时
//
// 持有目标直方图、单调时钟起点和单次触发的状态。Stop 与 Cancel
// 之间只有第一个调用生效：Stop 记录一次观测，Cancel 不记录任何值。
type Stopwatch struct {
	h     *Histogram
	start time.Time
	state atomic.Int32
}

// Start 开始一次计时
func (h *Histogram) Start() *Stopwatch {
	return &Stopwatch{h: h, start: time.Now()}
}

// Stop 结束计时并记录耗时，返回耗时以及本次调用是否生效
func (sw *Stopwatch) Stop() (time.Duration, bool) {
	d := time.Since(sw.start)
	if !sw.state.CompareAndSwap(int32(TimerRunning), int32(TimerStopped)) {
		return 0, false
	}
	// time.Since 使用单调时钟，d 不会为负
	_ = sw.h.ObserveDuration(d)
	return d, true
}

// Cancel 放弃计时，不记录观测；返回本次调用是否生效
func (sw *Stopwatch) Cancel() bool {
	return sw.state.CompareAndSwap(int32(TimerRunning), int32(TimerCancelled))
}

// Elapsed 从开始到现在的耗时
func (sw *Stopwatch) Elapsed() time.Duration {
	return time.Since(sw.start)
}

// State 当前状态
func (sw *Stopwatch) State() TimerState {
	return TimerState(sw.state.Load())
}

// Time 同步计时：执行 fn 并记录耗时，原样返回 fn 的结果
//
// fn 返回错误或 panic 时同样记录，panic 会继续向上传播。
func Time[T any](h *Histogram, fn func() (T, error)) (T, error) {
	sw := h.Start()
	defer sw.Stop()
	return fn()
}

// TimeFunc 与 Time 相同，用于没有返回值的函数
func TimeFunc(h *Histogram, fn func() error) error {
	sw := h.Start()
	defer sw.Stop()
	return fn()
}

// Task 一个被计时的异步任务
//
// 任务正常结束（无论成功、失败还是 panic）时记录一次耗时；
// 在结束之前被取消（Task.Cancel 或父 context 结束）则不记录。
type Task[T any] struct {
	sw     *Stopwatch
	cancel context.CancelFunc
	done   chan struct{}

	value T
	err   error
}

// Go 在新的 goroutine 中执行 fn 并计时
//
// fn 收到的 context 会在 Task.Cancel 或 ctx 结束时被取消，
// fn 应当据此尽快返回。
//
//	task := metrics.Go(ctx, h, func(ctx context.Context) (int, error) {
//		return fetch(ctx)
//	})
//	n, err := task.Wait(ctx)
func Go[T any](ctx context.Context, h *Histogram, fn func(ctx context.Context) (T, error)) *Task[T] {
	workCtx, cancel := context.WithCancel(ctx)
	t := &Task[T]{
		sw:     h.Start(),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	// 取消一旦发生立即进入终态，之后的完成不再记录
	stop := context.AfterFunc(workCtx, func() {
		t.sw.Cancel()
	})
	go t.run(workCtx, stop, fn)
	return t
}

func (t *Task[T]) run(ctx context.Context, stop func() bool, fn func(ctx context.Context) (T, error)) {
	defer close(t.done)
	defer t.cancel()
	defer func() {
		if r := recover(); r != nil {
			t.err = xerrors.Wrapf(ErrTaskPanicked, "%v", r)
		}
		stop()
		if ctx.Err() != nil {
			t.sw.Cancel()
			return
		}
		t.sw.Stop()
	}()

	t.value, t.err = fn(ctx)
}

// Wait 等待任务结束并返回其原始结果，可以重复调用
//
// ctx 结束只会让本次等待提前返回 ctx 的错误，不会取消任务本身。
func (t *Task[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-t.done:
		return t.value, t.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done 任务结束时关闭
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// Cancel 取消任务，任务尚未结束时不会记录耗时
func (t *Task[T]) Cancel() {
	t.cancel()
}

// State 计时状态
func (t *Task[T]) State() TimerState {
	return t.sw.State()
}
