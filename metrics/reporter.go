package metrics

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/ceyewan/scopestat/clog"
	"github.com/ceyewan/scopestat/xerrors"
)

// ContentType Prometheus 文本格式的 Content-Type
const ContentType = "text/plain; version=0.0.4; charset=utf-8"

// Reporter 将注册表快照渲染为 Prometheus 文本格式
//
// 输出按指标名分组，组内按标签内容排序；每组先输出 # HELP（如有）和 # TYPE。
// 单个条目不满足导出格式要求时只跳过该条目，其余条目照常输出。
type Reporter struct {
	reg       *Registry
	logger    clog.Logger
	sometimes *rate.Sometimes
}

// NewReporter 创建 Reporter
func NewReporter(reg *Registry, opts ...Option) *Reporter {
	o := newOptions(opts...)
	return &Reporter{
		reg:    reg,
		logger: o.logger,
		// 跳过的条目每次导出都会重复出现，日志需要限流
		sometimes: &rate.Sometimes{First: 3, Interval: time.Minute},
	}
}

// EntryError 一个被跳过的导出条目
type EntryError struct {
	Name   string
	Labels []Label
	Err    error
}

func (e *EntryError) Error() string {
	var b strings.Builder
	b.WriteString(e.Name)
	if len(e.Labels) > 0 {
		b.WriteByte('{')
		writeLabelPairs(&b, e.Labels)
		b.WriteByte('}')
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *EntryError) Unwrap() error {
	return e.Err
}

// Report 一次导出的结果
type Report struct {
	Snapshot Snapshot
	Families int
	Series   int
	Skipped  []*EntryError
}

// Err 合并所有被跳过条目的错误，没有跳过时返回 nil
func (r *Report) Err() error {
	errs := make([]error, len(r.Skipped))
	for i, e := range r.Skipped {
		errs[i] = e
	}
	return xerrors.Combine(errs...)
}

// Snapshot 读取注册表当前快照
func (r *Reporter) Snapshot() Snapshot {
	return r.reg.Snapshot()
}

// Export 读取快照并写入 w
//
// 只有写入失败才会返回错误；被跳过的条目记录在 Report.Skipped 中。
func (r *Reporter) Export(w io.Writer) (*Report, error) {
	return r.Write(w, r.reg.Snapshot())
}

// Write 将指定快照写入 w
func (r *Reporter) Write(w io.Writer, snap Snapshot) (*Report, error) {
	report := &Report{Snapshot: snap}
	bw := bufio.NewWriter(w)

	claims := make(seriesClaims)
	samples := snap.Samples
	for start := 0; start < len(samples); {
		end := start + 1
		for end < len(samples) && samples[end].Name == samples[start].Name {
			end++
		}
		text, series := r.renderFamily(samples[start:end], claims, report)
		if series > 0 {
			report.Families++
			report.Series += series
			if _, err := bw.WriteString(text); err != nil {
				return report, xerrors.Wrap(err, "write metrics exposition")
			}
		}
		start = end
	}
	if err := bw.Flush(); err != nil {
		return report, xerrors.Wrap(err, "write metrics exposition")
	}
	return report, nil
}

// Render 渲染为字符串，忽略被跳过的条目
func (r *Reporter) Render() string {
	var b strings.Builder
	_, _ = r.Export(&b)
	return b.String()
}

// Render 使用默认 Reporter 渲染 reg
func Render(reg *Registry) string {
	return NewReporter(reg).Render()
}

// renderFamily 渲染同名的一组样本，返回文本与成功输出的实例数
//
// 组的类型以第一个样本为准，类型不一致的样本被跳过；
// 与已输出族的样本名冲突时整组跳过。
func (r *Reporter) renderFamily(family []Sample, claims seriesClaims, report *Report) (string, int) {
	name := family[0].Name
	kind := family[0].Kind
	err := validMetricName(name)
	if err == nil {
		err = claims.check(name, kind)
	}
	if err != nil {
		for _, s := range family {
			r.skip(report, s, err)
		}
		return "", 0
	}

	help := ""
	var body strings.Builder
	series := 0
	for _, s := range family {
		if s.Kind != kind {
			r.skip(report, s, xerrors.Wrapf(ErrMetricKindConflict, "family %s is %s, entry is %s", name, kind, s.Kind))
			continue
		}
		if err := validSampleLabels(s); err != nil {
			r.skip(report, s, err)
			continue
		}
		if help == "" {
			help = s.Help
		}
		writeSample(&body, s)
		series++
	}
	if series == 0 {
		return "", 0
	}
	claims.claim(name, kind)

	var b strings.Builder
	if help != "" {
		fmt.Fprintf(&b, "# HELP %s %s\n", name, helpEscaper.Replace(help))
	}
	fmt.Fprintf(&b, "# TYPE %s %s\n", name, kind)
	b.WriteString(body.String())
	return b.String(), series
}

func validSampleLabels(s Sample) error {
	seen := make(map[string]struct{}, len(s.Labels))
	for _, l := range s.Labels {
		if err := validLabelName(l.Key, s.Kind); err != nil {
			return err
		}
		if _, dup := seen[l.Key]; dup {
			return xerrors.Wrapf(ErrInvalidLabel, "duplicate label name %q", l.Key)
		}
		seen[l.Key] = struct{}{}
	}
	return nil
}

func writeSample(b *strings.Builder, s Sample) {
	switch s.Kind {
	case KindCounter:
		writeSeries(b, s.Name, s.Labels, nil, strconv.FormatUint(s.Count, 10))
	case KindGauge:
		writeSeries(b, s.Name, s.Labels, nil, formatFloat(s.Value))
	case KindHistogram:
		for _, bucket := range s.Buckets {
			le := L("le", formatFloat(bucket.UpperBound))
			writeSeries(b, s.Name+"_bucket", s.Labels, &le, strconv.FormatUint(bucket.Count, 10))
		}
		writeSeries(b, s.Name+"_sum", s.Labels, nil, formatFloat(s.Sum))
		writeSeries(b, s.Name+"_count", s.Labels, nil, strconv.FormatUint(s.Count, 10))
	}
}

func (r *Reporter) skip(report *Report, s Sample, err error) {
	entryErr := &EntryError{Name: s.Name, Labels: s.Labels, Err: err}
	report.Skipped = append(report.Skipped, entryErr)
	r.sometimes.Do(func() {
		r.logger.Warn("metric skipped during export",
			clog.String("metric", s.Name),
			clog.ErrorWithCode(err, xerrors.GetCode(err)))
	})
}
