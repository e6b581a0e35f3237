package metrics

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/ceyewan/scopestat/xerrors"
)

var (
	metricNameRE = regexp.MustCompile(`^[a-zA-Z_:][a-zA-Z0-9_:]*$`)
	labelNameRE  = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

	labelValueEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)
	helpEscaper       = strings.NewReplacer(`\`, `\\`, "\n", `\n`)
)

// validMetricName 导出格式要求的指标名字符集
func validMetricName(name string) error {
	if !metricNameRE.MatchString(name) {
		return xerrors.Wrapf(ErrInvalidMetricName, "%q", name)
	}
	return nil
}

// validLabelName 导出格式要求的标签名字符集，"__" 前缀保留给采集端，
// 直方图额外保留 "le"
func validLabelName(name string, kind Kind) error {
	if !labelNameRE.MatchString(name) || strings.HasPrefix(name, "__") {
		return xerrors.Wrapf(ErrInvalidLabel, "label name %q", name)
	}
	if kind == KindHistogram && name == "le" {
		return xerrors.Wrap(ErrInvalidLabel, `label name "le" is reserved for histogram buckets`)
	}
	return nil
}

// exposedNames 指标族在文本格式中占用的样本名，直方图额外占用三个派生名
func exposedNames(name string, kind Kind) []string {
	if kind == KindHistogram {
		return []string{name, name + "_bucket", name + "_sum", name + "_count"}
	}
	return []string{name}
}

// seriesClaims 样本名到占用它的指标族
//
// 快照按名字排序，直方图 x 总是先于 x_count 之类的派生名出现，
// 因此按顺序登记即可让后出现的冲突族被跳过。
type seriesClaims map[string]string

func (c seriesClaims) check(name string, kind Kind) error {
	for _, n := range exposedNames(name, kind) {
		if owner, ok := c[n]; ok {
			return xerrors.Wrapf(ErrMetricKindConflict, "series %s already exposed by family %s", n, owner)
		}
	}
	return nil
}

func (c seriesClaims) claim(name string, kind Kind) {
	for _, n := range exposedNames(name, kind) {
		c[n] = name
	}
}

func writeLabelPairs(b *strings.Builder, labels []Label) {
	for i, l := range labels {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(l.Key)
		b.WriteString(`="`)
		b.WriteString(labelValueEscaper.Replace(l.Value))
		b.WriteByte('"')
	}
}

// writeSeries 写出一行 name{labels} value，extra 追加在已有标签之后
func writeSeries(b *strings.Builder, name string, labels []Label, extra *Label, value string) {
	b.WriteString(name)
	if len(labels) > 0 || extra != nil {
		b.WriteByte('{')
		writeLabelPairs(b, labels)
		if extra != nil {
			if len(labels) > 0 {
				b.WriteByte(',')
			}
			writeLabelPairs(b, []Label{*extra})
		}
		b.WriteByte('}')
	}
	b.WriteByte(' ')
	b.WriteString(value)
	b.WriteByte('\n')
}

// formatFloat 数值的文本表示，非有限值写作 +Inf、-Inf、NaN
func formatFloat(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "+Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	case math.IsNaN(v):
		return "NaN"
	default:
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
}

func parseFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}
