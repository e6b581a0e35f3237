package metrics

import (
	"slices"
	"strconv"
	"strings"
)

// MetricKey 一个指标实例的身份：名称 + 解析后的标签集合
type MetricKey struct {
	Name   string
	Labels LabelSet
}

// ID 返回规范化身份字符串，用作注册表去重键
//
// 标签先按键排序，再以长度前缀编码，因此与构造顺序无关且不会产生歧义。
func (k MetricKey) ID() string {
	pairs := k.Labels.Labels()
	slices.SortFunc(pairs, func(a, b Label) int { return strings.Compare(a.Key, b.Key) })

	var b strings.Builder
	writeLenPrefixed(&b, k.Name)
	for _, p := range pairs {
		writeLenPrefixed(&b, p.Key)
		writeLenPrefixed(&b, p.Value)
	}
	return b.String()
}

// Equal 名称与标签内容都相同即相等
func (k MetricKey) Equal(other MetricKey) bool {
	return k.Name == other.Name && k.Labels.Equal(other.Labels)
}

// String 形如 http_requests{route="/x"}
func (k MetricKey) String() string {
	return k.Name + k.Labels.String()
}

func writeLenPrefixed(b *strings.Builder, s string) {
	b.WriteString(strconv.Itoa(len(s)))
	b.WriteByte(':')
	b.WriteString(s)
}

// compareLabels 按排序后的标签内容比较，用于导出时同名实例的稳定排序
func compareLabels(a, b []Label) int {
	as := sortedCopy(a)
	bs := sortedCopy(b)
	for i := 0; i < len(as) && i < len(bs); i++ {
		if c := strings.Compare(as[i].Key, bs[i].Key); c != 0 {
			return c
		}
		if c := strings.Compare(as[i].Value, bs[i].Value); c != 0 {
			return c
		}
	}
	return len(as) - len(bs)
}

func sortedCopy(labels []Label) []Label {
	out := slices.Clone(labels)
	slices.SortFunc(out, func(x, y Label) int { return strings.Compare(x.Key, y.Key) })
	return out
}
