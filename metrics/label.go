package metrics

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ceyewan/scopestat/xerrors"
)

// Label 指标标签，一个维度的键值对
type Label struct {
	Key   string `json:"key" msgpack:"key"`
	Value string `json:"value" msgpack:"value"`
}

// L 便捷构造函数，创建一个 Label 实例
//
//	scope.WithLabels(metrics.L("method", "GET"), metrics.L("route", "/users"))
func L(key, value string) Label {
	return Label{Key: key, Value: value}
}

// LabelSet 不可变、有序、键唯一的标签集合
//
// 零值即空集合。所有"修改"操作都返回新的 LabelSet，原集合保持不变，
// 因此可以在多个 Scope 和 goroutine 之间安全共享。
//
// 顺序规则：父集合在前，子集合新增的键按其自身顺序追加在后；
// 覆盖已有键时保留该键原来的位置。导出时按此顺序输出标签。
type LabelSet struct {
	labels []Label
}

// EmptyLabels 返回空集合
func EmptyLabels() LabelSet {
	return LabelSet{}
}

// NewLabelSet 由一组标签构造集合，后出现的同名键覆盖先出现的值
func NewLabelSet(labels ...Label) (LabelSet, error) {
	set := LabelSet{}
	for _, l := range labels {
		next, err := set.With(l.Key, l.Value)
		if err != nil {
			return LabelSet{}, err
		}
		set = next
	}
	return set, nil
}

// With 返回添加（或覆盖）一个标签后的新集合
func (s LabelSet) With(key, value string) (LabelSet, error) {
	if err := validateLabel(key, value); err != nil {
		return LabelSet{}, err
	}

	out := make([]Label, len(s.labels), len(s.labels)+1)
	copy(out, s.labels)
	for i := range out {
		if out[i].Key == key {
			out[i].Value = value
			return LabelSet{labels: out}, nil
		}
	}
	return LabelSet{labels: append(out, Label{Key: key, Value: value})}, nil
}

// MergeLabels 合并父子集合：子集合的值在键冲突时胜出
//
// 结果包含所有未被覆盖的父键、所有子键，且不包含其它键。
// 两个输入都已经过校验，因此合并不会失败。
func MergeLabels(parent, child LabelSet) LabelSet {
	if len(child.labels) == 0 {
		return parent
	}
	if len(parent.labels) == 0 {
		return child
	}

	out := make([]Label, len(parent.labels), len(parent.labels)+len(child.labels))
	copy(out, parent.labels)
	for _, c := range child.labels {
		replaced := false
		for i := range out[:len(parent.labels)] {
			if out[i].Key == c.Key {
				out[i].Value = c.Value
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, c)
		}
	}
	return LabelSet{labels: out}
}

// Len 标签数量
func (s LabelSet) Len() int {
	return len(s.labels)
}

// Get 按键查找标签值
func (s LabelSet) Get(key string) (string, bool) {
	for _, l := range s.labels {
		if l.Key == key {
			return l.Value, true
		}
	}
	return "", false
}

// Labels 按集合顺序返回标签副本
func (s LabelSet) Labels() []Label {
	if len(s.labels) == 0 {
		return nil
	}
	out := make([]Label, len(s.labels))
	copy(out, s.labels)
	return out
}

// Equal 判断两个集合的内容是否相同，与构造顺序无关
func (s LabelSet) Equal(other LabelSet) bool {
	if len(s.labels) != len(other.labels) {
		return false
	}
	for _, l := range s.labels {
		v, ok := other.Get(l.Key)
		if !ok || v != l.Value {
			return false
		}
	}
	return true
}

// String 形如 {k1="v1",k2="v2"}，空集合返回空字符串
func (s LabelSet) String() string {
	if len(s.labels) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteByte('{')
	writeLabelPairs(&b, s.labels)
	b.WriteByte('}')
	return b.String()
}

// validateLabel 构造期校验：键非空，键值均为合法 UTF-8 且可打印
//
// 值中允许换行，导出时会被转义。
//
// 导出格式对标签名字符集的更严格要求在导出时检查，参见 validLabelName。
func validateLabel(key, value string) error {
	if key == "" {
		return xerrors.Wrap(ErrInvalidLabel, "empty label key")
	}
	if !utf8.ValidString(key) || !utf8.ValidString(value) {
		return xerrors.Wrapf(ErrInvalidLabel, "label %q is not valid UTF-8", key)
	}
	for _, r := range key {
		if !unicode.IsPrint(r) {
			return xerrors.Wrapf(ErrInvalidLabel, "label key %q contains non-printable characters", key)
		}
	}
	for _, r := range value {
		if r != '\n' && !unicode.IsPrint(r) {
			return xerrors.Wrapf(ErrInvalidLabel, "value of label %q contains non-printable characters", key)
		}
	}
	return nil
}
