package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/scopestat/xerrors"
)

// =============================================================================
// LabelSet
// =============================================================================

func TestNewLabelSet(t *testing.T) {
	t.Run("后出现的同名键覆盖先前的值", func(t *testing.T) {
		set, err := NewLabelSet(L("a", "1"), L("b", "2"), L("a", "3"))
		require.NoError(t, err)
		assert.Equal(t, []Label{L("a", "3"), L("b", "2")}, set.Labels())
	})

	t.Run("零值是空集合", func(t *testing.T) {
		var set LabelSet
		assert.Equal(t, 0, set.Len())
		assert.Nil(t, set.Labels())
		assert.Equal(t, "", set.String())
		assert.True(t, set.Equal(EmptyLabels()))
	})

	t.Run("非法标签", func(t *testing.T) {
		tests := []struct {
			name  string
			label Label
		}{
			{name: "empty key", label: L("", "v")},
			{name: "non printable key", label: L("a\x00b", "v")},
			{name: "invalid utf8 key", label: L("\xff", "v")},
			{name: "invalid utf8 value", label: L("k", "\xfe")},
			{name: "non printable value", label: L("k", "a\x00b")},
			{name: "tab in value", label: L("k", "a\tb")},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := NewLabelSet(tt.label)
				assert.ErrorIs(t, err, ErrInvalidLabel)
				assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
				assert.Equal(t, "INVALID_LABEL", xerrors.GetCode(err))
			})
		}
	})

	t.Run("值允许任意合法字符串", func(t *testing.T) {
		set, err := NewLabelSet(L("path", "a \"quoted\"\nline\\"))
		require.NoError(t, err)
		v, ok := set.Get("path")
		assert.True(t, ok)
		assert.Equal(t, "a \"quoted\"\nline\\", v)
	})
}

func TestLabelSetWith(t *testing.T) {
	base, err := NewLabelSet(L("a", "1"), L("b", "2"))
	require.NoError(t, err)

	replaced, err := base.With("a", "9")
	require.NoError(t, err)
	assert.Equal(t, []Label{L("a", "9"), L("b", "2")}, replaced.Labels(), "覆盖时保留原位置")

	added, err := base.With("c", "3")
	require.NoError(t, err)
	assert.Equal(t, []Label{L("a", "1"), L("b", "2"), L("c", "3")}, added.Labels())

	_, err = base.With("k", "a\x00b")
	assert.ErrorIs(t, err, ErrInvalidLabel)

	// 原集合不变
	assert.Equal(t, []Label{L("a", "1"), L("b", "2")}, base.Labels())

	// Labels 返回副本
	labels := base.Labels()
	labels[0].Value = "mutated"
	v, _ := base.Get("a")
	assert.Equal(t, "1", v)
}

func TestMergeLabels(t *testing.T) {
	parent, err := NewLabelSet(L("service", "api"), L("env", "dev"), L("zone", "a"))
	require.NoError(t, err)
	child, err := NewLabelSet(L("route", "/x"), L("env", "prod"))
	require.NoError(t, err)

	merged := MergeLabels(parent, child)

	t.Run("子集合胜出且顺序为父在前", func(t *testing.T) {
		assert.Equal(t, []Label{
			L("service", "api"),
			L("env", "prod"),
			L("zone", "a"),
			L("route", "/x"),
		}, merged.Labels())
	})

	t.Run("合并律：包含所有父键与子键，且值正确", func(t *testing.T) {
		for _, l := range parent.Labels() {
			want := l.Value
			if cv, ok := child.Get(l.Key); ok {
				want = cv
			}
			got, ok := merged.Get(l.Key)
			require.True(t, ok, l.Key)
			assert.Equal(t, want, got)
		}
		for _, l := range child.Labels() {
			got, ok := merged.Get(l.Key)
			require.True(t, ok, l.Key)
			assert.Equal(t, l.Value, got)
		}
		assert.Equal(t, 4, merged.Len())
	})

	t.Run("空集合", func(t *testing.T) {
		assert.True(t, MergeLabels(parent, EmptyLabels()).Equal(parent))
		assert.True(t, MergeLabels(EmptyLabels(), child).Equal(child))
	})

	t.Run("输入不被修改", func(t *testing.T) {
		v, _ := parent.Get("env")
		assert.Equal(t, "dev", v)
		assert.Equal(t, 3, parent.Len())
	})
}

func TestLabelSetEqualAndString(t *testing.T) {
	a, _ := NewLabelSet(L("x", "1"), L("y", "2"))
	b, _ := NewLabelSet(L("y", "2"), L("x", "1"))
	c, _ := NewLabelSet(L("x", "1"), L("y", "3"))

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(EmptyLabels()))
	assert.Equal(t, `{x="1",y="2"}`, a.String())
	assert.Equal(t, `{y="2",x="1"}`, b.String())
}

// =============================================================================
// MetricKey
// =============================================================================

func TestMetricKeyID(t *testing.T) {
	a, _ := NewLabelSet(L("x", "1"), L("y", "2"))
	b, _ := NewLabelSet(L("y", "2"), L("x", "1"))

	ka := MetricKey{Name: "requests", Labels: a}
	kb := MetricKey{Name: "requests", Labels: b}
	assert.Equal(t, ka.ID(), kb.ID(), "与标签构造顺序无关")
	assert.True(t, ka.Equal(kb))

	t.Run("编码无歧义", func(t *testing.T) {
		l1, _ := NewLabelSet(L("a", "b,c=d"))
		l2, _ := NewLabelSet(L("a", "b"), L("c", "d"))
		assert.NotEqual(t,
			MetricKey{Name: "m", Labels: l1}.ID(),
			MetricKey{Name: "m", Labels: l2}.ID())
		assert.NotEqual(t,
			MetricKey{Name: "m1"}.ID(),
			MetricKey{Name: "m", Labels: func() LabelSet { s, _ := NewLabelSet(L("1", "")); return s }()}.ID())
	})

	assert.Equal(t, `requests{x="1",y="2"}`, ka.String())
	assert.Equal(t, "requests", MetricKey{Name: "requests"}.String())
}
