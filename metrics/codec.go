package metrics

import (
	"encoding/json"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/ceyewan/scopestat/xerrors"
)

// 快照编码格式
const (
	FormatText    = "text"
	FormatJSON    = "json"
	FormatMsgpack = "msgpack"
)

// ErrUnsupportedFormat 不支持的快照编码格式
var ErrUnsupportedFormat = xerrors.Category(xerrors.ErrInvalidInput, "UNSUPPORTED_FORMAT", "unsupported snapshot format")

// Serializer 快照序列化器
type Serializer interface {
	Marshal(snap Snapshot) ([]byte, error)
	Unmarshal(data []byte, snap *Snapshot) error
	ContentType() string
}

type jsonSerializer struct{}

func (jsonSerializer) Marshal(snap Snapshot) ([]byte, error) { return json.Marshal(snap) }

func (jsonSerializer) Unmarshal(data []byte, snap *Snapshot) error { return json.Unmarshal(data, snap) }

func (jsonSerializer) ContentType() string { return "application/json; charset=utf-8" }

// msgpackSerializer 二进制编码，体积更小，且原生支持 +Inf/NaN
type msgpackSerializer struct{}

func (msgpackSerializer) Marshal(snap Snapshot) ([]byte, error) { return msgpack.Marshal(snap) }

func (msgpackSerializer) Unmarshal(data []byte, snap *Snapshot) error {
	return msgpack.Unmarshal(data, snap)
}

func (msgpackSerializer) ContentType() string { return "application/x-msgpack" }

// NewSerializer 创建序列化器
//
// 支持的格式:
//   - "json": JSON，非有限浮点数以字符串 "+Inf"/"-Inf"/"NaN" 表示
//   - "msgpack": MessagePack 二进制
func NewSerializer(format string) (Serializer, error) {
	switch format {
	case FormatJSON:
		return jsonSerializer{}, nil
	case FormatMsgpack:
		return msgpackSerializer{}, nil
	default:
		return nil, xerrors.Wrapf(ErrUnsupportedFormat, "%q", format)
	}
}

// EncodeSnapshot 按 format 编码快照
func EncodeSnapshot(format string, snap Snapshot) ([]byte, error) {
	s, err := NewSerializer(format)
	if err != nil {
		return nil, err
	}
	data, err := s.Marshal(snap)
	if err != nil {
		return nil, xerrors.Wrapf(err, "encode snapshot as %s", format)
	}
	return data, nil
}

// DecodeSnapshot 按 format 解码快照
func DecodeSnapshot(format string, data []byte) (Snapshot, error) {
	var snap Snapshot
	s, err := NewSerializer(format)
	if err != nil {
		return snap, err
	}
	if err := s.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, xerrors.Wrapf(err, "decode snapshot from %s", format)
	}
	return snap, nil
}

// JSON 不支持非有限浮点数，Sample 与 Bucket 的浮点字段以字符串编码

func (s Sample) MarshalJSON() ([]byte, error) {
	type alias Sample
	aux := struct {
		alias
		Value string `json:"value"`
		Sum   string `json:"sum,omitempty"`
	}{alias: alias(s), Value: formatFloat(s.Value)}
	if s.Kind == KindHistogram {
		aux.Sum = formatFloat(s.Sum)
	}
	return json.Marshal(aux)
}

func (s *Sample) UnmarshalJSON(data []byte) error {
	type alias Sample
	aux := struct {
		*alias
		Value string `json:"value"`
		Sum   string `json:"sum,omitempty"`
	}{alias: (*alias)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	var err error
	if s.Value, err = parseFloat(aux.Value); err != nil {
		return xerrors.Wrapf(err, "sample %s value", s.Name)
	}
	if s.Sum, err = parseFloat(aux.Sum); err != nil {
		return xerrors.Wrapf(err, "sample %s sum", s.Name)
	}
	return nil
}

func (b Bucket) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		UpperBound string `json:"le"`
		Count      uint64 `json:"count"`
	}{formatFloat(b.UpperBound), b.Count})
}

func (b *Bucket) UnmarshalJSON(data []byte) error {
	var aux struct {
		UpperBound string `json:"le"`
		Count      uint64 `json:"count"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	le, err := parseFloat(aux.UpperBound)
	if err != nil {
		return xerrors.Wrapf(err, "bucket le %q", aux.UpperBound)
	}
	b.UpperBound, b.Count = le, aux.Count
	return nil
}
