package storage

import (
	"slices"

	"github.com/ceyewan/promstore/prom"
)

// MetaField 聚合记录中保存元数据的保留字段
const MetaField = "__meta"

// Meta 写入 __meta 字段的指标元数据
type Meta struct {
	Name       string          `json:"name" msgpack:"name"`
	Help       string          `json:"help" msgpack:"help"`
	Type       prom.MetricType `json:"type" msgpack:"type"`
	LabelNames []string        `json:"labelNames" msgpack:"labelNames"`
	Buckets    []float64       `json:"buckets,omitempty" msgpack:"buckets,omitempty"`
}

// NewMeta 从一次更新的序列信息构造元数据
func NewMeta(typ prom.MetricType, s prom.Series, buckets []float64) Meta {
	labelNames := s.LabelNames
	if labelNames == nil {
		labelNames = []string{}
	}
	return Meta{
		Name:       s.Name,
		Help:       s.Help,
		Type:       typ,
		LabelNames: labelNames,
		Buckets:    slices.Clone(buckets),
	}
}

// EncodeMeta 用指定序列化器编码元数据
func EncodeMeta(ser Serializer, m Meta) (string, error) {
	b, err := ser.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeMeta 解码元数据，自动识别 JSON 或 MessagePack
func DecodeMeta(raw string) (Meta, error) {
	var m Meta
	if err := Decode([]byte(raw), &m); err != nil {
		return Meta{}, err
	}
	return m, nil
}
