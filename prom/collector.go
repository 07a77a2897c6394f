package prom

import (
	"math"
	"slices"
	"sync"
	"unicode/utf8"

	"github.com/ceyewan/promstore/xerrors"
)

// collector 三种指标共享的标识与标签逻辑
type collector struct {
	storage Storage
	typ     MetricType
	name    string
	help    string
	labels  []string

	mu       sync.RWMutex
	defaults []Label
}

func newCollector(storage Storage, typ MetricType, namespace, name, help string, labels []string) (*collector, error) {
	if storage == nil {
		return nil, ErrStorageNil
	}
	metricName := MetricName(namespace, name)
	if err := ValidateMetricName(metricName); err != nil {
		return nil, err
	}
	if err := ValidateLabelNames(labels); err != nil {
		return nil, err
	}
	if typ == TypeHistogram && slices.Contains(labels, reservedBucketLabel) {
		return nil, xerrors.Wrapf(ErrInvalidName, "histogram %s cannot have a label named %q", metricName, reservedBucketLabel)
	}
	return &collector{
		storage: storage,
		typ:     typ,
		name:    metricName,
		help:    help,
		labels:  slices.Clone(labels),
	}, nil
}

// Descriptor 指标的描述信息快照
type Descriptor struct {
	Name          string
	Help          string
	Type          MetricType
	LabelNames    []string // 显式标签名
	DefaultLabels []Label
}

// Describe 返回当前描述信息
func (c *collector) Describe() Descriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Descriptor{
		Name:          c.name,
		Help:          c.help,
		Type:          c.typ,
		LabelNames:    slices.Clone(c.labels),
		DefaultLabels: slices.Clone(c.defaults),
	}
}

// Name 返回带命名空间的完整指标名
func (c *collector) Name() string { return c.name }

// Help 返回帮助文本
func (c *collector) Help() string { return c.help }

// Type 返回指标类型
func (c *collector) Type() MetricType { return c.typ }

// LabelNames 返回显式标签名，后接默认标签名
func (c *collector) LabelNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.labelNamesLocked()
}

func (c *collector) labelNamesLocked() []string {
	names := make([]string, 0, len(c.labels)+len(c.defaults))
	names = append(names, c.labels...)
	return append(names, labelNamesOf(c.defaults)...)
}

// ApplyDefaultLabels 设置默认标签，替换之前设置的默认标签。
//
// 默认标签按键排序后追加在显式标签之后，之后每次更新都会在调用方提供的标签值后
// 按同样顺序追加默认值。已经写入后端的序列不会被改写。
func (c *collector) ApplyDefaultLabels(defaults map[string]string) error {
	labels := sortedLabels(defaults)
	names := labelNamesOf(labels)
	if err := ValidateLabelNames(append(slices.Clone(c.labels), names...)); err != nil {
		return err
	}
	if c.typ == TypeHistogram && slices.Contains(names, reservedBucketLabel) {
		return xerrors.Wrapf(ErrInvalidName, "histogram %s cannot have a default label named %q", c.name, reservedBucketLabel)
	}

	c.mu.Lock()
	c.defaults = labels
	c.mu.Unlock()
	return nil
}

// series 追加默认标签值并校验标签数量，失败时不会触达后端
func (c *collector) series(values []string) (Series, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	full := make([]string, 0, len(values)+len(c.defaults))
	full = append(full, values...)
	for _, l := range c.defaults {
		full = append(full, l.Value)
	}

	names := c.labelNamesLocked()
	if len(full) != len(names) {
		return Series{}, xerrors.Wrapf(ErrLabelArity, "%s: got %d values for labels %v", c.name, len(full), names)
	}
	// 非法字节在 JSON 编码时都会变成 U+FFFD，不同的值会写到同一个字段
	for i, v := range full {
		if !utf8.ValidString(v) {
			return Series{}, xerrors.Wrapf(ErrInvalidLabelValue, "%s: label %s = %q", c.name, names[i], v)
		}
	}

	return Series{
		Name:        c.name,
		Help:        c.help,
		LabelNames:  names,
		LabelValues: full,
	}, nil
}

func checkFinite(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return xerrors.Wrapf(ErrInvalidValue, "%s: %v", name, v)
	}
	return nil
}
