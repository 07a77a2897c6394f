package prom

import (
	"context"
	"math"
	"slices"
	"sort"

	"github.com/ceyewan/promstore/xerrors"
)

// DefaultBuckets 未指定桶时使用的默认边界，适用于以秒为单位的请求延迟
var DefaultBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.075, 0.1, 0.25, 0.5, 0.75, 1.0, 2.5, 5.0, 7.5, 10.0}

// LinearBuckets 生成 count 个从 start 开始、间隔 width 的边界
func LinearBuckets(start, width float64, count int) []float64 {
	if count < 1 {
		return nil
	}
	buckets := make([]float64, count)
	for i := range buckets {
		buckets[i] = start
		start += width
	}
	return buckets
}

// ExponentialBuckets 生成 count 个从 start 开始、每次乘以 factor 的边界
func ExponentialBuckets(start, factor float64, count int) []float64 {
	if count < 1 || start <= 0 || factor <= 1 {
		return nil
	}
	buckets := make([]float64, count)
	for i := range buckets {
		buckets[i] = start
		start *= factor
	}
	return buckets
}

// ValidateBuckets 桶必须非空、有限且严格递增
func ValidateBuckets(buckets []float64) error {
	if len(buckets) == 0 {
		return xerrors.Wrap(ErrInvalidBuckets, "at least one bucket is required")
	}
	for i, b := range buckets {
		if math.IsNaN(b) || math.IsInf(b, 0) {
			return xerrors.Wrapf(ErrInvalidBuckets, "bucket %d is %v", i, b)
		}
		if i > 0 && b <= buckets[i-1] {
			return xerrors.Wrapf(ErrInvalidBuckets, "buckets must be strictly increasing: %v after %v", b, buckets[i-1])
		}
	}
	return nil
}

// Histogram 按配置边界分桶统计观测值
type Histogram struct {
	*collector
	buckets []float64
}

// NewHistogram 创建一个不经过注册表的直方图，buckets 为 nil 时使用 DefaultBuckets
func NewHistogram(storage Storage, namespace, name, help string, labels []string, buckets []float64) (*Histogram, error) {
	c, err := newCollector(storage, TypeHistogram, namespace, name, help, labels)
	if err != nil {
		return nil, err
	}
	if buckets == nil {
		buckets = DefaultBuckets
	}
	if err := ValidateBuckets(buckets); err != nil {
		return nil, xerrors.Wrapf(err, "histogram %s", c.name)
	}
	return &Histogram{collector: c, buckets: slices.Clone(buckets)}, nil
}

// Buckets 返回配置的边界，不含 +Inf
func (h *Histogram) Buckets() []float64 {
	return slices.Clone(h.buckets)
}

// Observe 记录一次观测
func (h *Histogram) Observe(ctx context.Context, v float64, labelValues ...string) error {
	if err := checkFinite(h.name, v); err != nil {
		return err
	}
	s, err := h.series(labelValues)
	if err != nil {
		return err
	}
	return h.storage.UpdateHistogram(ctx, HistogramUpdate{
		Series:  s,
		Value:   v,
		Bucket:  h.selectBucket(v),
		Buckets: h.buckets,
	})
}

// selectBucket 返回不小于 v 的最小边界，超出全部边界时返回 +Inf
func (h *Histogram) selectBucket(v float64) float64 {
	i := sort.SearchFloat64s(h.buckets, v)
	if i == len(h.buckets) {
		return math.Inf(1)
	}
	return h.buckets[i]
}
