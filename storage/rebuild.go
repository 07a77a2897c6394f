package storage

import (
	"math"
	"slices"
	"strings"

	"github.com/cespare/xxhash/v2"
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/ceyewan/promstore/prom"
	"github.com/ceyewan/promstore/xerrors"
)

// ErrMissingMeta 记录中没有 __meta 字段
var ErrMissingMeta = xerrors.New("record has no " + MetaField + " field")

// Rebuild 从一个聚合记录的全部原始字段重建指标族。
// fields 包含 __meta，不会被修改。
func Rebuild(fields map[string]string) (prom.MetricFamilySamples, error) {
	rawMeta, ok := fields[MetaField]
	if !ok {
		return prom.MetricFamilySamples{}, ErrMissingMeta
	}
	meta, err := DecodeMeta(rawMeta)
	if err != nil {
		return prom.MetricFamilySamples{}, xerrors.Wrap(err, "decode meta")
	}

	family := prom.MetricFamilySamples{
		Name:       meta.Name,
		Help:       meta.Help,
		Type:       meta.Type,
		LabelNames: meta.LabelNames,
	}
	switch meta.Type {
	case prom.TypeHistogram:
		family.Buckets = meta.Buckets
		family.Samples, err = histogramSamples(meta, fields)
	case prom.TypeCounter, prom.TypeGauge:
		family.Samples, err = valueSamples(meta, fields)
	default:
		err = xerrors.Wrapf(ErrMalformedField, "unknown metric type %q", meta.Type)
	}
	if err != nil {
		return prom.MetricFamilySamples{}, err
	}
	return family, nil
}

type keyedSample struct {
	sortKey string
	field   string
	sample  prom.Sample
}

// valueSamples 每个字段一个样本，按拼接后的标签值排序，相同时按原始字段键
func valueSamples(meta Meta, fields map[string]string) ([]prom.Sample, error) {
	keyed := make([]keyedSample, 0, len(fields))
	for field, raw := range fields {
		if field == MetaField {
			continue
		}
		values, err := DecodeLabelValues(field)
		if err != nil {
			return nil, err
		}
		v, err := ParseValue(field, raw)
		if err != nil {
			return nil, err
		}
		keyed = append(keyed, keyedSample{
			sortKey: strings.Join(values, ""),
			field:   field,
			sample:  prom.Sample{Name: meta.Name, LabelNames: []string{}, LabelValues: values, Value: v},
		})
	}

	slices.SortFunc(keyed, func(a, b keyedSample) int {
		if c := strings.Compare(a.sortKey, b.sortKey); c != 0 {
			return c
		}
		return strings.Compare(a.field, b.field)
	})

	samples := make([]prom.Sample, len(keyed))
	for i, k := range keyed {
		samples[i] = k.sample
	}
	return samples, nil
}

// histogramSeries 一个标签值组合下的桶计数与累计和
type histogramSeries struct {
	values []string
	counts map[float64]float64
	sum    float64
}

// seriesIndex 按结构相等对标签值组合去重。
// 同一组合可能以不同的原始编码出现（转义方式、数字写法），解码后视为同一序列。
type seriesIndex struct {
	seen   mapset.Set[uint64]
	byHash map[uint64][]*histogramSeries
	series []*histogramSeries
}

func newSeriesIndex() *seriesIndex {
	return &seriesIndex{
		seen:   mapset.NewThreadUnsafeSet[uint64](),
		byHash: make(map[uint64][]*histogramSeries),
	}
}

func hashValues(values []string) uint64 {
	d := xxhash.New()
	for _, v := range values {
		_, _ = d.WriteString(v)
		_, _ = d.Write([]byte{0xff})
	}
	return d.Sum64()
}

// get 返回标签值组合对应的序列，create 为 false 时不存在返回 nil
func (idx *seriesIndex) get(values []string, create bool) *histogramSeries {
	h := hashValues(values)
	if idx.seen.Contains(h) {
		for _, s := range idx.byHash[h] {
			if slices.Equal(s.values, values) {
				return s
			}
		}
	}
	if !create {
		return nil
	}
	s := &histogramSeries{values: values, counts: make(map[float64]float64)}
	idx.seen.Add(h)
	idx.byHash[h] = append(idx.byHash[h], s)
	idx.series = append(idx.series, s)
	return s
}

func histogramSamples(meta Meta, fields map[string]string) ([]prom.Sample, error) {
	idx := newSeriesIndex()
	var sums []BucketField
	var sumValues []float64

	for field, raw := range fields {
		if field == MetaField {
			continue
		}
		bf, err := DecodeHistogramField(field)
		if err != nil {
			return nil, err
		}
		v, err := ParseValue(field, raw)
		if err != nil {
			return nil, err
		}
		// 序列集合只由桶字段决定，sum 字段总是与第一个桶一同创建
		if bf.Sum {
			sums = append(sums, bf)
			sumValues = append(sumValues, v)
			continue
		}
		s := idx.get(bf.LabelValues, true)
		s.counts[bf.Bucket] += v
	}
	for i, bf := range sums {
		if s := idx.get(bf.LabelValues, false); s != nil {
			s.sum += sumValues[i]
		}
	}

	slices.SortFunc(idx.series, func(a, b *histogramSeries) int {
		return slices.Compare(a.values, b.values)
	})

	bounds := append(slices.Clone(meta.Buckets), math.Inf(1))
	samples := make([]prom.Sample, 0, len(idx.series)*(len(bounds)+2))
	for _, s := range idx.series {
		var total float64
		for _, b := range bounds {
			// 缺失的桶表示该区间没有新增观测，累计值沿用上一个桶
			total += s.counts[b]
			samples = append(samples, prom.Sample{
				Name:        meta.Name + prom.SuffixBucket,
				LabelNames:  []string{"le"},
				LabelValues: append(slices.Clone(s.values), prom.FormatBound(b)),
				Value:       total,
			})
		}
		samples = append(samples,
			prom.Sample{
				Name:        meta.Name + prom.SuffixCount,
				LabelNames:  []string{},
				LabelValues: slices.Clone(s.values),
				Value:       total,
			},
			prom.Sample{
				Name:        meta.Name + prom.SuffixSum,
				LabelNames:  []string{},
				LabelValues: slices.Clone(s.values),
				Value:       s.sum,
			},
		)
	}
	return samples, nil
}
