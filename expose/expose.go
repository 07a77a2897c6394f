// Package expose 将重建出的样本转换为 client_model 指标族，
// 并以 Prometheus 文本格式渲染，或作为 prometheus.Gatherer 接入现有的注册表。
package expose

import (
	"context"
	"io"
	"math"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"

	"github.com/ceyewan/promstore/prom"
	"github.com/ceyewan/promstore/xerrors"
)

// ErrMalformedSample 样本无法转换，例如直方图缺少 le 标签
var ErrMalformedSample = xerrors.New("expose: malformed sample")

// Source 可提供指标族的对象，*prom.Registry 满足该接口
type Source interface {
	GetMetricFamilySamples(ctx context.Context) ([]prom.MetricFamilySamples, error)
}

// ToProto 将指标族转换为 client_model 表示，顺序与输入一致
func ToProto(families []prom.MetricFamilySamples) ([]*dto.MetricFamily, error) {
	out := make([]*dto.MetricFamily, 0, len(families))
	for _, f := range families {
		mf, err := familyToProto(f)
		if err != nil {
			return nil, xerrors.Wrapf(err, "metric %s", f.Name)
		}
		out = append(out, mf)
	}
	return out, nil
}

func familyToProto(f prom.MetricFamilySamples) (*dto.MetricFamily, error) {
	mf := &dto.MetricFamily{Name: proto.String(f.Name)}
	if f.Help != "" {
		mf.Help = proto.String(f.Help)
	}

	var err error
	switch f.Type {
	case prom.TypeCounter:
		mf.Type = dto.MetricType_COUNTER.Enum()
		mf.Metric, err = scalarMetrics(f, func(m *dto.Metric, v float64) { m.Counter = &dto.Counter{Value: proto.Float64(v)} })
	case prom.TypeGauge:
		mf.Type = dto.MetricType_GAUGE.Enum()
		mf.Metric, err = scalarMetrics(f, func(m *dto.Metric, v float64) { m.Gauge = &dto.Gauge{Value: proto.Float64(v)} })
	case prom.TypeHistogram:
		mf.Type = dto.MetricType_HISTOGRAM.Enum()
		mf.Metric, err = histogramMetrics(f)
	default:
		mf.Type = dto.MetricType_UNTYPED.Enum()
		mf.Metric, err = scalarMetrics(f, func(m *dto.Metric, v float64) { m.Untyped = &dto.Untyped{Value: proto.Float64(v)} })
	}
	if err != nil {
		return nil, err
	}
	return mf, nil
}

// scalarMetrics 每个样本对应一个指标，set 写入具体类型的值
func scalarMetrics(f prom.MetricFamilySamples, set func(*dto.Metric, float64)) ([]*dto.Metric, error) {
	out := make([]*dto.Metric, 0, len(f.Samples))
	for _, s := range f.Samples {
		labels, err := labelPairs(f, s)
		if err != nil {
			return nil, err
		}
		m := &dto.Metric{Label: labels}
		set(m, s.Value)
		out = append(out, m)
	}
	return out, nil
}

// histogramMetrics 按标签值聚合 _bucket/_count/_sum 样本，+Inf 桶由 SampleCount 表达
func histogramMetrics(f prom.MetricFamilySamples) ([]*dto.Metric, error) {
	var (
		order  []string
		series = make(map[string]*dto.Metric)
	)
	get := func(values []string) (*dto.Histogram, error) {
		k := strings.Join(values, "\x00")
		m, ok := series[k]
		if !ok {
			labels, err := labelPairs(f, prom.Sample{LabelValues: values})
			if err != nil {
				return nil, err
			}
			m = &dto.Metric{Label: labels, Histogram: &dto.Histogram{}}
			series[k] = m
			order = append(order, k)
		}
		return m.Histogram, nil
	}

	n := len(f.LabelNames)
	for _, s := range f.Samples {
		switch s.Name {
		case f.Name + prom.SuffixBucket:
			if len(s.LabelValues) != n+1 {
				return nil, xerrors.Wrapf(ErrMalformedSample, "bucket sample has %d label values", len(s.LabelValues))
			}
			bound, err := parseBound(s.LabelValues[n])
			if err != nil {
				return nil, err
			}
			if math.IsInf(bound, 1) {
				continue
			}
			h, err := get(s.LabelValues[:n])
			if err != nil {
				return nil, err
			}
			h.Bucket = append(h.Bucket, &dto.Bucket{
				UpperBound:      proto.Float64(bound),
				CumulativeCount: proto.Uint64(uint64(s.Value)),
			})
		case f.Name + prom.SuffixCount:
			h, err := get(s.LabelValues)
			if err != nil {
				return nil, err
			}
			h.SampleCount = proto.Uint64(uint64(s.Value))
		case f.Name + prom.SuffixSum:
			h, err := get(s.LabelValues)
			if err != nil {
				return nil, err
			}
			h.SampleSum = proto.Float64(s.Value)
		default:
			return nil, xerrors.Wrapf(ErrMalformedSample, "unexpected sample %s", s.Name)
		}
	}

	out := make([]*dto.Metric, 0, len(order))
	for _, k := range order {
		out = append(out, series[k])
	}
	return out, nil
}

func parseBound(le string) (float64, error) {
	if le == "+Inf" {
		return math.Inf(1), nil
	}
	v, err := strconv.ParseFloat(le, 64)
	if err != nil {
		return 0, xerrors.Wrapf(ErrMalformedSample, "le %q", le)
	}
	return v, nil
}

// labelPairs 按标签名排序生成标签对，标签值必须与族及样本的标签名一一对应
func labelPairs(f prom.MetricFamilySamples, s prom.Sample) ([]*dto.LabelPair, error) {
	names := f.LabelNames
	if s.HasLabelNames() {
		names = append(slices.Clone(f.LabelNames), s.LabelNames...)
	}
	if len(names) != len(s.LabelValues) {
		return nil, xerrors.Wrapf(ErrMalformedSample, "%s has %d label values for labels %v", s.Name, len(s.LabelValues), names)
	}
	pairs := make([]*dto.LabelPair, 0, len(names))
	for i, name := range names {
		pairs = append(pairs, &dto.LabelPair{Name: proto.String(name), Value: proto.String(s.LabelValues[i])})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].GetName() < pairs[j].GetName() })
	return pairs, nil
}

// Render 以文本格式写出指标族
func Render(w io.Writer, families []prom.MetricFamilySamples) error {
	mfs, err := ToProto(families)
	if err != nil {
		return err
	}
	return encode(w, mfs)
}

// RenderGathered 以文本格式写出任意 Gatherer 的结果
func RenderGathered(w io.Writer, g prometheus.Gatherer) error {
	mfs, err := g.Gather()
	if err != nil {
		return xerrors.Wrap(err, "gather")
	}
	return encode(w, mfs)
}

func encode(w io.Writer, mfs []*dto.MetricFamily) error {
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range mfs {
		if err := enc.Encode(mf); err != nil {
			return xerrors.Wrapf(err, "encode %s", mf.GetName())
		}
	}
	return nil
}

// Gatherer 将 Source 适配为 prometheus.Gatherer。
// Gather 没有上下文参数，每次收集使用 timeout 作为超时，timeout<=0 时不设超时。
func Gatherer(src Source, timeout time.Duration) prometheus.Gatherer {
	return prometheus.GathererFunc(func() ([]*dto.MetricFamily, error) {
		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		families, err := src.GetMetricFamilySamples(ctx)
		if err != nil {
			return nil, err
		}
		return ToProto(families)
	})
}
