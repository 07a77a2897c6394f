package prom

import "strconv"

// MetricType 指标类型
type MetricType string

const (
	TypeCounter   MetricType = "counter"
	TypeGauge     MetricType = "gauge"
	TypeHistogram MetricType = "histogram"
)

// MetricTypes 后端收集时遍历类型的顺序
var MetricTypes = []MetricType{TypeHistogram, TypeGauge, TypeCounter}

// 直方图派生序列的名称后缀
const (
	SuffixBucket = "_bucket"
	SuffixCount  = "_count"
	SuffixSum    = "_sum"
)

// Sample 单条样本。
//
// LabelNames 只包含样本额外的标签名（如直方图桶的 "le"），
// 完整的标签名为 MetricFamilySamples.LabelNames + Sample.LabelNames，
// 与 LabelValues 一一对应。
type Sample struct {
	Name        string
	LabelNames  []string
	LabelValues []string
	Value       float64
}

// HasLabelNames 样本是否带有额外标签名
func (s Sample) HasLabelNames() bool {
	return len(s.LabelNames) > 0
}

// MetricFamilySamples 一个指标标识下的全部样本，每次 Collect 重新构建
type MetricFamilySamples struct {
	Name       string
	Help       string
	Type       MetricType
	LabelNames []string
	Buckets    []float64 // 仅直方图，不含 +Inf
	Samples    []Sample
}

// FormatBound 将桶边界格式化为 le 标签值，+Inf 格式化为 "+Inf"
func FormatBound(b float64) string {
	return strconv.FormatFloat(b, 'g', -1, 64)
}
