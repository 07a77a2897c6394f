package prom

import "context"

// Command 更新命令
type Command int

const (
	// CommandIncrementInteger 整数增量（Redis HINCRBY）
	CommandIncrementInteger Command = iota + 1
	// CommandIncrementFloat 浮点增量（Redis HINCRBYFLOAT）
	CommandIncrementFloat
	// CommandSet 绝对覆盖（Redis HSET）
	CommandSet
)

func (c Command) String() string {
	switch c {
	case CommandIncrementInteger:
		return "increment_integer"
	case CommandIncrementFloat:
		return "increment_float"
	case CommandSet:
		return "set"
	default:
		return "unknown"
	}
}

// Series 所有更新共有的字段：指标元数据与本次更新的标签值
type Series struct {
	Name        string
	Help        string
	LabelNames  []string
	LabelValues []string
}

// CounterUpdate 计数器更新
type CounterUpdate struct {
	Series
	Value   float64
	Command Command
}

// GaugeUpdate 仪表盘更新
type GaugeUpdate struct {
	Series
	Value   float64
	Command Command
}

// HistogramUpdate 直方图观测值。
//
// Bucket 为收集器选中的桶边界（math.Inf(1) 表示 +Inf），
// Buckets 为配置的全部边界，写入元数据供收集时重建。
type HistogramUpdate struct {
	Series
	Value   float64
	Bucket  float64
	Buckets []float64
}

// Storage 收集器依赖的后端契约。
//
// 每次更新在进程之间都是原子的：同一标签值组合上的并发更新会被串行化，
// 序列首次写入时的元数据与类型注册只发生一次。
// Collect 可以与更新并发执行，保证单个序列的快照一致，不保证跨序列一致。
type Storage interface {
	UpdateCounter(ctx context.Context, u CounterUpdate) error
	UpdateGauge(ctx context.Context, u GaugeUpdate) error
	UpdateHistogram(ctx context.Context, u HistogramUpdate) error
	Collect(ctx context.Context) ([]MetricFamilySamples, error)
}

// Flusher 可以清空全部已存储状态的后端
type Flusher interface {
	Flush(ctx context.Context) error
}
