// Package telemetry 为 promstore 自身的后端操作提供基于 OpenTelemetry 的指标。
//
// 业务指标写入共享后端，而这里记录的是库自身的行为（操作次数、耗时、失败），
// 通过 OTel 的 Prometheus exporter 注册到独立的 prometheus.Registry 上，
// 调用方可以用 Gatherer 取出并与业务指标一同渲染。
//
// 未启用时返回 noop 实现，所有记录都是空操作。
package telemetry

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"
)

// Config 自监控配置
//
//	telemetry:
//	  enabled: true
//	  service_name: "promstore"
//	  version: "v0.1.0"
type Config struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
	Version     string `mapstructure:"version"`
}

// Label 指标标签
type Label struct {
	Key   string
	Value string
}

// L 构造 Label
func L(key, value string) Label {
	return Label{Key: key, Value: value}
}

// Counter 计数器
type Counter interface {
	Inc(ctx context.Context, labels ...Label)
	Add(ctx context.Context, val int64, labels ...Label)
}

// Histogram 直方图
type Histogram interface {
	Record(ctx context.Context, val float64, labels ...Label)
}

// Meter 指标工厂
type Meter interface {
	Counter(name, desc string) (Counter, error)
	Histogram(name, desc, unit string) (Histogram, error)
	// Gatherer 返回自监控指标所在的注册表，未启用时返回空注册表
	Gatherer() prometheus.Gatherer
	Shutdown(ctx context.Context) error
}

// New 创建 Meter，cfg 为 nil 或未启用时返回 noop 实现
func New(cfg *Config) (Meter, error) {
	if cfg == nil || !cfg.Enabled {
		return Noop(), nil
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "promstore"
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.Version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	reg := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)

	return &meterImpl{
		meter:    mp.Meter("github.com/ceyewan/promstore"),
		provider: mp,
		registry: reg,
	}, nil
}

type meterImpl struct {
	meter    metric.Meter
	provider *sdkmetric.MeterProvider
	registry *prometheus.Registry
}

func (m *meterImpl) Counter(name, desc string) (Counter, error) {
	c, err := m.meter.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		return nil, err
	}
	return &counterImpl{c: c}, nil
}

func (m *meterImpl) Histogram(name, desc, unit string) (Histogram, error) {
	opts := []metric.Float64HistogramOption{metric.WithDescription(desc)}
	if unit != "" {
		opts = append(opts, metric.WithUnit(unit))
	}
	h, err := m.meter.Float64Histogram(name, opts...)
	if err != nil {
		return nil, err
	}
	return &histogramImpl{h: h}, nil
}

func (m *meterImpl) Gatherer() prometheus.Gatherer {
	return m.registry
}

func (m *meterImpl) Shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}

type counterImpl struct {
	c metric.Int64Counter
}

func (c *counterImpl) Inc(ctx context.Context, labels ...Label) {
	c.c.Add(ctx, 1, metric.WithAttributes(toAttributes(labels)...))
}

func (c *counterImpl) Add(ctx context.Context, val int64, labels ...Label) {
	c.c.Add(ctx, val, metric.WithAttributes(toAttributes(labels)...))
}

type histogramImpl struct {
	h metric.Float64Histogram
}

func (h *histogramImpl) Record(ctx context.Context, val float64, labels ...Label) {
	h.h.Record(ctx, val, metric.WithAttributes(toAttributes(labels)...))
}

func toAttributes(labels []Label) []attribute.KeyValue {
	if len(labels) == 0 {
		return nil
	}
	attrs := make([]attribute.KeyValue, len(labels))
	for i, l := range labels {
		attrs[i] = attribute.String(l.Key, l.Value)
	}
	return attrs
}
