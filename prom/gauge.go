package prom

import "context"

// Gauge 可以任意增减的瞬时值
type Gauge struct {
	*collector
}

// NewGauge 创建一个不经过注册表的仪表盘，通常通过 Registry.RegisterGauge 创建
func NewGauge(storage Storage, namespace, name, help string, labels []string) (*Gauge, error) {
	c, err := newCollector(storage, TypeGauge, namespace, name, help, labels)
	if err != nil {
		return nil, err
	}
	return &Gauge{collector: c}, nil
}

// Set 覆盖为 v，与之前的增减无关
func (g *Gauge) Set(ctx context.Context, v float64, labelValues ...string) error {
	return g.update(ctx, CommandSet, v, labelValues)
}

// Inc 加 1
func (g *Gauge) Inc(ctx context.Context, labelValues ...string) error {
	return g.IncBy(ctx, 1, labelValues...)
}

// IncBy 增加 delta，delta 可以为负
func (g *Gauge) IncBy(ctx context.Context, delta float64, labelValues ...string) error {
	return g.update(ctx, CommandIncrementFloat, delta, labelValues)
}

// Dec 减 1
func (g *Gauge) Dec(ctx context.Context, labelValues ...string) error {
	return g.DecBy(ctx, 1, labelValues...)
}

// DecBy 减少 delta
func (g *Gauge) DecBy(ctx context.Context, delta float64, labelValues ...string) error {
	return g.IncBy(ctx, -delta, labelValues...)
}

func (g *Gauge) update(ctx context.Context, cmd Command, v float64, labelValues []string) error {
	if err := checkFinite(g.name, v); err != nil {
		return err
	}
	s, err := g.series(labelValues)
	if err != nil {
		return err
	}
	return g.storage.UpdateGauge(ctx, GaugeUpdate{
		Series:  s,
		Value:   v,
		Command: cmd,
	})
}
