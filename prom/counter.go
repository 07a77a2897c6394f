package prom

import (
	"context"

	"github.com/ceyewan/promstore/xerrors"
)

// Counter 只增不减的累计值
type Counter struct {
	*collector
}

// NewCounter 创建一个不经过注册表的计数器，通常通过 Registry.RegisterCounter 创建
func NewCounter(storage Storage, namespace, name, help string, labels []string) (*Counter, error) {
	c, err := newCollector(storage, TypeCounter, namespace, name, help, labels)
	if err != nil {
		return nil, err
	}
	return &Counter{collector: c}, nil
}

// Inc 计数器加 1
func (c *Counter) Inc(ctx context.Context, labelValues ...string) error {
	return c.IncBy(ctx, 1, labelValues...)
}

// IncBy 计数器增加 delta，delta 不能为负数
func (c *Counter) IncBy(ctx context.Context, delta float64, labelValues ...string) error {
	if err := checkFinite(c.name, delta); err != nil {
		return err
	}
	if delta < 0 {
		return xerrors.Wrapf(ErrNegativeIncrement, "%s: %v", c.name, delta)
	}
	s, err := c.series(labelValues)
	if err != nil {
		return err
	}
	return c.storage.UpdateCounter(ctx, CounterUpdate{
		Series:  s,
		Value:   delta,
		Command: CommandIncrementFloat,
	})
}
