package connector

import (
	"github.com/ceyewan/promstore/clog"
	"github.com/ceyewan/promstore/internal/telemetry"
)

type options struct {
	logger clog.Logger
	meter  telemetry.Meter
}

// Option 配置连接器的选项
type Option func(*options)

// WithLogger 设置日志记录器
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger.WithNamespace("connector")
		}
	}
}

// WithMeter 设置指标收集器，记录连接尝试次数
func WithMeter(meter telemetry.Meter) Option {
	return func(o *options) {
		o.meter = meter
	}
}

func applyOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = clog.Discard()
	}
	if o.meter == nil {
		o.meter = telemetry.Noop()
	}
	return o
}

// MetricConnections 连接尝试次数
const MetricConnections = "promstore_connector_connections_total"

func connectionCounter(meter telemetry.Meter) telemetry.Counter {
	c, err := meter.Counter(MetricConnections, "Number of connection attempts")
	if err != nil {
		c, _ = telemetry.Noop().Counter(MetricConnections, "")
	}
	return c
}
