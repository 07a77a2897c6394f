package redis

import (
	"github.com/ceyewan/promstore/clog"
	"github.com/ceyewan/promstore/internal/telemetry"
)

// Option Redis 后端选项
type Option func(*options)

type options struct {
	logger clog.Logger
	meter  telemetry.Meter
}

// WithLogger 设置日志记录器
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger.WithNamespace("storage", "redis")
		}
	}
}

// WithMeter 设置自监控指标
func WithMeter(meter telemetry.Meter) Option {
	return func(o *options) {
		o.meter = meter
	}
}
