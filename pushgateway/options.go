package pushgateway

import (
	"net/http"

	"github.com/ceyewan/promstore/clog"
	"github.com/ceyewan/promstore/internal/telemetry"
)

// Option 客户端选项
type Option func(*options)

type options struct {
	logger     clog.Logger
	meter      telemetry.Meter
	httpClient *http.Client
}

// WithLogger 设置日志记录器
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger.WithNamespace("pushgateway")
		}
	}
}

// WithMeter 设置自监控指标
func WithMeter(meter telemetry.Meter) Option {
	return func(o *options) {
		o.meter = meter
	}
}

// WithHTTPClient 使用自定义 HTTP 客户端，此时忽略配置中的超时
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}
