package prom

import "github.com/ceyewan/promstore/clog"

// Option 注册表选项
type Option func(*options)

type options struct {
	logger        clog.Logger
	defaultLabels map[string]string
}

// WithLogger 设置日志记录器
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger.WithNamespace("registry")
		}
	}
}

// WithDefaultLabels 创建时即设置默认标签，等价于随后调用 ApplyDefaultLabels
func WithDefaultLabels(labels map[string]string) Option {
	return func(o *options) {
		o.defaultLabels = labels
	}
}

func applyOptions(opts []Option) *options {
	o := &options{logger: clog.Discard()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
