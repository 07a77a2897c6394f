package trace

// Config 链路追踪配置，Endpoint 为空时不启用导出
//
//	trace:
//	  endpoint: "localhost:4317"
//	  sampler: 1.0
//	  batcher: batch
//	  insecure: true
type Config struct {
	ServiceName string  `mapstructure:"service_name"`
	Endpoint    string  `mapstructure:"endpoint"` // OTLP gRPC 地址，如 Tempo/Jaeger
	Sampler     float64 `mapstructure:"sampler"`  // 采样率 [0,1]
	Batcher     string  `mapstructure:"batcher"`  // batch（默认）或 simple
	Insecure    bool    `mapstructure:"insecure"`
}

// DefaultConfig 返回默认配置
func DefaultConfig(serviceName string) *Config {
	return &Config{
		ServiceName: serviceName,
		Endpoint:    "localhost:4317",
		Sampler:     1.0,
		Batcher:     "batch",
		Insecure:    true,
	}
}

// Enabled 是否配置了导出地址
func (c *Config) Enabled() bool {
	return c != nil && c.Endpoint != ""
}
