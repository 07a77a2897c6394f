package pushgateway

import (
	"time"

	"github.com/ceyewan/promstore/xerrors"
)

// Config Pushgateway 客户端配置
//
//	pushgateway:
//	  addr: "localhost:9091"
//	  timeout: 20s
//	  connect_timeout: 10s
type Config struct {
	Addr           string        `mapstructure:"addr"`            // host:port，必填
	Timeout        time.Duration `mapstructure:"timeout"`         // 整个请求的超时，默认 20s
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"` // 建立连接的超时，默认 10s
}

func (c *Config) setDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 20 * time.Second
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
}

func (c *Config) validate() error {
	c.setDefaults()
	if c.Addr == "" {
		return xerrors.New("addr is required")
	}
	return nil
}
