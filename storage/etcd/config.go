package etcd

import (
	"github.com/ceyewan/promstore/storage"
	"github.com/ceyewan/promstore/xerrors"
)

// DefaultMaxCASRetries 默认不限制冲突重试次数，由调用方的 ctx 决定截止时间
const DefaultMaxCASRetries = 0

// Config Etcd 后端配置
//
//	storage:
//	  driver: etcd
//	  prefix: "PROMETHEUS_"
//	  meta_codec: "json"
//	  max_cas_retries: 0
type Config struct {
	Prefix        string `mapstructure:"prefix"`          // 键前缀，默认 "PROMETHEUS_"
	MetaCodec     string `mapstructure:"meta_codec"`      // 记录编码：json（默认）或 msgpack
	MaxCASRetries int    `mapstructure:"max_cas_retries"` // 冲突重试次数上限，0 表示重试到 ctx 结束
}

func (c *Config) setDefaults() {
	if c.Prefix == "" {
		c.Prefix = storage.DefaultPrefix
	}
	if c.MetaCodec == "" {
		c.MetaCodec = "json"
	}
	if c.MaxCASRetries < 0 {
		c.MaxCASRetries = DefaultMaxCASRetries
	}
}

func (c *Config) validate() error {
	c.setDefaults()
	if _, err := storage.NewSerializer(c.MetaCodec); err != nil {
		return xerrors.Wrap(err, "meta_codec")
	}
	return nil
}
