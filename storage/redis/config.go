package redis

import (
	"github.com/ceyewan/promstore/storage"
	"github.com/ceyewan/promstore/xerrors"
)

// Config Redis 后端配置
//
//	storage:
//	  prefix: "PROMETHEUS_"
//	  meta_codec: "json"
type Config struct {
	// Prefix 所有键的前缀，默认 "PROMETHEUS_"，与 PHP 客户端共享状态时需保持一致。
	// Redis Cluster 下需使用 hash tag（如 "{prom}"），使记录与注册集合落在同一 slot。
	Prefix string `mapstructure:"prefix"`

	// MetaCodec __meta 的编码：json（默认）或 msgpack
	MetaCodec string `mapstructure:"meta_codec"`
}

func (c *Config) setDefaults() {
	if c.Prefix == "" {
		c.Prefix = storage.DefaultPrefix
	}
	if c.MetaCodec == "" {
		c.MetaCodec = "json"
	}
}

func (c *Config) validate() error {
	c.setDefaults()
	if _, err := storage.NewSerializer(c.MetaCodec); err != nil {
		return xerrors.Wrap(err, "meta_codec")
	}
	return nil
}
