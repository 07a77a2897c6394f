// Package config 提供基于 Viper 的配置加载。
//
// 来源优先级：环境变量 > .env > 环境特定配置（<name>.<env>.yaml）> 基础配置 > 默认值。
// 环境变量以 EnvPrefix 为前缀，"." 替换为 "_"，如 PROMSTORE_REDIS_ADDR。
// 配置文件变化通过 fsnotify 推送给 Watch 的订阅者。
//
//	loader := config.MustLoad(ctx, &config.Config{Name: "promstore"})
//	var cfg AppConfig
//	if err := loader.Unmarshal(&cfg); err != nil {
//		return err
//	}
package config

import (
	"context"
	"time"
)

// Loader 定义配置加载器的核心行为
// 职责：加载、解析和监听配置变化
type Loader interface {
	// Load 加载配置并初始化内部状态
	Load(ctx context.Context) error

	// Get 获取原始配置值
	Get(key string) any

	// SetDefault 设置默认值，需在 Load 之前调用才能参与环境变量绑定
	SetDefault(key string, value any)

	// Unmarshal 将整个配置反序列化到结构体
	Unmarshal(v any) error

	// UnmarshalKey 将指定 Key 的配置反序列化到结构体
	UnmarshalKey(key string, v any) error

	// Watch 监听配置变化，通过 context 取消监听
	Watch(ctx context.Context, key string) (<-chan Event, error)

	// Validate 验证当前配置的有效性
	Validate() error
}

// Event 配置变更事件
type Event struct {
	Key       string // 配置 key
	Value     any    // 新值
	OldValue  any    // 旧值
	Source    string // "file" | "env" | "remote"
	Timestamp time.Time
}
