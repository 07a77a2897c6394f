// Package connector 管理 promstore 后端使用的 Redis 与 Etcd 连接。
//
// 连接器拥有底层客户端的生命周期：NewXXX 只创建客户端，Connect 验证连通性，
// Close 释放连接。存储后端只借用客户端，不负责关闭。
//
// 基本使用：
//
//	conn, err := connector.NewRedis(&connector.RedisConfig{Addr: "127.0.0.1:6379"},
//		connector.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	defer conn.Close()
//
//	if err := conn.Connect(ctx); err != nil {
//		return err
//	}
//	store, err := redis.New(conn, &redis.Config{Prefix: "PROMETHEUS_"})
package connector

import (
	"context"

	"github.com/redis/go-redis/v9"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// Connector 所有连接器的通用行为，方法均为并发安全
type Connector interface {
	// Connect 验证连通性，可重复调用
	Connect(ctx context.Context) error

	// Close 关闭连接并释放资源
	Close() error

	// HealthCheck 发送一次探测请求并更新健康状态缓存
	HealthCheck(ctx context.Context) error

	// IsHealthy 返回最后一次 Connect/HealthCheck 的结果，不阻塞
	IsHealthy() bool

	// Name 返回连接实例名称，用于日志与指标
	Name() string
}

// TypedConnector 提供类型安全的客户端访问
type TypedConnector[T any] interface {
	Connector
	GetClient() T
}

// RedisConnector Redis 连接器
type RedisConnector interface {
	TypedConnector[*redis.Client]
}

// EtcdConnector Etcd 连接器
type EtcdConnector interface {
	TypedConnector[*clientv3.Client]
}
