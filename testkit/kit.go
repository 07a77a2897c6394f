// Package testkit 为 promstore 的测试提供通用依赖：日志、上下文、唯一 ID，
// 以及基于 testcontainers 的 Redis/Etcd 连接器。
//
// 容器相关的函数会启动 Docker 容器，调用方应在 testing.Short() 时跳过。
package testkit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ceyewan/promstore/clog"
	"github.com/ceyewan/promstore/internal/telemetry"
)

// Kit 包含通用的测试依赖
type Kit struct {
	Ctx    context.Context
	Logger clog.Logger
	Meter  telemetry.Meter
}

// NewKit 返回一个包含默认依赖的测试工具包
func NewKit(t *testing.T) *Kit {
	t.Helper()
	meter, err := telemetry.New(&telemetry.Config{Enabled: true, ServiceName: "promstore-test"})
	if err != nil {
		meter = telemetry.Noop()
	}
	t.Cleanup(func() { _ = meter.Shutdown(context.Background()) })
	return &Kit{
		Ctx:    context.Background(),
		Logger: NewLogger(),
		Meter:  meter,
	}
}

// NewLogger 返回一个用于测试的 logger，开发环境格式输出
func NewLogger() clog.Logger {
	logger, err := clog.New(clog.NewDevDefaultConfig("promstore"))
	if err != nil {
		return clog.Discard()
	}
	return logger
}

// NewContext 返回一个带有超时的测试上下文，随测试结束取消
func NewContext(t *testing.T, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// NewID 返回一个唯一的测试 ID (UUID v4 前 8 位)
// 用于生成唯一的键前缀，避免测试间数据冲突
func NewID() string {
	return uuid.New().String()[0:8]
}

// NewPrefix 返回一个唯一的存储键前缀
func NewPrefix() string {
	return "PROMSTORE_TEST_" + NewID() + "_"
}
