package connector

import (
	"context"
	"sync/atomic"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"github.com/redis/go-redis/v9/maintnotifications"

	"github.com/ceyewan/promstore/clog"
	"github.com/ceyewan/promstore/internal/telemetry"
	"github.com/ceyewan/promstore/xerrors"
)

type redisConnector struct {
	cfg         *RedisConfig
	client      *redis.Client
	logger      clog.Logger
	connections telemetry.Counter
	healthy     atomic.Bool
	closed      atomic.Bool
}

// NewRedis 创建 Redis 连接器，不会立即建立连接
func NewRedis(cfg *RedisConfig, opts ...Option) (RedisConnector, error) {
	if cfg == nil {
		return nil, xerrors.Wrap(ErrConfig, "redis config is nil")
	}
	if err := cfg.validate(); err != nil {
		return nil, xerrors.Mark(xerrors.Wrapf(err, "invalid redis config"), ErrConfig)
	}

	opt := applyOptions(opts)
	c := &redisConnector{
		cfg:         cfg,
		logger:      opt.logger.With(clog.String("connector", "redis"), clog.String("name", cfg.Name)),
		connections: connectionCounter(opt.meter),
	}

	c.client = redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		MaxRetries:   cfg.MaxRetries,
		MaintNotificationsConfig: &maintnotifications.Config{
			Mode: maintnotifications.ModeDisabled,
		},
	})

	if cfg.Tracing {
		if err := redisotel.InstrumentTracing(c.client); err != nil {
			_ = c.client.Close()
			return nil, xerrors.Wrap(err, "instrument redis tracing")
		}
		if err := redisotel.InstrumentMetrics(c.client); err != nil {
			_ = c.client.Close()
			return nil, xerrors.Wrap(err, "instrument redis metrics")
		}
	}

	return c, nil
}

// Connect 通过 PING 验证连通性
func (c *redisConnector) Connect(ctx context.Context) error {
	c.logger.Info("attempting to connect to redis", clog.String("addr", c.cfg.Addr))

	if err := c.client.Ping(ctx).Err(); err != nil {
		c.connections.Inc(ctx, telemetry.L("connector", "redis"), telemetry.L(telemetry.LabelOutcome, telemetry.OutcomeError))
		c.logger.Error("failed to connect to redis", clog.Error(err), clog.String("addr", c.cfg.Addr))
		return xerrors.Mark(xerrors.Wrapf(err, "redis connector[%s]: connection failed", c.cfg.Name), ErrConnection)
	}

	c.connections.Inc(ctx, telemetry.L("connector", "redis"), telemetry.L(telemetry.LabelOutcome, telemetry.OutcomeSuccess))
	c.healthy.Store(true)
	c.logger.Info("successfully connected to redis", clog.String("addr", c.cfg.Addr))
	return nil
}

// Close 关闭连接，重复调用返回 nil
func (c *redisConnector) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.healthy.Store(false)
	c.logger.Info("closing redis connection", clog.String("addr", c.cfg.Addr))

	if err := c.client.Close(); err != nil {
		c.logger.Error("failed to close redis connection", clog.Error(err))
		return err
	}
	return nil
}

// HealthCheck 检查连接健康状态
func (c *redisConnector) HealthCheck(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		c.healthy.Store(false)
		c.logger.Warn("redis health check failed", clog.Error(err))
		return xerrors.Mark(xerrors.Wrapf(err, "redis connector[%s]", c.cfg.Name), ErrHealthCheck)
	}

	c.healthy.Store(true)
	return nil
}

// IsHealthy 返回缓存的健康状态
func (c *redisConnector) IsHealthy() bool {
	return c.healthy.Load()
}

// Name 返回连接器名称
func (c *redisConnector) Name() string {
	return c.cfg.Name
}

// GetClient 返回 Redis 客户端
func (c *redisConnector) GetClient() *redis.Client {
	return c.client
}
