package connector

import (
	"context"
	"sync/atomic"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/ceyewan/promstore/clog"
	"github.com/ceyewan/promstore/internal/telemetry"
	"github.com/ceyewan/promstore/xerrors"
)

// healthCheckKey 探测使用的 key，不存在也视为连通
const healthCheckKey = "promstore-health-check"

type etcdConnector struct {
	cfg         *EtcdConfig
	client      *clientv3.Client
	logger      clog.Logger
	connections telemetry.Counter
	healthy     atomic.Bool
	closed      atomic.Bool
}

// NewEtcd 创建 Etcd 连接器。clientv3 的拨号是异步的，这里不会阻塞等待连接。
func NewEtcd(cfg *EtcdConfig, opts ...Option) (EtcdConnector, error) {
	if cfg == nil {
		return nil, xerrors.Wrap(ErrConfig, "etcd config is nil")
	}
	if err := cfg.validate(); err != nil {
		return nil, xerrors.Mark(xerrors.Wrapf(err, "invalid etcd config"), ErrConfig)
	}

	opt := applyOptions(opts)
	c := &etcdConnector{
		cfg:         cfg,
		logger:      opt.logger.With(clog.String("connector", "etcd"), clog.String("name", cfg.Name)),
		connections: connectionCounter(opt.meter),
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:            cfg.Endpoints,
		DialTimeout:          cfg.DialTimeout,
		DialKeepAliveTime:    cfg.KeepAliveTime,
		DialKeepAliveTimeout: cfg.KeepAliveTimeout,
		Username:             cfg.Username,
		Password:             cfg.Password,
	})
	if err != nil {
		return nil, xerrors.Mark(xerrors.Wrapf(err, "etcd connector[%s]: create client", cfg.Name), ErrConnection)
	}

	c.client = client
	return c, nil
}

// Connect 读取一个探测 key 验证连通性
func (c *etcdConnector) Connect(ctx context.Context) error {
	c.logger.Info("attempting to connect to etcd", clog.Strings("endpoints", c.cfg.Endpoints))

	if err := c.probe(ctx); err != nil {
		c.connections.Inc(ctx, telemetry.L("connector", "etcd"), telemetry.L(telemetry.LabelOutcome, telemetry.OutcomeError))
		c.logger.Error("failed to connect to etcd", clog.Error(err))
		return xerrors.Mark(xerrors.Wrapf(err, "etcd connector[%s]: connection failed", c.cfg.Name), ErrConnection)
	}

	c.connections.Inc(ctx, telemetry.L("connector", "etcd"), telemetry.L(telemetry.LabelOutcome, telemetry.OutcomeSuccess))
	c.healthy.Store(true)
	c.logger.Info("successfully connected to etcd", clog.Strings("endpoints", c.cfg.Endpoints))
	return nil
}

func (c *etcdConnector) probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout)
	defer cancel()
	_, err := c.client.Get(ctx, healthCheckKey)
	return err
}

// Close 关闭连接，重复调用返回 nil
func (c *etcdConnector) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.healthy.Store(false)
	c.logger.Info("closing etcd connection")

	if err := c.client.Close(); err != nil {
		c.logger.Error("failed to close etcd connection", clog.Error(err))
		return err
	}
	return nil
}

// HealthCheck 检查连接健康状态
func (c *etcdConnector) HealthCheck(ctx context.Context) error {
	if err := c.probe(ctx); err != nil {
		c.healthy.Store(false)
		c.logger.Warn("etcd health check failed", clog.Error(err))
		return xerrors.Mark(xerrors.Wrapf(err, "etcd connector[%s]", c.cfg.Name), ErrHealthCheck)
	}

	c.healthy.Store(true)
	return nil
}

// IsHealthy 返回缓存的健康状态
func (c *etcdConnector) IsHealthy() bool {
	return c.healthy.Load()
}

// Name 返回连接器名称
func (c *etcdConnector) Name() string {
	return c.cfg.Name
}

// GetClient 返回 Etcd 客户端
func (c *etcdConnector) GetClient() *clientv3.Client {
	return c.client
}
