package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ceyewan/promstore/clog"
	"github.com/ceyewan/promstore/config"
	"github.com/ceyewan/promstore/connector"
	"github.com/ceyewan/promstore/internal/telemetry"
	"github.com/ceyewan/promstore/prom"
	"github.com/ceyewan/promstore/pushgateway"
	"github.com/ceyewan/promstore/storage"
	"github.com/ceyewan/promstore/storage/etcd"
	"github.com/ceyewan/promstore/storage/redis"
	"github.com/ceyewan/promstore/trace"
	"github.com/ceyewan/promstore/xerrors"
)

// 后端驱动
const (
	DriverRedis = "redis"
	DriverEtcd  = "etcd"
)

// AppConfig promstore.yaml 的结构
type AppConfig struct {
	Log           clog.Config           `mapstructure:"log"`
	Storage       StorageConfig         `mapstructure:"storage"`
	Redis         connector.RedisConfig `mapstructure:"redis"`
	Etcd          connector.EtcdConfig  `mapstructure:"etcd"`
	Pushgateway   pushgateway.Config    `mapstructure:"pushgateway"`
	DefaultLabels map[string]string     `mapstructure:"default_labels"`
	Telemetry     telemetry.Config      `mapstructure:"telemetry"`
	Trace         trace.Config          `mapstructure:"trace"`
}

// StorageConfig 后端选择与两种后端共享的存储参数
type StorageConfig struct {
	Driver        string `mapstructure:"driver"`
	Prefix        string `mapstructure:"prefix"`
	MetaCodec     string `mapstructure:"meta_codec"`
	MaxCASRetries int    `mapstructure:"max_cas_retries"`
}

// defaults 注册全部已知 key，使环境变量能覆盖配置文件中没有出现的字段
var defaults = map[string]any{
	"log.level":                   "info",
	"log.format":                  "console",
	"log.output":                  "stderr",
	"log.add_source":              false,
	"storage.driver":              DriverRedis,
	"storage.prefix":              storage.DefaultPrefix,
	"storage.meta_codec":          "json",
	"storage.max_cas_retries":     etcd.DefaultMaxCASRetries,
	"redis.addr":                  "127.0.0.1:6379",
	"redis.password":              "",
	"redis.db":                    0,
	"redis.pool_size":             10,
	"redis.dial_timeout":          "5s",
	"redis.read_timeout":          "3s",
	"redis.write_timeout":         "3s",
	"redis.tracing":               false,
	"etcd.endpoints":              []string{"127.0.0.1:2379"},
	"etcd.username":               "",
	"etcd.password":               "",
	"etcd.dial_timeout":           "5s",
	"pushgateway.addr":            "127.0.0.1:9091",
	"pushgateway.timeout":         "20s",
	"pushgateway.connect_timeout": "10s",
	"telemetry.enabled":           false,
	"trace.service_name":          "promstore",
	"trace.endpoint":              "",
	"trace.sampler":               1.0,
	"trace.batcher":               "batch",
	"trace.insecure":              true,
	"telemetry.service_name":      "promstore",
}

// loadAppConfig 从配置文件、.env 与 PROMSTORE_* 环境变量加载配置
func loadAppConfig(ctx context.Context, cfg *config.Config) (*AppConfig, config.Loader, error) {
	loader, err := config.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	for k, v := range defaults {
		loader.SetDefault(k, v)
	}
	if err := loader.Load(ctx); err != nil {
		return nil, nil, err
	}

	var app AppConfig
	if err := loader.Unmarshal(&app); err != nil {
		return nil, nil, err
	}
	if err := app.validate(); err != nil {
		return nil, nil, err
	}
	return &app, loader, nil
}

// followLogLevel 配置文件里的 log.level 变化时调整 logger 级别，ctx 结束后停止
func followLogLevel(ctx context.Context, loader config.Loader, logger clog.Logger) error {
	ch, err := loader.Watch(ctx, "log.level")
	if err != nil {
		return err
	}
	go func() {
		for e := range ch {
			level, err := clog.ParseLevel(fmt.Sprint(e.Value))
			if err != nil {
				logger.Warn("ignore invalid log level", clog.Any("value", e.Value))
				continue
			}
			if err := logger.SetLevel(level); err != nil {
				logger.Warn("failed to change log level", clog.Error(err))
				continue
			}
			logger.Info("log level changed", clog.String("level", level.String()))
		}
	}()
	return nil
}

func (c *AppConfig) validate() error {
	c.Storage.Driver = strings.ToLower(c.Storage.Driver)
	switch c.Storage.Driver {
	case DriverRedis, DriverEtcd:
	default:
		return xerrors.Wrapf(config.ErrValidationFailed, "unknown storage driver %q", c.Storage.Driver)
	}
	return nil
}

// app 一次命令执行期间持有的依赖
type app struct {
	cfg      *AppConfig
	logger   clog.Logger
	meter    telemetry.Meter
	registry *prom.Registry
	closers  []io.Closer
}

func newLogger(cfg *clog.Config) (clog.Logger, error) {
	return clog.New(cfg, clog.WithNamespace("promstore"))
}

// openApp 连接配置的后端并创建注册表
func openApp(ctx context.Context, cfg *AppConfig, logger clog.Logger, meter telemetry.Meter) (*app, error) {
	a := &app{cfg: cfg, logger: logger, meter: meter}

	store, err := a.openStorage(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	registry, err := prom.NewRegistry(store,
		prom.WithLogger(logger),
		prom.WithDefaultLabels(cfg.DefaultLabels))
	if err != nil {
		a.Close()
		return nil, err
	}
	a.registry = registry
	return a, nil
}

func (a *app) openStorage(ctx context.Context) (prom.Storage, error) {
	connOpts := []connector.Option{connector.WithLogger(a.logger), connector.WithMeter(a.meter)}
	sc := a.cfg.Storage

	switch sc.Driver {
	case DriverRedis:
		conn, err := connector.NewRedis(&a.cfg.Redis, connOpts...)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, conn)
		if err := conn.Connect(ctx); err != nil {
			return nil, err
		}
		return redis.New(conn, &redis.Config{Prefix: sc.Prefix, MetaCodec: sc.MetaCodec},
			redis.WithLogger(a.logger), redis.WithMeter(a.meter))
	case DriverEtcd:
		conn, err := connector.NewEtcd(&a.cfg.Etcd, connOpts...)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, conn)
		if err := conn.Connect(ctx); err != nil {
			return nil, err
		}
		return etcd.New(conn, &etcd.Config{Prefix: sc.Prefix, MetaCodec: sc.MetaCodec, MaxCASRetries: sc.MaxCASRetries},
			etcd.WithLogger(a.logger), etcd.WithMeter(a.meter))
	default:
		return nil, xerrors.Wrapf(config.ErrValidationFailed, "unknown storage driver %q", sc.Driver)
	}
}

// Close 按打开的逆序关闭连接
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	a.closers = nil
	return xerrors.Combine(errs...)
}
