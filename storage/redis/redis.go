// Package redis 实现基于 Redis 的共享状态后端。
//
// 每个指标标识对应一个 hash，每次更新由一个 Lua 脚本完成，多个进程并发写入同一序列时
// 由 Redis 的单线程脚本执行保证原子性。键布局与 PHP 客户端一致：
//
//	PROMETHEUS_:counter:http_requests_total   hash，字段见 storage 包
//	PROMETHEUS_counter_METRIC_KEYS             set，登记该类型的全部记录键
//
// 基本使用：
//
//	store, err := redis.New(conn, &redis.Config{Prefix: "PROMETHEUS_"}, redis.WithLogger(logger))
//	registry, err := prom.NewRegistry(store)
package redis

import (
	"context"
	"math"
	"strconv"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ceyewan/promstore/clog"
	"github.com/ceyewan/promstore/connector"
	"github.com/ceyewan/promstore/internal/telemetry"
	"github.com/ceyewan/promstore/prom"
	"github.com/ceyewan/promstore/storage"
	"github.com/ceyewan/promstore/xerrors"
)

// ErrConnectorNil 连接器为空
var ErrConnectorNil = xerrors.Mark(xerrors.New("redis storage: connector is nil"), prom.ErrConfiguration)

var (
	_ prom.Storage   = (*Storage)(nil)
	_ prom.Flusher   = (*Storage)(nil)
	_ storage.Reader = (*Storage)(nil)
)

// Storage Redis 后端
type Storage struct {
	client     goredis.UniversalClient
	prefix     string
	serializer storage.Serializer
	logger     clog.Logger
	ops        *telemetry.Ops
}

// New 基于连接器创建 Redis 后端。连接器由调用方管理，Storage 不会关闭它。
func New(conn connector.RedisConnector, cfg *Config, opts ...Option) (*Storage, error) {
	if conn == nil {
		return nil, ErrConnectorNil
	}
	return NewWithClient(conn.GetClient(), cfg, opts...)
}

// NewWithClient 基于已有客户端创建 Redis 后端，可用于 Cluster 或 Sentinel 客户端
func NewWithClient(client goredis.UniversalClient, cfg *Config, opts ...Option) (*Storage, error) {
	if client == nil {
		return nil, ErrConnectorNil
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if err := cfg.validate(); err != nil {
		return nil, xerrors.Mark(xerrors.Wrap(err, "invalid redis storage config"), prom.ErrConfiguration)
	}

	o := &options{logger: clog.Discard()}
	for _, opt := range opts {
		opt(o)
	}
	ops, err := telemetry.NewOps(o.meter, "redis")
	if err != nil {
		return nil, xerrors.Wrap(err, "create storage metrics")
	}
	serializer, _ := storage.NewSerializer(cfg.MetaCodec)

	s := &Storage{
		client:     client,
		prefix:     cfg.Prefix,
		serializer: serializer,
		logger:     o.logger,
		ops:        ops,
	}
	s.logger.Info("redis storage created",
		clog.String("prefix", cfg.Prefix),
		clog.String("meta_codec", serializer.Name()))
	return s, nil
}

// Prefix 返回键前缀
func (s *Storage) Prefix() string { return s.prefix }

// UpdateCounter 原子地更新计数器
func (s *Storage) UpdateCounter(ctx context.Context, u prom.CounterUpdate) error {
	return s.updateValue(ctx, "update_counter", prom.TypeCounter, u.Series, u.Command, u.Value)
}

// UpdateGauge 原子地更新仪表盘
func (s *Storage) UpdateGauge(ctx context.Context, u prom.GaugeUpdate) error {
	return s.updateValue(ctx, "update_gauge", prom.TypeGauge, u.Series, u.Command, u.Value)
}

func (s *Storage) updateValue(ctx context.Context, op string, typ prom.MetricType, series prom.Series, cmd prom.Command, v float64) (err error) {
	ctx, end := s.ops.Start(ctx, op)
	defer func() { end(err) }()

	redisCmd, arg, err := commandArgs(cmd, v)
	if err != nil {
		return err
	}
	field, err := storage.EncodeLabelValues(series.LabelValues)
	if err != nil {
		return xerrors.Wrap(err, "encode field")
	}
	meta, err := storage.EncodeMeta(s.serializer, storage.NewMeta(typ, series, nil))
	if err != nil {
		return xerrors.Wrap(err, "encode meta")
	}

	key := storage.RecordKey(s.prefix, typ, series.Name)
	created, err := updateValueScript.Run(ctx, s.client,
		[]string{key, storage.RegistryKey(s.prefix, typ)},
		redisCmd, field, arg, meta,
	).Int()
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to update metric", clog.String("key", key), clog.Error(err))
		return prom.NewStorageError(op, key, err)
	}

	s.logger.DebugContext(ctx, "metric updated",
		clog.String("key", key),
		clog.String("field", field),
		clog.String("command", cmd.String()),
		clog.Bool("created", created == 1))
	return nil
}

// UpdateHistogram 原子地增加桶计数与累计和
func (s *Storage) UpdateHistogram(ctx context.Context, u prom.HistogramUpdate) (err error) {
	ctx, end := s.ops.Start(ctx, "update_histogram")
	defer func() { end(err) }()

	bucketField, err := storage.EncodeBucketField(u.Bucket, u.LabelValues)
	if err != nil {
		return xerrors.Wrap(err, "encode bucket field")
	}
	sumField, err := storage.EncodeSumField(u.LabelValues)
	if err != nil {
		return xerrors.Wrap(err, "encode sum field")
	}
	meta, err := storage.EncodeMeta(s.serializer, storage.NewMeta(prom.TypeHistogram, u.Series, u.Buckets))
	if err != nil {
		return xerrors.Wrap(err, "encode meta")
	}

	key := storage.RecordKey(s.prefix, prom.TypeHistogram, u.Name)
	created, err := updateHistogramScript.Run(ctx, s.client,
		[]string{key, storage.RegistryKey(s.prefix, prom.TypeHistogram)},
		sumField, bucketField, formatFloat(u.Value), meta,
	).Int()
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to observe histogram", clog.String("key", key), clog.Error(err))
		return prom.NewStorageError("update histogram", key, err)
	}

	s.logger.DebugContext(ctx, "histogram observed",
		clog.String("key", key),
		clog.String("bucket", prom.FormatBound(u.Bucket)),
		clog.Bool("created", created == 1))
	return nil
}

// Collect 重建全部指标族
func (s *Storage) Collect(ctx context.Context) (families []prom.MetricFamilySamples, err error) {
	ctx, end := s.ops.Start(ctx, "collect")
	defer func() { end(err) }()

	families, err = storage.Collect(ctx, s, s.logger)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to collect metrics", clog.Error(err))
		return nil, err
	}
	return families, nil
}

// ListKeys 返回某类型注册集合中的记录键
func (s *Storage) ListKeys(ctx context.Context, typ prom.MetricType) ([]string, error) {
	return s.client.SMembers(ctx, storage.RegistryKey(s.prefix, typ)).Result()
}

// ReadRecord 用一次 HGETALL 读取记录，单个记录的快照是一致的
func (s *Storage) ReadRecord(ctx context.Context, key string) (map[string]string, error) {
	return s.client.HGetAll(ctx, key).Result()
}

// Flush 删除当前前缀下登记过的全部记录与注册集合，其他前缀和其他数据不受影响
func (s *Storage) Flush(ctx context.Context) (err error) {
	ctx, end := s.ops.Start(ctx, "flush")
	defer func() { end(err) }()

	keys := make([]string, 0, len(prom.MetricTypes))
	for _, typ := range prom.MetricTypes {
		keys = append(keys, storage.RegistryKey(s.prefix, typ))
	}
	deleted, err := flushScript.Run(ctx, s.client, keys).Int()
	if err != nil {
		return prom.NewStorageError("flush", s.prefix, err)
	}
	s.logger.InfoContext(ctx, "redis storage flushed", clog.String("prefix", s.prefix), clog.Int("deleted", deleted))
	return nil
}

// commandArgs 将命令映射为 Redis 命令与参数
func commandArgs(cmd prom.Command, v float64) (string, string, error) {
	switch cmd {
	case prom.CommandIncrementInteger:
		if v != math.Trunc(v) || math.Abs(v) > 1<<53 {
			return "", "", xerrors.Wrapf(prom.ErrInvalidValue, "integer increment %v", v)
		}
		return "HINCRBY", strconv.FormatInt(int64(v), 10), nil
	case prom.CommandIncrementFloat:
		return "HINCRBYFLOAT", formatFloat(v), nil
	case prom.CommandSet:
		return "HSET", formatFloat(v), nil
	default:
		return "", "", xerrors.Wrapf(prom.ErrUnsupported, "command %d", cmd)
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
