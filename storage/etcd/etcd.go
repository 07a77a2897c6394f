// Package etcd 实现基于 Etcd 事务的共享状态后端。
//
// 每个指标标识对应一个 key，值为编码后的字段 map（含 __meta）。更新采用乐观并发：
// 读取记录与其 ModRevision，在内存中修改，再以 ModRevision 未变为条件提交事务，
// 冲突时重试直到 ctx 结束；配置了 MaxCASRetries 时，超过上限返回带 xerrors.ErrConflict 的 StorageError。
//
// 注册集合以 key 前缀表示：<prefix><type>_METRIC_KEYS/<记录键>。
package etcd

import (
	"context"
	"strings"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/ceyewan/promstore/clog"
	"github.com/ceyewan/promstore/connector"
	"github.com/ceyewan/promstore/internal/telemetry"
	"github.com/ceyewan/promstore/prom"
	"github.com/ceyewan/promstore/storage"
	"github.com/ceyewan/promstore/xerrors"
)

// ErrConnectorNil 连接器为空
var ErrConnectorNil = xerrors.Mark(xerrors.New("etcd storage: connector is nil"), prom.ErrConfiguration)

var (
	_ prom.Storage   = (*Storage)(nil)
	_ prom.Flusher   = (*Storage)(nil)
	_ storage.Reader = (*Storage)(nil)
)

// Storage Etcd 后端
type Storage struct {
	client     *clientv3.Client
	prefix     string
	maxRetries int
	serializer storage.Serializer
	logger     clog.Logger
	ops        *telemetry.Ops
}

// New 基于连接器创建 Etcd 后端。连接器由调用方管理。
func New(conn connector.EtcdConnector, cfg *Config, opts ...Option) (*Storage, error) {
	if conn == nil {
		return nil, ErrConnectorNil
	}
	return NewWithClient(conn.GetClient(), cfg, opts...)
}

// NewWithClient 基于已有客户端创建 Etcd 后端
func NewWithClient(client *clientv3.Client, cfg *Config, opts ...Option) (*Storage, error) {
	if client == nil {
		return nil, ErrConnectorNil
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if err := cfg.validate(); err != nil {
		return nil, xerrors.Mark(xerrors.Wrap(err, "invalid etcd storage config"), prom.ErrConfiguration)
	}

	o := &options{logger: clog.Discard()}
	for _, opt := range opts {
		opt(o)
	}
	ops, err := telemetry.NewOps(o.meter, "etcd")
	if err != nil {
		return nil, xerrors.Wrap(err, "create storage metrics")
	}
	serializer, _ := storage.NewSerializer(cfg.MetaCodec)

	s := &Storage{
		client:     client,
		prefix:     cfg.Prefix,
		maxRetries: cfg.MaxCASRetries,
		serializer: serializer,
		logger:     o.logger,
		ops:        ops,
	}
	s.logger.Info("etcd storage created",
		clog.String("prefix", cfg.Prefix),
		clog.String("meta_codec", serializer.Name()),
		clog.Int("max_cas_retries", cfg.MaxCASRetries))
	return s, nil
}

// Prefix 返回键前缀
func (s *Storage) Prefix() string { return s.prefix }

func (s *Storage) registryPrefix(typ prom.MetricType) string {
	return storage.RegistryKey(s.prefix, typ) + "/"
}

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

	field, err := storage.EncodeLabelValues(series.LabelValues)
	if err != nil {
		return xerrors.Wrap(err, "encode field")
	}
	meta, err := storage.EncodeMeta(s.serializer, storage.NewMeta(typ, series, nil))
	if err != nil {
		return xerrors.Wrap(err, "encode meta")
	}
	return s.mutate(ctx, op, typ, series.Name, meta, func(fields map[string]string) (bool, error) {
		return applyValue(fields, field, cmd, v)
	})
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
	return s.mutate(ctx, "update_histogram", prom.TypeHistogram, u.Name, meta, func(fields map[string]string) (bool, error) {
		return applyHistogram(fields, bucketField, sumField, u.Value)
	})
}

// mutate 读取-修改-条件提交，ModRevision 变化时重试
func (s *Storage) mutate(ctx context.Context, op string, typ prom.MetricType, name, meta string, apply func(map[string]string) (bool, error)) error {
	key := storage.RecordKey(s.prefix, typ, name)
	regKey := s.registryPrefix(typ) + key

	for attempt := 1; s.maxRetries == 0 || attempt <= s.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return prom.NewStorageError(op, key, xerrors.Wrapf(err, "after %d conflicts", attempt-1))
		}
		fields, rev, err := s.read(ctx, key)
		if err != nil {
			return prom.NewStorageError(op, key, err)
		}

		created, err := apply(fields)
		if err != nil {
			return err
		}

		ops := make([]clientv3.Op, 0, 2)
		if created {
			fields[storage.MetaField] = meta
			ops = append(ops, clientv3.OpPut(regKey, ""))
		}
		data, err := s.serializer.Marshal(fields)
		if err != nil {
			return xerrors.Wrap(err, "encode record")
		}
		ops = append(ops, clientv3.OpPut(key, string(data)))

		resp, err := s.client.Txn(ctx).
			If(clientv3.Compare(clientv3.ModRevision(key), "=", rev)).
			Then(ops...).
			Commit()
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to commit update", clog.String("key", key), clog.Error(err))
			return prom.NewStorageError(op, key, err)
		}
		if resp.Succeeded {
			return nil
		}
		s.logger.DebugContext(ctx, "update conflict, retrying", clog.String("key", key), clog.Int("attempt", attempt))
	}

	s.logger.WarnContext(ctx, "update gave up after conflicts", clog.String("key", key), clog.Int("attempts", s.maxRetries))
	return prom.NewStorageError(op, key, xerrors.Wrapf(xerrors.ErrConflict, "%d attempts", s.maxRetries))
}

// read 返回记录字段与 ModRevision，记录不存在时返回空 map 与 0
func (s *Storage) read(ctx context.Context, key string) (map[string]string, int64, error) {
	resp, err := s.client.Get(ctx, key)
	if err != nil {
		return nil, 0, err
	}
	fields := make(map[string]string)
	if len(resp.Kvs) == 0 {
		return fields, 0, nil
	}
	if err := storage.Decode(resp.Kvs[0].Value, &fields); err != nil {
		return nil, 0, xerrors.Wrap(err, "decode record")
	}
	return fields, resp.Kvs[0].ModRevision, nil
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

// ListKeys 返回某类型登记过的记录键
func (s *Storage) ListKeys(ctx context.Context, typ prom.MetricType) ([]string, error) {
	p := s.registryPrefix(typ)
	resp, err := s.client.Get(ctx, p, clientv3.WithPrefix(), clientv3.WithKeysOnly())
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		keys = append(keys, strings.TrimPrefix(string(kv.Key), p))
	}
	return keys, nil
}

// ReadRecord 读取一个记录的全部字段
func (s *Storage) ReadRecord(ctx context.Context, key string) (map[string]string, error) {
	fields, _, err := s.read(ctx, key)
	return fields, err
}

// maxTxnOps 与 etcd 服务端 --max-txn-ops 默认值一致
const maxTxnOps = 128

// Flush 删除注册过的记录与注册键。
//
// 只删除注册集合里列出的记录，不按前缀扫描，前缀互为前缀的存储不会互相影响。
// 记录较多时分批提交，每批一个事务。
func (s *Storage) Flush(ctx context.Context) (err error) {
	ctx, end := s.ops.Start(ctx, "flush")
	defer func() { end(err) }()

	var ops []clientv3.Op
	for _, typ := range prom.MetricTypes {
		keys, err := s.ListKeys(ctx, typ)
		if err != nil {
			return prom.NewStorageError("flush", s.registryPrefix(typ), err)
		}
		for _, key := range keys {
			ops = append(ops, clientv3.OpDelete(key))
		}
	}
	for _, typ := range prom.MetricTypes {
		ops = append(ops, clientv3.OpDelete(s.registryPrefix(typ), clientv3.WithPrefix()))
	}

	for len(ops) > 0 {
		n := min(len(ops), maxTxnOps)
		if _, err := s.client.Txn(ctx).Then(ops[:n]...).Commit(); err != nil {
			return prom.NewStorageError("flush", s.prefix, err)
		}
		ops = ops[n:]
	}
	s.logger.InfoContext(ctx, "etcd storage flushed", clog.String("prefix", s.prefix))
	return nil
}
