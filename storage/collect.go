package storage

import (
	"context"
	"slices"

	"github.com/ceyewan/promstore/clog"
	"github.com/ceyewan/promstore/prom"
	"github.com/ceyewan/promstore/xerrors"
)

// Reader 后端提供的原始读取能力
type Reader interface {
	// ListKeys 返回某类型注册过的全部记录键
	ListKeys(ctx context.Context, typ prom.MetricType) ([]string, error)
	// ReadRecord 读取一个记录的全部字段（含 __meta），记录不存在时返回空 map
	ReadRecord(ctx context.Context, key string) (map[string]string, error)
}

// Collect 按直方图、仪表盘、计数器的顺序遍历注册集合并重建全部指标族。
//
// 每个类型内按记录键排序。没有 __meta 的记录记录告警后跳过，
// 读取失败返回 StorageError，字段无法解析时返回错误。
func Collect(ctx context.Context, r Reader, logger clog.Logger) ([]prom.MetricFamilySamples, error) {
	var families []prom.MetricFamilySamples
	for _, typ := range prom.MetricTypes {
		keys, err := r.ListKeys(ctx, typ)
		if err != nil {
			return nil, prom.NewStorageError("list "+string(typ)+" keys", "", err)
		}
		slices.Sort(keys)

		for _, key := range keys {
			fields, err := r.ReadRecord(ctx, key)
			if err != nil {
				return nil, prom.NewStorageError("read record", key, err)
			}
			if len(fields) == 0 {
				// 在列出与读取之间被清空
				continue
			}
			family, err := Rebuild(fields)
			if xerrors.Is(err, ErrMissingMeta) {
				logger.Warn("skip record without meta", clog.String("key", key))
				continue
			}
			if err != nil {
				return nil, xerrors.Wrapf(err, "rebuild %s", key)
			}
			families = append(families, family)
		}
	}
	return families, nil
}
