package etcd

import (
	"math"
	"strconv"

	"github.com/ceyewan/promstore/prom"
	"github.com/ceyewan/promstore/storage"
	"github.com/ceyewan/promstore/xerrors"
)

// applyValue 在内存中对记录字段执行一次计数器/仪表盘更新，返回字段是否由本次创建
func applyValue(fields map[string]string, field string, cmd prom.Command, v float64) (bool, error) {
	raw, existed := fields[field]
	var cur float64
	if existed {
		var err error
		if cur, err = storage.ParseValue(field, raw); err != nil {
			return false, err
		}
	}

	switch cmd {
	case prom.CommandIncrementInteger:
		if v != math.Trunc(v) || (existed && cur != math.Trunc(cur)) {
			return false, xerrors.Wrapf(prom.ErrInvalidValue, "integer increment %v on %v", v, cur)
		}
		fields[field] = strconv.FormatInt(int64(cur)+int64(v), 10)
	case prom.CommandIncrementFloat:
		fields[field] = formatFloat(cur + v)
	case prom.CommandSet:
		fields[field] = formatFloat(v)
	default:
		return false, xerrors.Wrapf(prom.ErrUnsupported, "command %d", cmd)
	}
	return !existed, nil
}

// applyHistogram 桶计数加一、累计和加 v，返回桶字段是否由本次创建
func applyHistogram(fields map[string]string, bucketField, sumField string, v float64) (bool, error) {
	var count, sum float64
	raw, existed := fields[bucketField]
	if existed {
		var err error
		if count, err = storage.ParseValue(bucketField, raw); err != nil {
			return false, err
		}
	}
	if raw, ok := fields[sumField]; ok {
		var err error
		if sum, err = storage.ParseValue(sumField, raw); err != nil {
			return false, err
		}
	}
	fields[bucketField] = formatFloat(count + 1)
	fields[sumField] = formatFloat(sum + v)
	return !existed, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
