package storage

import (
	"strings"

	"github.com/ceyewan/promstore/prom"
)

// DefaultPrefix 默认键前缀，与 PHP 客户端一致
const DefaultPrefix = "PROMETHEUS_"

const metricKeysSuffix = "_METRIC_KEYS"

// RecordKey 聚合记录键 <prefix>:<type>:<name>
func RecordKey(prefix string, typ prom.MetricType, name string) string {
	return strings.Join([]string{prefix, string(typ), name}, ":")
}

// RegistryKey 类型注册集合键 <prefix><type>_METRIC_KEYS
func RegistryKey(prefix string, typ prom.MetricType) string {
	return prefix + string(typ) + metricKeysSuffix
}
