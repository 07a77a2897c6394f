package prom

import (
	"regexp"

	"github.com/ceyewan/promstore/xerrors"
)

// nameRE 指标名与标签名的合法模式
var nameRE = regexp.MustCompile(`^[a-zA-Z_:][a-zA-Z0-9_:]*$`)

// reservedBucketLabel 直方图桶标签，直方图的标签中不允许出现
const reservedBucketLabel = "le"

// MetricName 组合命名空间与名称，namespace 为空时直接返回 name
func MetricName(namespace, name string) string {
	if namespace == "" {
		return name
	}
	return namespace + "_" + name
}

// metricIdentifier 注册表内部的唯一标识 namespace:name
func metricIdentifier(namespace, name string) string {
	return namespace + ":" + name
}

// ValidateMetricName 校验完整指标名
func ValidateMetricName(name string) error {
	if !nameRE.MatchString(name) {
		return xerrors.Wrapf(ErrInvalidName, "metric name %q", name)
	}
	return nil
}

// ValidateLabelNames 校验标签名列表
func ValidateLabelNames(names []string) error {
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		if !nameRE.MatchString(n) {
			return xerrors.Wrapf(ErrInvalidName, "label name %q", n)
		}
		if _, ok := seen[n]; ok {
			return xerrors.Wrapf(ErrInvalidName, "duplicate label name %q", n)
		}
		seen[n] = struct{}{}
	}
	return nil
}
