package prom

import (
	"fmt"

	"github.com/ceyewan/promstore/xerrors"
)

// 错误类别。调用方通过 xerrors.Is 判断类别，具体错误都归属于其中之一。
var (
	// ErrConfiguration 构造或注册阶段的配置错误（非法名称、重复注册、非法桶）
	ErrConfiguration = xerrors.Mark(xerrors.New("prom: configuration error"), xerrors.ErrInvalidInput)

	// ErrUsage 更新阶段的调用错误，保证在访问后端之前返回
	ErrUsage = xerrors.Mark(xerrors.New("prom: usage error"), xerrors.ErrInvalidInput)

	// ErrNotFound 按标识查找未注册的指标
	ErrNotFound = xerrors.Mark(xerrors.New("prom: metric not found"), xerrors.ErrNotFound)

	// ErrStorage 后端不可达、认证失败等存储错误，不在内部重试
	ErrStorage = xerrors.Mark(xerrors.New("prom: storage error"), xerrors.ErrUnavailable)

	// ErrTransport 推送网关返回非 202 状态
	ErrTransport = xerrors.Mark(xerrors.New("prom: transport error"), xerrors.ErrUnavailable)
)

// 具体错误
var (
	ErrInvalidName       = xerrors.Mark(xerrors.New("prom: invalid metric or label name"), ErrConfiguration)
	ErrDuplicateMetric   = xerrors.Mark(xerrors.New("prom: metric already registered"), ErrConfiguration)
	ErrInvalidBuckets    = xerrors.Mark(xerrors.New("prom: invalid histogram buckets"), ErrConfiguration)
	ErrStorageNil        = xerrors.Mark(xerrors.New("prom: storage is nil"), ErrConfiguration)
	ErrLabelArity        = xerrors.Mark(xerrors.New("prom: label values do not match label names"), ErrUsage)
	ErrNegativeIncrement = xerrors.Mark(xerrors.New("prom: counter cannot decrease"), ErrUsage)
	ErrInvalidValue      = xerrors.Mark(xerrors.New("prom: value must be finite"), ErrUsage)
	ErrInvalidLabelValue = xerrors.Mark(xerrors.New("prom: label value is not valid UTF-8"), ErrUsage)
	ErrUnsupported       = xerrors.Mark(xerrors.New("prom: operation not supported by storage"), ErrUsage)
)

// StorageError 描述一次失败的后端操作。
//
// xerrors.Is(err, ErrStorage) 对所有 StorageError 成立，Err 保留底层驱动错误。
type StorageError struct {
	Op  string // 操作名，如 "update counter"、"collect"
	Key string // 相关的后端 key，可能为空
	Err error
}

func (e *StorageError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("prom: storage %s [%s]: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("prom: storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() []error {
	return []error{e.Err, ErrStorage}
}

// NewStorageError 构造 StorageError，err 为 nil 时返回 nil
func NewStorageError(op, key string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Key: key, Err: err}
}
