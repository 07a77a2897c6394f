package config

import "github.com/ceyewan/promstore/xerrors"

// ErrValidationFailed 验证失败
var ErrValidationFailed = xerrors.Mark(xerrors.New("configuration validation failed"), xerrors.ErrInvalidInput)

// IsInvalidInput 检查错误是否为配置格式无效或验证失败
func IsInvalidInput(err error) bool {
	return xerrors.Is(err, xerrors.ErrInvalidInput)
}
