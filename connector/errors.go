package connector

import "github.com/ceyewan/promstore/xerrors"

// Sentinel Errors - 连接器专用的哨兵错误
var (
	ErrConnection  = xerrors.Mark(xerrors.New("connector: connection failed"), xerrors.ErrUnavailable)
	ErrConfig      = xerrors.Mark(xerrors.New("connector: invalid config"), xerrors.ErrInvalidInput)
	ErrHealthCheck = xerrors.Mark(xerrors.New("connector: health check failed"), xerrors.ErrUnavailable)
)
