package clog

import (
	"bytes"
)

// withBuffer 是一个测试专用选项，用于将日志输出写入指定的缓冲区
func withBuffer(buf *bytes.Buffer) Option {
	return func(o *options) {
		o.buffer = buf
	}
}
