package clog

import (
	"log/slog"
	"strings"
)

// NamespaceKey 是日志中命名空间的字段名，用于标识组件
const NamespaceKey = "namespace"

// addNamespaceFields 将命名空间字段追加到属性列表。
func addNamespaceFields(options *options, attrs *[]slog.Attr) {
	if options == nil || len(options.namespaceParts) == 0 {
		return
	}
	*attrs = append(*attrs, slog.String(NamespaceKey, strings.Join(options.namespaceParts, ".")))
}
