// Command promstore 查看、推送与清理共享后端中的 Prometheus 指标。
//
//	promstore dump                       以文本格式输出全部指标
//	promstore push --job batch -g env=prod [--every 15s]
//	promstore delete --job batch
//	promstore flush --yes
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
