// Package prom 是 promstore 的客户端核心：注册表、Counter/Gauge/Histogram 收集器，
// 以及收集器与共享存储之间的 Storage 契约。
//
// 所有指标状态都保存在多个进程共享的后端（Redis、etcd）中，
// 收集器只做校验并构造更新命令，聚合与重建由后端完成。
//
// 基本使用：
//
//	store, _ := redis.New(conn, &redis.Config{Prefix: "PROMETHEUS_"})
//	registry, _ := prom.NewRegistry(store, prom.WithLogger(logger))
//
//	counter, _ := registry.RegisterCounter("app", "requests_total", "请求总数", []string{"method"})
//	_ = counter.Inc(ctx, "GET")
//
//	hist, _ := registry.RegisterHistogram("app", "latency_seconds", "请求耗时", nil, nil)
//	_ = hist.Observe(ctx, 0.12)
//
//	families, _ := registry.GetMetricFamilySamples(ctx)
package prom
