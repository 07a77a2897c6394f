// Package storage 包含共享状态后端共用的记录布局、编码与收集重建逻辑。
//
// 一个聚合记录对应一个指标标识，保存从字段键到数值字符串的映射，
// 以及保留字段 __meta 中的元数据。字段键的格式：
//
//	计数器/仪表盘: ["GET","200"]
//	直方图:        {"b":0.5,"labelValues":["GET"]}、{"b":"+Inf",...}、{"b":"sum",...}
//
// 该布局与原有 PHP 客户端写入 Redis 的格式兼容，两种语言的进程可以共享同一份状态。
// storage/redis 与 storage/etcd 只负责原子更新与读取原始字段，重建由 Rebuild 完成。
package storage
