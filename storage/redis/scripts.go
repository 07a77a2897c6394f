package redis

import "github.com/redis/go-redis/v9"

// updateValueScript 计数器与仪表盘的原子更新
// KEYS[1]: 聚合记录键
// KEYS[2]: 类型注册集合
// ARGV[1]: 命令 (HINCRBY / HINCRBYFLOAT / HSET)
// ARGV[2]: 字段键
// ARGV[3]: 值
// ARGV[4]: 编码后的元数据
//
// 字段在本次调用之前不存在时写入元数据并登记记录键。
// 不用增量后的结果判断，HINCRBYFLOAT 会把极小的增量格式化成 "0"。
var updateValueScript = redis.NewScript(`
local created = redis.call('HEXISTS', KEYS[1], ARGV[2]) == 0
redis.call(ARGV[1], KEYS[1], ARGV[2], ARGV[3])
if created then
  redis.call('HSET', KEYS[1], '__meta', ARGV[4])
  redis.call('SADD', KEYS[2], KEYS[1])
  return 1
end
return 0
`)

// updateHistogramScript 直方图的原子更新
// KEYS[1]: 聚合记录键
// KEYS[2]: 类型注册集合
// ARGV[1]: sum 字段键
// ARGV[2]: 桶字段键
// ARGV[3]: 观测值
// ARGV[4]: 编码后的元数据
//
// sum 与桶在同一脚本内更新，桶计数为 1 时写入元数据并登记记录键。
var updateHistogramScript = redis.NewScript(`
redis.call('HINCRBYFLOAT', KEYS[1], ARGV[1], ARGV[3])
local count = redis.call('HINCRBY', KEYS[1], ARGV[2], 1)
if count == 1 then
  redis.call('HSET', KEYS[1], '__meta', ARGV[4])
  redis.call('SADD', KEYS[2], KEYS[1])
  return 1
end
return 0
`)

// flushScript 删除注册集合中的全部记录以及集合本身
// KEYS: 各类型注册集合
var flushScript = redis.NewScript(`
local deleted = 0
for _, set in ipairs(KEYS) do
  local members = redis.call('SMEMBERS', set)
  for _, key in ipairs(members) do
    deleted = deleted + redis.call('DEL', key)
  end
  deleted = deleted + redis.call('DEL', set)
end
return deleted
`)
