package storage

import (
	"encoding/json"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/ceyewan/promstore/xerrors"
)

// ErrUnsupportedSerializer 不支持的序列化器类型
var ErrUnsupportedSerializer = xerrors.New("unsupported serializer type")

// Serializer 元数据与记录的序列化接口
type Serializer interface {
	Name() string
	Marshal(value any) ([]byte, error)
	Unmarshal(data []byte, dest any) error
}

// JSONSerializer JSON 序列化器，与 PHP 客户端互通
type JSONSerializer struct{}

func (JSONSerializer) Name() string { return "json" }

// Marshal 序列化为 JSON
func (JSONSerializer) Marshal(value any) ([]byte, error) {
	return json.Marshal(value)
}

// Unmarshal 从 JSON 反序列化
func (JSONSerializer) Unmarshal(data []byte, dest any) error {
	return json.Unmarshal(data, dest)
}

// MessagePackSerializer MessagePack 序列化器，只适合纯 Go 写入方
type MessagePackSerializer struct{}

func (MessagePackSerializer) Name() string { return "msgpack" }

// Marshal 序列化为 MessagePack
func (MessagePackSerializer) Marshal(value any) ([]byte, error) {
	return msgpack.Marshal(value)
}

// Unmarshal 从 MessagePack 反序列化
func (MessagePackSerializer) Unmarshal(data []byte, dest any) error {
	return msgpack.Unmarshal(data, dest)
}

// NewSerializer 创建序列化器
//
// 支持的类型:
//   - "json": 默认，PHP 客户端可读
//   - "msgpack": 体积更小
func NewSerializer(name string) (Serializer, error) {
	switch name {
	case "json", "":
		return JSONSerializer{}, nil
	case "msgpack":
		return MessagePackSerializer{}, nil
	default:
		return nil, xerrors.Wrapf(ErrUnsupportedSerializer, "%q", name)
	}
}

// Decode 按内容识别编码后反序列化。
//
// JSON 文档总以 '{' 或 '[' 开头，其余按 MessagePack 处理，
// 因此切换 meta_codec 后旧记录仍可读取。
func Decode(data []byte, dest any) error {
	if len(data) > 0 && (data[0] == '{' || data[0] == '[') {
		return JSONSerializer{}.Unmarshal(data, dest)
	}
	return MessagePackSerializer{}.Unmarshal(data, dest)
}
