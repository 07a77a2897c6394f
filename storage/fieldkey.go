package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ceyewan/promstore/xerrors"
)

// 直方图字段键中 b 的特殊取值
const (
	BucketInf = "+Inf"
	BucketSum = "sum"
)

// ErrMalformedField 无法解析的字段键或字段值
var ErrMalformedField = xerrors.New("malformed record field")

// histogramField 直方图字段键的结构，字段顺序决定编码结果
type histogramField struct {
	B           any      `json:"b"`
	LabelValues []string `json:"labelValues"`
}

// marshalCompact 编码 JSON，不转义 HTML 字符且不带结尾换行
func marshalCompact(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

// EncodeLabelValues 计数器与仪表盘的字段键
func EncodeLabelValues(values []string) (string, error) {
	return marshalCompact(nonNil(values))
}

// EncodeBucketField 直方图桶字段键，+Inf 编码为字符串 "+Inf"
func EncodeBucketField(bucket float64, values []string) (string, error) {
	var b any = bucket
	if math.IsInf(bucket, 1) {
		b = BucketInf
	}
	return marshalCompact(histogramField{B: b, LabelValues: nonNil(values)})
}

// EncodeSumField 直方图累计和字段键
func EncodeSumField(values []string) (string, error) {
	return marshalCompact(histogramField{B: BucketSum, LabelValues: nonNil(values)})
}

// DecodeLabelValues 解析计数器与仪表盘的字段键
func DecodeLabelValues(field string) ([]string, error) {
	var raw []any
	if err := decodeNumbers(field, &raw); err != nil {
		return nil, xerrors.Wrapf(ErrMalformedField, "%q: %v", field, err)
	}
	return labelStrings(field, raw)
}

// BucketField 解码后的直方图字段键
type BucketField struct {
	Sum         bool    // 累计和字段
	Bucket      float64 // 桶边界，+Inf 桶为 math.Inf(1)
	LabelValues []string
}

// DecodeHistogramField 解析直方图字段键。
//
// b 可以是数字，也可以是数字字符串、"+Inf" 或 "sum"，
// 以兼容不同写入方对同一边界的不同编码。
func DecodeHistogramField(field string) (BucketField, error) {
	var raw struct {
		B           any   `json:"b"`
		LabelValues []any `json:"labelValues"`
	}
	if err := decodeNumbers(field, &raw); err != nil {
		return BucketField{}, xerrors.Wrapf(ErrMalformedField, "%q: %v", field, err)
	}
	values, err := labelStrings(field, raw.LabelValues)
	if err != nil {
		return BucketField{}, err
	}

	out := BucketField{LabelValues: values}
	switch b := raw.B.(type) {
	case json.Number:
		out.Bucket, err = strconv.ParseFloat(b.String(), 64)
	case string:
		switch b {
		case BucketSum:
			out.Sum = true
		case BucketInf:
			out.Bucket = math.Inf(1)
		default:
			out.Bucket, err = strconv.ParseFloat(b, 64)
		}
	default:
		err = fmt.Errorf("unexpected bucket %v", raw.B)
	}
	if err != nil {
		return BucketField{}, xerrors.Wrapf(ErrMalformedField, "%q: %v", field, err)
	}
	return out, nil
}

// ParseValue 解析字段值
func ParseValue(field, value string) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, xerrors.Wrapf(ErrMalformedField, "value of %q: %v", field, err)
	}
	return v, nil
}

func decodeNumbers(s string, dest any) error {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	return dec.Decode(dest)
}

// labelStrings 标签值统一为字符串，其他写入方可能写入数字
func labelStrings(field string, raw []any) ([]string, error) {
	out := make([]string, len(raw))
	for i, v := range raw {
		switch v := v.(type) {
		case string:
			out[i] = v
		case json.Number:
			out[i] = v.String()
		case bool:
			out[i] = strconv.FormatBool(v)
		default:
			return nil, xerrors.Wrapf(ErrMalformedField, "%q: label value %d is %T", field, i, v)
		}
	}
	return out, nil
}
