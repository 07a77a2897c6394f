package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/promstore/prom"
)

func TestSerializer(t *testing.T) {
	meta := NewMeta(prom.TypeHistogram, prom.Series{
		Name:       "latency",
		Help:       "request latency",
		LabelNames: []string{"method"},
	}, []float64{0.1, 1})

	for _, name := range []string{"json", "msgpack"} {
		t.Run(name, func(t *testing.T) {
			ser, err := NewSerializer(name)
			require.NoError(t, err)
			assert.Equal(t, name, ser.Name())

			raw, err := EncodeMeta(ser, meta)
			require.NoError(t, err)

			// 解码时自动识别编码
			got, err := DecodeMeta(raw)
			require.NoError(t, err)
			assert.Equal(t, meta, got)
		})
	}

	t.Run("JSON 格式与 PHP 客户端一致", func(t *testing.T) {
		raw, err := EncodeMeta(JSONSerializer{}, NewMeta(prom.TypeCounter, prom.Series{Name: "c"}, nil))
		require.NoError(t, err)
		assert.JSONEq(t, `{"name":"c","help":"","type":"counter","labelNames":[]}`, raw)
	})

	t.Run("不支持的类型", func(t *testing.T) {
		_, err := NewSerializer("xml")
		assert.ErrorIs(t, err, ErrUnsupportedSerializer)
	})
}
