package storage

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeFieldKeys(t *testing.T) {
	t.Run("标签值数组", func(t *testing.T) {
		k, err := EncodeLabelValues([]string{"GET", "/api/<v1>&x"})
		require.NoError(t, err)
		assert.Equal(t, `["GET","/api/<v1>&x"]`, k)

		k, err = EncodeLabelValues(nil)
		require.NoError(t, err)
		assert.Equal(t, `[]`, k)
	})

	t.Run("直方图字段", func(t *testing.T) {
		k, err := EncodeBucketField(0.5, []string{"a"})
		require.NoError(t, err)
		assert.Equal(t, `{"b":0.5,"labelValues":["a"]}`, k)

		k, err = EncodeBucketField(math.Inf(1), []string{"a"})
		require.NoError(t, err)
		assert.Equal(t, `{"b":"+Inf","labelValues":["a"]}`, k)

		k, err = EncodeSumField(nil)
		require.NoError(t, err)
		assert.Equal(t, `{"b":"sum","labelValues":[]}`, k)
	})
}

func TestDecodeFieldKeys(t *testing.T) {
	t.Run("往返", func(t *testing.T) {
		k, err := EncodeBucketField(2.5, []string{"x", "y"})
		require.NoError(t, err)
		bf, err := DecodeHistogramField(k)
		require.NoError(t, err)
		assert.Equal(t, BucketField{Bucket: 2.5, LabelValues: []string{"x", "y"}}, bf)
	})

	t.Run("兼容其他写入方的编码", func(t *testing.T) {
		cases := map[string]BucketField{
			`{"b":1.0,"labelValues":["a"]}`:        {Bucket: 1, LabelValues: []string{"a"}},
			`{"b":"0.25","labelValues":["a"]}`:     {Bucket: 0.25, LabelValues: []string{"a"}},
			`{"b":"+Inf","labelValues":[]}`:        {Bucket: math.Inf(1), LabelValues: []string{}},
			`{"b":"sum","labelValues":["a\/b"]}`:   {Sum: true, LabelValues: []string{"a/b"}},
			`{"b":5,"labelValues":[200,"\u00e9"]}`: {Bucket: 5, LabelValues: []string{"200", "é"}},
		}
		for in, want := range cases {
			got, err := DecodeHistogramField(in)
			require.NoError(t, err, in)
			assert.Equal(t, want, got, in)
		}

		values, err := DecodeLabelValues(`["a\/b",1,true]`)
		require.NoError(t, err)
		assert.Equal(t, []string{"a/b", "1", "true"}, values)
	})

	t.Run("非法字段", func(t *testing.T) {
		for _, in := range []string{`not json`, `{"b":{},"labelValues":[]}`, `{"b":"x","labelValues":[]}`, `{"b":1,"labelValues":[[1]]}`} {
			_, err := DecodeHistogramField(in)
			assert.ErrorIs(t, err, ErrMalformedField, in)
		}
		_, err := DecodeLabelValues(`{"a":1}`)
		assert.ErrorIs(t, err, ErrMalformedField)

		_, err = ParseValue("f", "abc")
		assert.ErrorIs(t, err, ErrMalformedField)
	})
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "PROMETHEUS_:counter:http_requests_total", RecordKey(DefaultPrefix, "counter", "http_requests_total"))
	assert.Equal(t, "PROMETHEUS_histogram_METRIC_KEYS", RegistryKey(DefaultPrefix, "histogram"))
}
