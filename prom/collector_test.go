package prom

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/promstore/xerrors"
)

func TestCounter(t *testing.T) {
	ctx := context.Background()

	t.Run("Inc 与 IncBy 发出浮点增量命令", func(t *testing.T) {
		s := &recordingStorage{}
		c, err := NewCounter(s, "test", "requests_total", "requests", []string{"method"})
		require.NoError(t, err)

		require.NoError(t, c.Inc(ctx, "GET"))
		require.NoError(t, c.IncBy(ctx, 2.5, "POST"))

		require.Len(t, s.counters, 2)
		assert.Equal(t, CounterUpdate{
			Series: Series{
				Name:        "test_requests_total",
				Help:        "requests",
				LabelNames:  []string{"method"},
				LabelValues: []string{"GET"},
			},
			Value:   1,
			Command: CommandIncrementFloat,
		}, s.counters[0])
		assert.Equal(t, 2.5, s.counters[1].Value)
	})

	t.Run("负增量在访问后端之前失败", func(t *testing.T) {
		s := &recordingStorage{}
		c, err := NewCounter(s, "", "c", "", nil)
		require.NoError(t, err)

		err = c.IncBy(ctx, -1)
		assert.ErrorIs(t, err, ErrNegativeIncrement)
		assert.ErrorIs(t, err, ErrUsage)
		assert.Zero(t, s.updates())
	})

	t.Run("标签数量不匹配", func(t *testing.T) {
		s := &recordingStorage{}
		c, err := NewCounter(s, "", "c", "", []string{"a", "b"})
		require.NoError(t, err)

		err = c.Inc(ctx, "only-one")
		assert.ErrorIs(t, err, ErrLabelArity)
		assert.True(t, xerrors.Is(err, xerrors.ErrInvalidInput))
		assert.Zero(t, s.updates())
	})

	t.Run("非法 UTF-8 标签值", func(t *testing.T) {
		s := &recordingStorage{}
		c, err := NewCounter(s, "", "c", "", []string{"a"})
		require.NoError(t, err)

		err = c.Inc(ctx, "\xff")
		assert.ErrorIs(t, err, ErrInvalidLabelValue)
		assert.ErrorIs(t, err, ErrUsage)
		assert.ErrorIs(t, c.Inc(ctx, "\xfe"), ErrInvalidLabelValue)

		require.NoError(t, c.ApplyDefaultLabels(map[string]string{"env": "\xc3"}))
		assert.ErrorIs(t, c.Inc(ctx, "ok"), ErrInvalidLabelValue)
		assert.Zero(t, s.updates())
	})

	t.Run("非有限值", func(t *testing.T) {
		s := &recordingStorage{}
		c, err := NewCounter(s, "", "c", "", nil)
		require.NoError(t, err)

		assert.ErrorIs(t, c.IncBy(ctx, math.NaN()), ErrInvalidValue)
		assert.ErrorIs(t, c.IncBy(ctx, math.Inf(1)), ErrInvalidValue)
		assert.Zero(t, s.updates())
	})

	t.Run("后端错误原样返回", func(t *testing.T) {
		s := &recordingStorage{err: NewStorageError("update counter", "k", xerrors.New("boom"))}
		c, err := NewCounter(s, "", "c", "", nil)
		require.NoError(t, err)

		err = c.Inc(ctx)
		assert.ErrorIs(t, err, ErrStorage)
		var se *StorageError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, "k", se.Key)
	})
}

func TestGauge(t *testing.T) {
	ctx := context.Background()
	s := &recordingStorage{}
	g, err := NewGauge(s, "test", "queue_depth", "depth", []string{"queue"})
	require.NoError(t, err)

	require.NoError(t, g.Set(ctx, 10, "a"))
	require.NoError(t, g.Inc(ctx, "a"))
	require.NoError(t, g.Dec(ctx, "a"))
	require.NoError(t, g.IncBy(ctx, 3, "a"))
	require.NoError(t, g.DecBy(ctx, 0.5, "a"))

	require.Len(t, s.gauges, 5)
	want := []struct {
		cmd Command
		v   float64
	}{
		{CommandSet, 10},
		{CommandIncrementFloat, 1},
		{CommandIncrementFloat, -1},
		{CommandIncrementFloat, 3},
		{CommandIncrementFloat, -0.5},
	}
	for i, w := range want {
		assert.Equal(t, w.cmd, s.gauges[i].Command, "update %d", i)
		assert.Equal(t, w.v, s.gauges[i].Value, "update %d", i)
	}

	assert.ErrorIs(t, g.Set(ctx, 1), ErrLabelArity)
	assert.ErrorIs(t, g.Set(ctx, math.NaN(), "a"), ErrInvalidValue)
}

func TestHistogram(t *testing.T) {
	ctx := context.Background()

	t.Run("选择不小于观测值的最小边界", func(t *testing.T) {
		s := &recordingStorage{}
		h, err := NewHistogram(s, "", "latency", "", nil, []float64{1, 2, 5})
		require.NoError(t, err)

		for _, v := range []float64{0.5, 1, 1.5, 5, 6} {
			require.NoError(t, h.Observe(ctx, v))
		}

		got := make([]float64, 0, len(s.histograms))
		for _, u := range s.histograms {
			got = append(got, u.Bucket)
			assert.Equal(t, []float64{1, 2, 5}, u.Buckets)
		}
		assert.Equal(t, []float64{1, 1, 2, 5, math.Inf(1)}, got)
		assert.Equal(t, 1.5, s.histograms[2].Value)
	})

	t.Run("nil 桶使用默认值", func(t *testing.T) {
		h, err := NewHistogram(&recordingStorage{}, "", "h", "", nil, nil)
		require.NoError(t, err)
		assert.Equal(t, DefaultBuckets, h.Buckets())
	})

	t.Run("非法桶", func(t *testing.T) {
		s := &recordingStorage{}
		for _, buckets := range [][]float64{
			{},
			{1, 1},
			{2, 1},
			{1, math.Inf(1)},
			{math.NaN()},
		} {
			_, err := NewHistogram(s, "", "h", "", nil, buckets)
			assert.ErrorIs(t, err, ErrInvalidBuckets, "%v", buckets)
			assert.ErrorIs(t, err, ErrConfiguration, "%v", buckets)
		}
	})

	t.Run("le 标签保留", func(t *testing.T) {
		_, err := NewHistogram(&recordingStorage{}, "", "h", "", []string{"le"}, nil)
		assert.ErrorIs(t, err, ErrInvalidName)
	})
}

func TestBucketHelpers(t *testing.T) {
	assert.Equal(t, []float64{1, 3, 5}, LinearBuckets(1, 2, 3))
	assert.Equal(t, []float64{1, 10, 100}, ExponentialBuckets(1, 10, 3))
	assert.Nil(t, LinearBuckets(1, 1, 0))
	assert.Nil(t, ExponentialBuckets(0, 2, 3))
}

func TestNameValidation(t *testing.T) {
	s := &recordingStorage{}

	_, err := NewCounter(s, "ns", "bad-name", "", nil)
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = NewCounter(s, "1ns", "x", "", nil)
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = NewGauge(s, "", "ok:name_1", "", []string{"bad label"})
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = NewGauge(s, "", "g", "", []string{"a", "a"})
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = NewGauge(nil, "", "g", "", nil)
	assert.ErrorIs(t, err, ErrStorageNil)

	assert.Equal(t, "ns_name", MetricName("ns", "name"))
	assert.Equal(t, "name", MetricName("", "name"))
}

func TestCollectorDefaultLabels(t *testing.T) {
	ctx := context.Background()
	s := &recordingStorage{}
	c, err := NewCounter(s, "", "c", "", []string{"method"})
	require.NoError(t, err)

	require.NoError(t, c.ApplyDefaultLabels(map[string]string{"zone": "z1", "app": "api"}))
	assert.Equal(t, []string{"method", "app", "zone"}, c.LabelNames())

	require.NoError(t, c.Inc(ctx, "GET"))
	assert.Equal(t, []string{"GET", "api", "z1"}, s.counters[0].LabelValues)
	assert.Equal(t, []string{"method", "app", "zone"}, s.counters[0].LabelNames)

	// 再次设置替换而非追加
	require.NoError(t, c.ApplyDefaultLabels(map[string]string{"app": "web"}))
	assert.Equal(t, []string{"method", "app"}, c.LabelNames())

	err = c.ApplyDefaultLabels(map[string]string{"method": "x"})
	assert.ErrorIs(t, err, ErrInvalidName)
	assert.Equal(t, []string{"method", "app"}, c.LabelNames())

	d := c.Describe()
	assert.Equal(t, "c", d.Name)
	assert.Equal(t, TypeCounter, d.Type)
	assert.Equal(t, []Label{{Name: "app", Value: "web"}}, d.DefaultLabels)
}

func TestFormatBound(t *testing.T) {
	assert.Equal(t, "+Inf", FormatBound(math.Inf(1)))
	assert.Equal(t, "0.005", FormatBound(0.005))
	assert.Equal(t, "1", FormatBound(1))
	assert.Equal(t, "2.5", FormatBound(2.5))
}
