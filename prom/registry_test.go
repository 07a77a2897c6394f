package prom

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/promstore/clog"
	"github.com/ceyewan/promstore/xerrors"
)

func newTestRegistry(t *testing.T, s Storage, opts ...Option) *Registry {
	t.Helper()
	r, err := NewRegistry(s, append([]Option{WithLogger(clog.Discard())}, opts...)...)
	require.NoError(t, err)
	return r
}

func TestRegistryRegister(t *testing.T) {
	t.Run("重复注册", func(t *testing.T) {
		r := newTestRegistry(t, &recordingStorage{})
		_, err := r.RegisterCounter("app", "jobs", "", nil)
		require.NoError(t, err)

		_, err = r.RegisterCounter("app", "jobs", "", nil)
		assert.ErrorIs(t, err, ErrDuplicateMetric)
		assert.ErrorIs(t, err, ErrConfiguration)

		// 标识在类型之间唯一
		_, err = r.RegisterGauge("app", "jobs", "", nil)
		assert.ErrorIs(t, err, ErrDuplicateMetric)
		_, err = r.RegisterHistogram("app", "jobs", "", nil, nil)
		assert.ErrorIs(t, err, ErrDuplicateMetric)

		// 其他命名空间不冲突
		_, err = r.RegisterGauge("other", "jobs", "", nil)
		assert.NoError(t, err)
	})

	t.Run("未注册", func(t *testing.T) {
		r := newTestRegistry(t, &recordingStorage{})
		_, err := r.GetCounter("app", "missing")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.True(t, xerrors.Is(err, xerrors.ErrNotFound))

		_, err = r.RegisterGauge("app", "g", "", nil)
		require.NoError(t, err)
		_, err = r.GetCounter("app", "g")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = r.GetHistogram("app", "g")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Get 返回同一实例", func(t *testing.T) {
		r := newTestRegistry(t, &recordingStorage{})
		c, err := r.RegisterCounter("app", "c", "", nil)
		require.NoError(t, err)
		g, err := r.RegisterGauge("app", "g", "", nil)
		require.NoError(t, err)
		h, err := r.RegisterHistogram("app", "h", "", nil, []float64{1})
		require.NoError(t, err)

		assert.Same(t, c, xerrors.Must(r.GetCounter("app", "c")))
		assert.Same(t, g, xerrors.Must(r.GetGauge("app", "g")))
		assert.Same(t, h, xerrors.Must(r.GetHistogram("app", "h")))
	})

	t.Run("非法名称不占用标识", func(t *testing.T) {
		r := newTestRegistry(t, &recordingStorage{})
		_, err := r.RegisterCounter("app", "bad-name", "", nil)
		require.ErrorIs(t, err, ErrInvalidName)
		_, err = r.GetCounter("app", "bad-name")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("nil 后端", func(t *testing.T) {
		_, err := NewRegistry(nil)
		assert.ErrorIs(t, err, ErrStorageNil)
	})
}

func TestRegistryGetOrRegister(t *testing.T) {
	r := newTestRegistry(t, &recordingStorage{})

	c1, err := r.GetOrRegisterCounter("app", "c", "help", []string{"a"})
	require.NoError(t, err)
	c2, err := r.GetOrRegisterCounter("app", "c", "help", []string{"a"})
	require.NoError(t, err)
	assert.Same(t, c1, c2)

	g1, err := r.GetOrRegisterGauge("app", "g", "", nil)
	require.NoError(t, err)
	g2, err := r.GetOrRegisterGauge("app", "g", "", nil)
	require.NoError(t, err)
	assert.Same(t, g1, g2)

	h1, err := r.GetOrRegisterHistogram("app", "h", "", nil, []float64{1, 2})
	require.NoError(t, err)
	h2, err := r.GetOrRegisterHistogram("app", "h", "", nil, []float64{5})
	require.NoError(t, err)
	assert.Same(t, h1, h2)
	assert.Equal(t, []float64{1, 2}, h2.Buckets())

	_, err = r.GetOrRegisterGauge("app", "c", "", nil)
	assert.ErrorIs(t, err, ErrDuplicateMetric)
}

func TestRegistryGetOrRegisterConcurrent(t *testing.T) {
	r := newTestRegistry(t, &recordingStorage{})

	const n = 32
	got := make([]*Counter, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := r.GetOrRegisterCounter("app", "c", "", nil)
			assert.NoError(t, err)
			got[i] = c
		}()
	}
	wg.Wait()

	for _, c := range got {
		assert.Same(t, got[0], c)
	}
}

func TestRegistryDefaultLabels(t *testing.T) {
	ctx := context.Background()

	t.Run("作用于已注册和之后注册的收集器", func(t *testing.T) {
		s := &recordingStorage{}
		r := newTestRegistry(t, s)

		before, err := r.RegisterCounter("app", "before", "", []string{"method"})
		require.NoError(t, err)

		require.NoError(t, r.ApplyDefaultLabels(map[string]string{"host": "h1", "env": "prod"}))

		after, err := r.RegisterGauge("app", "after", "", nil)
		require.NoError(t, err)

		require.NoError(t, before.Inc(ctx, "GET"))
		require.NoError(t, after.Set(ctx, 1))

		assert.Equal(t, []string{"method", "env", "host"}, s.counters[0].LabelNames)
		assert.Equal(t, []string{"GET", "prod", "h1"}, s.counters[0].LabelValues)
		assert.Equal(t, []string{"env", "host"}, s.gauges[0].LabelNames)
		assert.Equal(t, []string{"prod", "h1"}, s.gauges[0].LabelValues)
	})

	t.Run("WithDefaultLabels", func(t *testing.T) {
		s := &recordingStorage{}
		r := newTestRegistry(t, s, WithDefaultLabels(map[string]string{"env": "dev"}))
		c, err := r.RegisterCounter("", "c", "", nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"env"}, c.LabelNames())
	})

	t.Run("校验失败时不改动任何收集器", func(t *testing.T) {
		r := newTestRegistry(t, &recordingStorage{})
		c, err := r.RegisterCounter("", "c", "", []string{"a"})
		require.NoError(t, err)
		h, err := r.RegisterHistogram("", "h", "", nil, nil)
		require.NoError(t, err)

		err = r.ApplyDefaultLabels(map[string]string{"le": "x"})
		assert.ErrorIs(t, err, ErrInvalidName)
		assert.Equal(t, []string{"a"}, c.LabelNames())
		assert.Empty(t, h.LabelNames())

		err = r.ApplyDefaultLabels(map[string]string{"a": "x"})
		assert.ErrorIs(t, err, ErrInvalidName)
		assert.Empty(t, h.LabelNames())
	})
}

func TestRegistryCollectAndFlush(t *testing.T) {
	ctx := context.Background()

	t.Run("委托给后端", func(t *testing.T) {
		want := []MetricFamilySamples{{Name: "x", Type: TypeCounter}}
		r := newTestRegistry(t, &recordingStorage{families: want})
		got, err := r.GetMetricFamilySamples(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("不支持 Flush", func(t *testing.T) {
		r := newTestRegistry(t, &recordingStorage{})
		assert.ErrorIs(t, r.Flush(ctx), ErrUnsupported)
	})

	t.Run("Flush", func(t *testing.T) {
		s := &flushingStorage{}
		r := newTestRegistry(t, s)
		require.NoError(t, r.Flush(ctx))
		assert.Equal(t, 1, s.flushed)
	})
}
