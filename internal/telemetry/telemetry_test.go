package telemetry

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNew(t *testing.T) {
	t.Run("未启用返回 noop", func(t *testing.T) {
		m, err := New(&Config{Enabled: false})
		require.NoError(t, err)
		assert.IsType(t, noopMeter{}, m)

		m, err = New(nil)
		require.NoError(t, err)
		families, err := m.Gatherer().Gather()
		require.NoError(t, err)
		assert.Empty(t, families)
	})

	t.Run("启用后记录操作", func(t *testing.T) {
		ctx := context.Background()
		m, err := New(&Config{Enabled: true, ServiceName: "promstore-test"})
		require.NoError(t, err)
		defer func() { _ = m.Shutdown(ctx) }()

		ops, err := NewOps(m, "redis")
		require.NoError(t, err)
		ops.Observe(ctx, "update_counter", time.Now(), nil)
		ops.Observe(ctx, "collect", time.Now(), errors.New("boom"))

		families, err := m.Gatherer().Gather()
		require.NoError(t, err)

		var names []string
		for _, f := range families {
			names = append(names, f.GetName())
		}
		assert.True(t, containsPrefix(names, "promstore_storage_operations"), "%v", names)
		assert.True(t, containsPrefix(names, "promstore_storage_operation_duration_seconds"), "%v", names)
	})
}

func TestNewOpsNilMeter(t *testing.T) {
	ops, err := NewOps(nil, "etcd")
	require.NoError(t, err)
	assert.NotPanics(t, func() {
		ops.Observe(context.Background(), "flush", time.Now(), nil)
	})
}

func containsPrefix(names []string, prefix string) bool {
	for _, n := range names {
		if strings.HasPrefix(n, prefix) {
			return true
		}
	}
	return false
}

func TestOpsStartRecordsSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	ops, err := NewOps(nil, "redis")
	require.NoError(t, err)

	_, end := ops.Start(context.Background(), "collect")
	end(errors.New("boom"))
	_, end = ops.Start(context.Background(), "flush")
	end(nil)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "redis.collect", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "redis.flush", spans[1].Name())
	assert.Equal(t, codes.Unset, spans[1].Status().Code)
}
