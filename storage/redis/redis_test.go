package redis

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/promstore/clog"
	"github.com/ceyewan/promstore/prom"
	"github.com/ceyewan/promstore/xerrors"
)

func TestConfig(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, cfg.validate())
	assert.Equal(t, "PROMETHEUS_", cfg.Prefix)
	assert.Equal(t, "json", cfg.MetaCodec)

	err := (&Config{MetaCodec: "xml"}).validate()
	require.Error(t, err)
}

func TestNewErrors(t *testing.T) {
	_, err := New(nil, nil)
	assert.ErrorIs(t, err, ErrConnectorNil)
	assert.ErrorIs(t, err, prom.ErrConfiguration)

	client := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:1"})
	defer client.Close()
	_, err = NewWithClient(client, &Config{MetaCodec: "xml"})
	assert.ErrorIs(t, err, prom.ErrConfiguration)
}

func TestCommandArgs(t *testing.T) {
	cmd, arg, err := commandArgs(prom.CommandIncrementInteger, 3)
	require.NoError(t, err)
	assert.Equal(t, "HINCRBY", cmd)
	assert.Equal(t, "3", arg)

	_, _, err = commandArgs(prom.CommandIncrementInteger, 1.5)
	assert.ErrorIs(t, err, prom.ErrInvalidValue)

	cmd, arg, err = commandArgs(prom.CommandIncrementFloat, -0.25)
	require.NoError(t, err)
	assert.Equal(t, "HINCRBYFLOAT", cmd)
	assert.Equal(t, "-0.25", arg)

	cmd, arg, err = commandArgs(prom.CommandSet, 1e21)
	require.NoError(t, err)
	assert.Equal(t, "HSET", cmd)
	assert.Equal(t, "1e+21", arg)

	_, _, err = commandArgs(prom.Command(42), 1)
	assert.ErrorIs(t, err, prom.ErrUnsupported)
}

// TestUnreachableServer 后端不可达时所有操作返回 ErrStorage
func TestUnreachableServer(t *testing.T) {
	client := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	store, err := NewWithClient(client, nil, WithLogger(clog.Discard()))
	require.NoError(t, err)
	registry, err := prom.NewRegistry(store)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := registry.RegisterCounter("test", "c", "", nil)
	require.NoError(t, err)
	err = c.Inc(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, prom.ErrStorage)
	assert.True(t, xerrors.Is(err, xerrors.ErrUnavailable))

	var se *prom.StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "PROMETHEUS_:counter:test_c", se.Key)

	h, err := registry.RegisterHistogram("test", "h", "", nil, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, h.Observe(ctx, 1), prom.ErrStorage)

	_, err = registry.GetMetricFamilySamples(ctx)
	assert.ErrorIs(t, err, prom.ErrStorage)

	assert.ErrorIs(t, registry.Flush(ctx), prom.ErrStorage)
}
