package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestConfigDefaults(t *testing.T) {
	cfg := &Config{EnvPrefix: "app"}
	require.NoError(t, cfg.validate())
	assert.Equal(t, "promstore", cfg.Name)
	assert.Equal(t, []string{".", "./config"}, cfg.Paths)
	assert.Equal(t, "yaml", cfg.FileType)
	assert.Equal(t, "APP", cfg.EnvPrefix)
}

func TestLoader(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "promstore.yaml"), `
storage:
  driver: redis
  prefix: "APP_"
redis:
  addr: "localhost:6379"
  dial_timeout: 2s
default_labels:
  env: prod
`)

	t.Run("文件与环境变量", func(t *testing.T) {
		t.Setenv("PROMSTORE_REDIS_ADDR", "redis:6380")

		l, err := New(&Config{Paths: []string{dir}})
		require.NoError(t, err)
		require.NoError(t, l.Load(context.Background()))

		assert.Equal(t, "redis", l.Get("storage.driver"))
		assert.Equal(t, "redis:6380", l.Get("redis.addr"))

		var redisCfg struct {
			Addr        string        `mapstructure:"addr"`
			DialTimeout time.Duration `mapstructure:"dial_timeout"`
		}
		require.NoError(t, l.UnmarshalKey("redis", &redisCfg))
		assert.Equal(t, 2*time.Second, redisCfg.DialTimeout)

		var labels map[string]string
		require.NoError(t, l.UnmarshalKey("default_labels", &labels))
		assert.Equal(t, map[string]string{"env": "prod"}, labels)
	})

	t.Run("默认值参与环境变量绑定", func(t *testing.T) {
		t.Setenv("PROMSTORE_PUSHGATEWAY_ADDR", "gw:9091")

		l, err := New(&Config{Paths: []string{dir}})
		require.NoError(t, err)
		l.SetDefault("pushgateway.addr", "")
		require.NoError(t, l.Load(context.Background()))

		var out struct {
			Pushgateway struct {
				Addr string `mapstructure:"addr"`
			} `mapstructure:"pushgateway"`
		}
		require.NoError(t, l.Unmarshal(&out))
		assert.Equal(t, "gw:9091", out.Pushgateway.Addr)
	})

	t.Run("环境特定配置覆盖基础配置", func(t *testing.T) {
		writeFile(t, filepath.Join(dir, "promstore.test.yaml"), "storage:\n  driver: etcd\n")
		t.Setenv("PROMSTORE_ENV", "test")

		l, err := New(&Config{Paths: []string{dir}})
		require.NoError(t, err)
		require.NoError(t, l.Load(context.Background()))
		assert.Equal(t, "etcd", l.Get("storage.driver"))
		assert.Equal(t, "APP_", l.Get("storage.prefix"))
	})
}

func TestLoaderEmpty(t *testing.T) {
	l, err := New(&Config{Name: "missing", Paths: []string{t.TempDir()}})
	require.NoError(t, err)

	err = l.Load(context.Background())
	assert.ErrorIs(t, err, ErrValidationFailed)
	assert.True(t, IsInvalidInput(err))

	assert.Panics(t, func() {
		MustLoad(context.Background(), &Config{Name: "missing", Paths: []string{t.TempDir()}})
	})
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "promstore.yaml")
	writeFile(t, file, "log:\n  level: info\n")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	l, err := New(&Config{Paths: []string{dir}})
	require.NoError(t, err)
	require.NoError(t, l.Load(ctx))

	ch, err := l.Watch(ctx, "log.level")
	require.NoError(t, err)

	writeFile(t, file, "log:\n  level: debug\n")

	select {
	case event := <-ch:
		assert.Equal(t, "log.level", event.Key)
		assert.Equal(t, "debug", event.Value)
		assert.Equal(t, "info", event.OldValue)
		assert.Equal(t, "file", event.Source)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for config change event")
	}

	cancel()
	require.Eventually(t, func() bool {
		_, ok := <-ch
		return !ok
	}, time.Second, 10*time.Millisecond)
}
