package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/promstore/clog"
	"github.com/ceyewan/promstore/config"
	"github.com/ceyewan/promstore/internal/telemetry"
	"github.com/ceyewan/promstore/prom"
)

// staticStorage 返回固定指标族的只读后端
type staticStorage struct {
	families []prom.MetricFamilySamples
}

func (staticStorage) UpdateCounter(context.Context, prom.CounterUpdate) error     { return nil }
func (staticStorage) UpdateGauge(context.Context, prom.GaugeUpdate) error         { return nil }
func (staticStorage) UpdateHistogram(context.Context, prom.HistogramUpdate) error { return nil }
func (s staticStorage) Collect(context.Context) ([]prom.MetricFamilySamples, error) {
	return s.families, nil
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "promstore.yaml"), []byte(content), 0o644))
	return dir
}

func TestLoadAppConfig(t *testing.T) {
	ctx := context.Background()

	t.Run("文件、默认值与环境变量", func(t *testing.T) {
		dir := writeConfig(t, `
storage:
  driver: ETCD
  prefix: "APP_"
etcd:
  endpoints: ["etcd-1:2379", "etcd-2:2379"]
default_labels:
  env: prod
`)
		t.Setenv("PROMSTORE_PUSHGATEWAY_ADDR", "gw:9091")

		cfg, _, err := loadAppConfig(ctx, &config.Config{Paths: []string{dir}})
		require.NoError(t, err)
		assert.Equal(t, DriverEtcd, cfg.Storage.Driver)
		assert.Equal(t, "APP_", cfg.Storage.Prefix)
		assert.Equal(t, "json", cfg.Storage.MetaCodec)
		assert.Equal(t, []string{"etcd-1:2379", "etcd-2:2379"}, cfg.Etcd.Endpoints)
		assert.Equal(t, "gw:9091", cfg.Pushgateway.Addr)
		assert.Equal(t, 10*time.Second, cfg.Pushgateway.ConnectTimeout)
		assert.Equal(t, map[string]string{"env": "prod"}, cfg.DefaultLabels)
		assert.Equal(t, "stderr", cfg.Log.Output)
	})

	t.Run("未知驱动", func(t *testing.T) {
		dir := writeConfig(t, "storage:\n  driver: mysql\n")
		_, _, err := loadAppConfig(ctx, &config.Config{Paths: []string{dir}})
		assert.ErrorIs(t, err, config.ErrValidationFailed)
	})
}

func TestDump(t *testing.T) {
	ctx := context.Background()
	store := staticStorage{families: []prom.MetricFamilySamples{{
		Name: "jobs_total", Type: prom.TypeCounter, LabelNames: []string{"queue"},
		Samples: []prom.Sample{{Name: "jobs_total", LabelNames: []string{}, LabelValues: []string{"a"}, Value: 4}},
	}}}
	registry, err := prom.NewRegistry(store)
	require.NoError(t, err)

	t.Run("只输出后端指标", func(t *testing.T) {
		a := &app{registry: registry, meter: telemetry.Noop(), logger: clog.Discard()}
		var buf bytes.Buffer
		require.NoError(t, dump(ctx, &buf, a, false))
		assert.Equal(t, "# TYPE jobs_total counter\njobs_total{queue=\"a\"} 4\n", buf.String())
	})

	t.Run("合并自监控指标", func(t *testing.T) {
		meter, err := telemetry.New(&telemetry.Config{Enabled: true})
		require.NoError(t, err)
		defer meter.Shutdown(ctx)

		a := &app{registry: registry, meter: meter, logger: clog.Discard()}
		var buf bytes.Buffer
		require.NoError(t, dump(ctx, &buf, a, true))
		assert.Contains(t, buf.String(), `jobs_total{queue="a"} 4`)
	})
}

func TestDeleteCommand(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	dir := writeConfig(t, "pushgateway:\n  addr: "+strings.TrimPrefix(srv.URL, "http://")+"\n")

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"delete", "--config-path", dir, "--job", "batch", "-g", "instance=host1"})
	require.NoError(t, root.Execute())

	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "/metrics/job/batch/instance/host1", gotPath)
	assert.Contains(t, out.String(), "deleted ")
}

func TestFlushRequiresConfirmation(t *testing.T) {
	dir := writeConfig(t, "storage:\n  prefix: X_\n")

	root := newRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"flush", "--config-path", dir})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")
}

// levelLogger 记录 SetLevel 调用的 logger
type levelLogger struct {
	clog.Logger
	levels chan clog.Level
}

func (l *levelLogger) SetLevel(level clog.Level) error {
	l.levels <- level
	return nil
}

func TestFollowLogLevel(t *testing.T) {
	dir := writeConfig(t, "log:\n  level: info\n")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, loader, err := loadAppConfig(ctx, &config.Config{Paths: []string{dir}})
	require.NoError(t, err)

	logger := &levelLogger{Logger: clog.Discard(), levels: make(chan clog.Level, 1)}
	require.NoError(t, followLogLevel(ctx, loader, logger))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "promstore.yaml"), []byte("log:\n  level: debug\n"), 0o644))

	select {
	case level := <-logger.levels:
		assert.Equal(t, clog.DebugLevel, level)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for log level change")
	}
}
