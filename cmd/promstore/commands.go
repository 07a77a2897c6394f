package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ceyewan/promstore/clog"
	"github.com/ceyewan/promstore/config"
	"github.com/ceyewan/promstore/expose"
	"github.com/ceyewan/promstore/internal/telemetry"
	"github.com/ceyewan/promstore/pushgateway"
	"github.com/ceyewan/promstore/trace"
)

// 全局参数
type rootFlags struct {
	configName  string
	configPaths []string
	debug       bool
	selfMetrics bool
	timeout     time.Duration
}

// session 由 PersistentPreRunE 构建，供子命令使用
type session struct {
	flags         rootFlags
	cfg           *AppConfig
	loader        config.Loader
	logger        clog.Logger
	meter         telemetry.Meter
	traceShutdown func(context.Context) error
}

func newRootCmd() *cobra.Command {
	s := &session{}

	root := &cobra.Command{
		Use:          "promstore",
		Short:        "Inspect and ship Prometheus metrics kept in a shared backend",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return s.init(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return s.close(cmd.Context())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&s.flags.configName, "config", "c", "promstore", "Config file name without extension")
	flags.StringSliceVar(&s.flags.configPaths, "config-path", []string{".", "./config"}, "Config file search paths")
	flags.BoolVarP(&s.flags.debug, "debug", "d", false, "Enable debug logs")
	flags.BoolVar(&s.flags.selfMetrics, "self-metrics", false, "Record and expose promstore's own storage metrics")
	flags.DurationVar(&s.flags.timeout, "timeout", 30*time.Second, "Timeout for backend and push operations")

	root.AddCommand(
		newDumpCmd(s),
		newPushCmd(s),
		newDeleteCmd(s),
		newFlushCmd(s),
	)
	return root
}

func (s *session) init(ctx context.Context) error {
	cfg, loader, err := loadAppConfig(ctx, &config.Config{Name: s.flags.configName, Paths: s.flags.configPaths})
	if err != nil {
		return err
	}
	if s.flags.debug {
		cfg.Log.Level = "debug"
	}
	if s.flags.selfMetrics {
		cfg.Telemetry.Enabled = true
	}

	logger, err := newLogger(&cfg.Log)
	if err != nil {
		return err
	}
	meter, err := telemetry.New(&cfg.Telemetry)
	if err != nil {
		return err
	}
	s.cfg, s.loader, s.logger, s.meter = cfg, loader, logger, meter

	if cfg.Trace.Enabled() {
		shutdown, err := trace.Init(&cfg.Trace)
		if err != nil {
			return err
		}
		s.traceShutdown = shutdown
		logger.Debug("tracing enabled", clog.String("endpoint", cfg.Trace.Endpoint))
	}
	return nil
}

func (s *session) close(ctx context.Context) error {
	if s.traceShutdown != nil {
		if err := s.traceShutdown(ctx); err != nil {
			s.logger.Warn("failed to flush spans", clog.Error(err))
		}
	}
	if s.meter != nil {
		_ = s.meter.Shutdown(ctx)
	}
	if s.logger != nil {
		s.logger.Flush()
	}
	return nil
}

// withApp 打开后端执行 fn，结束后关闭连接
func (s *session) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), s.flags.timeout)
	defer cancel()

	a, err := openApp(ctx, s.cfg, s.logger, s.meter)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func newDumpCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "dump",
		Short: "Print all stored metrics in the Prometheus text format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return s.withApp(cmd, func(ctx context.Context, a *app) error {
				return dump(ctx, cmd.OutOrStdout(), a, s.flags.selfMetrics)
			})
		},
	}
}

// dump 输出后端中的指标，selfMetrics 时追加本进程的自监控指标
func dump(ctx context.Context, w io.Writer, a *app, selfMetrics bool) error {
	if !selfMetrics {
		families, err := a.registry.GetMetricFamilySamples(ctx)
		if err != nil {
			return err
		}
		return expose.Render(w, families)
	}
	timeout := time.Duration(0)
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	return expose.RenderGathered(w, prometheus.Gatherers{
		expose.Gatherer(a.registry, timeout),
		a.meter.Gatherer(),
	})
}

func newPushCmd(s *session) *cobra.Command {
	var (
		job      string
		grouping map[string]string
		add      bool
		every    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "push",
		Short: "Push all stored metrics to the Pushgateway",
		Long: "Push replaces every metric of the job (PUT). With --add only metrics with the same name are replaced (POST).\n" +
			"With --every the push repeats until interrupted or until a push fails.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := s.pushClient()
			if err != nil {
				return err
			}
			push := func(ctx context.Context, a *app) error {
				var err error
				if add {
					err = client.PushAdd(ctx, a.registry, job, grouping)
				} else {
					err = client.Push(ctx, a.registry, job, grouping)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "pushed to %s\n", client.URL(job, grouping))
				return nil
			}
			if every <= 0 {
				return s.withApp(cmd, push)
			}
			return s.repeat(cmd, every, push)
		},
	}
	cmd.Flags().StringVar(&job, "job", "", "Job name")
	cmd.Flags().StringToStringVarP(&grouping, "grouping", "g", nil, "Grouping key labels, e.g. instance=host1")
	cmd.Flags().BoolVar(&add, "add", false, "Use POST instead of PUT")
	cmd.Flags().DurationVar(&every, "every", 0, "Repeat the push at this interval")
	_ = cmd.MarkFlagRequired("job")
	return cmd
}

// repeat 打开一次后端，按间隔执行 fn，每次执行单独计算超时。
// 收到中断信号时正常退出，fn 失败时返回错误。
// 运行期间配置文件中的 log.level 变化会立即生效（--debug 时除外）。
func (s *session) repeat(cmd *cobra.Command, every time.Duration, fn func(ctx context.Context, a *app) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	openCtx, cancel := context.WithTimeout(ctx, s.flags.timeout)
	a, err := openApp(openCtx, s.cfg, s.logger, s.meter)
	cancel()
	if err != nil {
		return err
	}
	defer a.Close()

	if s.loader != nil && !s.flags.debug {
		if err := followLogLevel(ctx, s.loader, s.logger); err != nil {
			return err
		}
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		runCtx, cancel := context.WithTimeout(ctx, s.flags.timeout)
		err := fn(runCtx, a)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case <-ctx.Done():
			s.logger.Info("stopped", clog.String("reason", context.Cause(ctx).Error()))
			return nil
		case <-ticker.C:
		}
	}
}

func newDeleteCmd(s *session) *cobra.Command {
	var (
		job      string
		grouping map[string]string
	)
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a job's metrics from the Pushgateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), s.flags.timeout)
			defer cancel()

			client, err := s.pushClient()
			if err != nil {
				return err
			}
			if err := client.Delete(ctx, job, grouping); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", client.URL(job, grouping))
			return nil
		},
	}
	cmd.Flags().StringVar(&job, "job", "", "Job name")
	cmd.Flags().StringToStringVarP(&grouping, "grouping", "g", nil, "Grouping key labels, e.g. instance=host1")
	_ = cmd.MarkFlagRequired("job")
	return cmd
}

func newFlushCmd(s *session) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "flush",
		Short: "Remove every stored metric under the configured prefix",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return fmt.Errorf("refusing to flush prefix %q without --yes", s.cfg.Storage.Prefix)
			}
			return s.withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.registry.Flush(ctx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "flushed prefix %q\n", s.cfg.Storage.Prefix)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the flush")
	return cmd
}

func (s *session) pushClient() (*pushgateway.Client, error) {
	return pushgateway.New(&s.cfg.Pushgateway,
		pushgateway.WithLogger(s.logger),
		pushgateway.WithMeter(s.meter))
}
