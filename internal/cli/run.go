package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tyde/framescope/clock"
	"github.com/tyde/framescope/internal/config"
	"github.com/tyde/framescope/internal/logging"
	"github.com/tyde/framescope/internal/loop"
	"github.com/tyde/framescope/internal/metrics"
	"github.com/tyde/framescope/internal/procstat"
	"github.com/tyde/framescope/profiler"
)

func newRunCmd(resolve func() (string, error)) *cobra.Command {
	var (
		frameSeconds float64
		frames       int
		strict       bool
		capacity     int
		metricsAddr  string
		logLevel     string
		noProcess    bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the demonstration frame loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolve()
			if err != nil {
				return err
			}
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("frame-seconds") {
				cfg.FrameSeconds = frameSeconds
			}
			if flags.Changed("frames") {
				cfg.Frames = frames
			}
			if flags.Changed("strict") {
				cfg.Strict = strict
			}
			if flags.Changed("capacity") {
				cfg.Capacity = capacity
			}
			if flags.Changed("metrics-addr") {
				cfg.MetricsAddr = metricsAddr
			}
			if flags.Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if noProcess {
				cfg.ShowProcess = false
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, cmd)
		},
	}

	cmd.Flags().Float64Var(&frameSeconds, "frame-seconds", 0, "target frame length in seconds")
	cmd.Flags().IntVar(&frames, "frames", 0, "stop after this many frames (0 runs until interrupted)")
	cmd.Flags().BoolVar(&strict, "strict", false, "panic on instrumentation misuse")
	cmd.Flags().IntVar(&capacity, "capacity", 0, "maximum distinct region names (0 is unbounded)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	cmd.Flags().BoolVar(&noProcess, "no-process", false, "do not print process CPU usage")

	return cmd
}

func run(ctx context.Context, cfg config.Config, cmd *cobra.Command) error {
	logCfg := logging.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.PrettyLogs,
		Output: cmd.ErrOrStderr(),
	}
	logger := logging.New(logCfg)

	clk := clock.NewWall()
	prof := profiler.New(clk,
		profiler.WithLogger(logger.With().Str("component", "profiler").Logger()),
		profiler.WithStrict(cfg.Strict),
		profiler.WithCapacity(cfg.Capacity),
	)

	options := []loop.Option{loop.WithLogger(logger.With().Str("component", "loop").Logger())}

	if cfg.ShowProcess {
		sampler, err := procstat.NewSelf()
		if err != nil {
			logger.Warn().Err(err).Msg("Process sampling disabled")
		} else {
			options = append(options, loop.WithProcessSampler(sampler))
		}
	}

	var server *http.Server
	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		exporter, err := metrics.New(reg)
		if err != nil {
			return err
		}
		options = append(options, loop.WithExporter(exporter))

		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(reg))
		server = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	l, err := loop.New(loop.Config{
		FrameSeconds: cfg.FrameSeconds,
		Frames:       cfg.Frames,
	}, prof, clk, cmd.OutOrStdout(), options...)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	loopCtx, stopLoop := context.WithCancel(gctx)
	defer stopLoop()

	g.Go(func() error {
		defer stopLoop()
		return l.Run(loopCtx)
	})

	if server != nil {
		g.Go(func() error {
			return serveMetrics(server, logger)
		})
		g.Go(func() error {
			<-loopCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("frame loop failed: %w", err)
	}
	return nil
}

func serveMetrics(server *http.Server, logger zerolog.Logger) error {
	logger.Info().Str("addr", server.Addr).Msg("Serving metrics")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server failed: %w", err)
	}
	return nil
}
