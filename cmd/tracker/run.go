package main

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/tracker/internal/engine"
	"github.com/GriffinCanCode/tracker/internal/infrastructure/config"
	"github.com/GriffinCanCode/tracker/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/tracker/internal/trace"
)

// Control lines understood by the stdin driver
const (
	cmdFlush = "!flush"
	cmdClose = "!close"
)

type runOptions struct {
	sink   string
	format string
	file   string
	host   string
	tick   time.Duration
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := runOptions{tick: 100 * time.Millisecond}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Deliver traces read from stdin",
		Long: `Reads one event per line as comma separated fields ("screen,menu"),
stamps each with the current time and delivers them in batches.
A line "!flush" requests a flush, "!close" or EOF closes the tracker.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load(cmd)
			if err != nil {
				return err
			}
			opts.apply(cmd, cfg)

			logger := newLogger(cfg)
			defer func() { _ = logger.Sync() }()

			ctx, cancel := signalAwareContext(cmd.Context())
			defer cancel()

			return run(ctx, cfg, opts.tick, cmd.InOrStdin(), logger.Logger)
		},
	}

	cmd.Flags().StringVar(&opts.sink, "sink", "", "sink: local or net")
	cmd.Flags().StringVar(&opts.format, "format", "", "codec: lines or xapi")
	cmd.Flags().StringVar(&opts.file, "file", "", "local sink file")
	cmd.Flags().StringVar(&opts.host, "host", "", "collector base URL")
	cmd.Flags().DurationVar(&opts.tick, "tick", opts.tick, "driver tick period")
	return cmd
}

func (o *runOptions) apply(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("sink") {
		cfg.Tracker.Sink = o.sink
	}
	if cmd.Flags().Changed("format") {
		cfg.Tracker.Format = o.format
	}
	if cmd.Flags().Changed("file") {
		cfg.Tracker.File = o.file
	}
	if cmd.Flags().Changed("host") {
		cfg.Tracker.Host = o.host
	}
}

func run(ctx context.Context, cfg *config.Config, tick time.Duration, in io.Reader, logger *zap.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitoring.NewMetrics(reg)

	eng, err := buildEngine(cfg, logger, metrics)
	if err != nil {
		return err
	}
	logger.Info("Tracker starting",
		zap.String("sink", cfg.Tracker.Sink),
		zap.String("format", cfg.Tracker.Format),
		zap.Duration("flush_interval", cfg.Tracker.FlushInterval),
	)

	if cfg.Server.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              cfg.Server.MetricsAddr,
			Handler:           statusRouter(eng, reg),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server failed", zap.Error(err))
			}
		}()
		defer srv.Close()
	}

	return drive(ctx, eng, in, tick, cfg.Tracker.CloseRetries, cfg.Tracker.CloseBackoff, logger)
}

// statusRouter serves /metrics and /healthz for a running engine
func statusRouter(eng *engine.Engine, gatherer prometheus.Gatherer) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	router.GET("/healthz", func(c *gin.Context) {
		status := eng.Status()
		code := http.StatusOK
		if status.Closed {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, status)
	})
	return router
}

// drive feeds stdin lines to the engine and ticks it until EOF, a close
// line or ctx ends, then closes the engine.
func drive(ctx context.Context, eng *engine.Engine, in io.Reader, tick time.Duration, retries int, backoff time.Duration, logger *zap.Logger) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	if err := eng.Start(); err != nil {
		return err
	}

	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	last := time.Now()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case now := <-ticker.C:
			eng.Tick(now.Sub(last))
			last = now
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			if !handleLine(eng, line, logger) {
				break loop
			}
		}
	}

	select {
	case err := <-readErr:
		if err != nil {
			logger.Warn("Input read failed", zap.Error(err))
		}
	default:
	}

	// Close gets its own deadline so a cancelled run still drains
	timeout := time.Duration(retries+1) * backoff
	closeCtx, cancel := context.WithTimeout(context.Background(), timeout+5*time.Second)
	defer cancel()
	return eng.Close(closeCtx)
}

// handleLine applies one input line and reports whether to keep going
func handleLine(eng *engine.Engine, line string, logger *zap.Logger) bool {
	line = strings.TrimSpace(line)
	switch line {
	case "":
		return true
	case cmdFlush:
		eng.RequestFlush()
		return true
	case cmdClose:
		return false
	}

	fields, err := trace.Split(line)
	if err != nil {
		logger.Warn("Skipping malformed line", zap.String("line", line), zap.Error(err))
		return true
	}
	if err := eng.Record(fields...); err != nil {
		logger.Warn("Trace rejected", zap.Error(err))
	}
	return true
}
