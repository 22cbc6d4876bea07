package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/bytedance/sonic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/tracker/internal/collector"
	"github.com/GriffinCanCode/tracker/internal/infrastructure/monitoring"
)

type collectOptions struct {
	addr      string
	out       string
	auth      string
	actor     string
	activity  string
	rateLimit float64
	maxBody   int64
	keep      int
}

func newCollectCmd(root *rootOptions) *cobra.Command {
	var opts collectOptions

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Run the reference collector",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load(cmd)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("addr") {
				opts.addr = cfg.Server.CollectorAddr
			}

			logger := newLogger(cfg)
			defer func() { _ = logger.Sync() }()

			ccfg, err := opts.collectorConfig()
			if err != nil {
				return err
			}

			var out io.Writer = cmd.OutOrStdout()
			if opts.out != "" && opts.out != "-" {
				f, err := os.OpenFile(opts.out, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
				if err != nil {
					return fmt.Errorf("open output: %w", err)
				}
				defer func() {
					if err := f.Close(); err != nil {
						logger.Error("Failed to close output", zap.Error(err))
					}
				}()
				out = f
			}

			reg := prometheus.NewRegistry()
			ccfg.Gatherer = reg
			server := collector.New(ccfg, out, logger.Logger, monitoring.NewMetrics(reg))

			ctx, cancel := signalAwareContext(cmd.Context())
			defer cancel()
			return server.Run(ctx, opts.addr)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", "", "listen address (default COLLECTOR_ADDR)")
	cmd.Flags().StringVar(&opts.out, "out", "-", "append received batches to this file; - for stdout")
	cmd.Flags().StringVar(&opts.auth, "auth", "", "required Authorization header on session start")
	cmd.Flags().StringVar(&opts.actor, "actor", `{"name":"anonymous"}`, "actor JSON returned on session start")
	cmd.Flags().StringVar(&opts.activity, "activity", "", "activity id returned on session start")
	cmd.Flags().Float64Var(&opts.rateLimit, "rate-limit", 0, "requests per second; 0 disables")
	cmd.Flags().Int64Var(&opts.maxBody, "max-body", collector.DefaultMaxBodyBytes, "largest accepted track body in bytes, after decompression")
	cmd.Flags().IntVar(&opts.keep, "keep", -1, "recent batches held in memory; negative keeps none")
	return cmd
}

func (o *collectOptions) collectorConfig() (collector.Config, error) {
	cfg := collector.Config{
		Authorization: o.auth,
		ActivityID:    o.activity,
		RateLimit:     o.rateLimit,
		MaxBodyBytes:  o.maxBody,
		KeepBatches:   o.keep,
	}
	if o.actor != "" {
		if !sonic.Valid([]byte(o.actor)) {
			return cfg, fmt.Errorf("actor is not valid JSON: %s", o.actor)
		}
		cfg.Actor = json.RawMessage(o.actor)
	}
	return cfg, nil
}
