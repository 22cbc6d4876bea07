package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/tracker/internal/infrastructure/config"
	"github.com/GriffinCanCode/tracker/internal/infrastructure/logging"
)

type rootOptions struct {
	configPath string
	logLevel   string
	dev        bool
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "tracker",
		Short:         "Buffered trace delivery to a file or a collector",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML or TOML config file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&opts.dev, "dev", false, "development logging")

	root.AddCommand(
		newRunCmd(opts),
		newCollectCmd(opts),
		newSplitCmd(),
	)
	return root
}

// load resolves configuration from the file, environment and root flags
func (o *rootOptions) load(cmd *cobra.Command) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.LoadFile(o.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level = o.logLevel
	}
	if cmd.Flags().Changed("dev") {
		cfg.Logging.Development = o.dev
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *logging.Logger {
	return logging.FromLevel(cfg.Logging.Level, cfg.Logging.Development)
}

func signalAwareContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(signals)
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
