package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/tracker/internal/codec"
	"github.com/GriffinCanCode/tracker/internal/engine"
	"github.com/GriffinCanCode/tracker/internal/infrastructure/config"
	"github.com/GriffinCanCode/tracker/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/tracker/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/tracker/internal/transport"
)

// buildTransport creates the sink selected by cfg
func buildTransport(cfg *config.Config, logger *zap.Logger, metrics *monitoring.Metrics) (transport.Transport, error) {
	switch cfg.Tracker.Sink {
	case config.SinkLocal:
		local := transport.NewLocal(cfg.Tracker.File, logger)
		if cfg.Tracker.Actor != "" {
			body, err := sonic.Marshal(codec.SessionContext{
				Actor:      json.RawMessage(cfg.Tracker.Actor),
				ActivityID: cfg.Tracker.ActivityID,
			})
			if err != nil {
				return nil, fmt.Errorf("encode local session: %w", err)
			}
			local.WithSession(body)
		}
		return local, nil
	case config.SinkNet:
		client := transport.NewClient(transport.ClientConfig{
			Timeout:         cfg.HTTP.Timeout,
			Retries:         cfg.HTTP.Retries,
			RetryWait:       time.Second,
			RetryMaxWait:    30 * time.Second,
			RateLimit:       cfg.HTTP.RateLimit,
			BreakerFailures: cfg.Breaker.Failures,
			BreakerTimeout:  cfg.Breaker.Timeout,
			OnBreakerChange: func(name string, from, to resilience.State) {
				metrics.SetBreakerState(name, int(to))
				logger.Warn("Circuit breaker state changed",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		})
		return transport.NewNet(transport.NetConfig{
			Host:          cfg.Tracker.Host,
			TrackingCode:  cfg.Tracker.TrackingCode,
			Authorization: cfg.Tracker.Authorization,
			Compression:   cfg.HTTP.Compression,
		}, client, logger)
	default:
		return nil, fmt.Errorf("%w: unknown sink %q", config.ErrInvalidConfig, cfg.Tracker.Sink)
	}
}

// buildEngine wires codec, transport, logging and metrics into an engine
func buildEngine(cfg *config.Config, logger *zap.Logger, metrics *monitoring.Metrics) (*engine.Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c, err := codec.New(cfg.Tracker.Format)
	if err != nil {
		return nil, err
	}
	t, err := buildTransport(cfg, logger, metrics)
	if err != nil {
		return nil, err
	}

	eng := engine.New(t, c, engine.Config{
		FlushInterval: cfg.Tracker.FlushInterval,
		CloseRetries:  cfg.Tracker.CloseRetries,
		CloseBackoff:  cfg.Tracker.CloseBackoff,
		QueueLimit:    cfg.Tracker.QueueLimit,
	})
	return eng.WithLogger(logger).WithMetrics(metrics), nil
}
