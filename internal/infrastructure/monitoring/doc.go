/*
Package monitoring provides Prometheus metrics for the tracker.

# Overview

Metrics cover the pending and in-flight queues, session handshakes,
batch deliveries and the reference collector's HTTP surface. Collectors
are registered on a caller-supplied registerer so tests can use a
fresh registry.

# Usage

	metrics := monitoring.NewMetrics(prometheus.DefaultRegisterer)

	// Time a delivery
	timer := monitoring.NewTimer(metrics, "net", len(batch))
	// ... wait for the outcome ...
	timer.Stop(monitoring.OutcomeSuccess)

	// Collector router
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

A nil *Metrics records nothing.
*/
package monitoring
