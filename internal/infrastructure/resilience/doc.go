/*
Package resilience provides the circuit breaker that guards the network sink.

# Overview

When the collector is down every flush would otherwise pay a full request
timeout before failing. The breaker fails those calls fast so the delivery
engine can keep its batch and retry on a later flush.

# Usage

	breaker := resilience.New("collector", resilience.Settings{
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: resilience.ConsecutiveFailuresAtLeast(5),
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("breaker state", zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})

	err := breaker.Execute(func() error {
		return sink.post(ctx, payload)
	})

# States

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                    [failure]
	                                           |
	                                           v
	                                         Open
*/
package resilience
