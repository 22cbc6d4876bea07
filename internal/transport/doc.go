/*
Package transport moves serialized batches to a sink.

# Overview

A Transport performs a session handshake (BeginSession), delivers
payloads (Deliver) and releases its resources (Shutdown). Both
BeginSession and Deliver return immediately; the outcome arrives later
through a callback on a goroutine owned by the transport. Every call
produces exactly one callback.

# Sinks

  - Local appends to a file from a single worker goroutine. Each
    session starts with a "session,<epoch millis>" marker line.
  - Net talks to a collector over HTTP:

	POST <host>start/<trackingCode>   Authorization: <static>
	POST <host>track/                 Authorization: Bearer <authToken>

Any 2xx status is a success. Non-2xx statuses fail with a *StatusError.

# Client

Net is built on Client, a resty client with a pooled retryablehttp
transport, a rate limiter and a circuit breaker.
*/
package transport
