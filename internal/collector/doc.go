/*
Package collector implements the receiving side of the tracker wire
protocol on gin.

	POST /start/:trackingCode   issues an auth token and session context
	POST /track/                stores a batch; requires "Bearer <token>"
	GET  /healthz               liveness
	GET  /metrics               Prometheus exposition

Stored batches are decompressed according to Content-Encoding, kept in
memory and copied to an optional writer. The collector backs local
development and end-to-end tests of the network sink.
*/
package collector
