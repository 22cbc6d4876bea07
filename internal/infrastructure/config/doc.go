/*
Package config loads tracker configuration.

Values start from Default, are optionally overlaid by a YAML or TOML
file (LoadFile), and are finally overridden by environment variables:

	TRACKER_SINK           local | net
	TRACKER_FORMAT         lines | xapi
	TRACKER_FILE           path of the local sink
	TRACKER_HOST           base URL of the collector, e.g. http://host/api/
	TRACKER_TRACKING_CODE  tracking code sent on session start
	TRACKER_AUTHORIZATION  static Authorization header for session start
	TRACKER_FLUSH_INTERVAL flush period; negative disables timed flushes
	TRACKER_CLOSE_RETRIES  close attempts before giving up
	TRACKER_CLOSE_BACKOFF  wait between close attempts
	TRACKER_QUEUE_LIMIT    pending queue bound; 0 means unbounded

HTTP_*, BREAKER_*, LOG_* and *_ADDR tune the network client, the
circuit breaker, logging and listen addresses.
*/
package config
