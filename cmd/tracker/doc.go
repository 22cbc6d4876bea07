// Package main is the tracker command line.
//
// Commands:
//
//	tracker run       read "tag,arg,..." lines from stdin and deliver them
//	tracker collect   run the reference collector
//	tracker split     check and summarize a trace file written by the local sink
//
// Configuration comes from environment variables (TRACKER_*, HTTP_*,
// BREAKER_*, LOG_*) optionally layered over a YAML or TOML file given
// with --config. Flags override both.
//
// Signals:
//   - SIGINT, SIGTERM: flush and close
package main
