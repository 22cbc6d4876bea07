// Package engine implements the delivery state machine of the tracker.
//
// Traces are appended to a pending queue. A flush, either timed by Tick
// or requested, moves them into the in-flight batch, serializes the whole
// batch with the codec and hands it to the transport. The batch is only
// cleared when the sink acknowledges it, so a failed delivery is resent
// together with anything queued in the meantime.
//
// No delivery happens without a session: a flush on a disconnected
// engine starts a handshake instead. At most one handshake and one
// delivery are outstanding at any time.
package engine
