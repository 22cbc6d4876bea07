// Package codec serializes batches of traces into delivery payloads.
//
// Two formats are provided:
//   - Lines: one escaped trace per line, text/plain
//   - XAPI: an array of experience-API style statements, application/json
//
// A codec receives the session context returned by the sink handshake
// through StartSession. Only the latest context is kept. The XAPI codec
// needs an actor from that context and reports Ready() == false until it
// has one; the delivery engine checks Ready before serializing.
package codec
