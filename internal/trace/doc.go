// Package trace defines the RawTrace value handed from event ingress to the
// delivery engine.
//
// A trace is an ordered list of string fields. The first field is the wall
// clock timestamp in milliseconds since the epoch, the second is the event
// tag and the rest are event-specific arguments:
//
//	1700000000000,choice,options,start
//
// Free-text values are escaped before the fields are joined: a value that
// contains the separator or a quote is wrapped in quotes and its quotes are
// backslash-escaped. Split reverses the escaping.
//
// Example Usage:
//
//	t := trace.Now(trace.TagScreen, "menu")
//	fmt.Println(t.Line()) // 1700000000000,screen,menu
package trace
