package trace

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Separator joins the fields of a trace line.
const Separator = ","

var (
	ErrEmptyTrace   = errors.New("trace has no fields")
	ErrBadTimestamp = errors.New("trace timestamp is not an integer")
)

// Event tags emitted by the ingress helpers
const (
	TagScreen    = "screen"
	TagZone      = "zone"
	TagChoice    = "choice"
	TagVar       = "var"
	TagClick     = "click"
	TagSelected  = "selected"
	TagSet       = "set"
	TagIncreased = "increased"
	TagDecreased = "decreased"
	TagStarted   = "started"
	TagCompleted = "completed"
)

// Trace is one immutable timestamped event. The zero value is an empty trace.
type Trace struct {
	fields []string
	line   string
}

// New builds a trace stamped with ts. Values are stored raw and escaped
// when the line is joined.
func New(ts time.Time, values ...string) Trace {
	fields := make([]string, 0, len(values)+1)
	fields = append(fields, strconv.FormatInt(ts.UnixMilli(), 10))
	fields = append(fields, values...)
	return fromFields(fields)
}

// Now builds a trace stamped with the current wall clock.
func Now(values ...string) Trace {
	return New(time.Now(), values...)
}

// FromFields builds a trace from raw fields, the first of which must be
// the millisecond timestamp.
func FromFields(fields ...string) (Trace, error) {
	if len(fields) == 0 {
		return Trace{}, ErrEmptyTrace
	}
	if _, err := strconv.ParseInt(fields[0], 10, 64); err != nil {
		return Trace{}, fmt.Errorf("%w: %q", ErrBadTimestamp, fields[0])
	}
	cp := make([]string, len(fields))
	copy(cp, fields)
	return fromFields(cp), nil
}

// Parse reads a trace back from its escaped line form.
func Parse(line string) (Trace, error) {
	fields, err := Split(strings.TrimRight(line, "\r\n"))
	if err != nil {
		return Trace{}, err
	}
	return FromFields(fields...)
}

func fromFields(fields []string) Trace {
	var sb strings.Builder
	for i, f := range fields {
		if i > 0 {
			sb.WriteString(Separator)
		}
		sb.WriteString(Escape(f))
	}
	return Trace{fields: fields, line: sb.String()}
}

// Line returns the escaped, separator-joined form without a trailing newline.
func (t Trace) Line() string { return t.line }

// String implements fmt.Stringer
func (t Trace) String() string { return t.line }

// Len returns the number of fields including the timestamp.
func (t Trace) Len() int { return len(t.fields) }

// IsZero reports whether the trace carries no fields.
func (t Trace) IsZero() bool { return len(t.fields) == 0 }

// Field returns the raw field at i, or "" when out of range.
func (t Trace) Field(i int) string {
	if i < 0 || i >= len(t.fields) {
		return ""
	}
	return t.fields[i]
}

// Fields returns a copy of the raw fields.
func (t Trace) Fields() []string {
	out := make([]string, len(t.fields))
	copy(out, t.fields)
	return out
}

// Millis returns the timestamp field as milliseconds since the epoch.
func (t Trace) Millis() int64 {
	ms, _ := strconv.ParseInt(t.Field(0), 10, 64)
	return ms
}

// Time returns the timestamp field in UTC.
func (t Trace) Time() time.Time {
	return time.UnixMilli(t.Millis()).UTC()
}

// Tag returns the event tag.
func (t Trace) Tag() string { return t.Field(1) }

// Args returns a copy of the event-specific arguments following the tag.
func (t Trace) Args() []string {
	if len(t.fields) <= 2 {
		return nil
	}
	out := make([]string, len(t.fields)-2)
	copy(out, t.fields[2:])
	return out
}
