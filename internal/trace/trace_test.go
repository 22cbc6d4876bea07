package trace

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscape(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain", input: "menu", want: "menu"},
		{name: "comma", input: "a,b", want: `"a,b"`},
		{name: "quotes", input: `say "hi"`, want: `"say \"hi\""`},
		{name: "quotes and commas", input: `"input with, quotes"`, want: `"\"input with, quotes\""`},
		{name: "empty", input: "", want: ""},
		{name: "newline", input: "line one\nline two", want: `"line one\nline two"`},
		{name: "carriage return", input: "a\r\nb", want: `"a\r\nb"`},
		{name: "trailing backslash", input: `dir\, x\`, want: `"dir\\, x\\"`},
		{name: "lone backslash", input: `back\slash`, want: `back\slash`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Escape(tt.input))
		})
	}
}

func TestSplitRecoversFields(t *testing.T) {
	values := [][]string{
		{"1", "screen", "menu"},
		{"1", "choice", "a,b", `say "hi"`},
		{"1", "var", "", "x"},
		{"1", "text", `back\slash`, `x\",y`},
		{"1", "text", "trailing,"},
		{"1", "text", `ends with, backslash\`},
		{"1", "text", `"quoted\"`},
		{"1", "choice", "q1", "line one\nline two"},
		{"1", "text", "crlf\r\n, end"},
	}

	for _, fields := range values {
		tr, err := FromFields(fields...)
		require.NoError(t, err)

		got, err := Split(tr.Line())
		require.NoError(t, err)
		assert.Equal(t, fields, got)
		assert.Len(t, got, tr.Len())
	}
}

func TestSplitUnterminated(t *testing.T) {
	_, err := Split(`1,"open`)
	assert.ErrorIs(t, err, ErrUnterminatedQuote)
}

func TestNew(t *testing.T) {
	ts := time.UnixMilli(1700000000123)
	tr := New(ts, TagChoice, "options", "start, now")

	assert.Equal(t, `1700000000123,choice,options,"start, now"`, tr.Line())
	assert.Equal(t, int64(1700000000123), tr.Millis())
	assert.Equal(t, ts.UTC(), tr.Time())
	assert.Equal(t, TagChoice, tr.Tag())
	assert.Equal(t, []string{"options", "start, now"}, tr.Args())
	assert.Equal(t, 4, tr.Len())
	assert.Equal(t, "", tr.Field(9))
}

func TestTraceIsImmutable(t *testing.T) {
	tr := New(time.UnixMilli(1), TagZone, "zone1")

	fields := tr.Fields()
	fields[2] = "changed"
	args := tr.Args()
	args[0] = "changed"

	assert.Equal(t, "zone1", tr.Field(2))
	assert.Equal(t, "1,zone,zone1", tr.Line())
}

func TestFromFieldsValidation(t *testing.T) {
	_, err := FromFields()
	assert.ErrorIs(t, err, ErrEmptyTrace)

	_, err = FromFields("yesterday", "screen")
	assert.ErrorIs(t, err, ErrBadTimestamp)
}

func TestParse(t *testing.T) {
	tr, err := Parse("42,click,1.5,2.5,\"button, ok\"\n")
	require.NoError(t, err)

	assert.Equal(t, int64(42), tr.Millis())
	assert.Equal(t, TagClick, tr.Tag())
	assert.Equal(t, []string{"1.5", "2.5", "button, ok"}, tr.Args())

	var zero Trace
	assert.True(t, zero.IsZero())
	assert.Nil(t, zero.Args())
}

func TestLineBreaksStayOnOneLine(t *testing.T) {
	tr := New(time.UnixMilli(7), TagChoice, "q1", "line one\nline two")

	assert.NotContains(t, tr.Line(), "\n")
	parsed, err := Parse(tr.Line() + "\n")
	require.NoError(t, err)
	assert.Equal(t, tr.Fields(), parsed.Fields())
}
