package trace

import (
	"errors"
	"strings"
)

// ErrUnterminatedQuote is returned by Split for a quoted field with no closing quote.
var ErrUnterminatedQuote = errors.New("unterminated quoted field")

// Escape quotes a value that contains the separator, a quote or a line
// break. Inside quotes, backslashes, quotes and line breaks are
// backslash-escaped so a trace always stays on one line.
//
//	input with a, comma  =>  "input with a, comma"
//	say "hi"             =>  "say \"hi\""
//	line one<LF>two      =>  "line one\ntwo"
func Escape(value string) string {
	if !strings.ContainsAny(value, Separator+"\"\r\n") {
		return value
	}
	return `"` + quoteReplacer.Replace(value) + `"`
}

var quoteReplacer = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`)

// unescape maps the byte after a backslash inside quotes back to its value.
var unescape = map[byte]byte{'\\': '\\', '"': '"', 'n': '\n', 'r': '\r'}

// Split breaks an escaped line on unescaped separators and unescapes each
// field, so Split(Escape(a)+","+Escape(b)) yields [a b].
func Split(line string) ([]string, error) {
	var (
		fields []string
		sb     strings.Builder
	)
	i := 0
	for {
		sb.Reset()
		if i < len(line) && line[i] == '"' {
			i++
			closed := false
			for i < len(line) {
				c := line[i]
				if c == '\\' && i+1 < len(line) {
					if r, ok := unescape[line[i+1]]; ok {
						sb.WriteByte(r)
						i += 2
						continue
					}
				}
				if c == '"' {
					closed = true
					i++
					break
				}
				sb.WriteByte(c)
				i++
			}
			if !closed {
				return nil, ErrUnterminatedQuote
			}
			// Anything between the closing quote and the separator is kept.
			for i < len(line) && line[i] != Separator[0] {
				sb.WriteByte(line[i])
				i++
			}
		} else {
			for i < len(line) && line[i] != Separator[0] {
				sb.WriteByte(line[i])
				i++
			}
		}
		fields = append(fields, sb.String())
		if i >= len(line) {
			return fields, nil
		}
		i++ // separator
	}
}
