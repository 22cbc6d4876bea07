package codec

import (
	"bytes"
	"sync"

	"github.com/GriffinCanCode/tracker/internal/trace"
)

// Lines writes each trace as its escaped line followed by a newline
type Lines struct {
	mu      sync.RWMutex
	session SessionContext
}

// NewLines creates a line codec
func NewLines() *Lines {
	return &Lines{}
}

func (l *Lines) Name() string { return NameLines }

// StartSession keeps the context; the line format does not use it.
func (l *Lines) StartSession(ctx SessionContext) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.session = ctx
	return nil
}

// Session returns the latest handshake context.
func (l *Lines) Session() SessionContext {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.session
}

// Ready is always true: lines need no context.
func (l *Lines) Ready() bool { return true }

func (l *Lines) Serialize(traces []trace.Trace) ([]byte, error) {
	var buf bytes.Buffer
	for _, t := range traces {
		buf.WriteString(t.Line())
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

func (l *Lines) ContentType() string { return "text/plain" }
