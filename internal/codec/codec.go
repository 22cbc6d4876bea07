package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/tracker/internal/trace"
)

var (
	ErrNotReady       = errors.New("codec has no session context")
	ErrMissingActor   = errors.New("session context has no actor")
	ErrUnknownCodec   = errors.New("unknown codec")
	ErrInvalidSession = errors.New("invalid session context")
)

// Codec names accepted by New
const (
	NameLines = "lines"
	NameXAPI  = "xapi"
)

// Codec turns an ordered batch of traces into one payload
type Codec interface {
	// Name identifies the format.
	Name() string
	// StartSession consumes the context returned by the sink handshake.
	StartSession(ctx SessionContext) error
	// Ready reports whether Serialize can produce well-formed output.
	Ready() bool
	// Serialize encodes the whole batch, preserving order.
	Serialize(traces []trace.Trace) ([]byte, error)
	// ContentType is the MIME type the transport advertises.
	ContentType() string
}

// SessionContext is the handshake payload shared by the sink
type SessionContext struct {
	AuthToken  string          `json:"authToken,omitempty"`
	Actor      json.RawMessage `json:"actor,omitempty"`
	ActivityID string          `json:"activityId,omitempty"`
	ObjectID   string          `json:"objectId,omitempty"`
}

// ParseSessionContext decodes a handshake body. An empty body yields an
// empty context.
func ParseSessionContext(body []byte) (SessionContext, error) {
	var ctx SessionContext
	if len(strings.TrimSpace(string(body))) == 0 {
		return ctx, nil
	}
	if err := sonic.Unmarshal(body, &ctx); err != nil {
		return SessionContext{}, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	return ctx, nil
}

// Namespace returns the activity prefix with a trailing slash, preferring
// activityId over objectId.
func (c SessionContext) Namespace() string {
	ns := c.ActivityID
	if ns == "" {
		ns = c.ObjectID
	}
	if ns != "" && !strings.HasSuffix(ns, "/") {
		ns += "/"
	}
	return ns
}

// HasActor reports whether the context carries a non-null actor.
func (c SessionContext) HasActor() bool {
	trimmed := strings.TrimSpace(string(c.Actor))
	return trimmed != "" && trimmed != "null"
}

// New returns the codec registered under name.
func New(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case NameLines, "":
		return NewLines(), nil
	case NameXAPI:
		return NewXAPI(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}
