package codec

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/tracker/internal/trace"
)

const (
	VocabPrefix = "http://purl.org/xapi/games/"
	VerbPrefix  = VocabPrefix + "verbs/"
	ExtPrefix   = VocabPrefix + "ext/"

	// ExtValue is the extension key for the generic result value.
	ExtValue = ExtPrefix + "value"

	timestampLayout = "2006-01-02T15:04:05.000Z"
)

// vocabulary maps an event tag onto a statement verb and object category.
// Response marks selection-style tags whose extra field is a free-text answer.
type vocabulary struct {
	Verb     string
	Category string
	Response bool
}

var vocabularies = map[string]vocabulary{
	trace.TagChoice:    {Verb: "choose", Category: "choice", Response: true},
	trace.TagSelected:  {Verb: "selected", Category: "choice", Response: true},
	trace.TagScreen:    {Verb: "viewed", Category: "screen"},
	trace.TagZone:      {Verb: "entered", Category: "zone"},
	trace.TagVar:       {Verb: "updated", Category: "variable"},
	trace.TagSet:       {Verb: "updated", Category: "variable"},
	trace.TagIncreased: {Verb: "increased", Category: "variable"},
	trace.TagDecreased: {Verb: "decreased", Category: "variable"},
}

func lookupVocabulary(tag string) vocabulary {
	if v, ok := vocabularies[tag]; ok {
		return v
	}
	return vocabulary{Verb: tag, Category: tag}
}

type statement struct {
	Actor     json.RawMessage  `json:"actor"`
	Verb      statementVerb    `json:"verb"`
	Object    statementObject  `json:"object"`
	Timestamp string           `json:"timestamp"`
	Result    *statementResult `json:"result,omitempty"`
}

type statementVerb struct {
	ID string `json:"id"`
}

type statementObject struct {
	ID string `json:"id"`
}

type statementResult struct {
	Response   string            `json:"response,omitempty"`
	Extensions map[string]string `json:"extensions,omitempty"`
}

// XAPI encodes a batch as a JSON array of statements
type XAPI struct {
	mu        sync.RWMutex
	actor     json.RawMessage
	namespace string
}

// NewXAPI creates a statement codec. It is not ready until StartSession
// supplies an actor.
func NewXAPI() *XAPI {
	return &XAPI{}
}

func (x *XAPI) Name() string { return NameXAPI }

func (x *XAPI) StartSession(ctx SessionContext) error {
	if !ctx.HasActor() {
		return ErrMissingActor
	}
	actor := make(json.RawMessage, len(ctx.Actor))
	copy(actor, ctx.Actor)

	x.mu.Lock()
	defer x.mu.Unlock()
	x.actor = actor
	x.namespace = ctx.Namespace()
	return nil
}

func (x *XAPI) Ready() bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.actor != nil
}

func (x *XAPI) Serialize(traces []trace.Trace) ([]byte, error) {
	x.mu.RLock()
	actor, namespace := x.actor, x.namespace
	x.mu.RUnlock()

	if actor == nil {
		return nil, ErrNotReady
	}

	statements := make([]statement, 0, len(traces))
	for _, t := range traces {
		statements = append(statements, newStatement(actor, namespace, t))
	}

	data, err := sonic.ConfigStd.Marshal(statements)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal statements: %w", err)
	}
	return data, nil
}

func (x *XAPI) ContentType() string { return "application/json; charset=utf-8" }

func newStatement(actor json.RawMessage, namespace string, t trace.Trace) statement {
	vocab := lookupVocabulary(t.Tag())

	s := statement{
		Actor:     actor,
		Verb:      statementVerb{ID: VerbPrefix + vocab.Verb},
		Object:    statementObject{ID: namespace + vocab.Category + "/" + t.Field(2)},
		Timestamp: t.Time().Format(timestampLayout),
	}

	if t.Len() > 3 {
		if vocab.Response {
			s.Result = &statementResult{Response: t.Field(3)}
		} else {
			s.Result = &statementResult{Extensions: map[string]string{ExtValue: t.Field(3)}}
		}
	}
	return s
}
