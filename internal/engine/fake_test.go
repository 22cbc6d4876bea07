package engine

import (
	"sync"

	"github.com/GriffinCanCode/tracker/internal/transport"
)

// fakeTransport answers from scripted outcomes. In hold mode callbacks
// are parked until the test releases them.
type fakeTransport struct {
	mu sync.Mutex

	sessionBody     []byte
	sessionOutcomes []transport.Outcome
	deliverOutcomes []transport.Outcome
	hold            bool

	handshakes     int
	payloads       []transport.Payload
	heldSessions   []transport.Callback
	heldDeliveries []transport.Callback
	outstanding    int
	maxOutstanding int
	shutdowns      int
}

func newFake() *fakeTransport {
	return &fakeTransport{}
}

func (f *fakeTransport) Name() string { return "fake" }

func (f *fakeTransport) BeginSession(cb transport.Callback) {
	f.mu.Lock()
	f.handshakes++
	if f.hold {
		f.heldSessions = append(f.heldSessions, cb)
		f.mu.Unlock()
		return
	}
	out := transport.Succeeded(200, f.sessionBody)
	if len(f.sessionOutcomes) > 0 {
		out = f.sessionOutcomes[0]
		f.sessionOutcomes = f.sessionOutcomes[1:]
	}
	f.mu.Unlock()
	cb(out)
}

func (f *fakeTransport) Deliver(p transport.Payload, cb transport.Callback) {
	f.mu.Lock()
	f.payloads = append(f.payloads, p)
	f.outstanding++
	if f.outstanding > f.maxOutstanding {
		f.maxOutstanding = f.outstanding
	}
	if f.hold {
		f.heldDeliveries = append(f.heldDeliveries, cb)
		f.mu.Unlock()
		return
	}
	out := transport.Succeeded(204, nil)
	if len(f.deliverOutcomes) > 0 {
		out = f.deliverOutcomes[0]
		f.deliverOutcomes = f.deliverOutcomes[1:]
	}
	f.outstanding--
	f.mu.Unlock()
	cb(out)
}

func (f *fakeTransport) Shutdown() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shutdowns++
	return nil
}

// releaseSession completes the oldest held handshake
func (f *fakeTransport) releaseSession(out transport.Outcome) {
	f.mu.Lock()
	cb := f.heldSessions[0]
	f.heldSessions = f.heldSessions[1:]
	f.mu.Unlock()
	cb(out)
}

// releaseDelivery completes the oldest held delivery
func (f *fakeTransport) releaseDelivery(out transport.Outcome) {
	f.mu.Lock()
	cb := f.heldDeliveries[0]
	f.heldDeliveries = f.heldDeliveries[1:]
	f.outstanding--
	f.mu.Unlock()
	cb(out)
}

func (f *fakeTransport) setHold(hold bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hold = hold
}

func (f *fakeTransport) bodies() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.payloads))
	for i, p := range f.payloads {
		out[i] = string(p.Body)
	}
	return out
}

func (f *fakeTransport) handshakeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handshakes
}

func (f *fakeTransport) shutdownCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shutdowns
}
