package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/tracker/internal/codec"
	"github.com/GriffinCanCode/tracker/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/tracker/internal/shared/id"
	"github.com/GriffinCanCode/tracker/internal/trace"
	"github.com/GriffinCanCode/tracker/internal/transport"
)

// Config tunes flushing and shutdown
type Config struct {
	// FlushInterval between timed flushes. Negative disables them; zero
	// flushes on every tick.
	FlushInterval time.Duration
	// CloseRetries bounds the waits Close makes before giving up.
	CloseRetries int
	CloseBackoff time.Duration
	// QueueLimit caps the pending queue; the oldest trace is dropped
	// when full. Zero means unbounded.
	QueueLimit int
}

// DefaultConfig returns the engine defaults
func DefaultConfig() Config {
	return Config{
		FlushInterval: 3 * time.Second,
		CloseRetries:  10,
		CloseBackoff:  500 * time.Millisecond,
	}
}

// Listener observes every accepted trace
type Listener func(trace.Trace)

// Engine buffers traces and delivers them through a Transport using a
// Codec. Tick, RequestFlush, Enqueue and Close are meant for one driver
// goroutine; transport callbacks may arrive on any goroutine.
type Engine struct {
	cfg       Config
	transport transport.Transport
	codec     codec.Codec
	logger    *zap.Logger
	metrics   *monitoring.Metrics

	connected      atomic.Bool
	connecting     atomic.Bool
	sending        atomic.Bool
	flushRequested atomic.Bool
	closed         atomic.Bool
	failures       atomic.Uint64

	mu        sync.Mutex
	pending   []trace.Trace
	inFlight  []trace.Trace
	nextFlush time.Duration
	lastErr   error
	listeners []Listener
}

// New creates an engine bound to one transport and one codec
func New(t transport.Transport, c codec.Codec, cfg Config) *Engine {
	return &Engine{
		cfg:       cfg,
		transport: t,
		codec:     c,
		logger:    zap.NewNop(),
		nextFlush: cfg.FlushInterval,
	}
}

// WithLogger sets the logger
func (e *Engine) WithLogger(logger *zap.Logger) *Engine {
	if logger != nil {
		e.logger = logger.With(zap.String("sink", e.transport.Name()), zap.String("codec", e.codec.Name()))
	}
	return e
}

// WithMetrics enables metrics recording
func (e *Engine) WithMetrics(metrics *monitoring.Metrics) *Engine {
	e.metrics = metrics
	return e
}

// AddListener registers fn to be called for every enqueued trace
func (e *Engine) AddListener(fn Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, fn)
}

// Start begins a session handshake unless one is connected or running
func (e *Engine) Start() error {
	if e.closed.Load() {
		return ErrClosed
	}
	e.start()
	return nil
}

// Enqueue appends t to the pending queue. It fails only on an empty
// trace or a closed engine.
func (e *Engine) Enqueue(t trace.Trace) error {
	if t.IsZero() {
		return trace.ErrEmptyTrace
	}
	if e.closed.Load() {
		return ErrClosed
	}

	e.mu.Lock()
	dropped := 0
	if e.cfg.QueueLimit > 0 && len(e.pending) >= e.cfg.QueueLimit {
		dropped = len(e.pending) - e.cfg.QueueLimit + 1
		e.pending = append(e.pending[:0], e.pending[dropped:]...)
	}
	e.pending = append(e.pending, t)
	pending := len(e.pending)
	listeners := e.listeners
	e.mu.Unlock()

	if dropped > 0 {
		e.logger.Warn("Pending queue full, dropped oldest traces",
			zap.Int("dropped", dropped),
			zap.Int("limit", e.cfg.QueueLimit),
		)
		e.metrics.RecordDropped(dropped)
	}
	e.metrics.RecordEnqueued(pending)

	for _, fn := range listeners {
		fn(t)
	}
	return nil
}

// Record builds a trace stamped with the current time and enqueues it
func (e *Engine) Record(values ...string) error {
	return e.Enqueue(trace.Now(values...))
}

// RequestFlush marks a flush for the next Tick
func (e *Engine) RequestFlush() {
	e.flushRequested.Store(true)
}

// Tick advances the flush timer by elapsed and flushes when due or
// requested.
func (e *Engine) Tick(elapsed time.Duration) {
	if e.closed.Load() {
		return
	}

	if interval := e.cfg.FlushInterval; interval >= 0 {
		e.mu.Lock()
		e.nextFlush -= elapsed
		if e.nextFlush <= 0 {
			e.flushRequested.Store(true)
			if interval == 0 {
				e.nextFlush = 0
			} else {
				// Re-arm in whole intervals so long frames do not drift
				e.nextFlush += (-e.nextFlush/interval + 1) * interval
			}
		}
		e.mu.Unlock()
	}

	if e.flushRequested.Load() {
		e.attemptFlush()
	}
}

// Status returns a snapshot of the engine state
func (e *Engine) Status() Status {
	e.mu.Lock()
	pending, inFlight := len(e.pending), len(e.inFlight)
	lastErr := e.lastErr
	e.mu.Unlock()

	state := Disconnected
	switch {
	case e.connecting.Load():
		state = Connecting
	case e.connected.Load():
		state = Connected
	}

	s := Status{
		Sink:           e.transport.Name(),
		Codec:          e.codec.Name(),
		State:          state,
		Sending:        e.sending.Load(),
		FlushRequested: e.flushRequested.Load(),
		Closed:         e.closed.Load(),
		Pending:        pending,
		InFlight:       inFlight,
		Failures:       e.failures.Load(),
	}
	if lastErr != nil {
		s.LastError = lastErr.Error()
	}
	return s
}

// Close drains pending and in-flight traces with bounded effort, then
// shuts the transport down. It returns ErrUndelivered when traces were
// left behind.
func (e *Engine) Close(ctx context.Context) error {
	if !e.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}

	retries := e.cfg.CloseRetries
	for retries > 0 && e.hasWork() {
		if e.sending.Load() || e.connecting.Load() {
			if err := e.wait(ctx); err != nil {
				break
			}
			retries--
			continue
		}

		before := e.failures.Load()
		if !e.attemptFlush() || e.failures.Load() != before {
			if err := e.wait(ctx); err != nil {
				break
			}
			retries--
		}
	}

	e.mu.Lock()
	left := len(e.pending) + len(e.inFlight)
	e.mu.Unlock()

	shutdownErr := e.transport.Shutdown()
	if shutdownErr != nil {
		e.logger.Error("Transport shutdown failed", zap.Error(shutdownErr))
	}

	if left > 0 {
		e.logger.Error("Closed with undelivered traces", zap.Int("traces", left))
		return fmt.Errorf("%w: %d traces", ErrUndelivered, left)
	}
	e.logger.Info("Closed", zap.Uint64("failures", e.failures.Load()))
	return shutdownErr
}

func (e *Engine) hasWork() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending) > 0 || len(e.inFlight) > 0 || e.sending.Load()
}

func (e *Engine) wait(ctx context.Context) error {
	timer := time.NewTimer(e.cfg.CloseBackoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// start issues a handshake and reports whether one was dispatched
func (e *Engine) start() bool {
	if e.connected.Load() && e.codec.Ready() {
		return false
	}
	if !e.connecting.CompareAndSwap(false, true) {
		return false
	}
	e.connected.Store(false)

	session := id.NewSessionID()
	e.logger.Debug("Starting session", zap.String("session_id", session.String()))
	e.transport.BeginSession(func(out transport.Outcome) {
		e.onSession(session, out)
	})
	return true
}

func (e *Engine) onSession(session id.SessionID, out transport.Outcome) {
	defer e.connecting.Store(false)

	err := out.Err
	if out.OK() {
		var ctx codec.SessionContext
		ctx, err = codec.ParseSessionContext(out.Body)
		if err == nil {
			err = e.codec.StartSession(ctx)
		}
		if err == nil && !e.codec.Ready() {
			err = ErrNotReady
		}
	} else if err == nil {
		err = errors.New(out.Kind.String())
	}

	if err != nil {
		e.fail(fmt.Errorf("%w: %w", ErrHandshake, err))
		e.metrics.RecordHandshake(e.transport.Name(), outcomeLabel(out, err))
		e.logger.Warn("Session handshake failed",
			zap.String("session_id", session.String()),
			zap.String("outcome", out.Kind.String()),
			zap.Error(err),
		)
		return
	}

	e.connected.Store(true)
	e.metrics.RecordHandshake(e.transport.Name(), monitoring.OutcomeSuccess)
	e.logger.Info("Session started", zap.String("session_id", session.String()))
}

// attemptFlush moves pending traces in flight and delivers them, or
// starts a handshake when there is no usable session. It reports whether
// a transport call was dispatched.
func (e *Engine) attemptFlush() bool {
	if !e.connected.Load() || !e.codec.Ready() {
		return e.start()
	}
	if !e.sending.CompareAndSwap(false, true) {
		return false
	}

	e.mu.Lock()
	if len(e.pending) == 0 && len(e.inFlight) == 0 {
		e.mu.Unlock()
		e.flushRequested.Store(false)
		e.sending.Store(false)
		return false
	}
	e.inFlight = append(e.inFlight, e.pending...)
	e.pending = nil
	batch := make([]trace.Trace, len(e.inFlight))
	copy(batch, e.inFlight)
	e.flushRequested.Store(false)
	e.mu.Unlock()

	e.metrics.SetQueues(0, len(batch))

	body, err := e.codec.Serialize(batch)
	if err != nil {
		e.fail(fmt.Errorf("%w: %w", ErrDelivery, err))
		if errors.Is(err, codec.ErrNotReady) {
			e.connected.Store(false)
		}
		e.logger.Warn("Failed to serialize batch", zap.Int("traces", len(batch)), zap.Error(err))
		e.sending.Store(false)
		return false
	}
	e.metrics.RecordPayload(e.codec.Name(), len(body))

	batchID := id.NewBatchID()
	timer := monitoring.NewTimer(e.metrics, e.transport.Name(), len(batch))
	e.transport.Deliver(transport.Payload{Body: body, ContentType: e.codec.ContentType()}, func(out transport.Outcome) {
		e.onDelivered(batchID, len(batch), timer, out)
	})
	return true
}

func (e *Engine) onDelivered(batch id.BatchID, traces int, timer *monitoring.Timer, out transport.Outcome) {
	defer e.sending.Store(false)

	if out.OK() {
		e.mu.Lock()
		e.inFlight = nil
		pending := len(e.pending)
		e.mu.Unlock()

		timer.Stop(monitoring.OutcomeSuccess)
		e.metrics.SetQueues(pending, 0)
		e.logger.Debug("Batch delivered",
			zap.String("batch_id", batch.String()),
			zap.Int("traces", traces),
		)
		return
	}

	err := out.Err
	if err == nil {
		err = errors.New(out.Kind.String())
	}
	e.fail(fmt.Errorf("%w: %w", ErrDelivery, err))
	timer.Stop(outcomeLabel(out, err))
	if out.SessionRejected() {
		// Next flush handshakes again for a fresh token
		e.connected.Store(false)
		e.logger.Warn("Sink rejected the session",
			zap.String("batch_id", batch.String()),
			zap.Int("status", out.Status),
		)
	}
	e.logger.Warn("Batch delivery failed, keeping batch for retry",
		zap.String("batch_id", batch.String()),
		zap.Int("traces", traces),
		zap.String("outcome", out.Kind.String()),
		zap.Error(err),
	)
}

func (e *Engine) fail(err error) {
	e.failures.Add(1)
	e.mu.Lock()
	e.lastErr = err
	e.mu.Unlock()
}

func outcomeLabel(out transport.Outcome, err error) string {
	switch {
	case out.Kind == transport.KindCancelled:
		return monitoring.OutcomeCancelled
	case err != nil || !out.OK():
		return monitoring.OutcomeFailure
	default:
		return monitoring.OutcomeSuccess
	}
}
