package transport

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SinkLocal is the name reported by Local
const SinkLocal = "local"

type localJob struct {
	run func() Outcome
	cb  Callback
}

// Local appends payloads to a file. All file access happens on one
// worker goroutine, so writes never interleave.
type Local struct {
	path   string
	logger  *zap.Logger
	now     func() time.Time
	session []byte

	jobs chan localJob
	done chan struct{}

	mu     sync.Mutex
	closed bool

	// owned by the worker
	file *os.File
}

// NewLocal creates a file sink writing to path and starts its worker
func NewLocal(path string, logger *zap.Logger) *Local {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Local{
		path:   path,
		logger: logger.With(zap.String("sink", SinkLocal), zap.String("path", path)),
		now:    time.Now,
		jobs:   make(chan localJob, 64),
		done:   make(chan struct{}),
	}
	go l.worker()
	return l
}

// WithSession sets the body BeginSession reports, standing in for the
// context a remote handshake would return.
func (l *Local) WithSession(body []byte) *Local {
	l.session = body
	return l
}

// Name identifies the sink
func (l *Local) Name() string {
	return SinkLocal
}

// Path returns the target file
func (l *Local) Path() string {
	return l.path
}

// BeginSession opens the file for appending and writes a session marker
func (l *Local) BeginSession(cb Callback) {
	l.submit(localJob{cb: cb, run: func() Outcome {
		if err := l.open(); err != nil {
			return Failed(err)
		}
		marker := "session," + strconv.FormatInt(l.now().UnixMilli(), 10) + "\n"
		if err := l.write([]byte(marker)); err != nil {
			return Failed(err)
		}
		return Succeeded(0, l.session)
	}})
}

// Deliver appends the payload and syncs it to disk
func (l *Local) Deliver(payload Payload, cb Callback) {
	l.submit(localJob{cb: cb, run: func() Outcome {
		if err := l.open(); err != nil {
			return Failed(err)
		}
		if err := l.write(payload.Body); err != nil {
			return Failed(err)
		}
		return Succeeded(0, nil)
	}})
}

// Shutdown drains queued jobs and closes the file. Close errors are
// logged, not returned.
func (l *Local) Shutdown() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.jobs)
	l.mu.Unlock()

	<-l.done

	if l.file != nil {
		if err := l.file.Close(); err != nil {
			l.logger.Error("Failed to close trace file", zap.Error(err))
		}
		l.file = nil
	}
	return nil
}

func (l *Local) submit(job localJob) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		go job.cb(Cancelled(ErrSinkClosed))
		return
	}
	l.jobs <- job
}

func (l *Local) worker() {
	defer close(l.done)
	for job := range l.jobs {
		job.cb(job.run())
	}
}

func (l *Local) open() error {
	if l.file != nil {
		return nil
	}
	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create trace dir: %w", err)
		}
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open trace file: %w", err)
	}
	l.file = f
	return nil
}

func (l *Local) write(data []byte) error {
	if _, err := l.file.Write(data); err != nil {
		return fmt.Errorf("write trace file: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("sync trace file: %w", err)
	}
	return nil
}
