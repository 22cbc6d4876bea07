package transport

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/tracker/internal/codec"
)

// Collector endpoints, relative to the host
const (
	PathStart = "start/"
	PathTrack = "track/"
)

// SinkNet is the name reported by Net
const SinkNet = "net"

// NetConfig describes the collector a Net sink talks to
type NetConfig struct {
	// Host is the collector base URL; a trailing slash is added if missing.
	Host          string
	TrackingCode  string
	Authorization string
	Compression   string
}

// Net delivers payloads to a collector over HTTP
type Net struct {
	cfg        NetConfig
	client     *Client
	compressor *Compressor
	logger     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	token  string
	closed bool
}

// NewNet creates a network sink. A nil client gets DefaultClientConfig.
func NewNet(cfg NetConfig, client *Client, logger *zap.Logger) (*Net, error) {
	compressor, err := NewCompressor(cfg.Compression)
	if err != nil {
		return nil, err
	}
	if client == nil {
		client = NewClient(DefaultClientConfig())
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if !strings.HasSuffix(cfg.Host, "/") {
		cfg.Host += "/"
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Net{
		cfg:        cfg,
		client:     client,
		compressor: compressor,
		logger:     logger.With(zap.String("sink", SinkNet), zap.String("host", cfg.Host)),
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

// Name identifies the sink
func (n *Net) Name() string {
	return SinkNet
}

// Token returns the cached auth token, empty before a handshake
func (n *Net) Token() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.token
}

// BeginSession posts to the start endpoint and caches the auth token
func (n *Net) BeginSession(cb Callback) {
	n.spawn(cb, func() Outcome {
		headers := map[string]string{}
		if n.cfg.Authorization != "" {
			headers["Authorization"] = n.cfg.Authorization
		}

		endpoint := n.cfg.Host + PathStart + url.PathEscape(n.cfg.TrackingCode)
		resp, err := n.client.Post(n.ctx, endpoint, headers, nil)
		if err != nil {
			return n.failure(err)
		}

		session, err := codec.ParseSessionContext(resp.Body())
		if err != nil {
			return Failed(err)
		}
		if session.AuthToken == "" {
			return Failed(ErrMissingToken)
		}

		n.mu.Lock()
		n.token = session.AuthToken
		n.mu.Unlock()

		return Succeeded(resp.StatusCode(), resp.Body())
	})
}

// Deliver posts the payload to the track endpoint with the cached token
func (n *Net) Deliver(payload Payload, cb Callback) {
	n.spawn(cb, func() Outcome {
		body, err := n.compressor.Compress(payload.Body)
		if err != nil {
			return Failed(err)
		}

		headers := map[string]string{}
		if payload.ContentType != "" {
			headers["Content-Type"] = payload.ContentType
		}
		if enc := n.compressor.Encoding(); enc != "" {
			headers["Content-Encoding"] = enc
		}
		if token := n.Token(); token != "" {
			headers["Authorization"] = "Bearer " + token
		}

		resp, err := n.client.Post(n.ctx, n.cfg.Host+PathTrack, headers, body)
		if err != nil {
			return n.failure(err)
		}
		return Succeeded(resp.StatusCode(), resp.Body())
	})
}

// Shutdown cancels outstanding requests and waits for their callbacks
func (n *Net) Shutdown() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	n.mu.Unlock()

	n.cancel()
	n.wg.Wait()
	n.client.Resty.GetClient().CloseIdleConnections()
	return nil
}

func (n *Net) spawn(cb Callback, run func() Outcome) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		go cb(Cancelled(ErrSinkClosed))
		return
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		cb(run())
	}()
}

func (n *Net) failure(err error) Outcome {
	if errors.Is(err, context.Canceled) || n.ctx.Err() != nil {
		return Cancelled(err)
	}
	return Failed(err)
}
