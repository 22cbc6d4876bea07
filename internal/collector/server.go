package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/tracker/internal/codec"
	"github.com/GriffinCanCode/tracker/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/tracker/internal/transport"
)

const bearerPrefix = "Bearer "

// Collector limits
const (
	DefaultMaxBodyBytes = 8 << 20
	DefaultKeepBatches  = 256
)

// Config controls collector behavior
type Config struct {
	// Authorization, when set, must match the start request header.
	Authorization string
	// Actor and ActivityID are returned as session context.
	Actor      json.RawMessage
	ActivityID string
	// TrackStatus is the success status for /track/; default 204.
	TrackStatus int
	RateLimit   float64
	// MaxBodyBytes caps a track body before and after decompression;
	// default DefaultMaxBodyBytes.
	MaxBodyBytes int64
	// KeepBatches is how many recent batches Batches returns; default
	// DefaultKeepBatches, negative keeps none.
	KeepBatches int
	// Gatherer enables GET /metrics when set.
	Gatherer prometheus.Gatherer
}

// Batch is one stored delivery
type Batch struct {
	Token        string
	TrackingCode string
	ContentType  string
	Encoding     string
	Body         []byte
	Received     time.Time
}

// Server is the reference collector
type Server struct {
	cfg     Config
	logger  *zap.Logger
	metrics *monitoring.Metrics
	router  *gin.Engine
	out     io.Writer

	mu       sync.RWMutex
	sessions map[string]string
	batches  []Batch
	outMu    sync.Mutex
}

// New creates a collector. out may be nil.
func New(cfg Config, out io.Writer, logger *zap.Logger, metrics *monitoring.Metrics) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TrackStatus == 0 {
		cfg.TrackStatus = http.StatusNoContent
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.KeepBatches == 0 {
		cfg.KeepBatches = DefaultKeepBatches
	}

	s := &Server{
		cfg:      cfg,
		logger:   logger.Named("collector"),
		metrics:  metrics,
		out:      out,
		sessions: make(map[string]string),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestID())
	router.Use(CORS())
	router.Use(monitoring.Middleware(s.metrics))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": s.SessionCount()})
	})
	if s.cfg.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	api := router.Group("/", RateLimit(s.cfg.RateLimit))
	api.POST("/start/:trackingCode", s.start)
	api.POST("/track/", s.track)
	return router
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Collector listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("Collector shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

// Batches returns a copy of the most recently stored batches
func (s *Server) Batches() []Batch {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Batch, len(s.batches))
	copy(out, s.batches)
	return out
}

// SessionCount returns the number of issued tokens
func (s *Server) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Server) start(c *gin.Context) {
	if s.cfg.Authorization != "" && c.GetHeader("Authorization") != s.cfg.Authorization {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization"})
		return
	}

	code := c.Param("trackingCode")
	token := uuid.NewString()

	s.mu.Lock()
	s.sessions[token] = code
	s.mu.Unlock()

	body, err := sonic.Marshal(codec.SessionContext{
		AuthToken:  token,
		Actor:      s.cfg.Actor,
		ActivityID: s.cfg.ActivityID,
	})
	if err != nil {
		s.logger.Error("Failed to encode session", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "encode session"})
		return
	}

	s.logger.Info("Session started",
		zap.String("tracking_code", code),
		zap.String("request_id", c.GetString(HeaderRequestID)),
	)
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

func (s *Server) track(c *gin.Context) {
	auth := c.GetHeader("Authorization")
	token := strings.TrimPrefix(auth, bearerPrefix)

	s.mu.RLock()
	code, ok := s.sessions[token]
	s.mu.RUnlock()
	if !strings.HasPrefix(auth, bearerPrefix) || !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown token"})
		return
	}

	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "body too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "read body"})
		return
	}
	encoding := c.GetHeader("Content-Encoding")
	body, err := transport.Decompress(encoding, raw, s.cfg.MaxBodyBytes)
	if errors.Is(err, transport.ErrTooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contentType := c.ContentType()
	if contentType == "" {
		// Sniff batches posted without a declared type
		contentType = mimetype.Detect(body).String()
	}

	batch := Batch{
		Token:        token,
		TrackingCode: code,
		ContentType:  contentType,
		Encoding:     encoding,
		Body:         body,
		Received:     time.Now(),
	}

	s.keep(batch)

	if err := s.write(body); err != nil {
		s.logger.Error("Failed to write batch", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store batch"})
		return
	}

	s.metrics.RecordBatchCollected(batch.ContentType)
	s.logger.Debug("Batch stored",
		zap.String("tracking_code", code),
		zap.Int("bytes", len(body)),
		zap.String("content_type", batch.ContentType),
	)
	c.Status(s.cfg.TrackStatus)
}

// keep retains batch, evicting the oldest beyond KeepBatches
func (s *Server) keep(batch Batch) {
	if s.cfg.KeepBatches < 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, batch)
	if over := len(s.batches) - s.cfg.KeepBatches; over > 0 {
		s.batches = append(s.batches[:0], s.batches[over:]...)
	}
}

func (s *Server) write(body []byte) error {
	if s.out == nil {
		return nil
	}
	s.outMu.Lock()
	defer s.outMu.Unlock()

	if _, err := s.out.Write(body); err != nil {
		return err
	}
	if !bytes.HasSuffix(body, []byte("\n")) {
		_, err := s.out.Write([]byte("\n"))
		return err
	}
	return nil
}
