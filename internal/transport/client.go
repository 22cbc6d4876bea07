package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/tracker/internal/infrastructure/resilience"
)

// ClientConfig tunes the HTTP client of the network sink
type ClientConfig struct {
	Timeout         time.Duration
	Retries         int
	RetryWait       time.Duration
	RetryMaxWait    time.Duration
	RateLimit       float64
	BreakerFailures uint32
	BreakerTimeout  time.Duration
	OnBreakerChange func(name string, from, to resilience.State)
}

// DefaultClientConfig returns the settings used when none are given
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:         10 * time.Second,
		Retries:         3,
		RetryWait:       time.Second,
		RetryMaxWait:    30 * time.Second,
		BreakerFailures: 5,
		BreakerTimeout:  30 * time.Second,
	}
}

// Client wraps resty with rate limiting and a circuit breaker
type Client struct {
	Resty   *resty.Client
	Limiter *rate.Limiter
	Breaker *resilience.Breaker
	Mu      sync.RWMutex
}

// NewClient creates the HTTP client used by Net
func NewClient(cfg ClientConfig) *Client {
	// Pooled transport from the retryable client
	retryClient := retryablehttp.NewClient()
	retryClient.Logger = nil

	restyClient := resty.New()
	restyClient.
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(cfg.RetryMaxWait).
		SetHeader("User-Agent", "tracker/1.0")
	restyClient.SetTransport(retryClient.HTTPClient.Transport)

	settings := resilience.Settings{
		MaxRequests:   1,
		Timeout:       cfg.BreakerTimeout,
		OnStateChange: cfg.OnBreakerChange,
	}
	if cfg.BreakerFailures > 0 {
		settings.ReadyToTrip = resilience.ConsecutiveFailuresAtLeast(cfg.BreakerFailures)
	}
	breaker := resilience.New("tracker-sink", settings)

	c := &Client{
		Resty:   restyClient,
		Breaker: breaker,
	}
	c.SetRateLimit(cfg.RateLimit)
	return c
}

// SetRateLimit configures rate limiting (requests per second)
func (c *Client) SetRateLimit(rps float64) {
	c.Mu.Lock()
	defer c.Mu.Unlock()
	if rps <= 0 {
		c.Limiter = rate.NewLimiter(rate.Inf, 0)
	} else {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.Limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// Request creates a new request after the breaker and limiter admit it
func (c *Client) Request(ctx context.Context) (*resty.Request, error) {
	if c.Breaker.State() == resilience.StateOpen {
		return nil, resilience.ErrCircuitOpen
	}

	c.Mu.RLock()
	limiter := c.Limiter
	c.Mu.RUnlock()

	if err := limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	return c.Resty.R().SetContext(ctx), nil
}

// Post sends body to url. Transport errors and non-2xx statuses count
// against the breaker and come back as errors.
func (c *Client) Post(ctx context.Context, url string, headers map[string]string, body []byte) (*resty.Response, error) {
	req, err := c.Request(ctx)
	if err != nil {
		return nil, err
	}
	req.SetHeaders(headers)
	if body != nil {
		req.SetBody(body)
	}

	var resp *resty.Response
	err = c.Breaker.Execute(func() error {
		var postErr error
		resp, postErr = req.Post(url)
		if postErr != nil {
			return postErr
		}
		if !IsSuccess(resp.StatusCode()) {
			return &StatusError{Code: resp.StatusCode(), Body: resp.String()}
		}
		return nil
	})
	if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyRequests) {
		return nil, fmt.Errorf("sink unavailable: %w", err)
	}
	return resp, err
}

// BreakerState returns the current circuit breaker state
func (c *Client) BreakerState() resilience.State {
	return c.Breaker.State()
}

// BreakerCounts returns circuit breaker statistics
func (c *Client) BreakerCounts() resilience.Counts {
	return c.Breaker.Counts()
}
