// Package httpclient builds resty clients with the retry policy shared by
// every outbound integration (vendor API, payment processor).
package httpclient

import (
	"errors"
	"net"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"
)

type Config struct {
	baseURL          string
	timeout          time.Duration
	retryCount       int
	retryWaitTime    time.Duration
	retryMaxWaitTime time.Duration
}

type Option func(c *Config)

func WithBaseURL(baseURL string) Option {
	return func(c *Config) {
		c.baseURL = baseURL
	}
}

// WithTimeout bounds every outbound request. A hung upstream must fail the
// request instead of hanging the caller.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.timeout = timeout
	}
}

func WithRetryCount(count int) Option {
	return func(c *Config) {
		c.retryCount = count
	}
}

func WithRetryWaitTime(waitTime time.Duration) Option {
	return func(c *Config) {
		c.retryWaitTime = waitTime
	}
}

func WithRetryMaxWaitTime(maxWaitTime time.Duration) Option {
	return func(c *Config) {
		c.retryMaxWaitTime = maxWaitTime
	}
}

func New(opts ...Option) *resty.Client {
	cfg := &Config{
		baseURL:          "",
		timeout:          15 * time.Second,
		retryCount:       3,
		retryWaitTime:    1 * time.Second,
		retryMaxWaitTime: 10 * time.Second,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	client := resty.New().
		SetBaseURL(cfg.baseURL).
		SetTimeout(cfg.timeout).
		SetRetryCount(cfg.retryCount).
		SetRetryWaitTime(cfg.retryWaitTime).
		SetRetryMaxWaitTime(cfg.retryMaxWaitTime).
		AddRetryCondition(func(_ *resty.Response, err error) bool {
			return isRetryableError(err)
		})

	return client
}

// isRetryableError checks if the error is a transport-level failure worth
// another attempt.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	var addrErr *net.AddrError
	if errors.As(err, &addrErr) {
		return true
	}

	var opErr *net.OpError

	return errors.As(err, &opErr)
}
