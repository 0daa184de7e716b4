// Package clients provides the HTTP client used by provider sources
package clients

import (
	"context"
	"crypto/tls"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/net/http2"

	"github.com/ajitpratap0/gdi/pkg/config"
	"github.com/ajitpratap0/gdi/pkg/errors"
	"github.com/ajitpratap0/gdi/pkg/metrics"
)

// maxBodyBytes caps how much of a provider response is read into memory.
const maxBodyBytes = 64 << 20

// HTTPClient performs rate-limited JSON requests with a per-request deadline
type HTTPClient struct {
	config      *HTTPConfig
	logger      *zap.Logger
	httpClient  *http.Client
	transport   *http.Transport
	rateLimiter RateLimiter
}

// HTTPConfig configures the HTTP client
type HTTPConfig struct {
	// RequestTimeout bounds each request including reading the body
	RequestTimeout time.Duration `json:"request_timeout"`

	// Connection settings
	MaxIdleConnsPerHost int           `json:"max_idle_conns_per_host"`
	IdleConnTimeout     time.Duration `json:"idle_conn_timeout"`
	DialTimeout         time.Duration `json:"dial_timeout"`
	TLSHandshakeTimeout time.Duration `json:"tls_handshake_timeout"`
	EnableHTTP2         bool          `json:"enable_http2"`

	// Rate limiting, RateLimit <= 0 disables it
	RateLimit float64 `json:"rate_limit"`
	RateBurst int     `json:"rate_burst"`

	UserAgent string `json:"user_agent"`
}

// DefaultHTTPConfig returns the default configuration
func DefaultHTTPConfig() *HTTPConfig {
	return &HTTPConfig{
		RequestTimeout:      30 * time.Second,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
		DialTimeout:         10 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		EnableHTTP2:         true,
		RateLimit:           5,
		RateBurst:           1,
		UserAgent:           "gdi/1.0",
	}
}

// HTTPConfigFrom converts the http section of the application config
func HTTPConfigFrom(cfg config.HTTPConfig) *HTTPConfig {
	c := DefaultHTTPConfig()
	c.RequestTimeout = cfg.RequestTimeout
	c.RateLimit = cfg.RateLimit
	c.RateBurst = cfg.RateBurst
	c.UserAgent = cfg.UserAgent
	c.EnableHTTP2 = cfg.EnableHTTP2
	c.MaxIdleConnsPerHost = cfg.MaxIdleConnsPerHost
	return c
}

// NewHTTPClient creates a new HTTP client
func NewHTTPClient(cfg *HTTPConfig, logger *zap.Logger) *HTTPClient {
	if cfg == nil {
		cfg = DefaultHTTPConfig()
	}

	client := &HTTPClient{
		config: cfg,
		logger: logger.With(zap.String("component", "http_client")),
	}

	client.transport = &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.DialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}

	if cfg.EnableHTTP2 {
		if err := http2.ConfigureTransport(client.transport); err != nil {
			client.logger.Warn("failed to configure HTTP/2", zap.Error(err))
		}
	}

	client.httpClient = &http.Client{
		Transport: client.transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}

	if cfg.RateLimit > 0 {
		client.rateLimiter = NewRateLimiter(cfg.RateLimit, cfg.RateBurst)
	}

	return client
}

// GetJSON requests rawURL with params, decodes the JSON body into out and
// returns the raw body. Every failure is a transport error.
func (c *HTTPClient) GetJSON(ctx context.Context, rawURL string, params url.Values, out interface{}) ([]byte, error) {
	body, err := c.Get(ctx, rawURL, params)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return body, errors.Wrap(err, errors.KindTransport, "failed to decode response").
			WithDetail("url", rawURL)
	}
	return body, nil
}

// Get requests rawURL with params and returns the body of a 2xx response.
func (c *HTTPClient) Get(ctx context.Context, rawURL string, params url.Values) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindTransport, "invalid request URL").WithDetail("url", rawURL)
	}
	if len(params) > 0 {
		q := u.Query()
		for k, vs := range params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, errors.Wrap(err, errors.KindTransport, "rate limiter wait aborted").WithDetail("url", u.String())
		}
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindTransport, "failed to build request").WithDetail("url", u.String())
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.config.UserAgent)

	timer := metrics.NewTimer()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.HTTPRequestDuration.WithLabelValues(u.Host, "error").Observe(timer.Seconds())
		wrapped := errors.Wrap(err, errors.KindTransport, "request failed").WithDetail("url", u.String())
		if stderrors.Is(err, context.DeadlineExceeded) {
			wrapped.WithDetail("timeout", c.config.RequestTimeout.String())
		}
		return nil, wrapped
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	metrics.HTTPRequestDuration.WithLabelValues(u.Host, strconv.Itoa(resp.StatusCode)).Observe(timer.Seconds())
	if err != nil {
		return nil, errors.Wrap(err, errors.KindTransport, "failed to read response").WithDetail("url", u.String())
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Newf(errors.KindTransport, "unexpected status %d", resp.StatusCode).
			WithDetail("url", u.String()).
			WithDetail("status", resp.StatusCode).
			WithDetail("body", snippet(body))
	}

	c.logger.Debug("request completed",
		zap.String("url", u.String()),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
		zap.Duration("duration", timer.Elapsed()))

	return body, nil
}

// Close releases idle connections
func (c *HTTPClient) Close() error {
	c.transport.CloseIdleConnections()
	return nil
}

func snippet(body []byte) string {
	const max = 256
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
