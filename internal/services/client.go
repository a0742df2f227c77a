// internal/services/client.go
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/crosscheck/internal/config"
	"github.com/xkilldash9x/crosscheck/internal/network"
	"github.com/xkilldash9x/crosscheck/internal/observability"
)

const maxBodyBytes = 8 << 20

// retryStatuses are the transient server statuses worth another attempt.
var retryStatuses = map[int]bool{
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// ClientOptions configures a Client.
type ClientOptions struct {
	BaseURL      string
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	// RateLimit is requests per second across the client; zero disables it.
	RateLimit float64
	RateBurst int
	UserAgent string
	Headers   map[string]string
}

// OptionsFromConfig derives client options from the application config.
func OptionsFromConfig(cfg *config.Config) ClientOptions {
	return ClientOptions{
		BaseURL:      cfg.APIBaseURL(),
		Timeout:      cfg.API.Timeout,
		MaxRetries:   cfg.API.MaxRetries,
		RetryBackoff: cfg.API.RetryBackoff,
		RateLimit:    cfg.API.RateLimit,
		RateBurst:    cfg.API.RateBurst,
		UserAgent:    cfg.Browser.UserAgent,
		Headers:      cfg.API.Headers,
	}
}

// Response is a successful (2xx) reply.
type Response struct {
	Status   int
	Header   http.Header
	Body     []byte
	Latency  time.Duration
	Attempts int
}

// Client issues identified, rate-limited, retried requests to the data
// services and classifies every failure. It is safe for concurrent use.
type Client struct {
	base       *url.URL
	httpClient *http.Client
	headers    http.Header
	limiter    *rate.Limiter
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
	logger     *zap.Logger
}

// NewClient builds a Client on the tuned network transport.
func NewClient(opts ClientOptions, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	netCfg := network.NewDefaultClientConfig()
	netCfg.Logger = logger
	// Each attempt carries its own deadline; the client-wide one would cut retries short.
	netCfg.RequestTimeout = 0
	return NewClientWithHTTP(opts, network.NewClient(netCfg), logger)
}

// NewClientWithHTTP builds a Client over a caller-supplied http.Client.
func NewClientWithHTTP(opts ClientOptions, httpClient *http.Client, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	base, err := url.Parse(opts.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid API base URL %q", opts.BaseURL)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = network.DefaultRequestTimeout
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	return &Client{
		base:       base,
		httpClient: httpClient,
		headers:    identificationHeaders(base, opts),
		limiter:    limiter,
		timeout:    opts.Timeout,
		maxRetries: opts.MaxRetries,
		backoff:    opts.RetryBackoff,
		logger:     logger.Named("api"),
	}, nil
}

// identificationHeaders presents the client the way a browser on the site would.
// Storefront edges commonly reject requests without a matching Origin/Referer.
func identificationHeaders(base *url.URL, opts ClientOptions) http.Header {
	origin := base.Scheme + "://" + base.Host
	ua := opts.UserAgent
	if ua == "" {
		ua = config.DefaultUserAgent
	}
	h := http.Header{}
	h.Set("User-Agent", ua)
	h.Set("Accept", "application/json, text/plain, */*")
	h.Set("Accept-Language", "en-US,en;q=0.9")
	h.Set("Referer", origin+"/")
	h.Set("Origin", origin)
	for k, v := range opts.Headers {
		h.Set(k, v)
	}
	return h
}

// Get performs a GET against path with query parameters. Non-2xx replies
// and transport failures are returned as *RemoteError.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	target := c.base.ResolveReference(&url.URL{Path: path, RawQuery: query.Encode()})

	var lastErr *RemoteError
	for attempt := 1; attempt <= c.maxRetries+1; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, c.backoff<<(attempt-2)); err != nil {
				return nil, err
			}
		}

		resp, rerr := c.do(ctx, target.String(), attempt)
		if rerr == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = rerr
		if !c.retryable(rerr) {
			break
		}
		c.logger.Debug("Retrying request.", zap.String("url", target.String()), zap.Int("attempt", attempt), zap.Error(rerr))
	}
	return nil, lastErr
}

func (c *Client) retryable(err *RemoteError) bool {
	if err.Status != 0 {
		return retryStatuses[err.Status]
	}
	return err.Class == ClassNetwork || err.Class == ClassTimeout
}

// do performs a single attempt.
func (c *Client) do(ctx context.Context, target string, attempt int) (*Response, *RemoteError) {
	fail := func(status int, class Class, latency time.Duration, snippet string, err error) *RemoteError {
		return &RemoteError{
			Method: http.MethodGet, URL: target, Status: status, Class: class,
			Latency: latency, Attempts: attempt, Snippet: snippet, Err: err,
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fail(0, ClassNetwork, 0, "", fmt.Errorf("rate limiter: %w", err))
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fail(0, ClassClientError, 0, "", err)
	}
	req.Header = c.headers.Clone()

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		latency := time.Since(start)
		c.logRequest(target, 0, latency, attempt)
		return nil, fail(0, transportClass(err), latency, "", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	latency := time.Since(start)
	c.logRequest(target, resp.StatusCode, latency, attempt)
	if err != nil {
		return nil, fail(resp.StatusCode, transportClass(err), latency, "", fmt.Errorf("reading body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fail(resp.StatusCode, Classify(resp.StatusCode), latency, snippet(body), nil)
	}

	return &Response{
		Status:   resp.StatusCode,
		Header:   resp.Header,
		Body:     body,
		Latency:  latency,
		Attempts: attempt,
	}, nil
}

func (c *Client) logRequest(target string, status int, latency time.Duration, attempt int) {
	c.logger.Info("API request.",
		observability.Event(observability.EventAPIRequest),
		zap.String("url", target),
		zap.Int("status", status),
		zap.Duration("latency", latency),
		zap.Int("attempt", attempt))
}

func transportClass(err error) Class {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return ClassTimeout
	}
	return ClassNetwork
}

func snippet(body []byte) string {
	const max = 256
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max]
	}
	return s
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
