package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/gameshake/gameshake/pkg/gameshake/auth"
	"github.com/gameshake/gameshake/pkg/metrics"
	"github.com/gameshake/gameshake/pkg/system"
	"github.com/gameshake/gameshake/pkg/telemetry"
	"github.com/gameshake/gameshake/pkg/version"
)

// CorrelationHeader is set to a fresh UUID on every attempt.
const CorrelationHeader = "X-Correlation-ID"

const defaultTimeout = 30 * time.Second

// Response is a successful (2xx) API response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the JSON body into out.
func (r *Response) Decode(out any) error {
	if err := json.Unmarshal(r.Body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Requester is the part of Client the paginator needs.
type Requester interface {
	Request(ctx context.Context, method, path string, cred auth.Credential, query url.Values, body any) (*Response, error)
}

type Client struct {
	baseURL   *url.URL
	http      *http.Client
	rest      *resty.Client
	userAgent string
	timeout   time.Duration
	retry     RetryConfig
	limiter   *rate.Limiter
	sleep     Sleeper
	random    func() float64
	log       *zap.SugaredLogger
}

type Option func(*Client) error

func New(opts ...Option) (*Client, error) {
	c := &Client{
		userAgent: version.UserAgent(),
		timeout:   defaultTimeout,
		retry:     DefaultRetryConfig(),
		sleep:     SleepContext,
		random:    rand.Float64,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.baseURL == nil {
		return nil, errors.New("server is required")
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	c.log = system.OrNop(c.log)
	c.retry = c.retry.WithDefaults()
	c.rest = resty.NewWithClient(c.http).
		SetBaseURL(strings.TrimRight(c.baseURL.String(), "/")).
		SetTimeout(c.timeout).
		SetRetryCount(0).
		SetLogger(c.log).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", c.userAgent)
	return c, nil
}

func WithServer(server string) Option {
	return func(c *Client) error {
		if server == "" {
			return errors.New("server is required")
		}
		parsed, err := url.Parse(server)
		if err != nil {
			return fmt.Errorf("invalid server: %w", err)
		}
		if parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("invalid server %q: scheme and host are required", server)
		}
		c.baseURL = parsed
		return nil
	}
}

func WithUserAgent(userAgent string) Option {
	return func(c *Client) error {
		if userAgent != "" {
			c.userAgent = userAgent
		}
		return nil
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) error {
		if timeout < 0 {
			return fmt.Errorf("invalid timeout %s", timeout)
		}
		if timeout > 0 {
			c.timeout = timeout
		}
		return nil
	}
}

func WithTLSConfig(caFile string, insecureSkipTLSVerify bool) Option {
	return func(c *Client) error {
		tlsConfig, err := auth.LoadTLSConfig(caFile, insecureSkipTLSVerify)
		if err != nil {
			return err
		}
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = tlsConfig
		c.http = &http.Client{Transport: transport}
		return nil
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		c.http = hc
		return nil
	}
}

func WithRetry(cfg RetryConfig) Option {
	return func(c *Client) error {
		if cfg.MaxAttempts < 0 {
			return fmt.Errorf("invalid max attempts %d", cfg.MaxAttempts)
		}
		if cfg.MaxDelay > 0 && cfg.BaseDelay > cfg.MaxDelay {
			return fmt.Errorf("base delay %s exceeds max delay %s", cfg.BaseDelay, cfg.MaxDelay)
		}
		c.retry = cfg
		return nil
	}
}

// WithRateLimit throttles outgoing requests to rps per second. Zero
// disables throttling.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) error {
		if rps < 0 {
			return fmt.Errorf("invalid rate limit %v", rps)
		}
		if rps == 0 {
			c.limiter = nil
			return nil
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		return nil
	}
}

func WithLogger(log *zap.SugaredLogger) Option {
	return func(c *Client) error {
		c.log = log
		return nil
	}
}

func WithSleeper(sleep Sleeper) Option {
	return func(c *Client) error {
		if sleep != nil {
			c.sleep = sleep
		}
		return nil
	}
}

// withRandom fixes the jitter source.
func withRandom(fn func() float64) Option {
	return func(c *Client) error {
		c.random = fn
		return nil
	}
}

// RetryConfig returns the effective retry policy.
func (c *Client) RetryConfig() RetryConfig {
	return c.retry
}

// Request issues method path with cred as bearer token, retrying rate
// limited, transient and network failures. A cancelled ctx ends the loop
// with ctx.Err().
func (c *Client) Request(ctx context.Context, method, path string, cred auth.Credential, query url.Values, body any) (*Response, error) {
	for attempt := 1; ; attempt++ {
		if err := c.throttle(ctx); err != nil {
			return nil, err
		}
		resp, apiErr := c.attempt(ctx, method, path, cred, query, body, attempt)
		if apiErr == nil {
			return resp, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		apiErr.Attempts = attempt
		if !apiErr.Retryable() || attempt >= c.retry.MaxAttempts {
			return nil, apiErr
		}

		delay := c.retry.Delay(attempt, c.random())
		metrics.APIRetries.WithLabelValues(string(apiErr.Kind)).Inc()
		c.log.Debugw("Retrying API request",
			"method", method,
			"path", path,
			"attempt", attempt,
			"reason", apiErr.Kind,
			"delay", delay)
		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

// throttle waits for the rate limiter. A wait that cannot finish before the
// deadline fails at once and is not retried.
func (c *Client) throttle(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("client rate limit: %w", err)
	}
	return nil
}

func (c *Client) attempt(ctx context.Context, method, path string, cred auth.Credential, query url.Values, body any, attempt int) (resp *Response, apiErr *APIError) {
	correlationID := uuid.NewString()
	ctx, span := telemetry.Tracer("client").Start(ctx, "HTTP "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
			attribute.Int("gameshake.attempt", attempt),
			attribute.String("gameshake.correlation_id", correlationID),
		))
	defer func() {
		if apiErr != nil {
			span.SetAttributes(attribute.String("gameshake.error_kind", string(apiErr.Kind)))
			telemetry.End(span, apiErr)
			return
		}
		span.End()
	}()

	req := c.rest.R().
		SetContext(ctx).
		SetHeader(CorrelationHeader, correlationID)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
	if cred.AccessToken != "" {
		req.SetAuthScheme(cred.Type()).SetAuthToken(cred.AccessToken)
	}
	if len(query) > 0 {
		req.SetQueryParamsFromValues(query)
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	start := time.Now()
	raw, err := req.Execute(method, path)
	elapsed := time.Since(start)
	metrics.APIRequestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
	if err != nil {
		metrics.APIRequests.WithLabelValues(method, "error").Inc()
		c.log.Debugw("API request failed",
			"method", method,
			"path", path,
			"correlation_id", correlationID,
			"attempt", attempt,
			"error", err)
		return nil, classifyTransport(err)
	}

	status := raw.StatusCode()
	span.SetAttributes(attribute.Int("http.response.status_code", status))
	metrics.APIRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	c.log.Debugw("API request",
		"method", method,
		"path", path,
		"status", status,
		"correlation_id", correlationID,
		"attempt", attempt,
		"duration", elapsed)
	if status < 200 || status > 299 {
		return nil, statusError(status, raw.Body())
	}
	return &Response{StatusCode: status, Header: raw.Header(), Body: raw.Body()}, nil
}
