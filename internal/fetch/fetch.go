package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/juju/clock"
	"github.com/juju/retry"
)

const (
	defaultAttempts = 3
	defaultDelay    = 250 * time.Millisecond
	defaultMaxDelay = 4 * time.Second
	defaultTimeout  = 15 * time.Second
)

// Observer receives one observation per collaborator call.
type Observer interface {
	ObserveCall(endpoint, outcome string, elapsed time.Duration)
}

type Options struct {
	Attempts int
	Delay    time.Duration
	MaxDelay time.Duration
	Timeout  time.Duration
	Clock    clock.Clock
	Observer Observer
	Log      *slog.Logger
}

// Client executes collaborator calls with bounded attempts and a per-attempt timeout.
type Client struct {
	httpClient *http.Client
	attempts   int
	delay      time.Duration
	maxDelay   time.Duration
	timeout    time.Duration
	clock      clock.Clock
	observer   Observer
	log        *slog.Logger
}

type Request struct {
	// Endpoint is a short label used in logs and metrics.
	Endpoint string
	Method   string
	URL      string
	Query    url.Values
	Body     any
	Header   http.Header
	// Once sends the request a single time. Calls with side effects set it.
	Once bool
}

type Response struct {
	StatusCode int
	Body       []byte
}

// StatusError is returned for non-2xx answers.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status=%d body=%s", e.Endpoint, e.StatusCode, e.Body)
}

// Retryable reports whether the status is worth another attempt.
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

func NewClient(httpClient *http.Client, opts Options) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if opts.Attempts <= 0 {
		opts.Attempts = defaultAttempts
	}
	if opts.Delay <= 0 {
		opts.Delay = defaultDelay
	}
	if opts.MaxDelay < opts.Delay {
		opts.MaxDelay = defaultMaxDelay
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Clock == nil {
		opts.Clock = clock.WallClock
	}
	return &Client{
		httpClient: httpClient,
		attempts:   opts.Attempts,
		delay:      opts.Delay,
		maxDelay:   opts.MaxDelay,
		timeout:    opts.Timeout,
		clock:      opts.Clock,
		observer:   opts.Observer,
		log:        opts.Log,
	}
}

// Do sends the request, retrying transport failures, 5xx and 429 answers
// unless req.Once is set. The returned error is either a *StatusError or a
// transport error.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	var payload []byte
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", req.Endpoint, err)
		}
		payload = b
	}

	target, err := buildURL(req.URL, req.Query)
	if err != nil {
		return nil, fmt.Errorf("%s url: %w", req.Endpoint, err)
	}

	attempts := c.attempts
	if req.Once {
		attempts = 1
	}

	started := c.clock.Now()
	var resp *Response
	err = retry.Call(retry.CallArgs{
		Func: func() error {
			r, err := c.attempt(ctx, req, target, payload)
			if err != nil {
				return err
			}
			resp = r
			return nil
		},
		IsFatalError: func(err error) bool {
			if ctx.Err() != nil {
				return true
			}
			var statusErr *StatusError
			if errors.As(err, &statusErr) {
				return !statusErr.Retryable()
			}
			return false
		},
		NotifyFunc: func(err error, attempt int) {
			if c.log != nil {
				c.log.Warn("collaborator call failed", "endpoint", req.Endpoint, "attempt", attempt, "err", err)
			}
		},
		Attempts:    attempts,
		Delay:       c.delay,
		MaxDelay:    c.maxDelay,
		BackoffFunc: retry.DoubleDelay,
		Clock:       c.clock,
		Stop:        ctx.Done(),
	})
	err = retry.LastError(err)

	c.observe(req.Endpoint, err, c.clock.Now().Sub(started))
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// DoJSON sends the request and decodes a 2xx body into out.
func (c *Client) DoJSON(ctx context.Context, req Request, out any) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("decode %s response: %w (body=%s)", req.Endpoint, err, TruncateBody(resp.Body))
	}
	return nil
}

func (c *Client) attempt(ctx context.Context, req Request, target string, payload []byte) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("new %s request: %w", req.Endpoint, err)
	}
	for k, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(k, v)
		}
	}
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, req.Endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response body: %w", req.Endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{
			Endpoint:   req.Endpoint,
			StatusCode: resp.StatusCode,
			Body:       TruncateBody(raw),
		}
	}
	return &Response{StatusCode: resp.StatusCode, Body: raw}, nil
}

func (c *Client) observe(endpoint string, err error, elapsed time.Duration) {
	if c.observer == nil {
		return
	}
	outcome := "ok"
	var statusErr *StatusError
	switch {
	case err == nil:
	case errors.As(err, &statusErr):
		outcome = "status_error"
	default:
		outcome = "transport_error"
	}
	c.observer.ObserveCall(endpoint, outcome, elapsed)
}

func buildURL(raw string, query url.Values) (string, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("absolute url required, got %q", raw)
	}
	if len(query) > 0 {
		merged := parsed.Query()
		for k, values := range query {
			for _, v := range values {
				merged.Add(k, v)
			}
		}
		parsed.RawQuery = merged.Encode()
	}
	return parsed.String(), nil
}

// TruncateBody shortens a response body for logs and error messages.
func TruncateBody(body []byte) string {
	const limit = 512
	s := strings.TrimSpace(string(body))
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "…"
}
