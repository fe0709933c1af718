// Package httpx is the JSON-over-HTTP transport shared by the control-plane
// clients: bounded retries with jittered backoff, request pacing, and status
// errors that classify 401 as cloud.ErrUnauthorized.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"vmsched/internal/cloud"
	logx "vmsched/pkg/logx"
)

// Config tunes the transport. Zero values pick defaults.
type Config struct {
	Timeout       time.Duration // per attempt; default 30s
	RetryMax      int           // extra attempts; default 3, negative disables
	RetryBase     time.Duration // default 500ms
	RetryMaxDelay time.Duration // default 10s
	RatePerSec    float64       // 0 disables pacing
	Burst         int
	UserAgent     string
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.RetryMax == 0 {
		c.RetryMax = 3
	}
	if c.RetryMax < 0 {
		c.RetryMax = 0
	}
	if c.RetryBase <= 0 {
		c.RetryBase = 500 * time.Millisecond
	}
	if c.RetryMaxDelay < c.RetryBase {
		c.RetryMaxDelay = 10 * time.Second
	}
	if c.Burst <= 0 {
		c.Burst = 1
	}
	if c.UserAgent == "" {
		c.UserAgent = "vmsched"
	}
	return c
}

// StatusError is a non-2xx response.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.Code, http.StatusText(e.Code))
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Unwrap lets errors.Is(err, cloud.ErrUnauthorized) match 401 responses.
func (e *StatusError) Unwrap() error {
	if e.Code == http.StatusUnauthorized {
		return cloud.ErrUnauthorized
	}
	return nil
}

// StatusCode extracts the HTTP status from err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// Request describes one call. Body is JSON-encoded unless Form is set.
type Request struct {
	Method string
	URL    string
	Query  url.Values
	Header http.Header
	Form   url.Values
	Body   any
}

// Client is safe for concurrent use.
type Client struct {
	hc      *http.Client
	cfg     Config
	limiter *rate.Limiter
	log     logx.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

func New(cfg Config, log logx.Logger) *Client {
	cfg = cfg.withDefaults()
	if log.IsZero() {
		log = logx.Nop()
	}
	c := &Client{
		hc:    &http.Client{Timeout: cfg.Timeout},
		cfg:   cfg,
		log:   log,
		sleep: sleepCtx,
	}
	if cfg.RatePerSec > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst)
	}
	return c
}

// Do performs req, retrying transient failures, and decodes a JSON response
// into out (if non-nil). The response headers of the final attempt are returned.
func (c *Client) Do(ctx context.Context, req Request, out any) (http.Header, error) {
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}
	target, err := buildURL(req.URL, req.Query)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.RetryMax; attempt++ {
		if attempt > 0 {
			wait := c.backoff(attempt)
			c.log.Debug("retrying request", logx.String("method", method), logx.String("url", redact(target)), logx.Int("attempt", attempt), logx.Duration("wait", wait), logx.Err(lastErr))
			if err := c.sleep(ctx, wait); err != nil {
				return nil, lastErr
			}
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		hdr, retry, err := c.once(ctx, method, target, req, out)
		if err == nil {
			return hdr, nil
		}
		lastErr = err
		if !retry || !retryableMethod(method, err) {
			return hdr, err
		}
	}
	return nil, lastErr
}

func (c *Client) once(ctx context.Context, method, target string, req Request, out any) (http.Header, bool, error) {
	body, ctype, err := encodeBody(req)
	if err != nil {
		return nil, false, err
	}
	hreq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, false, err
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			hreq.Header.Add(k, v)
		}
	}
	if ctype != "" {
		hreq.Header.Set("Content-Type", ctype)
	}
	if hreq.Header.Get("Accept") == "" {
		hreq.Header.Set("Accept", "application/json")
	}
	hreq.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.hc.Do(hreq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, fmt.Errorf("%s %s: %w", method, redact(target), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		se := &StatusError{Method: method, URL: redact(target), Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
		return resp.Header, retryableStatus(resp.StatusCode), se
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.Header, false, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return resp.Header, false, fmt.Errorf("%s %s: decode response: %w", method, redact(target), err)
	}
	return resp.Header, false, nil
}

func (c *Client) backoff(attempt int) time.Duration {
	d := c.cfg.RetryBase << (attempt - 1)
	if d <= 0 || d > c.cfg.RetryMaxDelay {
		d = c.cfg.RetryMaxDelay
	}
	// 20% jitter.
	if j := int64(d) / 5; j > 0 {
		d += time.Duration(rand.Int64N(j + 1))
	}
	return d
}

func encodeBody(req Request) (io.Reader, string, error) {
	if req.Form != nil {
		return strings.NewReader(req.Form.Encode()), "application/x-www-form-urlencoded", nil
	}
	if req.Body == nil {
		return nil, "", nil
	}
	b, err := json.Marshal(req.Body)
	if err != nil {
		return nil, "", err
	}
	return bytes.NewReader(b), "application/json", nil
}

func buildURL(raw string, q url.Values) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if len(q) > 0 {
		merged := u.Query()
		for k, vs := range q {
			for _, v := range vs {
				merged.Add(k, v)
			}
		}
		u.RawQuery = merged.Encode()
	}
	return u.String(), nil
}

// retryableStatus covers throttling and server-side failures.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout, http.StatusInternalServerError:
		return true
	}
	return false
}

// retryableMethod limits retries of non-idempotent requests to responses
// where the server did not act on them.
func retryableMethod(method string, err error) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	code := StatusCode(err)
	return code == http.StatusTooManyRequests || code == http.StatusServiceUnavailable
}

// redact drops query parameters that may carry secrets.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	for _, k := range []string{"apikey", "token", "access_token"} {
		if q.Has(k) {
			q.Set(k, "REDACTED")
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// BearerHeader returns an Authorization header for token plus any extra pairs.
func BearerHeader(token string, kv ...string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	for i := 0; i+1 < len(kv); i += 2 {
		h.Set(kv[i], kv[i+1])
	}
	return h
}
