// Package agentclient implements the worker caller port over HTTP: one
// envelope POSTed to a service's /mcp endpoint, one envelope back.
package agentclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/Strob0t/CoachForge/internal/domain/envelope"
	"github.com/Strob0t/CoachForge/internal/middleware"
	"github.com/Strob0t/CoachForge/internal/port/worker"
	"github.com/Strob0t/CoachForge/internal/resilience"
)

const maxReplyBytes = 8 << 20

// StatusError is returned for non-2xx HTTP replies.
type StatusError struct {
	Service string
	Code    int
	Body    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned HTTP %d: %s", e.Service, e.Code, e.Body)
}

// Client posts envelopes to collaborator services.
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
	breakers   *resilience.Set
}

// Option configures a Client.
type Option func(*Client)

// WithBreakers guards every service with its own circuit breaker.
func WithBreakers(s *resilience.Set) Option {
	return func(c *Client) { c.breakers = s }
}

// WithTransport replaces the HTTP transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.httpClient.Transport = rt }
}

// New creates a Client whose calls are each bounded by timeout.
func New(timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{},
		timeout:    timeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ worker.Caller = (*Client)(nil)

// Call posts msg to ep and decodes the reply envelope. It fails on transport
// errors, timeouts, non-2xx statuses and malformed bodies; the reply's
// payload status is left to the caller.
func (c *Client) Call(ctx context.Context, ep worker.Endpoint, msg *envelope.Message) (*envelope.Message, error) {
	if ep.URL == "" {
		return nil, fmt.Errorf("call %s: no URL configured", ep.Name)
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope for %s: %w", ep.Name, err)
	}

	var reply *envelope.Message
	call := func() error {
		var err error
		reply, err = c.post(ctx, ep, body)
		return err
	}

	if c.breakers != nil {
		err = c.breakers.For(ep.Name).Execute(call)
	} else {
		err = call()
	}
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", ep.Name, err)
	}
	return reply, nil
}

func (c *Client) post(ctx context.Context, ep worker.Endpoint, body []byte) (*envelope.Message, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	middleware.SetRequestID(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Service: ep.Name, Code: resp.StatusCode, Body: truncate(string(data), 256)}
	}

	var reply envelope.Message
	if err := json.Unmarshal(data, &reply); err != nil {
		return nil, fmt.Errorf("decode reply envelope: %w", err)
	}
	if len(reply.Payload) == 0 || string(reply.Payload) == "null" {
		return nil, fmt.Errorf("decode reply envelope: empty payload")
	}
	return &reply, nil
}

// truncate shortens s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
