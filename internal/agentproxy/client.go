// Package agentproxy forwards chat messages to operator-configured agent
// endpoints. The contract is POST {"input": text} answered by 200 {"output": text}.
package agentproxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"
)

const (
	// DefaultTimeout bounds one agent call end to end.
	DefaultTimeout = 30 * time.Second
	// DialTimeout is the connection timeout.
	DialTimeout = 10 * time.Second
	// TLSHandshakeTimeout is the TLS negotiation timeout.
	TLSHandshakeTimeout = 10 * time.Second
	// maxResponseBytes caps how much of an agent response is read.
	maxResponseBytes = 1 << 20
)

// Failure classes reported by Reason.
const (
	ReasonStatus    = "status"
	ReasonMalformed = "malformed"
	ReasonTimeout   = "timeout"
	ReasonTransport = "transport"
)

// ErrMalformedResponse is returned when a 200 response does not carry a
// non-empty string "output".
var ErrMalformedResponse = errors.New("malformed agent response")

// StatusError is returned for any non-200 agent response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("agent returned status %d", e.Code)
}

// NewHTTPClient creates an HTTP client for agent calls.
// It does not follow redirects; the overall bound is applied per call.
// Unless allowPrivate is set, connections to blocked addresses are refused
// at dial time, after resolution, and no proxy is used.
func NewHTTPClient(allowPrivate bool) *http.Client {
	dialer := &net.Dialer{
		Timeout:   DialTimeout,
		KeepAlive: 30 * time.Second,
	}
	proxy := http.ProxyFromEnvironment
	if !allowPrivate {
		dialer.Control = denyPrivate
		proxy = nil
	}
	return &http.Client{
		Transport: &http.Transport{
			Proxy:               proxy,
			DialContext:         dialer.DialContext,
			TLSHandshakeTimeout: TLSHandshakeTimeout,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
		// Don't follow redirects - security measure
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// denyPrivate is a net.Dialer Control hook. It sees the resolved address,
// so a hostname that re-resolves to a private IP after registration is
// still refused.
func denyPrivate(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip := net.ParseIP(host)
	if ip == nil || isBlockedIP(ip) {
		return ErrPrivateAddress
	}
	return nil
}

// Client calls agents. No retries are attempted.
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
}

// New creates a Client. A non-positive timeout uses DefaultTimeout.
func New(httpClient *http.Client, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{httpClient: httpClient, timeout: timeout}
}

type askRequest struct {
	Input string `json:"input"`
}

type askResponse struct {
	Output json.RawMessage `json:"output"`
}

// Ask posts input to the agent at targetURL and returns its output.
func (c *Client) Ask(ctx context.Context, targetURL, input string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := json.Marshal(askRequest{Input: input})
	if err != nil {
		return "", fmt.Errorf("encode agent request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, targetURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build agent request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Laissez-Relay/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("call agent: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return "", &StatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read agent response: %w", err)
	}

	return parseOutput(body)
}

func parseOutput(body []byte) (string, error) {
	var parsed askResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(parsed.Output) == 0 {
		return "", fmt.Errorf("%w: missing output", ErrMalformedResponse)
	}

	var output string
	if err := json.Unmarshal(parsed.Output, &output); err != nil {
		return "", fmt.Errorf("%w: output is not a string", ErrMalformedResponse)
	}
	if strings.TrimSpace(output) == "" {
		return "", fmt.Errorf("%w: empty output", ErrMalformedResponse)
	}
	return output, nil
}

// Reason classifies an Ask error for logs and metrics.
func Reason(err error) string {
	var statusErr *StatusError
	switch {
	case errors.As(err, &statusErr):
		return ReasonStatus
	case errors.Is(err, ErrMalformedResponse):
		return ReasonMalformed
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ReasonTimeout
	}
	return ReasonTransport
}
