package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxErrorBody caps how much of a failed response is read.
const maxErrorBody = 4 << 10

// Client sends JSON requests to one provider and classifies failures with
// the provider's sentinel.
type Client struct {
	Provider string
	BaseURL  string
	Sentinel error
	Header   http.Header
	HTTP     *http.Client
}

// NewClient returns a client for baseURL with a per-request timeout.
func NewClient(provider, baseURL string, timeout time.Duration, sentinel error) *Client {
	return &Client{
		Provider: provider,
		BaseURL:  strings.TrimRight(baseURL, "/"),
		Sentinel: sentinel,
		Header:   make(http.Header),
		HTTP:     &http.Client{Timeout: timeout},
	}
}

// Do sends in as the JSON body (none when nil) and decodes a 2xx response
// into out (discarded when nil).
func (c *Client) Do(ctx context.Context, method, path string, in, out any) error {
	body := io.Reader(http.NoBody)
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", c.Provider, err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", c.Provider, err)
	}
	for k, v := range c.Header {
		req.Header[k] = v
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return RequestError(ctx, c.Provider, err, c.Sentinel)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return StatusError(c.Provider, resp.StatusCode, msg, c.Sentinel)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s: %w", c.Provider, ctxErr)
		}
		return fmt.Errorf("%s: decode response: %w", c.Provider, err)
	}
	return nil
}

// Close drops idle connections.
func (c *Client) Close() error {
	c.HTTP.CloseIdleConnections()
	return nil
}
