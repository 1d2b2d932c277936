// Package chatapi talks to the remote chat endpoint that writes the
// assistant's narration.
package chatapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ka2n/sitebot/log"
	"github.com/morikuni/failure/v2"
)

// ErrorCode defines error types for chat endpoint operations
type ErrorCode string

const (
	// ErrHTTP represents a non-2xx answer from the chat endpoint
	ErrHTTP ErrorCode = "ChatHTTPError"
	// ErrRequest represents a transport or encoding failure
	ErrRequest ErrorCode = "ChatRequestFailed"
)

func (c ErrorCode) ErrorCode() string {
	return string(c)
}

// Request is the body sent to /api/chat.
type Request struct {
	Message   string `json:"message"`
	DOMString string `json:"domString"`
	SiteMap   string `json:"siteMap"`
}

// Response is the subset of the reply the assistant uses.
type Response struct {
	Narration string `json:"narration"`
}

// Client posts conversations to <endpoint>/api/chat.
type Client struct {
	endpoint string
	client   *http.Client
}

// New creates a client for endpoint. A nil httpClient gets a logging client
// bounded by timeout.
func New(endpoint string, timeout time.Duration, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = log.HTTPClient(timeout)
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   httpClient,
	}
}

// URL returns the full chat URL
func (c *Client) URL() string {
	return c.endpoint + "/api/chat"
}

// Complete sends req and decodes the narration.
// A 2xx body that is not JSON yields an empty Response.
func (c *Client) Complete(ctx context.Context, req Request) (Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return Response{}, failure.Wrap(err, failure.WithCode(ErrRequest),
			failure.Message("Failed to encode chat request"))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL(), bytes.NewReader(payload))
	if err != nil {
		return Response{}, failure.Wrap(err, failure.WithCode(ErrRequest),
			failure.Message("Failed to create chat request"),
			failure.Context{"url": c.URL()})
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return Response{}, failure.Wrap(err, failure.WithCode(ErrRequest),
			failure.Message(fmt.Sprintf("Chat request failed: %s", err.Error())),
			failure.Context{"url": c.URL()})
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, failure.Wrap(err, failure.WithCode(ErrRequest),
			failure.Message("Failed to read chat response"),
			failure.Context{"url": c.URL()})
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return Response{}, failure.New(ErrHTTP,
			failure.Message(fmt.Sprintf("Chat endpoint answered %s", resp.Status)),
			failure.Context{
				"url":    c.URL(),
				"status": resp.Status,
				"body":   strings.TrimSpace(string(body)),
			},
		)
	}

	var out Response
	if err := json.Unmarshal(body, &out); err != nil {
		log.Debug("Chat response is not JSON", "url", c.URL(), "error", err)
		return Response{}, nil
	}
	return out, nil
}
