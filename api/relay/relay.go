// Package relay fetches URLs through an ordered list of CORS-style relays.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/ka2n/sitebot/log"
	"github.com/morikuni/failure/v2"
)

// ErrorCode defines error types for relay operations
type ErrorCode string

const (
	// ErrRelaysExhausted represents a fetch where every relay failed
	ErrRelaysExhausted ErrorCode = "RelaysExhausted"
)

func (c ErrorCode) ErrorCode() string {
	return string(c)
}

// Direct is the template that sends requests straight to the target.
const Direct = "direct"

// DefaultSitemapRelays are the public relays tried for sitemap discovery, in order.
var DefaultSitemapRelays = []string{
	"https://cors-anywhere.com/",
	"https://thingproxy.freeboard.io/fetch/",
	"https://api.allorigins.win/raw?url=",
	"https://corsproxy.io/?",
}

// DefaultPageRelays holds the single relay used for page content.
var DefaultPageRelays = []string{
	"https://cors-anywhere.com/",
}

// Wrap renders a relay template for target.
//
// Templates ending in "=" or "?" take the target as an escaped query value,
// an empty or "direct" template passes the target through, and anything else
// gets the target appended verbatim.
func Wrap(template, target string) string {
	switch {
	case template == "" || template == Direct:
		return target
	case strings.HasSuffix(template, "=") || strings.HasSuffix(template, "?"):
		return template + componentEscape(target)
	default:
		return template + target
	}
}

// componentUnescape maps url.QueryEscape output onto the URI component
// encoding relays decode: %20 for space, and !'()* left as they are.
var componentUnescape = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

func componentEscape(s string) string {
	return componentUnescape.Replace(url.QueryEscape(s))
}

// AttemptError describes why a single relay did not deliver the target.
type AttemptError struct {
	Relay      string
	StatusCode int
	Status     string
	Err        error
}

func (e *AttemptError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("Error with proxy %s: %s", e.Relay, e.Err.Error())
	}
	return fmt.Sprintf("Failed with proxy %s: %s", e.Relay, e.Status)
}

func (e *AttemptError) Unwrap() error {
	return e.Err
}

// Policy configures how each relay is attempted.
type Policy struct {
	// MaxRetries is the number of extra attempts on the same relay. Zero
	// means one attempt per relay.
	MaxRetries int
	Backoff    time.Duration
	MaxBackoff time.Duration
	// Timeout bounds a single attempt. Zero disables the bound.
	Timeout time.Duration
}

// DefaultPolicy returns one attempt per relay with a 15 second bound.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: 0,
		Backoff:    200 * time.Millisecond,
		MaxBackoff: 2 * time.Second,
		Timeout:    15 * time.Second,
	}
}

func (p Policy) normalize() Policy {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.Backoff <= 0 {
		p.Backoff = 200 * time.Millisecond
	}
	if p.MaxBackoff < p.Backoff {
		p.MaxBackoff = p.Backoff
	}
	return p
}

// Chain fetches a target through the first relay that answers with 2xx.
type Chain struct {
	name   string
	relays []string
	policy Policy
	client *http.Client
	retry  retrypolicy.RetryPolicy[string]
}

// NewChain creates a chain trying relays in the given order.
// A nil client falls back to a logging client without a global timeout.
func NewChain(name string, relays []string, policy Policy, client *http.Client) *Chain {
	if client == nil {
		client = log.HTTPClient(0)
	}
	policy = policy.normalize()
	retry := retrypolicy.NewBuilder[string]().
		WithBackoff(policy.Backoff, policy.MaxBackoff).
		WithMaxRetries(policy.MaxRetries).
		HandleIf(func(_ string, err error) bool {
			return err != nil && !errors.Is(err, context.Canceled)
		}).
		Build()

	return &Chain{
		name:   name,
		relays: append([]string(nil), relays...),
		policy: policy,
		client: client,
		retry:  retry,
	}
}

// Relays returns the configured relay templates in order.
func (c *Chain) Relays() []string {
	return append([]string(nil), c.relays...)
}

// Fetch returns the body of target delivered by the first successful relay.
// Relays after the successful one are never contacted.
func (c *Chain) Fetch(ctx context.Context, target string) (string, error) {
	logger := log.Logger.With("chain", c.name, "target", target)

	if len(c.relays) == 0 {
		return "", failure.New(ErrRelaysExhausted,
			failure.Message("no relays configured"),
			failure.Context{"chain": c.name, "target": target},
		)
	}

	var lastErr *AttemptError
	for _, r := range c.relays {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		var attemptErr *AttemptError
		body, err := failsafe.With[string](c.retry).WithContext(ctx).Get(func() (string, error) {
			body, err := c.attempt(ctx, r, target)
			if err != nil {
				attemptErr = err
				return "", err
			}
			return body, nil
		})
		if err == nil {
			logger.Debug("Relay delivered", "relay", r, "bytes", len(body))
			return body, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		if attemptErr != nil {
			lastErr = attemptErr
		} else {
			lastErr = &AttemptError{Relay: r, Err: err}
		}
		logger.Debug("Relay failed", "relay", r, "error", lastErr.Error())
	}

	return "", failure.Wrap(lastErr, failure.WithCode(ErrRelaysExhausted),
		failure.Message(lastErr.Error()),
		failure.Context{"chain": c.name, "target": target},
	)
}

func (c *Chain) attempt(ctx context.Context, relay, target string) (string, *AttemptError) {
	if c.policy.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.policy.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, Wrap(relay, target), nil)
	if err != nil {
		return "", &AttemptError{Relay: relay, Err: err}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &AttemptError{Relay: relay, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", &AttemptError{Relay: relay, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &AttemptError{Relay: relay, Err: err}
	}
	return string(body), nil
}
