package assistant

import (
	"context"
	"errors"

	"github.com/ka2n/sitebot/api/chatapi"
	"github.com/ka2n/sitebot/api/page"
	"github.com/ka2n/sitebot/api/relay"
	"github.com/ka2n/sitebot/api/session"
	"github.com/morikuni/failure/v2"
)

// FailureKind classifies why a turn produced no bot message.
type FailureKind string

const (
	FailureNone               FailureKind = ""
	FailureProxyExhausted     FailureKind = "ProxyExhausted"
	FailureHTTP               FailureKind = "HttpError"
	FailureSessionUnavailable FailureKind = "SessionUnavailable"
	FailureCanceled           FailureKind = "Canceled"
	FailureUnknown            FailureKind = "Unknown"
)

// FallbackText is what a UI shows in place of a bot message when a turn fails.
// It is never stored in the session.
const FallbackText = "Sorry, I couldn't look that up right now."

// Kind classifies an error returned by SendMessage.
func Kind(err error) FailureKind {
	switch {
	case err == nil:
		return FailureNone
	// page errors carry the relay code too, so they are checked first
	case failure.Is(err, page.ErrPageFetch):
		return FailureHTTP
	case failure.Is(err, relay.ErrRelaysExhausted):
		return FailureProxyExhausted
	case failure.Is(err, chatapi.ErrHTTP, chatapi.ErrRequest):
		return FailureHTTP
	case failure.Is(err, session.ErrNotFound, session.ErrClosed):
		return FailureSessionUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return FailureCanceled
	default:
		return FailureUnknown
	}
}
