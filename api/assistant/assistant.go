// Package assistant runs one conversation turn: it loads the sitemap, grounds
// the question with a page, asks the chat endpoint and suggests related
// pages.
package assistant

import (
	"context"
	"sync"

	"github.com/ka2n/sitebot/api/chatapi"
	"github.com/ka2n/sitebot/api/session"
	"github.com/ka2n/sitebot/api/sitemap"
	"github.com/ka2n/sitebot/log"
	"github.com/samber/lo"
	"golang.org/x/sync/semaphore"
)

// CannedReplies stand in for a narration the chat endpoint did not provide.
var CannedReplies = []string{
	"Hello! How can I help you today?",
	"I'm here to assist you with any questions about our products or services.",
	"You can browse our products, check your orders, or contact our support team.",
	"Is there anything specific you'd like to know about our store?",
	"I can help you with product information, shipping details, or account questions.",
	"Feel free to ask me about our return policy, shipping options, or current promotions!",
}

// SitemapLoader loads the sitemap of an origin.
type SitemapLoader interface {
	Load(ctx context.Context, origin string, forceUpdate bool) (sitemap.Result, error)
}

// PageFetcher fetches the content of a page.
type PageFetcher interface {
	Fetch(ctx context.Context, pageURL string) (string, error)
}

// Completer asks the chat endpoint for a narration.
type Completer interface {
	Complete(ctx context.Context, req chatapi.Request) (chatapi.Response, error)
}

// Reply is the bot message appended for a turn together with the sitemap
// entries it links to.
type Reply struct {
	// Question is the stored visitor message; set even when answering fails
	Question session.Message
	Message  session.Message
	Matches  []sitemap.Entry
}

// Assistant answers visitor messages for a single site.
type Assistant struct {
	origin   string
	sessions *session.Store
	sitemaps SitemapLoader
	pages    PageFetcher
	chat     Completer

	// ForceUpdate bypasses the sitemap cache on every turn.
	ForceUpdate bool
	// OnTyping, when set, observes typing indicator changes.
	OnTyping func(sessionID string, typing bool)

	mu     sync.Mutex
	guards map[string]*turnGuard
	typing map[string]bool
}

// New creates an assistant for the site at origin.
func New(origin string, sessions *session.Store, sitemaps SitemapLoader, pages PageFetcher, chat Completer) *Assistant {
	return &Assistant{
		origin:   origin,
		sessions: sessions,
		sitemaps: sitemaps,
		pages:    pages,
		chat:     chat,
		guards:   make(map[string]*turnGuard),
		typing:   make(map[string]bool),
	}
}

// Origin returns the site the assistant answers for
func (a *Assistant) Origin() string {
	return a.origin
}

// Sessions returns the store holding the conversations
func (a *Assistant) Sessions() *session.Store {
	return a.sessions
}

// StartSession opens a new conversation.
func (a *Assistant) StartSession(ownerUserID string) session.Session {
	return a.sessions.Create(ownerUserID)
}

// EndSession closes a conversation for good.
func (a *Assistant) EndSession(sessionID string) (session.Session, error) {
	return a.sessions.Close(sessionID)
}

// Typing reports whether a turn of the session is being answered.
func (a *Assistant) Typing(sessionID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.typing[sessionID]
}

// SendMessage appends the visitor's text to the session and answers it.
//
// Turns of the same session run one after another, in call order. The
// visitor's message is kept even when answering fails; in that case no bot
// message is appended and the error tells the caller what went wrong (see
// Kind).
func (a *Assistant) SendMessage(ctx context.Context, sessionID, text string) (Reply, error) {
	release, err := a.acquire(ctx, sessionID)
	if err != nil {
		return Reply{}, err
	}
	defer release()

	asked, err := a.sessions.Append(sessionID, session.Message{
		Sender: session.SenderUser,
		Kind:   session.KindPlain,
		Text:   text,
	})
	if err != nil {
		return Reply{}, err
	}
	question := asked.Messages[len(asked.Messages)-1]

	a.setTyping(sessionID, true)
	defer a.setTyping(sessionID, false)

	logger := log.Logger.With("session", sessionID, "origin", a.origin)

	msg, matches, err := a.answer(ctx, text)
	if err != nil {
		logger.Warn("Failed to answer message", "kind", Kind(err), "error", err)
		return Reply{Question: question}, err
	}

	sess, err := a.sessions.Append(sessionID, msg)
	if err != nil {
		return Reply{Question: question}, err
	}

	logger.Debug("Answered message", "kind", msg.Kind, "links", len(msg.Links))
	return Reply{
		Question: question,
		Message:  sess.Messages[len(sess.Messages)-1],
		Matches:  matches,
	}, nil
}

func (a *Assistant) answer(ctx context.Context, text string) (session.Message, []sitemap.Entry, error) {
	logger := log.Logger.With("origin", a.origin)

	res, err := a.sitemaps.Load(ctx, a.origin, a.ForceUpdate)
	if err != nil {
		return session.Message{}, nil, err
	}

	entries := res.Document.Entries
	var content string
	switch {
	case res.ParseErr != nil:
		logger.Warn("Sitemap is not usable, answering without it", "code", sitemap.ErrMalformedXML, "error", res.ParseErr)
		entries = nil
	case len(entries) == 0:
		logger.Warn("Sitemap has no entries", "code", sitemap.ErrNoEntries)
	default:
		content, err = a.pages.Fetch(ctx, entries[0].Location)
		if err != nil {
			return session.Message{}, nil, err
		}
	}

	resp, err := a.chat.Complete(ctx, chatapi.Request{
		Message:   text,
		DOMString: content,
		SiteMap:   res.XML,
	})
	if err != nil {
		return session.Message{}, nil, err
	}

	narration := resp.Narration
	if narration == "" {
		narration = lo.Sample(CannedReplies)
	}

	matches := Match(entries, text)
	if len(matches) == 0 {
		return session.Message{
			Sender: session.SenderBot,
			Kind:   session.KindPlain,
			Text:   narration,
			Links:  []session.Link{{Label: HomeLabel, URL: a.origin}},
		}, nil, nil
	}

	return session.Message{
		Sender: session.SenderBot,
		Kind:   session.KindQuickReply,
		Text:   narration,
		Links:  Links(a.origin, matches),
	}, matches, nil
}

// turnGuard serializes the turns of one session. It lives in
// Assistant.guards only while turns hold or wait for it.
type turnGuard struct {
	sem  *semaphore.Weighted
	refs int
}

func (a *Assistant) acquire(ctx context.Context, sessionID string) (func(), error) {
	a.mu.Lock()
	g, ok := a.guards[sessionID]
	if !ok {
		g = &turnGuard{sem: semaphore.NewWeighted(1)}
		a.guards[sessionID] = g
	}
	g.refs++
	a.mu.Unlock()

	if err := g.sem.Acquire(ctx, 1); err != nil {
		a.unref(sessionID, g)
		return nil, err
	}
	return func() {
		g.sem.Release(1)
		a.unref(sessionID, g)
	}, nil
}

func (a *Assistant) unref(sessionID string, g *turnGuard) {
	a.mu.Lock()
	defer a.mu.Unlock()
	g.refs--
	if g.refs == 0 {
		delete(a.guards, sessionID)
	}
}

func (a *Assistant) setTyping(sessionID string, typing bool) {
	a.mu.Lock()
	if typing {
		a.typing[sessionID] = true
	} else {
		delete(a.typing, sessionID)
	}
	hook := a.OnTyping
	a.mu.Unlock()

	if hook != nil {
		hook(sessionID, typing)
	}
}
