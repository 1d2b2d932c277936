// Package page fetches the content of a single site page for use as
// conversational grounding.
package page

import (
	"context"
	"net/url"
	"strings"

	html2md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/ka2n/sitebot/api/relay"
	"github.com/ka2n/sitebot/log"
	"github.com/mackee/go-readability"
	"github.com/morikuni/failure/v2"
	"golang.org/x/net/html"
)

// ErrorCode defines error types for page operations
type ErrorCode string

const (
	// ErrPageFetch represents a page that could not be fetched through any relay
	ErrPageFetch ErrorCode = "PageFetchFailed"
)

func (c ErrorCode) ErrorCode() string {
	return string(c)
}

// Format selects how fetched HTML is handed on.
type Format string

const (
	// FormatRaw forwards the response body untouched
	FormatRaw Format = "raw"
	// FormatMarkdown converts the body to readable Markdown
	FormatMarkdown Format = "markdown"
)

// Fetcher retrieves page content through a relay chain.
type Fetcher struct {
	Chain  *relay.Chain
	Format Format
}

// Page is a fetched page with its document title.
type Page struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Fetch returns the content of pageURL.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	body, err := f.body(ctx, pageURL)
	if err != nil {
		return "", err
	}
	return f.convert(pageURL, body), nil
}

// Get returns the content of pageURL together with its <title>.
func (f *Fetcher) Get(ctx context.Context, pageURL string) (Page, error) {
	body, err := f.body(ctx, pageURL)
	if err != nil {
		return Page{}, err
	}
	return Page{
		URL:     pageURL,
		Title:   Title(body),
		Content: f.convert(pageURL, body),
	}, nil
}

func (f *Fetcher) body(ctx context.Context, pageURL string) (string, error) {
	body, err := f.Chain.Fetch(ctx, pageURL)
	if err != nil {
		return "", failure.Wrap(err, failure.WithCode(ErrPageFetch),
			failure.Message(reason(err)),
			failure.Context{"url": pageURL},
		)
	}
	log.Debug("Page fetched", "url", pageURL, "bytes", len(body))
	return body, nil
}

func (f *Fetcher) convert(pageURL string, body string) string {
	if f.Format != FormatMarkdown {
		return body
	}

	u, _ := url.Parse(pageURL)
	md, err := Markdown(u, body)
	if err != nil {
		log.Debug("Markdown conversion failed, using raw body", "url", pageURL, "error", err)
		return body
	}
	return md
}

// reason keeps the relay's message as the user-facing text.
func reason(err error) string {
	if msg := failure.MessageOf(err); msg != "" {
		return msg.String()
	}
	return err.Error()
}

// Markdown converts an HTML page to Markdown.
func Markdown(u *url.URL, body string) (string, error) {
	// Convert HTML to Markdown using readability first
	article, err := readability.Extract(body, readability.DefaultOptions())
	if err == nil && article.Root != nil {
		return readability.ToMarkdown(article.Root), nil
	}

	// If readability fails, use html2md as a fallback
	var domain string
	if u != nil {
		domain = u.Host
	}
	converter := html2md.NewConverter(domain, true, &html2md.Options{})
	return converter.ConvertString(body)
}

// Title returns the text of the first <title> element, or "".
func Title(body string) string {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return ""
	}

	var title string
	var find func(*html.Node) bool
	find = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "title" {
			if n.FirstChild != nil {
				title = strings.TrimSpace(n.FirstChild.Data)
			}
			return true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if find(c) {
				return true
			}
		}
		return false
	}
	find(doc)
	return title
}
