package api

import (
	"context"

	"github.com/ka2n/sitebot/api/assistant"
	"github.com/ka2n/sitebot/api/page"
	"github.com/ka2n/sitebot/api/sitemap"
	"github.com/morikuni/failure/v2"
)

// ErrorCode defines error types for API operations
type ErrorCode string

const (
	// ErrSitemapUnusable represents a sitemap that could not be turned into entries
	ErrSitemapUnusable ErrorCode = "SitemapUnusable"
)

func (c ErrorCode) ErrorCode() string {
	return string(c)
}

// SitemapReport is what FetchSitemap hands to the command line and MCP clients.
type SitemapReport struct {
	Origin       string           `json:"origin"`
	URL          string           `json:"url"`
	Entries      []sitemap.Entry  `json:"urls"`
	TotalCount   int              `json:"totalCount"`
	LastModified string           `json:"lastModified,omitempty"`
	Info         sitemap.PageInfo `json:"info"`
	XML          string           `json:"-"`
}

// FetchSitemap loads and parses the sitemap of origin. An empty origin means
// the configured one. Unlike a conversation turn, an unusable sitemap is an
// error here.
func (a *App) FetchSitemap(ctx context.Context, origin string, forceUpdate bool) (SitemapReport, error) {
	if origin == "" {
		origin = a.Origin()
	}

	res, err := a.Sitemaps.Load(ctx, origin, forceUpdate)
	if err != nil {
		return SitemapReport{}, err
	}
	if res.ParseErr != nil {
		return SitemapReport{}, failure.Wrap(res.ParseErr, failure.WithCode(ErrSitemapUnusable),
			failure.Context{"origin": origin},
		)
	}
	if len(res.Document.Entries) == 0 {
		return SitemapReport{}, failure.New(sitemap.ErrNoEntries,
			failure.Message("No URLs found in sitemap"),
			failure.Context{"origin": origin},
		)
	}

	report := SitemapReport{
		Origin:     origin,
		URL:        sitemap.URL(origin),
		Entries:    res.Document.Entries,
		TotalCount: res.Document.TotalCount(),
		Info:       sitemap.Info(res.Document.Entries),
		XML:        res.XML,
	}
	if last, ok := res.Document.MostRecentModification(); ok {
		report.LastModified = last
	}
	return report, nil
}

// RelatedPage is a sitemap entry suggested for a message.
type RelatedPage struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// RelatedPages returns the pages of origin whose slug matches message.
func (a *App) RelatedPages(ctx context.Context, origin, message string) ([]RelatedPage, error) {
	report, err := a.FetchSitemap(ctx, origin, false)
	if err != nil {
		return nil, err
	}

	links := assistant.Links(report.Origin, assistant.Match(report.Entries, message))
	pages := make([]RelatedPage, 0, len(links))
	for _, l := range links {
		pages = append(pages, RelatedPage{Label: l.Label, URL: l.URL})
	}
	return pages, nil
}

// FetchPage returns the title and content of pageURL in the configured format.
func (a *App) FetchPage(ctx context.Context, pageURL string) (page.Page, error) {
	return a.Pages.Get(ctx, pageURL)
}
