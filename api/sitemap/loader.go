package sitemap

import (
	"context"

	"github.com/ka2n/sitebot/api/cache"
	"github.com/ka2n/sitebot/log"
	"github.com/morikuni/failure/v2"
	"golang.org/x/sync/singleflight"
)

// Result is the outcome of a single sitemap load.
type Result struct {
	// XML is the raw body as delivered by the relay
	XML string
	// Document holds the parsed entries; empty when ParseErr is set
	Document Document
	// ParseErr is set when XML could not be parsed
	ParseErr error
}

// Loader fetches a sitemap once and parses it, sharing the fetch between
// concurrent callers of the same origin.
type Loader struct {
	fetcher *Fetcher
	parser  Parser
	cache   *cache.Cache[string]
	group   singleflight.Group
}

// NewLoader creates a loader. A nil parser means XMLParser and a nil cache
// disables caching.
func NewLoader(fetcher *Fetcher, parser Parser, c *cache.Cache[string]) *Loader {
	if parser == nil {
		parser = XMLParser{}
	}
	return &Loader{
		fetcher: fetcher,
		parser:  parser,
		cache:   c,
	}
}

// Load fetches and parses the sitemap of origin.
// Only fetch failures are returned as error; a parse failure is reported
// through Result.ParseErr so that the raw XML stays usable.
func (l *Loader) Load(ctx context.Context, origin string, forceUpdate bool) (Result, error) {
	key := URL(origin)

	ch := l.group.DoChan(key, func() (any, error) {
		// Shared by every caller of key; one of them leaving must not cancel the rest.
		ctx := context.WithoutCancel(ctx)
		if l.cache == nil {
			return l.fetcher.FetchXML(ctx, origin)
		}
		return l.cache.GetOrSet(key, func() (string, error) {
			return l.fetcher.FetchXML(ctx, origin)
		}, forceUpdate)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return Result{}, failure.Wrap(ctx.Err())
	case res = <-ch:
	}
	err, shared := res.Err, res.Shared
	xml, _ := res.Val.(string)
	if err != nil && xml == "" {
		return Result{}, err
	}
	if err != nil {
		// The value was fetched but the cache write failed.
		log.Warn("Failed to cache sitemap", "sitemap", key, "error", err)
	}

	logger := log.Logger.With("sitemap", key, "shared", shared)

	doc, parseErr := l.parser.Parse(xml)
	if parseErr != nil {
		logger.Warn("Failed to parse sitemap", "error", parseErr)
		return Result{XML: xml, Document: doc, ParseErr: parseErr}, nil
	}

	logger.Debug("Sitemap loaded", "entries", doc.TotalCount())
	return Result{XML: xml, Document: doc}, nil
}
