package sitemap

import (
	"context"

	"github.com/ka2n/sitebot/api/relay"
	"github.com/morikuni/failure/v2"
)

// Fetcher retrieves raw sitemap XML through a relay chain.
type Fetcher struct {
	Chain *relay.Chain
}

// FetchXML fetches the sitemap of origin. The body is not validated.
func (f *Fetcher) FetchXML(ctx context.Context, origin string) (string, error) {
	target := URL(origin)
	body, err := f.Chain.Fetch(ctx, target)
	if err != nil {
		return "", failure.Wrap(err, failure.Context{"sitemap": target})
	}
	return body, nil
}
