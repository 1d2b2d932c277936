package assistant

import (
	"net/url"
	"strings"

	"github.com/ka2n/sitebot/api/session"
	"github.com/ka2n/sitebot/api/sitemap"
	"github.com/samber/lo"
)

// HomeLabel is used for links that point at the site root.
const HomeLabel = "Home"

// Tokens lower-cases text and splits it on whitespace.
func Tokens(text string) []string {
	return lo.Uniq(strings.Fields(strings.ToLower(text)))
}

// Slug returns the lower-cased last non-empty path segment of loc.
// ok is false when loc is not an absolute URL.
func Slug(loc string) (slug string, ok bool) {
	u, err := url.Parse(loc)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	segments := lo.Compact(strings.Split(u.Path, "/"))
	if len(segments) == 0 {
		return "", true
	}
	return strings.ToLower(segments[len(segments)-1]), true
}

// Match selects the entries whose slug contains any token of text.
// Entries with malformed locations never match.
func Match(entries []sitemap.Entry, text string) []sitemap.Entry {
	tokens := Tokens(text)
	if len(tokens) == 0 {
		return nil
	}
	return lo.Filter(entries, func(e sitemap.Entry, _ int) bool {
		slug, ok := Slug(e.Location)
		if !ok || slug == "" {
			return false
		}
		return lo.SomeBy(tokens, func(token string) bool {
			return strings.Contains(slug, token)
		})
	})
}

// Label strips origin and the leading slash from loc.
func Label(origin, loc string) string {
	label := strings.TrimPrefix(loc, strings.TrimSuffix(origin, "/"))
	label = strings.TrimPrefix(label, "/")
	if label == "" {
		return HomeLabel
	}
	return label
}

// Links turns matched entries into quick-reply links, one per location.
func Links(origin string, entries []sitemap.Entry) []session.Link {
	links := lo.Map(entries, func(e sitemap.Entry, _ int) session.Link {
		return session.Link{Label: Label(origin, e.Location), URL: e.Location}
	})
	return lo.UniqBy(links, func(l session.Link) string {
		return l.URL
	})
}
