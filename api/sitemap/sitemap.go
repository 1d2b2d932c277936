// Package sitemap discovers, fetches and parses a site's sitemap.xml.
package sitemap

import (
	"net/url"
	"strings"

	"github.com/samber/lo"
)

// ErrorCode defines error types for sitemap operations
type ErrorCode string

const (
	// ErrMalformedXML represents a sitemap document that is not well-formed XML
	ErrMalformedXML ErrorCode = "MalformedXML"
	// ErrNoEntries represents a sitemap that parsed but has no usable <url> element
	ErrNoEntries ErrorCode = "NoSitemapEntries"
)

func (c ErrorCode) ErrorCode() string {
	return string(c)
}

// Entry is one <url> element of a sitemap.
// Optional fields are empty when the element is absent.
type Entry struct {
	Location        string `json:"loc"`
	LastModified    string `json:"lastmod,omitempty"`
	ChangeFrequency string `json:"changefreq,omitempty"`
	Priority        string `json:"priority,omitempty"`
}

// Document is a parsed sitemap. Entries are in document order.
type Document struct {
	Entries []Entry `json:"urls"`
}

// TotalCount returns the number of entries
func (d Document) TotalCount() int {
	return len(d.Entries)
}

// MostRecentModification returns the lexically greatest lastmod value.
func (d Document) MostRecentModification() (string, bool) {
	mods := lo.FilterMap(d.Entries, func(e Entry, _ int) (string, bool) {
		return e.LastModified, e.LastModified != ""
	})
	if len(mods) == 0 {
		return "", false
	}
	return lo.Max(mods), true
}

// URL returns the sitemap location for origin.
// A URL that already points at sitemap.xml is returned unchanged.
func URL(origin string) string {
	if strings.HasSuffix(origin, "sitemap.xml") {
		return origin
	}
	return strings.TrimSuffix(origin, "/") + "/sitemap.xml"
}

// PageInfo summarizes the pages listed in a sitemap.
type PageInfo struct {
	// Pages are human readable labels, one per entry
	Pages []string `json:"pages"`
	// Categories are the distinct top-level path segments
	Categories []string `json:"categories"`
}

// Info builds page labels and categories from entries.
// Entries whose location is not a valid URL are ignored.
func Info(entries []Entry) PageInfo {
	info := PageInfo{
		Pages:      []string{},
		Categories: []string{},
	}
	for _, e := range entries {
		u, err := url.Parse(e.Location)
		if err != nil {
			continue
		}
		segments := lo.Compact(strings.Split(u.Path, "/"))
		if len(segments) == 0 {
			info.Pages = append(info.Pages, "Home")
			info.Categories = append(info.Categories, "Home")
			continue
		}
		info.Pages = append(info.Pages, strings.Join(segments, " > "))
		info.Categories = append(info.Categories, segments[0])
	}
	info.Categories = lo.Uniq(info.Categories)
	return info
}
