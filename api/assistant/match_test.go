package assistant

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/ka2n/sitebot/api/session"
	"github.com/ka2n/sitebot/api/sitemap"
)

const origin = "https://shop.example.com"

func entries(locs ...string) []sitemap.Entry {
	out := make([]sitemap.Entry, 0, len(locs))
	for _, l := range locs {
		out = append(out, sitemap.Entry{Location: l})
	}
	return out
}

func TestMatch(t *testing.T) {
	all := entries(
		origin+"/",
		origin+"/products/shoes",
		origin+"/products/shoes-sale/",
		origin+"/policies/returns",
		"not a url",
		"/relative/shoes",
	)

	catalog := entries(
		origin+"/products/shoes",
		origin+"/products/electronics",
		origin+"/help/returns-policy",
	)

	tests := []struct {
		name    string
		entries []sitemap.Entry
		text    string
		want    []string
	}{
		{
			name:    "only the shoes slug",
			entries: catalog,
			text:    "tell me about your shoes",
			want:    []string{origin + "/products/shoes"},
		},
		{
			name: "token keeps punctuation",
			text: "What's your return policy?",
			want: []string{origin + "/policies/returns"},
		},
		{
			name: "slug contains token",
			text: "Show me shoes",
			want: []string{origin + "/products/shoes", origin + "/products/shoes-sale/"},
		},
		{
			name: "case insensitive",
			text: "RETURNS please",
			want: []string{origin + "/policies/returns"},
		},
		{
			name: "no token matches",
			text: "hello there",
			want: nil,
		},
		{
			name: "blank text",
			text: "   ",
			want: nil,
		},
		{
			name: "home never matches",
			text: "shop",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := all
			if tt.entries != nil {
				in = tt.entries
			}
			got := Match(in, tt.text)
			var locs []string
			for _, e := range got {
				locs = append(locs, e.Location)
			}
			if diff := cmp.Diff(tt.want, locs); diff != "" {
				t.Errorf("Match() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLabel(t *testing.T) {
	tests := []struct {
		origin string
		loc    string
		want   string
	}{
		{origin, origin + "/products/shoes", "products/shoes"},
		{origin + "/", origin + "/products/shoes", "products/shoes"},
		{origin, origin + "/", HomeLabel},
		{origin, origin, HomeLabel},
		{origin, "https://other.example.com/a", "https://other.example.com/a"},
	}

	for _, tt := range tests {
		t.Run(tt.loc, func(t *testing.T) {
			if got := Label(tt.origin, tt.loc); got != tt.want {
				t.Errorf("Label() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLinksDropDuplicates(t *testing.T) {
	got := Links(origin, entries(origin+"/products/shoes", origin+"/products/shoes"))
	want := []session.Link{{Label: "products/shoes", URL: origin + "/products/shoes"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Links() mismatch (-want +got):\n%s", diff)
	}
}
