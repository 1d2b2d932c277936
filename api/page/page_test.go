package page

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/ka2n/sitebot/api/relay"
	"github.com/morikuni/failure/v2"
)

const returnsPage = `<!DOCTYPE html>
<html>
<head><title> Returns | ShopHub </title></head>
<body>
<article>
<h1>Return policy</h1>
<p>You can return any item within 30 days of delivery. Items must be unused and in their original packaging.</p>
<p>Refunds are issued to the original payment method within five business days after we receive the parcel.</p>
</article>
</body>
</html>`

func TestTitle(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "document", body: returnsPage, want: "Returns | ShopHub"},
		{name: "no title", body: "<p>hello</p>", want: ""},
		{name: "empty title", body: "<title></title>", want: ""},
		{name: "not html", body: "plain text", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Title(tt.body); got != tt.want {
				t.Errorf("Title() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFetchRaw(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(returnsPage))
	}))
	defer srv.Close()

	f := &Fetcher{Chain: relay.NewChain("page", []string{relay.Direct}, relay.DefaultPolicy(), nil)}
	got, err := f.Fetch(context.Background(), srv.URL+"/policies/returns")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if got != returnsPage {
		t.Errorf("Fetch() returned modified body")
	}
}

func TestFetchMarkdown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(returnsPage))
	}))
	defer srv.Close()

	f := &Fetcher{
		Chain:  relay.NewChain("page", []string{relay.Direct}, relay.DefaultPolicy(), nil),
		Format: FormatMarkdown,
	}
	got, err := f.Fetch(context.Background(), srv.URL+"/policies/returns")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if strings.Contains(got, "<p>") {
		t.Errorf("Fetch() still contains HTML: %q", got)
	}
	if !strings.Contains(got, "30 days") {
		t.Errorf("Fetch() lost the page text: %q", got)
	}
}

func TestGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(returnsPage))
	}))
	defer srv.Close()

	f := &Fetcher{Chain: relay.NewChain("page", []string{relay.Direct}, relay.DefaultPolicy(), nil)}
	got, err := f.Get(context.Background(), srv.URL+"/policies/returns")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	want := Page{URL: srv.URL + "/policies/returns", Title: "Returns | ShopHub", Content: returnsPage}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Get() mismatch (-want +got):\n%s", diff)
	}
}

func TestGetFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	f := &Fetcher{Chain: relay.NewChain("page", []string{srv.URL + "/"}, relay.DefaultPolicy(), nil)}
	got, err := f.Get(context.Background(), "https://shop.example.com/")
	if !failure.Is(err, ErrPageFetch) {
		t.Fatalf("Get() error = %v, want PageFetchFailed", err)
	}
	if got != (Page{}) {
		t.Errorf("Get() = %+v, want zero Page", got)
	}
}

func TestFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	relayURL := srv.URL + "/"
	f := &Fetcher{Chain: relay.NewChain("page", []string{relayURL}, relay.DefaultPolicy(), nil)}
	_, err := f.Fetch(context.Background(), "https://shop.example.com/")
	if !failure.Is(err, ErrPageFetch) {
		t.Fatalf("Fetch() error = %v, want PageFetchFailed", err)
	}

	want := "Failed with proxy " + relayURL + ": 410 Gone"
	if msg := failure.MessageOf(err).String(); msg != want {
		t.Errorf("message = %q, want %q", msg, want)
	}

	var attemptErr *relay.AttemptError
	if !errors.As(err, &attemptErr) || attemptErr.StatusCode != http.StatusGone {
		t.Errorf("Fetch() error does not carry the relay status: %v", err)
	}
}
