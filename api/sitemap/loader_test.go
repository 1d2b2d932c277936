package sitemap

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ka2n/sitebot/api/cache"
	"github.com/ka2n/sitebot/api/relay"
	"github.com/morikuni/failure/v2"
)

func sitemapServer(t *testing.T, body string) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.URL.Path != "/sitemap.xml" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newTestLoader(c *cache.Cache[string]) *Loader {
	chain := relay.NewChain("sitemap", []string{relay.Direct}, relay.DefaultPolicy(), nil)
	return NewLoader(&Fetcher{Chain: chain}, nil, c)
}

func TestLoaderFetchesOnce(t *testing.T) {
	srv, hits := sitemapServer(t, shopSitemap)
	loader := newTestLoader(nil)

	res, err := loader.Load(context.Background(), srv.URL, false)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if res.XML != shopSitemap {
		t.Error("Load() raw XML differs from the served document")
	}
	if res.ParseErr != nil {
		t.Errorf("Load() parse error = %v", res.ParseErr)
	}
	if res.Document.TotalCount() != 4 {
		t.Errorf("entries = %d, want 4", res.Document.TotalCount())
	}
	if n := atomic.LoadInt32(hits); n != 1 {
		t.Errorf("fetches = %d, want 1", n)
	}
}

func TestLoaderSharedFetchOutlivesCanceledCaller(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		_, _ = w.Write([]byte(shopSitemap))
	}))
	t.Cleanup(srv.Close)
	loader := newTestLoader(nil)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := loader.Load(ctx, srv.URL, false)
		first <- err
	}()
	<-started

	type outcome struct {
		res Result
		err error
	}
	second := make(chan outcome, 1)
	go func() {
		res, err := loader.Load(context.Background(), srv.URL, false)
		second <- outcome{res, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	if err := <-first; !errors.Is(err, context.Canceled) {
		t.Errorf("canceled Load() error = %v, want context.Canceled", err)
	}

	close(release)
	got := <-second
	if got.err != nil {
		t.Fatalf("Load() error = %v", got.err)
	}
	if got.res.Document.TotalCount() != 4 {
		t.Errorf("entries = %d, want 4", got.res.Document.TotalCount())
	}
}

func TestLoaderKeepsXMLOnParseFailure(t *testing.T) {
	srv, _ := sitemapServer(t, "<urlset><url>")
	loader := newTestLoader(nil)

	res, err := loader.Load(context.Background(), srv.URL+"/", false)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !failure.Is(res.ParseErr, ErrMalformedXML) {
		t.Errorf("ParseErr = %v, want MalformedXML", res.ParseErr)
	}
	if res.XML != "<urlset><url>" {
		t.Errorf("XML = %q", res.XML)
	}
}

func TestLoaderFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	loader := newTestLoader(nil)
	_, err := loader.Load(context.Background(), srv.URL, false)
	if !failure.Is(err, relay.ErrRelaysExhausted) {
		t.Errorf("Load() error = %v, want RelaysExhausted", err)
	}
}

func TestLoaderUsesCache(t *testing.T) {
	srv, hits := sitemapServer(t, shopSitemap)
	loader := newTestLoader(cache.New[string](t.TempDir(), "sitemap", time.Hour))

	for i := 0; i < 3; i++ {
		if _, err := loader.Load(context.Background(), srv.URL, false); err != nil {
			t.Fatalf("Load() error = %v", err)
		}
	}
	if n := atomic.LoadInt32(hits); n != 1 {
		t.Errorf("fetches = %d, want 1", n)
	}

	if _, err := loader.Load(context.Background(), srv.URL, true); err != nil {
		t.Fatalf("Load(force) error = %v", err)
	}
	if n := atomic.LoadInt32(hits); n != 2 {
		t.Errorf("fetches after force = %d, want 2", n)
	}
}
