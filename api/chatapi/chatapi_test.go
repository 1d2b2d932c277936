package chatapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/morikuni/failure/v2"
)

func TestComplete(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %s, want /api/chat", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"narration":"We accept returns within 30 days.","extra":1}`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/", time.Second, nil)
	resp, err := c.Complete(context.Background(), Request{
		Message:   "What's your return policy?",
		DOMString: "<html></html>",
		SiteMap:   "<urlset/>",
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Narration != "We accept returns within 30 days." {
		t.Errorf("Narration = %q", resp.Narration)
	}

	want := map[string]string{
		"message":   "What's your return policy?",
		"domString": "<html></html>",
		"siteMap":   "<urlset/>",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("request body mismatch (-want +got):\n%s", diff)
	}
}

func TestCompleteDegradesOnUnexpectedShape(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "no narration", body: `{"reply":"hi"}`},
		{name: "not json", body: `hello there`},
		{name: "empty", body: ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			resp, err := New(srv.URL, time.Second, nil).Complete(context.Background(), Request{Message: "hi"})
			if err != nil {
				t.Fatalf("Complete() error = %v", err)
			}
			if resp.Narration != "" {
				t.Errorf("Narration = %q, want empty", resp.Narration)
			}
		})
	}
}

func TestCompleteHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := New(srv.URL, time.Second, nil).Complete(context.Background(), Request{Message: "hi"})
	if !failure.Is(err, ErrHTTP) {
		t.Fatalf("Complete() error = %v, want ChatHTTPError", err)
	}
	if msg := failure.MessageOf(err).String(); msg != "Chat endpoint answered 503 Service Unavailable" {
		t.Errorf("message = %q", msg)
	}
}

func TestCompleteTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	_, err := New(srv.URL, time.Second, nil).Complete(context.Background(), Request{Message: "hi"})
	if !failure.Is(err, ErrRequest) {
		t.Fatalf("Complete() error = %v, want ChatRequestFailed", err)
	}
}
