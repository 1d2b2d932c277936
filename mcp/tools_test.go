package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/ka2n/sitebot/api"
	"github.com/ka2n/sitebot/api/page"
	"github.com/ka2n/sitebot/api/relay"
	"github.com/ka2n/sitebot/api/session"
	"github.com/ka2n/sitebot/config"
	"github.com/mark3labs/mcp-go/mcp"
)

const siteSitemap = `<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>{{origin}}/</loc></url>
  <url><loc>{{origin}}/products/shoes</loc><lastmod>2024-03-01</lastmod></url>
  <url><loc>{{origin}}/policies/returns</loc></url>
</urlset>`

func newTestApp(t *testing.T) (*api.App, string) {
	t.Helper()
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sitemap.xml":
			_, _ = w.Write([]byte(strings.ReplaceAll(siteSitemap, "{{origin}}", "http://"+r.Host)))
		default:
			_, _ = w.Write([]byte("<html><title>ShopHub</title></html>"))
		}
	}))
	t.Cleanup(site.Close)

	chat := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(map[string]string{"narration": "You asked: " + req["message"]})
	}))
	t.Cleanup(chat.Close)

	return api.NewApp(&config.Config{
		Site:  config.SiteConfig{Origin: site.URL},
		Chat:  config.ChatConfig{Endpoint: chat.URL, Timeout: time.Second},
		Relay: config.RelayConfig{Sitemap: []string{relay.Direct}, Page: []string{relay.Direct}, Timeout: 5 * time.Second},
		Page:  config.PageConfig{Format: "raw"},
	}), site.URL
}

func call(t *testing.T, tool mcp.Tool, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]interface{}) (string, bool) {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Name = tool.Name
	req.Params.Arguments = args

	res, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("%s: handler error = %v", tool.Name, err)
	}
	var texts []string
	for _, c := range res.Content {
		switch c := c.(type) {
		case mcp.TextContent:
			texts = append(texts, c.Text)
		case *mcp.TextContent:
			texts = append(texts, c.Text)
		}
	}
	return strings.Join(texts, "\n"), res.IsError
}

func TestFetchSitemapTool(t *testing.T) {
	app, origin := newTestApp(t)
	tool, handler := FetchSitemap(app)

	text, isErr := call(t, tool, handler, map[string]interface{}{})
	if isErr {
		t.Fatalf("fetch_sitemap failed: %s", text)
	}

	var got struct {
		URL          string `json:"url"`
		TotalCount   int    `json:"totalCount"`
		LastModified string `json:"lastModified"`
	}
	if err := json.Unmarshal([]byte(text), &got); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if got.URL != origin+"/sitemap.xml" || got.TotalCount != 3 || got.LastModified != "2024-03-01" {
		t.Errorf("fetch_sitemap = %+v", got)
	}

	if text, isErr := call(t, tool, handler, map[string]interface{}{"origin": "not a url"}); !isErr {
		t.Errorf("fetch_sitemap accepted an invalid origin: %s", text)
	}
}

func TestRelatedPagesTool(t *testing.T) {
	app, origin := newTestApp(t)
	tool, handler := RelatedPages(app)

	text, isErr := call(t, tool, handler, map[string]interface{}{"message": "tell me about your shoes"})
	if isErr {
		t.Fatalf("related_pages failed: %s", text)
	}
	var got struct {
		Pages []api.RelatedPage `json:"pages"`
	}
	if err := json.Unmarshal([]byte(text), &got); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	want := []api.RelatedPage{{Label: "products/shoes", URL: origin + "/products/shoes"}}
	if diff := cmp.Diff(want, got.Pages); diff != "" {
		t.Errorf("related_pages mismatch (-want +got):\n%s", diff)
	}

	if _, isErr := call(t, tool, handler, map[string]interface{}{}); !isErr {
		t.Error("related_pages accepted a missing message")
	}
}

func TestFetchPageTool(t *testing.T) {
	app, origin := newTestApp(t)
	tool, handler := FetchPage(app)

	text, isErr := call(t, tool, handler, map[string]interface{}{"url": origin + "/policies/returns"})
	if isErr {
		t.Fatalf("fetch_page failed: %s", text)
	}
	var got page.Page
	if err := json.Unmarshal([]byte(text), &got); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	want := page.Page{
		URL:     origin + "/policies/returns",
		Title:   "ShopHub",
		Content: "<html><title>ShopHub</title></html>",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("fetch_page mismatch (-want +got):\n%s", diff)
	}

	if _, isErr := call(t, tool, handler, map[string]interface{}{"url": "returns"}); !isErr {
		t.Error("fetch_page accepted a relative url")
	}
}

func TestAskSiteTool(t *testing.T) {
	app, origin := newTestApp(t)
	tool, handler := AskSite(app)

	text, isErr := call(t, tool, handler, map[string]interface{}{"message": "returns"})
	if isErr {
		t.Fatalf("ask_site failed: %s", text)
	}
	var first struct {
		SessionID string         `json:"session_id"`
		Kind      session.Kind   `json:"kind"`
		Text      string         `json:"text"`
		Links     []session.Link `json:"links"`
	}
	if err := json.Unmarshal([]byte(text), &first); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if first.Kind != session.KindQuickReply || first.Text != "You asked: returns" {
		t.Errorf("ask_site = %+v", first)
	}
	if diff := cmp.Diff([]session.Link{{Label: "policies/returns", URL: origin + "/policies/returns"}}, first.Links); diff != "" {
		t.Errorf("links mismatch (-want +got):\n%s", diff)
	}

	if text, isErr := call(t, tool, handler, map[string]interface{}{"message": "hello", "session_id": first.SessionID}); isErr {
		t.Fatalf("ask_site follow-up failed: %s", text)
	}
	sess, err := app.Sessions.Get(first.SessionID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(sess.Messages) != 5 {
		t.Errorf("messages = %d, want 5", len(sess.Messages))
	}

	statsTool, statsHandler := SessionStats(app)
	text, _ = call(t, statsTool, statsHandler, nil)
	var stats session.Stats
	if err := json.Unmarshal([]byte(text), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if diff := cmp.Diff(session.Stats{Sessions: 1, Active: 1, Messages: 5}, stats); diff != "" {
		t.Errorf("session_stats mismatch (-want +got):\n%s", diff)
	}
}

func TestAskSiteUnknownSession(t *testing.T) {
	app, _ := newTestApp(t)
	tool, handler := AskSite(app)

	text, isErr := call(t, tool, handler, map[string]interface{}{
		"message":    "hi",
		"session_id": "8c6b1c7e-3f7e-4a55-9d38-2f0f6c0f0a11",
	})
	if !isErr {
		t.Fatalf("ask_site succeeded for an unknown session: %s", text)
	}
	if !strings.Contains(text, "kind: SessionUnavailable") {
		t.Errorf("ask_site error = %q", text)
	}
}

func TestInitTools(t *testing.T) {
	app, _ := newTestApp(t)
	var names []string
	for _, tool := range InitTools(app) {
		names = append(names, tool.Tool.Name)
	}
	want := []string{"fetch_sitemap", "related_pages", "fetch_page", "ask_site", "session_stats"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("tools mismatch (-want +got):\n%s", diff)
	}
}
