package api

import (
	"github.com/ka2n/sitebot/api/assistant"
	"github.com/ka2n/sitebot/api/cache"
	"github.com/ka2n/sitebot/api/chatapi"
	"github.com/ka2n/sitebot/api/page"
	"github.com/ka2n/sitebot/api/relay"
	"github.com/ka2n/sitebot/api/session"
	"github.com/ka2n/sitebot/api/sitemap"
	"github.com/ka2n/sitebot/config"
)

// App holds the components of one sitebot run, built from a Config.
type App struct {
	Config    *config.Config
	Sitemaps  *sitemap.Loader
	Pages     *page.Fetcher
	Chat      *chatapi.Client
	Sessions  *session.Store
	Assistant *assistant.Assistant
}

// NewApp wires every component from cfg.
func NewApp(cfg *config.Config) *App {
	policy := cfg.Relay.Policy()

	var sitemapCache *cache.Cache[string]
	if cfg.Cache.TTL > 0 {
		sitemapCache = cache.New[string](cfg.Cache.Dir, "sitemap", cfg.Cache.TTL)
	}

	sitemaps := sitemap.NewLoader(
		&sitemap.Fetcher{Chain: relay.NewChain("sitemap", cfg.Relay.Sitemap, policy, nil)},
		sitemap.XMLParser{},
		sitemapCache,
	)
	pages := &page.Fetcher{
		Chain:  relay.NewChain("page", cfg.Relay.Page, policy, nil),
		Format: page.Format(cfg.Page.Format),
	}
	chat := chatapi.New(cfg.Chat.Endpoint, cfg.Chat.Timeout, nil)
	sessions := session.NewStore()

	return &App{
		Config:    cfg,
		Sitemaps:  sitemaps,
		Pages:     pages,
		Chat:      chat,
		Sessions:  sessions,
		Assistant: assistant.New(cfg.Site.Origin, sessions, sitemaps, pages, chat),
	}
}

// Origin returns the configured site origin
func (a *App) Origin() string {
	return a.Config.Site.Origin
}
