package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/ka2n/sitebot/api"
	"github.com/ka2n/sitebot/config"
	"github.com/ka2n/sitebot/log"
	"github.com/ka2n/sitebot/mcp"
	"github.com/morikuni/failure/v2"
	"github.com/spf13/cobra"
)

var (
	// Command line flags
	configPath string
	originArg  originFlag
	forceFlag  bool
	debugFlag  bool

	// flagKeys maps config keys to the persistent flags overriding them
	flagKeys = map[string]string{
		"site.origin":   "origin",
		"chat.endpoint": "chat-endpoint",
		"relay.sitemap": "relay",
		"relay.page":    "page-relay",
		"relay.timeout": "timeout",
		"cache.ttl":     "cache-ttl",
	}

	// Root command
	rootCmd = &cobra.Command{
		Use:           "sitebot",
		Short:         "Chat with a website through its sitemap",
		SilenceErrors: true,
		SilenceUsage:  true,
		Long: `sitebot is a chat assistant for a single website. It reads the site's
sitemap.xml through a list of CORS relays, grounds each question with page
content, asks a remote chat endpoint for an answer and suggests related pages.

The site is set with --origin, the SITEBOT_SITE_ORIGIN environment variable or
site.origin in sitebot.yaml:

  sitebot --origin https://shop.example.com chat
  sitebot sitemap https://shop.example.com --info`,
	}

	// Version command
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  "Print detailed version information about sitebot",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sitebot version %s\n", api.Version)
			if api.VersionCommit != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "  commit: %s\n", api.VersionCommit)
			}
		},
	}
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "Config file (default ./sitebot.yaml)")
	pf.Var(&originArg, "origin", "Site origin, e.g. https://shop.example.com")
	pf.String("chat-endpoint", "", "Base URL of the chat endpoint")
	pf.StringSlice("relay", nil, `Sitemap relay, tried in order; "direct" skips relaying`)
	pf.StringSlice("page-relay", nil, `Page relay, tried in order; "direct" skips relaying`)
	pf.Duration("timeout", 0, "Timeout of a single relay attempt")
	pf.Duration("cache-ttl", 0, "Keep fetched sitemaps on disk for this long")
	pf.BoolVar(&forceFlag, "force", false, "Ignore cached sitemaps")
	pf.BoolVar(&debugFlag, "debug", false, "Log debug output")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(mcp.Command(loadApp))
}

// Run executes the main CLI functionality
func Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// loadApp builds the application from config file, environment and the flags of cmd.
// A non-empty origin wins over every other source.
func loadApp(cmd *cobra.Command, origin string) (*api.App, error) {
	v := config.New()
	if err := config.ReadFile(v, configPath); err != nil {
		return nil, err
	}
	if err := config.BindFlags(v, cmd.Flags(), flagKeys); err != nil {
		return nil, err
	}
	if origin != "" {
		v.Set("site.origin", origin)
	}

	cfg, err := config.Decode(v)
	if err != nil {
		return nil, err
	}

	level := cfg.Log.Level
	if debugFlag || os.Getenv("SITEBOT_DEBUG") != "" {
		level = "debug"
	}
	if !log.SetLevel(level) {
		return nil, failure.New(InvalidArguments,
			failure.Message("Unknown log level "+level),
		)
	}

	app := api.NewApp(cfg)
	app.Assistant.ForceUpdate = forceFlag
	log.Debug("Configuration loaded", "origin", cfg.Site.Origin, "chat", cfg.Chat.Endpoint,
		"relays", cfg.Relay.Sitemap, "page_relays", cfg.Relay.Page, "cache_ttl", cfg.Cache.TTL)
	return app, nil
}

// quietLogs silences logging while a full-screen view owns the terminal.
func quietLogs() (restore func()) {
	if debugFlag {
		return func() {}
	}
	log.SetOutput(io.Discard)
	return func() { log.SetOutput(os.Stderr) }
}
