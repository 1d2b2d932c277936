// Package cli implements the command-line interface for sitebot.
//
// The cli package provides:
// - Configuration loading from file, environment and flags
// - Sitemap and page inspection commands
// - The interactive chat widget and its plain line mode
// - Opening suggested pages in the browser
package cli
