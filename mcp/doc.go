// Package mcp implements the Model Context Protocol server for sitebot.
//
// The mcp package provides:
// - Tools to read a site's sitemap and find related pages
// - A chat tool backed by the same sessions as the command line
// - Session counters for MCP clients
package mcp
