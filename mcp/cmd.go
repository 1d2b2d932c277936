package mcp

import (
	"github.com/ka2n/sitebot/api"
	"github.com/spf13/cobra"
)

// AppLoader builds the application for a command. A non-empty origin
// overrides the configured one.
type AppLoader func(cmd *cobra.Command, origin string) (*api.App, error)

// Command returns the MCP server command
func Command(load AppLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server",
		Long:  "Serve the sitemap, related page and chat tools over the Model Context Protocol on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := load(cmd, "")
			if err != nil {
				return err
			}
			return NewServer(app).Run()
		},
	}
}
