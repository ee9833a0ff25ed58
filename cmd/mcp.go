package cmd

import (
	"github.com/spf13/cobra"

	"github.com/synssins/homebox-companion/internal/catalog"
	"github.com/synssins/homebox-companion/internal/chat"
	"github.com/synssins/homebox-companion/internal/config"
	"github.com/synssins/homebox-companion/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve read-only catalog tools over MCP on stdio",
		Long: `Exposes the read-only catalog tools (location listing, item search)
over the Model Context Protocol so external agents can query the
inventory. Mutating tools are not exposed: MCP clients have no
approval surface.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			homebox := catalog.NewClient(cfg.HomeboxURL, cfg.HomeboxToken)
			return mcp.Run(chat.NewCatalogRegistry(homebox), Version)
		},
	}
}
