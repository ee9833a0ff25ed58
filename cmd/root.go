package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version is the build version reported by --version and the MCP server.
const Version = "0.1.0"

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "homebox-companion",
		Short: "AI-assisted photo capture for Homebox inventories",
		Long: `Homebox Companion turns photos of physical items into catalog entries.

Upload photos, let a vision model extract structured inventory data,
review and edit the results, then push them into a Homebox instance.
A conversational assistant can also query and, with your approval,
modify the catalog.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMCPCmd())
	cmd.AddCommand(newExportCmd())
	cmd.AddCommand(newEvalCmd())

	return cmd
}
