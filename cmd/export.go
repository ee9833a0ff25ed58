package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/synssins/homebox-companion/internal/config"
	"github.com/synssins/homebox-companion/internal/export"
	"github.com/synssins/homebox-companion/internal/store"
)

func newExportCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export capture sessions to a parquet file",
		Long: `Flattens every capture session's image records into a parquet file
for analysis, with a YAML manifest written alongside.`,
		Example: `  # Export to the default file
  homebox-companion export

  # Export to a custom path
  homebox-companion export --output /tmp/inventory.parquet`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			st, err := store.Open(cfg.DataDir)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := export.Sessions(cmd.Context(), st, output); err != nil {
				return err
			}
			slog.Info("Export complete", "output", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "captures.parquet", "Output parquet file path")

	return cmd
}
