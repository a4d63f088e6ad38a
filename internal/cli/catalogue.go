package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/do-ops885/dermatology-goap-orchestrator/internal/orchestrator"
)

func newCatalogueCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalogue",
		Short: "Inspect the static action catalogue",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Render the action catalogue as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := orchestrator.DumpCatalogue()
			if err != nil {
				return fmt.Errorf("dump catalogue: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	})
	return cmd
}
