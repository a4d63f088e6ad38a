// Package cli implements the orchctl command tree: run/catalogue/audit/patterns.
package cli

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags.
var Version = "dev"

// NewRootCommand builds the orchctl root command and its subcommands.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "orchctl",
		Short:   "Drive the dermatology analysis GOAP orchestrator",
		Long:    `orchctl runs one analysis end-to-end, inspects the static action catalogue, verifies the audit ledger's hash chain, and dumps the reasoning bank's stored patterns.`,
		Version: Version,

		SilenceUsage: true,
	}

	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newCatalogueCommand())
	cmd.AddCommand(newAuditCommand())
	cmd.AddCommand(newPatternsCommand())

	return cmd
}
