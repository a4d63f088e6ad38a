package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/do-ops885/dermatology-goap-orchestrator/internal/orchestrator"
)

func newAuditCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the hash-chained audit ledger",
	}

	var logPath string
	verify := &cobra.Command{
		Use:   "verify",
		Short: "Verify the audit log's hash chain",
		Long:  `verify walks the audit log and reports the first entry whose hash chain is broken, or confirms the whole log verifies.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := orchestrator.VerifyAuditLog(logPath)
			if err != nil {
				return fmt.Errorf("verify audit log: %w", err)
			}
			if idx == -1 {
				color.New(color.FgGreen).Fprintln(cmd.OutOrStdout(), "audit log verified: chain intact")
				return nil
			}
			color.New(color.FgRed, color.Bold).Fprintf(cmd.OutOrStdout(), "audit log broken at entry %d\n", idx)
			return fmt.Errorf("audit log broken at entry %d", idx)
		},
	}
	verify.Flags().StringVar(&logPath, "log", "", "path to the audit log file (required)")
	_ = verify.MarkFlagRequired("log")

	cmd.AddCommand(verify)
	return cmd
}
