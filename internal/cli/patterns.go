package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/do-ops885/dermatology-goap-orchestrator/internal/orchestrator"
	"github.com/do-ops885/dermatology-goap-orchestrator/internal/platform"
)

func newPatternsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "Inspect the reasoning bank's stored patterns",
	}

	var dataDir string
	dump := &cobra.Command{
		Use:   "dump",
		Short: "List stored pattern ids and their metadata",
		Long:  `dump opens the reasoning bank (read-write, replaying its log as a run does) and prints each stored pattern's id alongside its metadata, rendered as JSON.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := []platform.Option{}
			if dataDir != "" {
				opts = append(opts, platform.WithDataDir(dataDir))
			}
			cfg, err := platform.NewConfig(opts...)
			if err != nil {
				return fmt.Errorf("build configuration: %w", err)
			}

			o, err := orchestrator.New(cfg)
			if err != nil {
				return fmt.Errorf("build orchestrator: %w", err)
			}
			defer o.Close()

			out := cmd.OutOrStdout()
			cyan := color.New(color.FgCyan, color.Bold)
			for _, id := range o.Bank().PatternIDs() {
				meta, ok, err := o.Bank().PatternMetadataJSON(id)
				if err != nil {
					return fmt.Errorf("pattern metadata %s: %w", id, err)
				}
				if !ok {
					continue
				}
				cyan.Fprintf(out, "%s ", id)
				fmt.Fprintln(out, meta)
			}
			return nil
		},
	}
	dump.Flags().StringVar(&dataDir, "data-dir", "", "override the orchestrator's data directory")

	cmd.AddCommand(dump)
	return cmd
}
