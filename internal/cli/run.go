package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/do-ops885/dermatology-goap-orchestrator/internal/engine"
	"github.com/do-ops885/dermatology-goap-orchestrator/internal/orchestrator"
	"github.com/do-ops885/dermatology-goap-orchestrator/internal/platform"
	"github.com/do-ops885/dermatology-goap-orchestrator/internal/router"
)

func newRunCommand() *cobra.Command {
	var (
		imagePath string
		mime      string
		privacy   bool
		reanalyze bool
		dataDir   string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one analysis end-to-end",
		Long:  `run drives a single image through the full pipeline, printing the per-agent trace and the resulting audit entry's safety classification.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			image, err := os.ReadFile(imagePath)
			if err != nil {
				return fmt.Errorf("read image %s: %w", imagePath, err)
			}

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

			action := router.ActionAnalyze
			if reanalyze {
				action = router.ActionReanalyze
			}

			res, err := o.Run(cmd.Context(), orchestrator.Request{
				Image: image, ImageMime: mime, Action: action, PrivacyMode: privacy,
				AnalysisID: uuid.NewString(),
			})
			if err != nil {
				color.New(color.FgRed, color.Bold).Fprintln(cmd.OutOrStdout(), "run failed:", err)
				return err
			}

			printTrace(cmd, res)
			return nil
		},
	}

	cmd.Flags().StringVar(&imagePath, "image", "", "path to the input image (required)")
	cmd.Flags().StringVar(&mime, "mime", "image/jpeg", "image MIME type (image/jpeg|image/png|image/webp)")
	cmd.Flags().BoolVar(&privacy, "privacy", false, "run the privacy-preserving pipeline variant")
	cmd.Flags().BoolVar(&reanalyze, "reanalyze", false, "treat this run as a correction to a prior analysis")
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "override the orchestrator's data directory")
	_ = cmd.MarkFlagRequired("image")

	return cmd
}

func printTrace(cmd *cobra.Command, res orchestrator.RunResult) {
	out := cmd.OutOrStdout()
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)
	cyan := color.New(color.FgCyan, color.Bold)
	magenta := color.New(color.FgMagenta, color.Bold)

	trace := res.Trace
	cyan.Fprintf(out, "run %s — %d agents, %s\n", trace.RunID, len(trace.Agents), trace.EndTime.Sub(trace.StartTime))
	for _, rec := range trace.Agents {
		switch rec.Status {
		case engine.StatusCompleted:
			green.Fprintf(out, "  [ok] %-24s %s\n", rec.AgentID, rec.ActionName)
		case engine.StatusSkipped:
			yellow.Fprintf(out, "  [skip] %-22s %s\n", rec.AgentID, rec.ActionName)
		case engine.StatusTimedOut:
			red.Fprintf(out, "  [timeout] %-19s %s\n", rec.AgentID, rec.ActionName)
		default:
			red.Fprintf(out, "  [%s] %-20s %s\n", rec.Status, rec.AgentID, rec.ActionName)
		}
	}

	magenta.Fprintf(out, "safety_level=%s degraded=%t\n", res.AuditEntry.SafetyLevel, res.AuditEntry.Degraded)
	magenta.Fprintf(out, "result_payload algorithm=%s payload_size=%d\n", res.ResultPayload.Algorithm, res.ResultPayload.PayloadSize)
}
