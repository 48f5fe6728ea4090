package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/cadforge/codepilot/pipeline"
)

var (
	runPresetID      string
	runExistingCode  string
	runTargetVersion string
	runConsensus     bool
	runMaxAttempts   int
)

var runCmd = &cobra.Command{
	Use:   "run [request text]",
	Short: "Generate CAD code from a natural-language request",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}

		req := pipeline.Request{
			Text:          strings.Join(args, " "),
			ExistingCode:  runExistingCode,
			PresetID:      runPresetID,
			TargetVersion: runTargetVersion,
		}
		opts := pipeline.Options{
			Consensus:   runConsensus,
			MaxAttempts: runMaxAttempts,
		}

		result, err := a.runPipeline(ctx, req, opts)
		if err != nil {
			return fmt.Errorf("run pipeline: %w", err)
		}
		return renderResult(cmd, result)
	},
}

func init() {
	runCmd.Flags().StringVar(&runPresetID, "preset", "default", "manufacturing preset id")
	runCmd.Flags().StringVar(&runExistingCode, "modify", "", "existing code to modify instead of generating fresh")
	runCmd.Flags().StringVar(&runTargetVersion, "target-version", "", "target CAD library version for cookbook filtering")
	runCmd.Flags().BoolVar(&runConsensus, "consensus", false, "use multi-candidate consensus unless the plan selects iterative mode")
	runCmd.Flags().IntVar(&runMaxAttempts, "max-attempts", 0, "override the executor's attempt budget for this run (0 = use config)")
	rootCmd.AddCommand(runCmd)
}

func renderResult(cmd *cobra.Command, result pipeline.Result) error {
	var b strings.Builder
	fmt.Fprintf(&b, "## Outcome: %s\n\n", result.Outcome)
	fmt.Fprintf(&b, "- **Mode:** %s\n", result.Mode)
	fmt.Fprintf(&b, "- **Confidence:** %s (%d)\n", result.Confidence.Band, result.Confidence.Score)
	if result.FailureReason != "" {
		fmt.Fprintf(&b, "- **Failure reason:** %s\n", result.FailureReason)
	}
	if len(result.SkippedIndices) > 0 {
		fmt.Fprintf(&b, "- **Skipped operations:** %v\n", result.SkippedIndices)
	}
	if len(result.Review.Issues) > 0 {
		b.WriteString("\n### Review issues\n")
		for _, issue := range result.Review.Issues {
			fmt.Fprintf(&b, "- %s\n", issue)
		}
	}
	if result.Code != "" {
		fmt.Fprintf(&b, "\n```python\n%s\n```\n", result.Code)
	}
	fmt.Fprintf(&b, "\n*mesh bytes: %d*\n", len(result.MeshBytes))

	rendered, err := glamour.Render(b.String(), "dark")
	if err != nil {
		// Rendering is cosmetic; fall back to the raw markdown rather than
		// failing a successful run over a terminal-detection quirk.
		rendered = b.String()
	}
	fmt.Fprint(cmd.OutOrStdout(), rendered)
	return nil
}
