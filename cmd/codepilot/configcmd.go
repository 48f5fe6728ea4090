package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cadforge/codepilot/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Load and validate the configured AI provider settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath, envPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "provider:            %s\n", cfg.Provider)
		fmt.Fprintf(out, "model:               %s\n", cfg.Model)
		fmt.Fprintf(out, "base_url:            %s\n", cfg.BaseURL)
		fmt.Fprintf(out, "preset_id:           %s\n", cfg.PresetID)
		fmt.Fprintf(out, "enable_code_review:  %t\n", cfg.EnableCodeReview)
		fmt.Fprintf(out, "enable_consensus:    %t\n", cfg.EnableConsensus)
		fmt.Fprintf(out, "max_attempts:        %d\n", cfg.MaxAttempts)
		fmt.Fprintf(out, "auto_execute:        %t\n", cfg.AutoExecute)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
