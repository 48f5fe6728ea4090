// Command codepilot is the CLI front end for the CAD code-generation
// pipeline (SPEC_FULL.md §4's CLI domain component). Grounded on
// tim-coutinho-agentops/cli/cmd/ao's cobra command-tree shape
// (persistent flags, init-registered subcommands) and the teacher's own
// cmd/demo/main.go for in-process engine wiring.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	envPath    string
	sessionID  string
)

var rootCmd = &cobra.Command{
	Use:           "codepilot",
	Short:         "Generate and validate parametric CAD code from natural language",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "codepilot.yaml", "path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&envPath, "env", ".env", "path to a .env file overlaying config")
	rootCmd.PersistentFlags().StringVar(&sessionID, "session", "default", "conversation/session id for SessionMemory")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "codepilot:", err)
		os.Exit(1)
	}
}
