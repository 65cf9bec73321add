package cli

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "lorekeep",
	Short: "Privacy-scoped long-term memory for conversational agents",
	Long: "Lorekeep watches conversation streams, extracts durable facts with an LLM,\n" +
		"and recalls them later under hard per-scope privacy boundaries.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(memoriesCmd)
	rootCmd.AddCommand(retrieveCmd)
	rootCmd.AddCommand(decayCmd)
	rootCmd.AddCommand(forgetCmd)
}
