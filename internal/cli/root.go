// Package cli holds the docqa commands.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gwi.com/docqa/internal/config"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "docqa",
	Short: "Ask questions about a PDF",
	Long:  `Upload a PDF, index it into a vector store and answer questions about it with a language model.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if envFile != "" {
			if err := loadEnvFile(envFile); err != nil {
				return err
			}
		}
		// Exits when GENAI_KEY or GENAI_ENDPOINT is missing.
		config.LoadConfig()
		config.SetupLogging(config.AppConfig)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		config.CloseLog()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, tuiCmd, ingestCmd)
	rootCmd.PersistentFlags().StringVarP(&envFile, "env", "e", "", "Environment file loaded before .env")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
