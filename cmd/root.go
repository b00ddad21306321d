package cmd

import (
	"fmt"
	"os"

	"github.com/jmehdipour/lead-intake/cmd/worker"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	cfgPath string
	rootCmd = &cobra.Command{
		Use:   "lead-intake",
		Short: "Website lead intake: contact form, article scraping, lead archive",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// local development; deployed environments set real variables
			_ = godotenv.Load()
		},
	}
)

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "path to YAML config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(functionsCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(worker.NewWorkerCmd())
}
