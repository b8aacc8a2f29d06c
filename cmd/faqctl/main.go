// Package main provides faqctl, the operator CLI for the FAQ learning worker.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags.
var Version = "dev"

const defaultWorkerURL = "http://127.0.0.1:38080"

var api *apiClient

var rootCmd = &cobra.Command{
	Use:           "faqctl",
	Short:         "Operate the FAQ learning worker",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		url, _ := cmd.Flags().GetString("url")
		token, _ := cmd.Flags().GetString("token")
		timeout, _ := cmd.Flags().GetDuration("timeout")
		noColor, _ := cmd.Flags().GetBool("no-color")
		if noColor {
			color.NoColor = true
		}
		api = newAPIClient(url, token, timeout)
	},
}

func init() {
	rootCmd.PersistentFlags().String("url", envOr("FAQLEARN_WORKER_URL", defaultWorkerURL), "Worker base URL")
	rootCmd.PersistentFlags().String("token", os.Getenv("FAQLEARN_AUTH_TOKEN"), "API token")
	rootCmd.PersistentFlags().Duration("timeout", 5*time.Minute, "Request timeout (job runs wait for completion)")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		red := color.New(color.FgRed).SprintFunc()
		fmt.Fprintf(os.Stderr, "%s %v\n", red("Error:"), err)
		os.Exit(1)
	}
}
