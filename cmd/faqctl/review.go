package main

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/thebtf/faqlearn/pkg/models"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Review queue commands",
}

var reviewStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the review queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		var stats models.ReviewStats
		if err := api.call(cmd.Context(), http.MethodGet, "/api/faqs/stats", nil, &stats); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()

		fmt.Fprintf(out, "\n%s\n\n", cyan("=== Review Queue ==="))
		fmt.Fprintf(out, "Total entries:      %d\n", stats.Total)
		fmt.Fprintf(out, "Average confidence: %.1f\n\n", stats.AverageConfidence)

		fmt.Fprintf(out, "%s\n", yellow("By status:"))
		for _, s := range models.AllStatuses {
			fmt.Fprintf(out, "  %-15s %d\n", s, stats.ByStatus[s])
		}

		if len(stats.TopCategories) > 0 {
			fmt.Fprintf(out, "\n%s\n", yellow("Top categories:"))
			for _, c := range stats.TopCategories {
				fmt.Fprintf(out, "  %-15s %d\n", c.Category, c.Count)
			}
		}

		if len(stats.ByReviewer) > 0 {
			reviewers := make([]string, 0, len(stats.ByReviewer))
			for r := range stats.ByReviewer {
				reviewers = append(reviewers, r)
			}
			sort.Strings(reviewers)
			fmt.Fprintf(out, "\n%s\n", yellow("By reviewer:"))
			for _, r := range reviewers {
				fmt.Fprintf(out, "  %-20s %d\n", r, stats.ByReviewer[r])
			}
		}
		fmt.Fprintln(out)
		return nil
	},
}

func init() {
	reviewCmd.AddCommand(reviewStatsCmd)
	rootCmd.AddCommand(reviewCmd)
}
