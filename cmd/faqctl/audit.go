package main

import (
	"fmt"
	"net/http"
	"net/url"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit trail commands",
}

var auditExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the audit trail as JSON or CSV",
	Long: `Export the audit trail as JSON or CSV.

Examples:
  faqctl audit export --format csv --output audit.csv
  faqctl audit export --action faq.approve --from 2024-06-01T00:00:00Z`,
	RunE: func(cmd *cobra.Command, args []string) error {
		q := url.Values{}
		for flag, param := range map[string]string{
			"format":        "format",
			"action":        "action",
			"resource-type": "resourceType",
			"resource-id":   "resourceId",
			"user":          "userId",
			"from":          "from",
			"to":            "to",
		} {
			if v, _ := cmd.Flags().GetString(flag); v != "" {
				q.Set(param, v)
			}
		}
		if limit, _ := cmd.Flags().GetInt("limit"); limit > 0 {
			q.Set("limit", fmt.Sprint(limit))
		}

		data, err := api.raw(cmd.Context(), http.MethodGet, "/api/audit/export?"+q.Encode(), nil)
		if err != nil {
			return err
		}

		output, _ := cmd.Flags().GetString("output")
		if output == "" || output == "-" {
			_, err := cmd.OutOrStdout().Write(data)
			return err
		}
		if err := os.WriteFile(output, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", output, err)
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Fprintf(cmd.OutOrStdout(), "%s Wrote %d bytes to %s\n", green("✓"), len(data), output)
		return nil
	},
}

func init() {
	f := auditExportCmd.Flags()
	f.String("format", "json", "Export format: json or csv")
	f.String("action", "", "Only entries with this action (e.g. faq.approve, job.run)")
	f.String("resource-type", "", "Only entries for this resource type")
	f.String("resource-id", "", "Only entries for this resource id")
	f.String("user", "", "Only entries by this user")
	f.String("from", "", "Earliest timestamp (RFC 3339)")
	f.String("to", "", "Latest timestamp (RFC 3339)")
	f.Int("limit", 0, "Maximum entries (0 for all)")
	f.StringP("output", "o", "", "Write to file instead of stdout")

	auditCmd.AddCommand(auditExportCmd)
	rootCmd.AddCommand(auditCmd)
}
