package main

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/thebtf/faqlearn/pkg/models"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and control scheduled jobs",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scheduled jobs with their state and next run",
	RunE: func(cmd *cobra.Command, args []string) error {
		var statuses []models.JobStatus
		if err := api.call(cmd.Context(), http.MethodGet, "/api/jobs", nil, &statuses); err != nil {
			return err
		}
		renderJobs(cmd.OutOrStdout(), statuses)
		return nil
	},
}

var jobsHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent job runs, newest first",
	Long: `Show recent job runs, newest first.

Examples:
  faqctl jobs history
  faqctl jobs history --name daily-cleanup --limit 5`,
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		limit, _ := cmd.Flags().GetInt("limit")

		path := "/api/jobs/history"
		if name != "" {
			path += "?name=" + url.QueryEscape(name)
		}
		var runs []models.JobExecutionResult
		if err := api.call(cmd.Context(), http.MethodGet, path, nil, &runs); err != nil {
			return err
		}
		if limit > 0 && len(runs) > limit {
			runs = runs[:limit]
		}
		renderRuns(cmd.OutOrStdout(), runs)
		return nil
	},
}

var jobsRunCmd = &cobra.Command{
	Use:   "run <job>",
	Short: "Run a job now and wait for the result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var res models.JobExecutionResult
		if err := api.call(cmd.Context(), http.MethodPost, jobPath(args[0], "run"), nil, &res); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if res.Success {
			green := color.New(color.FgGreen).SprintFunc()
			fmt.Fprintf(out, "%s %s finished in %s, %d item(s)\n", green("✓"), res.JobName, res.Duration().Round(time.Millisecond), res.ItemsProcessed)
		} else {
			red := color.New(color.FgRed).SprintFunc()
			fmt.Fprintf(out, "%s %s failed after %s\n", red("✗"), res.JobName, res.Duration().Round(time.Millisecond))
		}
		for _, e := range res.Errors {
			fmt.Fprintf(out, "  - %s\n", e)
		}
		return nil
	},
}

var jobsEnableCmd = &cobra.Command{
	Use:   "enable <job>",
	Short: "Resume a job's schedule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateJob(cmd, http.MethodPost, jobPath(args[0], "enable"), nil)
	},
}

var jobsDisableCmd = &cobra.Command{
	Use:   "disable <job>",
	Short: "Pause a job's schedule; manual runs still work",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateJob(cmd, http.MethodPost, jobPath(args[0], "disable"), nil)
	},
}

var jobsScheduleCmd = &cobra.Command{
	Use:   "schedule <job> <cron-expression>",
	Short: "Change a job's cron expression",
	Long: `Change a job's cron expression. Expressions use the standard five fields.

Examples:
  faqctl jobs schedule daily-kb-sync "30 5 * * *"
  faqctl jobs schedule hourly-data-processing "*/30 * * * *"`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := map[string]string{"cron_expression": args[1]}
		return updateJob(cmd, http.MethodPut, jobPath(args[0], "schedule"), body)
	},
}

func init() {
	jobsHistoryCmd.Flags().String("name", "", "Only show runs of this job")
	jobsHistoryCmd.Flags().Int("limit", 20, "Maximum runs to show (0 for all)")

	jobsCmd.AddCommand(jobsListCmd, jobsHistoryCmd, jobsRunCmd, jobsEnableCmd, jobsDisableCmd, jobsScheduleCmd)
	rootCmd.AddCommand(jobsCmd)
}

func jobPath(name, action string) string {
	return "/api/jobs/" + url.PathEscape(name) + "/" + action
}

func updateJob(cmd *cobra.Command, method, path string, body interface{}) error {
	var st models.JobStatus
	if err := api.call(cmd.Context(), method, path, body, &st); err != nil {
		return err
	}
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s, %s\n", green("✓"), st.Name, enabledLabel(st.Enabled), st.CronExpression)
	return nil
}

func enabledLabel(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func renderJobs(w io.Writer, statuses []models.JobStatus) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Job", "Schedule", "Enabled", "Status", "Last run", "Next run"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	for _, st := range statuses {
		state := string(st.Status)
		switch st.Status {
		case models.JobError:
			state = color.RedString("%s: %s", st.Status, st.ErrorMessage)
		case models.JobRunning:
			state = color.YellowString("%s", state)
		}
		table.Append([]string{
			st.Name,
			st.CronExpression,
			enabledLabel(st.Enabled),
			state,
			formatTime(st.LastRun),
			formatTime(st.NextRun),
		})
	}
	table.Render()
}

func renderRuns(w io.Writer, runs []models.JobExecutionResult) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No job runs recorded")
		return
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Job", "Trigger", "Started", "Duration", "Items", "Result"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	for _, r := range runs {
		result := color.GreenString("ok")
		if !r.Success {
			result = color.RedString("failed")
		}
		if n := len(r.Errors); n > 0 {
			result += fmt.Sprintf(" (%d error(s): %s)", n, strings.Join(r.Errors, "; "))
		}
		start := r.StartTime
		table.Append([]string{
			r.JobName,
			string(r.Trigger),
			formatTime(&start),
			r.Duration().Round(time.Millisecond).String(),
			strconv.Itoa(r.ItemsProcessed),
			result,
		})
	}
	table.Render()
}
