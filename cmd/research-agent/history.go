// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-agent/internal/store"
	"github.com/pdiddy/research-agent/pkg/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent research runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")
		id, _ := cmd.Flags().GetString("id")

		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if id != "" {
			return showRun(cmd, a, id, asJSON)
		}

		runs, err := a.store.History(cmd.Context(), limit)
		if err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(runs)
		}

		if len(runs) == 0 {
			fmt.Println("no runs recorded")
			return nil
		}
		for _, run := range runs {
			fmt.Printf("%s  %-9s  conf %.2f  %s\n",
				run.Result.CompletedAt.Format("2006-01-02 15:04:05"),
				run.Result.Status, run.Result.ConfidenceScore, run.Request.QuestionText)
			fmt.Printf("    id %s  channel %s  iterations %d  citations %d\n",
				run.Request.ID, run.Request.Channel, run.Result.IterationsUsed, len(run.Result.Citations))
		}
		return nil
	},
}

// showRun prints one run in full, including its timeline.
func showRun(cmd *cobra.Command, a *app, id string, asJSON bool) error {
	run, err := a.store.Load(cmd.Context(), id)
	if err != nil {
		return err
	}
	events, err := a.store.Timeline(cmd.Context(), id)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Run      store.Run             `json:"run"`
			Timeline []types.TimelineEvent `json:"timeline"`
		}{Run: run, Timeline: events})
	}

	fmt.Printf("question: %s\n", run.Request.QuestionText)
	fmt.Printf("status:   %s  confidence %.2f  iterations %d\n",
		run.Result.Status, run.Result.ConfidenceScore, run.Result.IterationsUsed)
	fmt.Printf("\n%s\n", run.Result.AnswerText)
	if len(run.Result.Citations) > 0 {
		fmt.Println("\nSources:")
		for i, c := range run.Result.Citations {
			fmt.Printf("  %d. %s (%.2f) %s\n", i+1, c.Title, c.RelevanceScore, c.URL)
		}
	}
	if len(events) > 0 {
		fmt.Println("\nTimeline:")
		for _, ev := range events {
			fmt.Printf("  %3d %-18s %-7s %s\n", ev.Seq, ev.Step, ev.Status, ev.Message)
		}
	}
	return nil
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export research history as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.store.ExportYAML(cmd.Context(), out, limit); err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, "wrote", out)
		return nil
	},
}

func init() {
	historyCmd.Flags().Int("limit", 20, "maximum runs to list")
	historyCmd.Flags().String("id", "", "show one run in full by request ID")
	historyCmd.Flags().Bool("json", false, "output runs as JSON")

	exportCmd.Flags().String("out", "research-export.yaml", "output file path")
	exportCmd.Flags().Int("limit", 100, "maximum runs to export")

	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(exportCmd)
}
