// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/research-agent/internal/sms"
	"github.com/pdiddy/research-agent/pkg/types"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Run one research question end to end",
	Long: `Ask plans search queries for the question, gathers evidence, iterates
until the evidence suffices or the iteration budget runs out, and prints the
synthesized answer with its citations and confidence score.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.Join(args, " ")
		maxIterations, _ := cmd.Flags().GetInt("max-iterations")
		asJSON, _ := cmd.Flags().GetBool("json")
		asSMS, _ := cmd.Flags().GetBool("sms")
		showTimeline, _ := cmd.Flags().GetBool("timeline")
		if provider, _ := cmd.Flags().GetString("provider"); provider != "" {
			viper.Set("search.provider", provider)
		}

		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		req := types.NewResearchRequest(question, types.ChannelCLI, maxIterations)
		result, events, err := a.agent.Run(cmd.Context(), req)
		if err != nil {
			return err
		}

		if asSMS {
			fmt.Println(sms.FormatAnswer(result))
			return nil
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				Result   types.ResearchResult  `json:"result"`
				Timeline []types.TimelineEvent `json:"timeline,omitempty"`
			}{Result: result, Timeline: events})
		}

		fmt.Println(result.AnswerText)
		if len(result.Citations) > 0 {
			fmt.Println("\nSources:")
			for i, c := range result.Citations {
				fmt.Printf("  %d. %s (%.2f) %s\n", i+1, c.Title, c.RelevanceScore, c.URL)
			}
		}
		fmt.Printf("\nstatus: %s  confidence: %.2f  iterations: %d  duration: %s\n",
			result.Status, result.ConfidenceScore, result.IterationsUsed, result.Duration.Round(time.Millisecond))

		if showTimeline {
			fmt.Println("\nTimeline:")
			for _, ev := range events {
				fmt.Printf("  %3d %-18s %-7s %s\n", ev.Seq, ev.Step, ev.Status, ev.Message)
			}
		}
		return nil
	},
}

func init() {
	askCmd.Flags().Int("max-iterations", 0, "override the search/reflection iteration budget")
	askCmd.Flags().String("provider", "", "override the search provider (mock, brave, serpapi)")
	askCmd.Flags().Bool("json", false, "output the result as JSON")
	askCmd.Flags().Bool("sms", false, "format the answer as an SMS message")
	askCmd.Flags().Bool("timeline", false, "print the run timeline")

	rootCmd.AddCommand(askCmd)
}
