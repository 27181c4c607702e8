package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gyeh/dermbill/internal/exitcode"
)

var scenarioMatchText string

var scenariosCmd = &cobra.Command{
	Use:   "scenarios [name]",
	Short: "List or show condition playbooks",
	Long:  "Without arguments, lists every playbook. With a name, shows its opportunities and documentation tips. With --match, scores playbooks against text.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runScenarios,
}

func init() {
	scenariosCmd.Flags().StringVar(&scenarioMatchText, "match", "", "Score playbooks against this text")
	rootCmd.AddCommand(scenariosCmd)
}

func runScenarios(cmd *cobra.Command, args []string) error {
	log := setupLogger()
	ctx := context.Background()

	_, _, lib, cleanup := buildEngine(ctx, log)
	defer cleanup()

	if scenarioMatchText != "" {
		max := cfg.MaxScenarioMatches
		if max <= 0 {
			max = 5
		}
		for _, m := range lib.Match(scenarioMatchText, max) {
			fmt.Printf("%-24s score %d  %v\n", m.Name, m.Score, m.MatchedTerms)
		}
		return nil
	}

	if len(args) == 1 {
		s, ok := lib.Scenario(args[0])
		if !ok {
			log.Error().Str("name", args[0]).Msg("unknown playbook")
			os.Exit(exitcode.ValidationError)
		}
		fmt.Printf("%s\n%s\n", s.Name, s.Summary)
		fmt.Printf("\nOPPORTUNITIES\n")
		for _, opp := range s.Opportunities {
			fmt.Printf("  %s", opp.Opportunity)
			if opp.Code != "" {
				fmt.Printf(" (%s, %.2f wRVU)", opp.Code, opp.WRVU)
			}
			fmt.Println()
			fmt.Printf("        %s\n", opp.TeachingPoint)
		}
		if len(s.DocumentationTips) > 0 {
			fmt.Printf("\nDOCUMENTATION TIPS\n")
			for _, tip := range s.DocumentationTips {
				fmt.Printf("  - %s\n", tip)
			}
		}
		return nil
	}

	for _, name := range lib.Names() {
		s, _ := lib.Scenario(name)
		fmt.Printf("%-24s %s\n", s.Name, s.Summary)
	}
	return nil
}
