package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gyeh/dermbill/internal/exitcode"
	"github.com/gyeh/dermbill/internal/refdata"
)

var lookupParams refdata.SearchParams

var lookupCmd = &cobra.Command{
	Use:   "lookup [code]",
	Short: "Look up a billing code or search the code table",
	Long:  "With a code argument, prints that record. Without one, searches by category, keyword, and wRVU range.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLookup,
}

func init() {
	f := lookupCmd.Flags()
	f.StringVar(&lookupParams.Category, "category", "", "Filter by code category")
	f.StringVar(&lookupParams.Keyword, "keyword", "", "Filter by description keyword")
	f.Float64Var(&lookupParams.MinWRVU, "min-wrvu", 0, "Minimum wRVU")
	f.Float64Var(&lookupParams.MaxWRVU, "max-wrvu", 0, "Maximum wRVU")
	f.StringVar(&cfg.OutputFormat, "format", "text", "Output format: text or json")
	rootCmd.AddCommand(lookupCmd)
}

func runLookup(cmd *cobra.Command, args []string) error {
	log := setupLogger()
	ctx := context.Background()

	_, store, _, cleanup := buildEngine(ctx, log)
	defer cleanup()

	if len(args) == 1 {
		rec, ok := store.Code(args[0])
		if !ok {
			log.Error().Str("code", args[0]).Msg("unknown code")
			os.Exit(exitcode.ValidationError)
		}
		if cfg.OutputFormat == "json" {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(rec)
		}
		fmt.Printf("%s  %s\n", rec.Code, rec.Description)
		fmt.Printf("  category: %s  wRVU: %.2f\n", rec.Category, rec.WRVU)
		if rec.IsAddOn {
			fmt.Printf("  add-on to: %v\n", rec.PrimaryCodes)
		}
		if rec.LowerBound != nil && rec.UpperBound != nil {
			fmt.Printf("  covers: %.1f to %.1f\n", *rec.LowerBound, *rec.UpperBound)
		}
		return nil
	}

	recs := store.Search(lookupParams)
	if cfg.OutputFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(recs)
	}
	for _, rec := range recs {
		fmt.Printf("%-8s %6.2f  %s\n", rec.Code, rec.WRVU, rec.Description)
	}
	fmt.Printf("%d codes\n", len(recs))
	return nil
}
