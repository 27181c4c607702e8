package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/gyeh/dermbill/internal/engine"
	"github.com/gyeh/dermbill/internal/exitcode"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [note-file]",
	Short: "Analyze a dermatology note",
	Long:  "Reads a note from the file argument (or stdin) and prints the billing analysis.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&cfg.OutputFormat, "format", "text", "Report format: text or json")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	log := setupLogger()
	ctx := context.Background()

	note, source, err := readNote(args)
	if err != nil {
		log.Error().Err(err).Msg("read note failed")
		os.Exit(exitcode.UsageError)
	}

	eng, _, _, cleanup := buildEngine(ctx, log)
	defer cleanup()

	result, err := eng.AnalyzeNote(ctx, note)
	if err != nil {
		var ae *engine.AnalysisError
		if errors.As(err, &ae) {
			log.Error().Err(ae.Err).Str("phase", ae.Phase).Msg("analysis failed")
			if ae.Phase == "extract" {
				os.Exit(exitcode.ExtractionError)
			}
			os.Exit(exitcode.AnalysisError)
		}
		log.Error().Err(err).Msg("analysis failed")
		os.Exit(exitcode.AnalysisError)
	}

	if cfg.OutputFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	renderText(os.Stdout, source, result)
	return nil
}

func readNote(args []string) (note, source string, err error) {
	if len(args) == 1 {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", "", fmt.Errorf("read %s: %w", args[0], err)
		}
		return string(data), args[0], nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", "", fmt.Errorf("read stdin: %w", err)
	}
	return string(data), "stdin", nil
}
