package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gyeh/dermbill/internal/engine"
	"github.com/gyeh/dermbill/internal/exitcode"
	"github.com/gyeh/dermbill/internal/export"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export note-file...",
	Short: "Analyze notes and export billing lines to Parquet",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "billing_lines.parquet", "Output Parquet path")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	log := setupLogger()
	ctx := context.Background()

	eng, _, _, cleanup := buildEngine(ctx, log)
	defer cleanup()

	// A bad note skips with an error log; the rest still export.
	var results []export.TaggedResult
	failed := 0
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Error().Err(err).Str("file", path).Msg("read note failed, skipping")
			failed++
			continue
		}
		result, err := eng.AnalyzeNote(ctx, string(data))
		if err != nil {
			var ae *engine.AnalysisError
			if errors.As(err, &ae) {
				log.Error().Err(ae.Err).Str("file", path).Str("phase", ae.Phase).Msg("analysis failed, skipping")
			} else {
				log.Error().Err(err).Str("file", path).Msg("analysis failed, skipping")
			}
			failed++
			continue
		}
		results = append(results, export.TaggedResult{NoteFile: path, Result: result})
	}
	if len(results) == 0 {
		log.Error().Int("failed", failed).Msg("no notes analyzed")
		os.Exit(exitcode.AnalysisError)
	}

	n, err := export.WriteFile(exportOut, results)
	if err != nil {
		log.Error().Err(err).Msg("export failed")
		os.Exit(exitcode.ExportError)
	}
	fmt.Printf("Export complete: %d rows from %d notes -> %s\n", n, len(results), exportOut)
	if failed > 0 {
		log.Warn().Int("failed", failed).Msg("some notes were skipped")
		os.Exit(exitcode.PartialSuccess)
	}
	return nil
}
